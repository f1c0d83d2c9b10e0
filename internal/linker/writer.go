// Package linker maintains a "Related" section inside notes: a markdown
// heading followed by wiki-links to the most similar notes in the vault.
// Everything outside that one section is preserved byte for byte.
package linker

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/semlink/semlink/internal/index"
	"github.com/semlink/semlink/internal/notes"
)

// DefaultHeading is the section heading used when none is configured.
const DefaultHeading = "Related"

// Writer rewrites the related-notes section of a note.
type Writer struct {
	heading string
	md      goldmark.Markdown
}

// NewWriter creates a Writer using the given section heading. An empty
// heading selects the default.
func NewWriter(heading string) *Writer {
	if heading == "" {
		heading = DefaultHeading
	}
	return &Writer{
		heading: heading,
		md:      goldmark.New(),
	}
}

// Section renders the related section as markdown: a level-2 heading and
// one wiki-link list item per match, best first.
func (w *Writer) Section(matches []index.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", w.heading)
	for _, m := range matches {
		fmt.Fprintf(&b, "- [[%s]]\n", strings.TrimSuffix(m.ID, ".md"))
	}
	return b.String()
}

// Apply returns content with its related section replaced by one built
// from matches. A missing section is appended at the end of the note; an
// empty match list removes the section entirely.
func (w *Writer) Apply(content string, matches []index.Match) string {
	src := []byte(content)
	doc := w.md.Parser().Parse(text.NewReader(src))

	start, end, found := w.sectionBounds(doc, src)

	if !found {
		if len(matches) == 0 {
			return content
		}
		out := content
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		if out != "" && !strings.HasSuffix(out, "\n\n") {
			out += "\n"
		}
		return out + w.Section(matches)
	}

	before := content[:start]
	after := content[end:]

	if len(matches) == 0 {
		return strings.TrimRight(before, "\n") + ensureLeadingBreak(after)
	}

	section := w.Section(matches)
	if after != "" {
		section += "\n"
	}
	return before + section + after
}

// UpdateNote rewrites the related section of one note in place. It
// returns whether the note's content actually changed.
func (w *Writer) UpdateNote(ctx context.Context, store notes.Store, id string, matches []index.Match) (bool, error) {
	content, err := store.ReadContent(ctx, id)
	if err != nil {
		return false, fmt.Errorf("update related section: %w", err)
	}

	updated := w.Apply(content, matches)
	if updated == content {
		return false, nil
	}

	if err := store.WriteContent(ctx, id, updated); err != nil {
		return false, fmt.Errorf("update related section: %w", err)
	}
	return true, nil
}

// sectionBounds locates the byte range [start, end) of the related
// section: the heading line through the last byte before the next
// heading of the same or higher level, or end of file.
func (w *Writer) sectionBounds(doc ast.Node, src []byte) (start, end int, found bool) {
	var heading *ast.Heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 2 || h.Lines().Len() == 0 {
			continue
		}
		if strings.EqualFold(string(h.Text(src)), w.heading) {
			heading = h
			break
		}
	}
	if heading == nil {
		return 0, 0, false
	}

	start = lineStart(src, heading.Lines().At(0).Start)

	end = len(src)
	for n := heading.NextSibling(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > 2 || h.Lines().Len() == 0 {
			continue
		}
		end = lineStart(src, h.Lines().At(0).Start)
		break
	}
	return start, end, true
}

// lineStart backtracks from a position inside a line to the byte after
// the previous newline. Heading segments start after the "## " marker,
// so the marker has to be recovered this way.
func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// ensureLeadingBreak normalizes the text that follows a removed section
// so the note does not end up with glued or tripled newlines.
func ensureLeadingBreak(after string) string {
	trimmed := strings.TrimLeft(after, "\n")
	if trimmed == "" {
		return "\n"
	}
	return "\n\n" + trimmed
}
