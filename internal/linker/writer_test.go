package linker

import (
	"context"
	"fmt"
	"testing"

	"github.com/semlink/semlink/internal/index"
	"github.com/semlink/semlink/internal/notes"
)

func matches(ids ...string) []index.Match {
	out := make([]index.Match, len(ids))
	for i, id := range ids {
		out[i] = index.Match{ID: id, Score: 1 - float64(i)*0.1}
	}
	return out
}

func TestApply_AppendsMissingSection(t *testing.T) {
	content := "# Morning pages\n\nSome thoughts.\n"

	got := NewWriter("").Apply(content, matches("coffee.md", "sleep.md"))

	want := "# Morning pages\n\nSome thoughts.\n\n## Related\n\n- [[coffee]]\n- [[sleep]]\n"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApply_ReplacesExistingSection(t *testing.T) {
	content := "# Note\n\nBody.\n\n## Related\n\n- [[stale]]\n\n## Sources\n\n1. a book\n"

	got := NewWriter("").Apply(content, matches("fresh.md"))

	want := "# Note\n\nBody.\n\n## Related\n\n- [[fresh]]\n\n## Sources\n\n1. a book\n"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApply_ReplacesTrailingSection(t *testing.T) {
	content := "Body.\n\n## Related\n\n- [[old-one]]\n- [[old-two]]\n"

	got := NewWriter("").Apply(content, matches("new.md"))

	want := "Body.\n\n## Related\n\n- [[new]]\n"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApply_EmptyMatchesRemovesSection(t *testing.T) {
	content := "Body.\n\n## Related\n\n- [[gone]]\n\n## Keep\n\ntext\n"

	got := NewWriter("").Apply(content, nil)

	want := "Body.\n\n## Keep\n\ntext\n"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApply_EmptyMatchesNoSectionIsNoop(t *testing.T) {
	content := "Just a note.\n"
	if got := NewWriter("").Apply(content, nil); got != content {
		t.Errorf("Apply = %q, want unchanged", got)
	}
}

func TestApply_CustomHeading(t *testing.T) {
	content := "Body.\n\n## See also\n\n- [[old]]\n"

	got := NewWriter("See also").Apply(content, matches("new.md"))

	want := "Body.\n\n## See also\n\n- [[new]]\n"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApply_HeadingMatchIsCaseInsensitive(t *testing.T) {
	content := "Body.\n\n## related\n\n- [[old]]\n"

	got := NewWriter("Related").Apply(content, matches("new.md"))

	if got == content {
		t.Error("lowercase heading was not recognized as the related section")
	}
}

func TestApply_SubheadingsStayInsideSection(t *testing.T) {
	// A level-3 heading belongs to the related section and is replaced
	// with it.
	content := "Body.\n\n## Related\n\n### by topic\n\n- [[old]]\n\n## Next\n\ntext\n"

	got := NewWriter("").Apply(content, matches("new.md"))

	want := "Body.\n\n## Related\n\n- [[new]]\n\n## Next\n\ntext\n"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApply_OtherLevelTwoHeadingsUntouched(t *testing.T) {
	content := "## Ideas\n\n- one\n\n## Related\n\n- [[old]]\n"

	got := NewWriter("").Apply(content, matches("new.md"))

	want := "## Ideas\n\n- one\n\n## Related\n\n- [[new]]\n"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApply_NestedPathKeepsDirectories(t *testing.T) {
	got := NewWriter("").Apply("Body.\n", matches("projects/garden.md"))

	want := "Body.\n\n## Related\n\n- [[projects/garden]]\n"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

// noteStub is a single-note notes.Store recording writes.
type noteStub struct {
	id      string
	content string
	writes  int
}

func (s *noteStub) List(context.Context) ([]notes.Document, error) {
	return []notes.Document{{ID: s.id}}, nil
}

func (s *noteStub) Stat(_ context.Context, id string) (notes.Document, error) {
	if id != s.id {
		return notes.Document{}, fmt.Errorf("stat %s: not found", id)
	}
	return notes.Document{ID: id}, nil
}

func (s *noteStub) ReadContent(_ context.Context, id string) (string, error) {
	if id != s.id {
		return "", fmt.Errorf("read %s: not found", id)
	}
	return s.content, nil
}

func (s *noteStub) WriteContent(_ context.Context, id, text string) error {
	s.content = text
	s.writes++
	return nil
}

func TestUpdateNote_WritesOnlyOnChange(t *testing.T) {
	stub := &noteStub{id: "a.md", content: "Body.\n"}
	w := NewWriter("")

	changed, err := w.UpdateNote(context.Background(), stub, "a.md", matches("b.md"))
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if !changed || stub.writes != 1 {
		t.Fatalf("changed=%v writes=%d, want a single write", changed, stub.writes)
	}

	// Same matches again: the section is already up to date.
	changed, err = w.UpdateNote(context.Background(), stub, "a.md", matches("b.md"))
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if changed || stub.writes != 1 {
		t.Errorf("changed=%v writes=%d, want no second write", changed, stub.writes)
	}
}
