package notes

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude matches markdown notes anywhere in the vault.
var DefaultInclude = []string{"**/*.md"}

// defaultExcludedDirs are directory names skipped during traversal.
var defaultExcludedDirs = []string{
	".git",
	".obsidian",
	".trash",
	".semlink",
	"node_modules",
}

// Vault is a filesystem-backed note store rooted at a single directory.
type Vault struct {
	root    string
	include []string
	exclude []string
}

// NewVault creates a Vault rooted at dir. include and exclude are
// doublestar glob patterns over vault-relative paths; an empty include
// list defaults to markdown files.
func NewVault(dir string, include, exclude []string) (*Vault, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	if len(include) == 0 {
		include = DefaultInclude
	}
	return &Vault{root: root, include: include, exclude: exclude}, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string { return v.root }

func (v *Vault) List(ctx context.Context) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip unreadable entries instead of aborting the scan.
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if shouldExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(v.root, path)
		if err != nil {
			return nil
		}
		id := filepath.ToSlash(rel)

		if !matchesAny(id, v.include) || matchesAny(id, v.exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		docs = append(docs, Document{ID: id, ModifiedAt: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk vault %s: %w", v.root, err)
	}

	return docs, nil
}

func (v *Vault) Stat(ctx context.Context, id string) (Document, error) {
	path, err := v.resolve(id)
	if err != nil {
		return Document{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("stat note %s: %w", id, err)
	}
	return Document{ID: id, ModifiedAt: info.ModTime().UnixNano()}, nil
}

func (v *Vault) ReadContent(ctx context.Context, id string) (string, error) {
	path, err := v.resolve(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read note %s: %w", id, err)
	}
	return string(data), nil
}

func (v *Vault) WriteContent(ctx context.Context, id, text string) error {
	path, err := v.resolve(id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write note %s: %w", id, err)
	}
	return nil
}

// resolve maps a note id to an absolute path, rejecting ids that escape
// the vault root.
func (v *Vault) resolve(id string) (string, error) {
	path := filepath.Join(v.root, filepath.FromSlash(id))
	if path != v.root && !strings.HasPrefix(path, v.root+string(filepath.Separator)) {
		return "", fmt.Errorf("note id %q escapes vault root", id)
	}
	return path, nil
}

func shouldExcludeDir(name string) bool {
	for _, excl := range defaultExcludedDirs {
		if strings.EqualFold(name, excl) {
			return true
		}
	}
	return false
}

// matchesAny checks relPath against the given doublestar patterns.
func matchesAny(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.PathMatch(filepath.ToSlash(pattern), relPath); err == nil && matched {
			return true
		}
	}
	return false
}
