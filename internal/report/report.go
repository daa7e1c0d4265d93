// Package report compares rendered project files with what is on disk and prints unified diffs.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Status of a rendered file relative to disk.
type Status string

const (
	Unchanged Status = "unchanged"
	Modified  Status = "modified"
	Created   Status = "new"
)

// Change is one rendered file compared with its current content.
type Change struct {
	Path   string // as rendered
	Name   string // Path relative to the base directory, for display
	Status Status
	Old    []byte
	New    []byte
}

// Compare reads each rendered path from disk and classifies it. Names are made relative to
// base when possible. The result is sorted by path.
func Compare(files map[string][]byte, base string) ([]Change, error) {
	changes := make([]Change, 0, len(files))
	for path, data := range files {
		c := Change{Path: path, Name: displayName(path, base), New: data}
		old, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			c.Status = Created
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		case bytes.Equal(old, data):
			c.Status = Unchanged
			c.Old = old
		default:
			c.Status = Modified
			c.Old = old
		}
		changes = append(changes, c)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func displayName(path, base string) string {
	if base == "" {
		return filepath.ToSlash(path)
	}
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// Diff returns the unified diff of c, or "" when nothing changed.
func (c Change) Diff(context int) (string, error) {
	if c.Status == Unchanged {
		return "", nil
	}
	from := "a/" + c.Name
	if c.Status == Created {
		from = "/dev/null"
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(c.Old)),
		B:        difflib.SplitLines(string(c.New)),
		FromFile: from,
		ToFile:   "b/" + c.Name,
		Context:  context,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to diff %s: %w", c.Name, err)
	}
	return text, nil
}

// WriteDiffs prints the diff of every changed file to w.
func WriteDiffs(w io.Writer, changes []Change, context int) error {
	for _, c := range changes {
		text, err := c.Diff(context)
		if err != nil {
			return err
		}
		if text == "" {
			continue
		}
		if _, err := io.WriteString(w, text); err != nil {
			return err
		}
	}
	return nil
}

// Changed returns the files that differ from disk.
func Changed(changes []Change) []Change {
	var out []Change
	for _, c := range changes {
		if c.Status != Unchanged {
			out = append(out, c)
		}
	}
	return out
}

// Summary describes changes as "N modified, M new, K unchanged".
func Summary(changes []Change) string {
	counts := map[Status]int{}
	for _, c := range changes {
		counts[c.Status]++
	}
	return fmt.Sprintf("%d modified, %d new, %d unchanged", counts[Modified], counts[Created], counts[Unchanged])
}
