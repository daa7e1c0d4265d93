package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	same := filepath.Join(dir, "libs", "core.xml")
	changed := filepath.Join(dir, "trees", "main.xml")
	created := filepath.Join(dir, "trees", "main.dgm")
	require.NoError(t, os.MkdirAll(filepath.Dir(same), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(changed), 0o755))
	require.NoError(t, os.WriteFile(same, []byte("<LibData/>\n"), 0o644))
	require.NoError(t, os.WriteFile(changed, []byte("a\nb\nc\n"), 0o644))

	changes, err := Compare(map[string][]byte{
		same:    []byte("<LibData/>\n"),
		changed: []byte("a\nB\nc\n"),
		created: []byte("<diagram/>\n"),
	}, dir)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	tests := []struct {
		name   string
		status Status
	}{
		{"libs/core.xml", Unchanged},
		{"trees/main.dgm", Created},
		{"trees/main.xml", Modified},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.name, changes[i].Name)
		assert.Equal(t, tt.status, changes[i].Status, tt.name)
	}
	assert.Equal(t, "1 modified, 1 new, 1 unchanged", Summary(changes))
	assert.Len(t, Changed(changes), 2)
}

func TestDiff(t *testing.T) {
	modified := Change{Name: "trees/main.xml", Status: Modified, Old: []byte("a\nb\nc\n"), New: []byte("a\nB\nc\n")}
	text, err := modified.Diff(1)
	require.NoError(t, err)
	assert.Contains(t, text, "--- a/trees/main.xml")
	assert.Contains(t, text, "+++ b/trees/main.xml")
	assert.Contains(t, text, "-b\n")
	assert.Contains(t, text, "+B\n")

	created := Change{Name: "x.dgm", Status: Created, New: []byte("<diagram/>\n")}
	text, err = created.Diff(3)
	require.NoError(t, err)
	assert.Contains(t, text, "--- /dev/null")
	assert.Contains(t, text, "+<diagram/>")

	text, err = Change{Status: Unchanged}.Diff(3)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestWriteDiffsSkipsUnchanged(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDiffs(&buf, []Change{
		{Name: "same.xml", Status: Unchanged, Old: []byte("x\n"), New: []byte("x\n")},
		{Name: "new.xml", Status: Created, New: []byte("y\n")},
	}, 3)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "same.xml")
	assert.Contains(t, buf.String(), "b/new.xml")
}

func TestDisplayNameOutsideBase(t *testing.T) {
	assert.Equal(t, "/other/file.xml", displayName("/other/file.xml", "/work"))
	assert.Equal(t, "a/b.xml", displayName("/work/a/b.xml", "/work"))
	assert.Equal(t, "/work/a.xml", displayName("/work/a.xml", ""))
}
