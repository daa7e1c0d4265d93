package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(r))
	}
	return out
}

func TestFileWalkerFind(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"a.btproj.yaml",
		"game/b.btproj.yaml",
		"game/trees/main.xml",
		"game/deep/er/c.btproj.yaml",
		".btstudio/tx/old.btproj.yaml",
		"notes.txt",
	)

	tests := []struct {
		name  string
		scope FileScope
		want  []string
	}{
		{
			name:  "include by base name",
			scope: FileScope{Include: []string{"*.btproj.yaml"}},
			want:  []string{".btstudio/tx/old.btproj.yaml", "a.btproj.yaml", "game/b.btproj.yaml", "game/deep/er/c.btproj.yaml"},
		},
		{
			name:  "exclude directory",
			scope: FileScope{Include: []string{"*.btproj.yaml"}, Exclude: []string{".btstudio"}},
			want:  []string{"a.btproj.yaml", "game/b.btproj.yaml", "game/deep/er/c.btproj.yaml"},
		},
		{
			name:  "max depth",
			scope: FileScope{Include: []string{"*.btproj.yaml"}, Exclude: []string{".btstudio"}, MaxDepth: 1},
			want:  []string{"a.btproj.yaml", "game/b.btproj.yaml"},
		},
		{
			name:  "path pattern",
			scope: FileScope{Include: []string{"**/trees/*.xml"}},
			want:  []string{"game/trees/main.xml"},
		},
		{
			name:  "max files",
			scope: FileScope{Include: []string{"*.txt"}, MaxFiles: 1},
			want:  []string{"notes.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.scope.Path = root
			files, err := NewFileWalker().Find(context.Background(), tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rel(t, root, files))
		})
	}
}

func TestFileWalkerAllFilesWithoutInclude(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.xml", "b/c.dgm")

	results, err := NewFileWalker().Walk(context.Background(), FileScope{Path: root})
	require.NoError(t, err)
	count := 0
	for r := range results {
		require.NoError(t, r.Error)
		assert.NotNil(t, r.Info)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestFileWalkerSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeTree(t, outside, "linked.btproj.yaml")
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	// A loop back to the root must not recurse forever.
	require.NoError(t, os.Symlink(root, filepath.Join(outside, "back")))

	scope := FileScope{Path: root, Include: []string{"*.btproj.yaml"}}
	files, err := NewFileWalker().Find(context.Background(), scope)
	require.NoError(t, err)
	assert.Empty(t, files)

	scope.FollowSymlinks = true
	files, err = NewFileWalker().Find(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"link/linked.btproj.yaml"}, rel(t, root, files))
}

func TestFileWalkerInvalidScope(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	tests := []struct {
		name  string
		scope FileScope
	}{
		{"empty path", FileScope{}},
		{"missing path", FileScope{Path: filepath.Join(file, "nope")}},
		{"file instead of directory", FileScope{Path: file}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileWalker().Walk(context.Background(), tt.scope)
			assert.Error(t, err)
		})
	}
	_, err := NewFileWalker().Walk(context.Background(), FileScope{Path: file})
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestFileWalkerCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.xml")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileWalker().Find(ctx, FileScope{Path: root})
	assert.ErrorIs(t, err, context.Canceled)
}
