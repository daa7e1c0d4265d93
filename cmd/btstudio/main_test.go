package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/btstudio/internal/fixture"
)

type cliEnv struct {
	paths   fixture.Paths
	journal string
}

func setup(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliEnv{
		paths:   fixture.WriteProject(t, dir),
		journal: filepath.Join(dir, "state", "journal.db"),
	}
	t.Setenv("BTSTUDIO_JOURNAL_DSN", env.journal)
	t.Setenv("BTSTUDIO_LOG_LEVEL", "error")
	t.Setenv("BTSTUDIO_TXLOG_DIR", "")
	t.Setenv("BTSTUDIO_BACKUP", "false")
	return env
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "btstudio", cmd.Use)
	assert.Equal(t, version, cmd.Version)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"check", "fmt", "ls", "rename-node", "rename-branch", "journal"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"log-level", "json-logs", "env-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestFlagNamesAcceptUnderscores(t *testing.T) {
	env := setup(t)
	out, err := run(t, "fmt", env.paths.Manifest, "--diff_context", "1", "--log_level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "modified, ")
}

func TestCheck(t *testing.T) {
	env := setup(t)

	out, err := run(t, "check", env.paths.Manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "project sample: 2 classes, 1 libraries, 4 node types, 2 branches, 6 nodes")
	assert.Contains(t, out, "load: ")

	_, err = run(t, "check", filepath.Join(env.paths.Dir, "missing.btproj.yaml"))
	assert.Error(t, err)
}

func TestCheckDirectory(t *testing.T) {
	env := setup(t)
	second := fixture.WriteProject(t, filepath.Join(env.paths.Dir, "nested"))
	require.NoError(t, os.Rename(second.Manifest, filepath.Join(second.Dir, "other.btproj.yaml")))

	out, err := run(t, "check", env.paths.Dir)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "project sample:"))

	_, err = run(t, "check", t.TempDir())
	assert.ErrorContains(t, err, "no *.btproj.yaml files")
}

func TestCheckRejectsBadLogLevel(t *testing.T) {
	env := setup(t)
	_, err := run(t, "check", env.paths.Manifest, "--log-level", "loud")
	assert.Error(t, err)
}

func TestLs(t *testing.T) {
	env := setup(t)

	tests := []struct {
		listing string
		want    []string
	}{
		{"classes", []string{"Task (top-level): Leaf, Composite, Decorator, Link", "Condition: Leaf"}},
		{"libraries", []string{"core\t4 nodes"}},
		{"nodes", []string{"core/MoveTo\tTask Leaf", "core/IsNear\tCondition Leaf"}},
		{"branches", []string{"main.xml/Approach", "main.xml/Patrol\tuid=100\t4 nodes"}},
	}
	for _, tt := range tests {
		t.Run(tt.listing, func(t *testing.T) {
			out, err := run(t, "ls", env.paths.Manifest, tt.listing)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}

	_, err := run(t, "ls", env.paths.Manifest, "shapes")
	assert.ErrorContains(t, err, "unknown listing")
}

func TestFmtWriteIsIdempotent(t *testing.T) {
	env := setup(t)

	out, err := run(t, "fmt", env.paths.Manifest, "--write")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote ")
	assert.DirExists(t, filepath.Join(env.paths.Dir, ".btstudio", "tx"))

	out, err = run(t, "fmt", env.paths.Manifest, "--diff")
	require.NoError(t, err)
	assert.Contains(t, out, "0 modified, 0 new")
	assert.NotContains(t, out, "+++")
}

func TestRenameNodeDryRunAndWrite(t *testing.T) {
	env := setup(t)
	before, err := os.ReadFile(env.paths.Tree)
	require.NoError(t, err)

	out, err := run(t, "rename-node", env.paths.Manifest, "core", "MoveTo", "Walk", "--diff")
	require.NoError(t, err)
	assert.Contains(t, out, `+++ b/trees/main.xml`)
	assert.Contains(t, out, `Node="Walk"`)
	after, err := os.ReadFile(env.paths.Tree)
	require.NoError(t, err)
	assert.Equal(t, before, after, "dry run leaves files alone")

	_, err = run(t, "rename-node", env.paths.Manifest, "core", "MoveTo", "Walk", "--write")
	require.NoError(t, err)
	tree, err := os.ReadFile(env.paths.Tree)
	require.NoError(t, err)
	assert.Contains(t, string(tree), `Node="Walk"`)
	assert.NotContains(t, string(tree), `Node="MoveTo"`)

	out, err = run(t, "ls", env.paths.Manifest, "nodes")
	require.NoError(t, err)
	assert.Contains(t, out, "core/Walk")

	_, err = run(t, "rename-node", env.paths.Manifest, "core", "Missing", "Other")
	assert.Error(t, err)
}

func TestRenameBranch(t *testing.T) {
	env := setup(t)

	out, err := run(t, "rename-branch", env.paths.Manifest, "trees/main.xml/Approach", "Chase", "--write")
	require.NoError(t, err)
	assert.Contains(t, out, "/Chase")

	out, err = run(t, "ls", env.paths.Manifest, "branches")
	require.NoError(t, err)
	assert.Contains(t, out, "main.xml/Chase")
	assert.NotContains(t, out, "main.xml/Approach")

	_, err = run(t, "rename-branch", env.paths.Manifest, "trees/main.xml/Nowhere", "X")
	assert.ErrorContains(t, err, "unknown branch")
}

func TestJournal(t *testing.T) {
	env := setup(t)

	_, err := run(t, "check", env.paths.Manifest)
	require.NoError(t, err)
	_, err = run(t, "fmt", env.paths.Manifest, "--write")
	require.NoError(t, err)
	_, err = run(t, "check", filepath.Join(env.paths.Dir, "missing.btproj.yaml"))
	require.Error(t, err)

	out, err := run(t, "journal", "--files")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, out, "fmt")
	assert.Contains(t, out, "failed: ")
	assert.Contains(t, out, "read      library")
	assert.Contains(t, out, "read      tree")

	out, err = run(t, "journal", "--limit", "1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestJournalDisabled(t *testing.T) {
	setup(t)
	t.Setenv("BTSTUDIO_JOURNAL_DSN", "")

	out, err := run(t, "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "journal disabled")
}
