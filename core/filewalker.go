package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

var ErrNotDirectory = errors.New("not a directory")

// FileScope selects the files a walk reports.
type FileScope struct {
	Path           string   // Root directory
	Include        []string // Patterns to report (*.btproj.yaml, trees/**/*.xml); empty means all
	Exclude        []string // Patterns of files and directories to skip
	MaxDepth       int      // 0 = unlimited
	MaxFiles       int      // 0 = unlimited
	FollowSymlinks bool
}

// WalkResult is one discovered file.
type WalkResult struct {
	Path  string
	Info  fs.FileInfo
	Error error
}

// FileWalker discovers files with one scanning goroutine and a pool of stat workers.
type FileWalker struct {
	workers    int
	bufferSize int
}

// NewFileWalker creates a walker sized for I/O bound work.
func NewFileWalker() *FileWalker {
	return &FileWalker{
		workers:    runtime.NumCPU() * 2,
		bufferSize: 256,
	}
}

// Walk streams the files of scope. The channel is closed when the scan ends or ctx is done.
func (fw *FileWalker) Walk(ctx context.Context, scope FileScope) (<-chan WalkResult, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}

	results := make(chan WalkResult, fw.bufferSize)
	paths := make(chan string, fw.bufferSize)

	var wg sync.WaitGroup
	for range fw.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				r := statFile(path)
				select {
				case <-ctx.Done():
					return
				case results <- r:
				}
			}
		}()
	}

	go func() {
		defer close(paths)
		s := &scan{ctx: ctx, scope: scope, out: paths}
		if scope.FollowSymlinks {
			s.visited = make(map[string]bool)
			s.markVisited(scope.Path)
		}
		s.dir(scope.Path, 0)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

// Find returns the matching paths in sorted order. Files that cannot be stat'ed are skipped.
func (fw *FileWalker) Find(ctx context.Context, scope FileScope) ([]string, error) {
	results, err := fw.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}
	var files []string
	for r := range results {
		if r.Error == nil {
			files = append(files, r.Path)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// scan is the state of one directory traversal.
type scan struct {
	ctx     context.Context
	scope   FileScope
	out     chan<- string
	sent    int
	visited map[string]bool // nil unless symlinks are followed
}

func (s *scan) done() bool {
	if s.ctx.Err() != nil {
		return true
	}
	return s.scope.MaxFiles > 0 && s.sent >= s.scope.MaxFiles
}

// markVisited records dir by its resolved path and reports whether it was new.
func (s *scan) markVisited(dir string) bool {
	if s.visited == nil {
		return true
	}
	key := dir
	if resolved, err := filepath.EvalSymlinks(dir); err == nil && resolved != "" {
		key = resolved
	}
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	return true
}

func (s *scan) dir(dir string, depth int) {
	if s.done() || (s.scope.MaxDepth > 0 && depth > s.scope.MaxDepth) {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if s.done() {
			return
		}
		path := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(s.scope.Path, path)
		if err != nil {
			continue
		}
		if matchAny(rel, s.scope.Exclude) {
			continue
		}

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if !s.scope.FollowSymlinks {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			isDir = info.IsDir()
		}
		if isDir {
			if s.markVisited(path) {
				s.dir(path, depth+1)
			}
			continue
		}

		if len(s.scope.Include) > 0 && !matchAny(rel, s.scope.Include) {
			continue
		}
		select {
		case <-s.ctx.Done():
			return
		case s.out <- path:
			s.sent++
		}
	}
}

func statFile(path string) WalkResult {
	info, err := os.Stat(path)
	if err != nil {
		return WalkResult{Path: path, Error: err}
	}
	return WalkResult{Path: path, Info: info}
}

// matchAny matches a root-relative path against doublestar patterns. Patterns without a
// separator are also tried against the base name.
func matchAny(path string, patterns []string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, slashed); err == nil && ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, err := doublestar.Match(pattern, filepath.Base(path)); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func validateScope(scope FileScope) error {
	if scope.Path == "" {
		return fmt.Errorf("path is required")
	}
	info, err := os.Stat(scope.Path)
	if err != nil {
		return fmt.Errorf("cannot access path %s: %w", scope.Path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", scope.Path, ErrNotDirectory)
	}
	return nil
}
