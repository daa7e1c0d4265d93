package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ManifestSuffix is the file suffix of project manifests.
const ManifestSuffix = ".btproj.yaml"

var validate = validator.New()

// Manifest describes a project: its alphabet and the library and tree files, given as glob
// patterns relative to the manifest.
type Manifest struct {
	Name         string   `yaml:"name" validate:"omitempty,max=128"`
	Alphabet     string   `yaml:"alphabet" validate:"required"`
	Libraries    []string `yaml:"libraries" validate:"required,min=1,dive,required"`
	Trees        []string `yaml:"trees" validate:"omitempty,dive,required"`
	HistoryDepth int      `yaml:"historyDepth" validate:"gte=0,lte=10000"`

	// Path is the manifest file; relative patterns resolve against its directory.
	Path string `yaml:"-"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := validate.Struct(m); err != nil {
		return nil, formatValidationError(err)
	}
	return m, nil
}

// Dir is the directory patterns are resolved against.
func (m *Manifest) Dir() string {
	if m.Path == "" {
		return "."
	}
	return filepath.Dir(m.Path)
}

// AlphabetPath resolves the alphabet file.
func (m *Manifest) AlphabetPath() string { return m.resolve(m.Alphabet) }

// LibraryFiles expands the library patterns.
func (m *Manifest) LibraryFiles() ([]string, error) { return m.expand(m.Libraries) }

// TreeFiles expands the tree patterns.
func (m *Manifest) TreeFiles() ([]string, error) { return m.expand(m.Trees) }

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(m.Dir(), filepath.FromSlash(p))
}

// expand globs every pattern (doublestar syntax), keeping first-seen order across patterns and
// sorted order within one. Patterns without matches contribute nothing.
func (m *Manifest) expand(patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(m.resolve(pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		slices.Sort(matches)
		for _, path := range matches {
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}
	return out, nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	for _, e := range validationErrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must have at least %s entries", field, e.Param())
		case "gte", "lte", "max":
			return fmt.Errorf("%s: out of range (%s %s)", field, e.Tag(), e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
