package library

import (
	"maps"
	"slices"
)

// DefaultShape is used by descriptors that name no shape.
const DefaultShape = "rectangle"

// ShapeLib is the registry of shape names known to the visual editor. The model only checks
// membership.
type ShapeLib struct {
	shapes map[string]string
}

// NewShapeLib creates a registry containing DefaultShape.
func NewShapeLib() *ShapeLib {
	return &ShapeLib{shapes: map[string]string{DefaultShape: ""}}
}

// Add registers a shape and the path of its drawing, if any.
func (s *ShapeLib) Add(name, path string) { s.shapes[name] = path }

// Has reports whether name is registered.
func (s *ShapeLib) Has(name string) bool {
	if s == nil {
		return true
	}
	_, ok := s.shapes[name]
	return ok
}

// Names returns the registered shape names, sorted.
func (s *ShapeLib) Names() []string { return slices.Sorted(maps.Keys(s.shapes)) }
