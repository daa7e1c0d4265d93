// Package alphabet holds the schema of a behavior-tree dialect: node classes, their types,
// allowed parent/child relations and the XML tag names used by the codecs.
package alphabet

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/oxhq/btstudio/internal/xmlutil"
)

var (
	ErrNoClasses      = errors.New("alphabet defines no usable classes")
	ErrNoHeaders      = errors.New("alphabet does not define tree/library headers")
	ErrDuplicateClass = errors.New("duplicate class name")
	ErrSecondTopLevel = errors.New("alphabet already has a top-level class")
	ErrInvalidClass   = errors.New("invalid class")
)

// Unbounded is the max cardinality used when a children rule omits max.
const Unbounded = math.MaxInt32

// Alphabet is the loaded schema. It is read-only once loaded.
type Alphabet struct {
	Version       xmlutil.Version
	HeaderTree    string
	HeaderLibrary string
	Path          string

	classes  map[string]*Class
	order    []string
	topLevel string
}

// New creates an empty alphabet with the given root tags.
func New(headerTree, headerLibrary string) *Alphabet {
	return &Alphabet{
		Version:       xmlutil.Current,
		HeaderTree:    headerTree,
		HeaderLibrary: headerLibrary,
		classes:       make(map[string]*Class),
	}
}

// Class is a broad node category (Task, Condition, ...).
type Class struct {
	Name       string
	Tag        string
	LibraryTag string
	LinkTag    string
	InfoTag    string
	TopLevel   bool
	Debuggable bool
	Invertible bool

	// AttributesTag names the element that holds attribute values inside a node element.
	// Empty means values live on the node element itself.
	AttributesTag        string
	AttributesObligatory bool

	DefaultState string
	CodeGen      *CodeGenerator

	states     map[string]*State
	stateOrder []string
	types      map[string]*Type
	typeOrder  []string
}

// NewClass creates a class with no states or types.
func NewClass(name, tag, libraryTag string) *Class {
	return &Class{
		Name:       name,
		Tag:        tag,
		LibraryTag: libraryTag,
		states:     make(map[string]*State),
		types:      make(map[string]*Type),
	}
}

// Color is an RGBA color.
type Color struct {
	R, G, B, A uint8
}

func (c Color) String() string {
	return fmt.Sprintf("%d %d %d %d", c.R, c.G, c.B, c.A)
}

// State is a named visual state of a class.
type State struct {
	Name     string
	Value    int
	Enabled  Color
	Disabled Color
}

// Type is a subtype within a class.
type Type struct {
	Name        string
	Link        bool
	TargetTag   string
	CopyTarget  bool
	SingleBlock bool

	children   map[string]ChildRule
	childOrder []string
}

// NewType creates a non-link type without child rules.
func NewType(name string) *Type {
	return &Type{Name: name, children: make(map[string]ChildRule)}
}

// ChildRule limits how many children of Class a node may own.
type ChildRule struct {
	Class string
	Min   int
	Max   int
}

// Class returns the class named name, or nil.
func (a *Alphabet) Class(name string) *Class {
	return a.classes[name]
}

// ClassByTag returns the class whose tree element tag is tag, or nil.
func (a *Alphabet) ClassByTag(tag string) *Class {
	for _, name := range a.order {
		if c := a.classes[name]; c.Tag == tag {
			return c
		}
	}
	return nil
}

// Classes returns the classes in declaration order.
func (a *Alphabet) Classes() []*Class {
	out := make([]*Class, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.classes[name])
	}
	return out
}

// SortedClasses returns top-level classes first, then the rest alphabetically.
func (a *Alphabet) SortedClasses() []*Class {
	out := a.Classes()
	slices.SortStableFunc(out, func(x, y *Class) int {
		if x.TopLevel != y.TopLevel {
			if x.TopLevel {
				return -1
			}
			return 1
		}
		return strings.Compare(x.Name, y.Name)
	})
	return out
}

// TopLevel returns the top-level class, or nil.
func (a *Alphabet) TopLevel() *Class {
	if a.topLevel == "" {
		return nil
	}
	return a.classes[a.topLevel]
}

// Len returns the number of classes.
func (a *Alphabet) Len() int { return len(a.order) }

// AddClass registers c. A second top-level class or a duplicate name is rejected and leaves the
// alphabet unchanged.
func (a *Alphabet) AddClass(c *Class) error {
	if c == nil || c.Name == "" || c.Tag == "" || c.LibraryTag == "" {
		return ErrInvalidClass
	}
	if _, exists := a.classes[c.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, c.Name)
	}
	if c.TopLevel && a.topLevel != "" {
		return fmt.Errorf("%w: %s (class %s rejected)", ErrSecondTopLevel, a.topLevel, c.Name)
	}
	if len(c.states) == 0 {
		return fmt.Errorf("%w: class %s has no states", ErrInvalidClass, c.Name)
	}
	if a.classes == nil {
		a.classes = make(map[string]*Class)
	}
	a.classes[c.Name] = c
	a.order = append(a.order, c.Name)
	if c.TopLevel {
		a.topLevel = c.Name
	}
	return nil
}

// Type returns the named type of class, or nil.
func (a *Alphabet) Type(class, typ string) *Type {
	c := a.classes[class]
	if c == nil {
		return nil
	}
	return c.Type(typ)
}

// Type returns the named type, or nil.
func (c *Class) Type(name string) *Type { return c.types[name] }

// Types returns the types in declaration order.
func (c *Class) Types() []*Type {
	out := make([]*Type, 0, len(c.typeOrder))
	for _, name := range c.typeOrder {
		out = append(out, c.types[name])
	}
	return out
}

// AddType registers t. Type names are unique within a class.
func (c *Class) AddType(t *Type) bool {
	if t == nil || t.Name == "" {
		return false
	}
	if _, exists := c.types[t.Name]; exists {
		return false
	}
	c.types[t.Name] = t
	c.typeOrder = append(c.typeOrder, t.Name)
	return true
}

// State returns the named state, or nil.
func (c *Class) State(name string) *State { return c.states[name] }

// States returns the states in declaration order.
func (c *Class) States() []*State {
	out := make([]*State, 0, len(c.stateOrder))
	for _, name := range c.stateOrder {
		out = append(out, c.states[name])
	}
	return out
}

// AddState registers s. The first state becomes the default.
func (c *Class) AddState(s *State) bool {
	if s == nil || s.Name == "" {
		return false
	}
	if _, exists := c.states[s.Name]; exists {
		return false
	}
	c.states[s.Name] = s
	c.stateOrder = append(c.stateOrder, s.Name)
	if c.DefaultState == "" {
		c.DefaultState = s.Name
	}
	return true
}

// Child returns the rule for children of class child.
func (t *Type) Child(class string) (ChildRule, bool) {
	r, ok := t.children[class]
	return r, ok
}

// Children returns the child rules in declaration order.
func (t *Type) Children() []ChildRule {
	out := make([]ChildRule, 0, len(t.childOrder))
	for _, name := range t.childOrder {
		out = append(out, t.children[name])
	}
	return out
}

// ChildClasses returns the allowed child class names in declaration order.
func (t *Type) ChildClasses() []string {
	return slices.Clone(t.childOrder)
}

// AddChild registers a child rule. Link types own no children.
func (t *Type) AddChild(r ChildRule) bool {
	if t.Link || r.Class == "" || r.Min < 0 || r.Max < r.Min || r.Max == 0 {
		return false
	}
	if t.children == nil {
		t.children = make(map[string]ChildRule)
	}
	if _, exists := t.children[r.Class]; exists {
		return false
	}
	t.children[r.Class] = r
	t.childOrder = append(t.childOrder, r.Class)
	return true
}

func (t *Type) removeChild(class string) {
	delete(t.children, class)
	t.childOrder = slices.DeleteFunc(t.childOrder, func(s string) bool { return s == class })
}
