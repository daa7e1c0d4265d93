// Package attr implements the typed attribute model of node libraries: the primitive type
// registry, static and dynamic (variant) attribute descriptors and per-node value holders.
package attr

import (
	"fmt"
	"strings"
)

// PathSeparator separates the components of an attribute's full name.
const PathSeparator = "/"

// Desc is implemented by NodeAttrDesc and DynamicAttrDesc.
type Desc interface {
	// FullName is the slash separated path, e.g. "Settings/Move/speed".
	FullName() string
	// Name is the last path component.
	Name() string
	// Subtags are the path components before Name.
	Subtags() []string
	SetFullName(name string)
	IsArray() bool
	IsDynamic() bool
	Description() string
	SetDescription(text string)
	// Unit returns the concrete descriptor for a variant key. Static descriptors return
	// themselves for any key.
	Unit(key string) *NodeAttrDesc
	CloneDesc() Desc
}

// AvailableValue is one entry of an enumerated attribute.
type AvailableValue struct {
	Value Value
	Text  string
	Hint  string
}

// NodeAttrDesc is a static attribute descriptor.
type NodeAttrDesc struct {
	fullName    string
	typ         *TypeInfo
	isArray     bool
	available   []AvailableValue
	min         Value
	max         Value
	def         Value
	description string
}

// NewNodeAttrDesc creates a descriptor with the natural bounds and default of typeName.
func NewNodeAttrDesc(fullName, typeName string, isArray bool) (*NodeAttrDesc, error) {
	d := &NodeAttrDesc{fullName: cleanPath(fullName)}
	if !d.SetType(typeName, isArray) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return d, nil
}

func (d *NodeAttrDesc) FullName() string { return d.fullName }

func (d *NodeAttrDesc) Name() string { return lastComponent(d.fullName) }

func (d *NodeAttrDesc) Subtags() []string { return subtags(d.fullName) }

func (d *NodeAttrDesc) SetFullName(name string) { d.fullName = cleanPath(name) }

func (d *NodeAttrDesc) IsArray() bool { return d.isArray }

func (d *NodeAttrDesc) IsDynamic() bool { return false }

func (d *NodeAttrDesc) Description() string { return d.description }

func (d *NodeAttrDesc) SetDescription(text string) { d.description = text }

func (d *NodeAttrDesc) Unit(string) *NodeAttrDesc { return d }

// Type returns the primitive type.
func (d *NodeAttrDesc) Type() *TypeInfo { return d.typ }

// Min returns the lower bound. Meaningless for unbounded types.
func (d *NodeAttrDesc) Min() Value { return d.min }

// Max returns the upper bound. Meaningless for unbounded types.
func (d *NodeAttrDesc) Max() Value { return d.max }

// Default returns the default value.
func (d *NodeAttrDesc) Default() Value { return d.def }

// Bounded reports whether min/max apply.
func (d *NodeAttrDesc) Bounded() bool { return d.typ.Bounded }

// Enumerated reports whether the value set is restricted to Available.
func (d *NodeAttrDesc) Enumerated() bool { return len(d.available) > 0 }

// Available returns a copy of the enumeration.
func (d *NodeAttrDesc) Available() []AvailableValue {
	out := make([]AvailableValue, len(d.available))
	copy(out, d.available)
	return out
}

// SetType switches to another primitive type and resets bounds, default and enumeration to
// that type's natural values. It fails for unknown names.
func (d *NodeAttrDesc) SetType(typeName string, isArray bool) bool {
	t, err := LookupType(typeName)
	if err != nil {
		return false
	}
	d.typ = t
	d.isArray = isArray
	d.available = nil
	d.min = t.Min
	d.max = t.Max
	d.def = t.Default
	return true
}

// SetMin parses text and sets the lower bound, clamped to the type's natural bounds.
// Disabled for enumerated and unbounded descriptors.
func (d *NodeAttrDesc) SetMin(text string) bool {
	if d.Enumerated() || !d.typ.Bounded {
		return false
	}
	v, err := d.typ.Parse(text)
	if err != nil {
		return false
	}
	d.min = v
	if d.max.Compare(d.min) < 0 {
		d.max = d.min
	}
	d.def = d.Validate(d.def)
	return true
}

// SetMax parses text and sets the upper bound, clamped to the type's natural bounds.
// Disabled for enumerated and unbounded descriptors.
func (d *NodeAttrDesc) SetMax(text string) bool {
	if d.Enumerated() || !d.typ.Bounded {
		return false
	}
	v, err := d.typ.Parse(text)
	if err != nil {
		return false
	}
	d.max = v
	if d.min.Compare(d.max) > 0 {
		d.min = d.max
	}
	d.def = d.Validate(d.def)
	return true
}

// SetDefault sets the default value. It must be an available value.
func (d *NodeAttrDesc) SetDefault(v Value) bool {
	v, ok := d.convert(v)
	if !ok || !d.IsAvailableValue(v) {
		return false
	}
	d.def = v
	return true
}

// SetDefaultText parses text and sets it as default.
func (d *NodeAttrDesc) SetDefaultText(text string) bool {
	v, err := d.typ.Parse(text)
	if err != nil {
		return false
	}
	return d.SetDefault(v)
}

// SetAvailable replaces the enumeration. Duplicate values keep their first entry. When the
// list is non-empty and the default is not a member, the first entry becomes the default.
func (d *NodeAttrDesc) SetAvailable(values []AvailableValue) {
	d.available = d.available[:0]
	for _, av := range values {
		d.AddAvailable(av.Value, av.Text, av.Hint)
	}
	if len(d.available) == 0 {
		d.available = nil
		return
	}
	if !d.IsAvailableValue(d.def) {
		d.def = d.available[0].Value
	}
}

// AddAvailable appends one enumeration entry. Returns false for duplicates.
func (d *NodeAttrDesc) AddAvailable(v Value, text, hint string) bool {
	v = d.typ.Clamp(v)
	for _, av := range d.available {
		if av.Value.Equal(v) {
			return false
		}
	}
	d.available = append(d.available, AvailableValue{Value: v, Text: text, Hint: hint})
	if len(d.available) == 1 && !d.IsAvailableValue(d.def) {
		d.def = v
	}
	return true
}

// IsAvailableValue reports whether v is within the enumeration (when non-empty), else within
// [min,max] (when bounded), else true.
func (d *NodeAttrDesc) IsAvailableValue(v Value) bool {
	v, ok := d.convert(v)
	if !ok {
		return false
	}
	if d.Enumerated() {
		for _, av := range d.available {
			if av.Value.Equal(v) {
				return true
			}
		}
		return false
	}
	if d.typ.Bounded {
		return v.Compare(d.min) >= 0 && v.Compare(d.max) <= 0
	}
	return true
}

// Validate coerces v: to itself when it is an enumeration member, else to the default; or to
// min/max when out of bounds; otherwise unchanged.
func (d *NodeAttrDesc) Validate(v Value) Value {
	v, ok := d.convert(v)
	if !ok {
		return d.def
	}
	if d.Enumerated() {
		for _, av := range d.available {
			if av.Value.Equal(v) {
				return v
			}
		}
		return d.def
	}
	if d.typ.Bounded {
		if v.Compare(d.min) < 0 {
			return d.min
		}
		if v.Compare(d.max) > 0 {
			return d.max
		}
	}
	return v
}

// Parse converts text with this descriptor's type.
func (d *NodeAttrDesc) Parse(text string) (Value, error) {
	return d.typ.Parse(text)
}

// Format is the raw file form of v.
func (d *NodeAttrDesc) Format(v Value) string { return d.typ.Format(v) }

// DisplayText returns the enumeration text for v, or its pretty form.
func (d *NodeAttrDesc) DisplayText(v Value) string {
	for _, av := range d.available {
		if av.Value.Equal(v) && av.Text != "" {
			return av.Text
		}
	}
	return d.typ.Pretty(v)
}

// convert brings v to this descriptor's kind. Text is parsed; numbers are clamped.
func (d *NodeAttrDesc) convert(v Value) (Value, bool) {
	if v.kind == d.typ.Kind {
		return v, true
	}
	if v.kind.IsText() && !d.typ.Kind.IsText() {
		out, err := d.typ.Parse(v.s)
		return out, err == nil
	}
	return d.typ.Clamp(v), true
}

// Clone returns a deep copy.
func (d *NodeAttrDesc) Clone() *NodeAttrDesc {
	c := *d
	c.available = d.Available()
	if len(d.available) == 0 {
		c.available = nil
	}
	return &c
}

func (d *NodeAttrDesc) CloneDesc() Desc { return d.Clone() }

func cleanPath(name string) string {
	parts := strings.Split(strings.TrimSpace(name), PathSeparator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, PathSeparator)
}

func lastComponent(full string) string {
	if i := strings.LastIndex(full, PathSeparator); i >= 0 {
		return full[i+1:]
	}
	return full
}

func subtags(full string) []string {
	i := strings.LastIndex(full, PathSeparator)
	if i < 0 {
		return nil
	}
	return strings.Split(full[:i], PathSeparator)
}

// SplitPath splits a full attribute name into its subtags followed by the short name.
func SplitPath(full string) []string {
	return strings.Split(cleanPath(full), PathSeparator)
}
