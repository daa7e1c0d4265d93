package attr

import (
	"slices"
	"strings"
)

// NodeAttr holds the value(s) of one attribute on one tree node. It is bound to its
// descriptor by full name; dynamic attributes also track the selected variant key.
type NodeAttr struct {
	name   string
	key    string
	bound  bool
	array  bool
	values []Value
}

// NewNodeAttr creates a holder initialized with the descriptor's default. Dynamic attributes
// start on their fallback unit until Update selects a variant.
func NewNodeAttr(d Desc) *NodeAttr {
	a := &NodeAttr{name: d.FullName(), array: d.IsArray()}
	if u := d.Unit(""); u != nil {
		a.rebind(u, "")
	}
	return a
}

// Name is the full name of the bound descriptor.
func (a *NodeAttr) Name() string { return a.name }

// SetName rebinds the holder after a descriptor rename.
func (a *NodeAttr) SetName(name string) { a.name = cleanPath(name) }

// Key is the selected variant key of a dynamic attribute ("" = fallback).
func (a *NodeAttr) Key() string { return a.key }

// IsArray reports whether the holder stores a sequence.
func (a *NodeAttr) IsArray() bool { return a.array }

// Len returns the number of stored values.
func (a *NodeAttr) Len() int { return len(a.values) }

// Value returns the scalar value, or the first array element.
func (a *NodeAttr) Value() Value {
	if len(a.values) == 0 {
		return Value{}
	}
	return a.values[0]
}

// Values returns a copy of all stored values.
func (a *NodeAttr) Values() []Value { return slices.Clone(a.values) }

// ValueAt returns element i.
func (a *NodeAttr) ValueAt(i int) (Value, bool) {
	if i < 0 || i >= len(a.values) {
		return Value{}, false
	}
	return a.values[i], true
}

// String is the raw text of the value; array elements are joined with ";".
func (a *NodeAttr) String() string {
	if !a.array {
		return a.Value().String()
	}
	parts := make([]string, len(a.values))
	for i, v := range a.values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ";")
}

// SetValue stores v if the descriptor accepts it. Rejected values leave the holder unchanged.
func (a *NodeAttr) SetValue(d *NodeAttrDesc, v Value) bool {
	if a.array {
		return false
	}
	v, ok := d.convert(v)
	if !ok || !d.IsAvailableValue(v) {
		return false
	}
	a.values = []Value{v}
	return true
}

// SetText parses text with the descriptor and stores it.
func (a *NodeAttr) SetText(d *NodeAttrDesc, text string) bool {
	v, err := d.Parse(text)
	if err != nil {
		return false
	}
	return a.SetValue(d, v)
}

// AppendValue adds v at the end of an array.
func (a *NodeAttr) AppendValue(d *NodeAttrDesc, v Value) bool {
	return a.InsertValueAt(d, len(a.values), v)
}

// InsertValueAt inserts v before element i (i == Len appends).
func (a *NodeAttr) InsertValueAt(d *NodeAttrDesc, i int, v Value) bool {
	if !a.array || i < 0 || i > len(a.values) {
		return false
	}
	v, ok := d.convert(v)
	if !ok || !d.IsAvailableValue(v) {
		return false
	}
	a.values = slices.Insert(a.values, i, v)
	return true
}

// SetValueAt replaces element i.
func (a *NodeAttr) SetValueAt(d *NodeAttrDesc, i int, v Value) bool {
	if !a.array || i < 0 || i >= len(a.values) {
		return false
	}
	v, ok := d.convert(v)
	if !ok || !d.IsAvailableValue(v) {
		return false
	}
	a.values[i] = v
	return true
}

// EraseAt removes element i.
func (a *NodeAttr) EraseAt(i int) bool {
	if !a.array || i < 0 || i >= len(a.values) {
		return false
	}
	a.values = slices.Delete(a.values, i, i+1)
	return true
}

// Load stores values read from a file, coercing each through the descriptor instead of
// rejecting it. Scalars keep only the first value.
func (a *NodeAttr) Load(d *NodeAttrDesc, values []Value) {
	out := make([]Value, 0, len(values))
	for _, v := range values {
		out = append(out, d.Validate(v))
	}
	if !a.array {
		if len(out) == 0 {
			out = append(out, d.Default())
		}
		out = out[:1]
	}
	a.values = out
}

// Reset restores the descriptor default (an empty sequence for arrays).
func (a *NodeAttr) Reset(d *NodeAttrDesc) {
	if a.array {
		a.values = nil
		return
	}
	a.values = []Value{d.Default()}
}

// rebind converts the current values to unit and selects key.
func (a *NodeAttr) rebind(unit *NodeAttrDesc, key string) {
	switch {
	case !a.bound && !a.array && len(a.values) == 0:
		a.values = []Value{unit.Default()}
	default:
		converted := make([]Value, 0, len(a.values))
		for _, v := range a.values {
			nv, err := unit.Parse(v.String())
			if err != nil {
				nv = unit.Default()
			}
			converted = append(converted, unit.Validate(nv))
		}
		if !a.array && len(converted) == 0 {
			converted = append(converted, unit.Default())
		}
		a.values = converted
	}
	a.key = key
	a.bound = true
}

// SelectKey forces the variant key without consulting the control attribute. Used by the
// tree parser, which reads values with the variant active at load time.
func (a *NodeAttr) SelectKey(d *DynamicAttrDesc, key string) bool {
	unit := d.Unit(key)
	if unit == nil {
		return false
	}
	a.rebind(unit, key)
	return true
}

// Equal reports whether both holders carry the same name, key and values.
func (a *NodeAttr) Equal(o *NodeAttr) bool {
	if a.name != o.name || a.key != o.key || a.array != o.array || len(a.values) != len(o.values) {
		return false
	}
	for i := range a.values {
		if !a.values[i].Equal(o.values[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (a *NodeAttr) Clone() *NodeAttr {
	c := *a
	c.values = slices.Clone(a.values)
	return &c
}
