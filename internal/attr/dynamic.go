package attr

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrDuplicateKey is returned when a variant key is registered twice.
	ErrDuplicateKey = errors.New("duplicate variant key")
	// ErrDuplicateDefault is returned for a second unit without keys.
	ErrDuplicateDefault = errors.New("duplicate default unit")
)

// DynamicAttrDesc is a variant attribute. Its concrete descriptor is chosen by the current
// text value of a control attribute on the same node. The unit registered under "" is the
// fallback for control values without a unit of their own.
type DynamicAttrDesc struct {
	fullName    string
	isArray     bool
	control     string
	units       map[string]*NodeAttrDesc
	defaultKey  string
	description string
}

// NewDynamicAttrDesc creates an empty variant descriptor controlled by the attribute named
// control.
func NewDynamicAttrDesc(fullName, control string, isArray bool) *DynamicAttrDesc {
	return &DynamicAttrDesc{
		fullName: cleanPath(fullName),
		isArray:  isArray,
		control:  cleanPath(control),
		units:    make(map[string]*NodeAttrDesc),
	}
}

func (d *DynamicAttrDesc) FullName() string { return d.fullName }

func (d *DynamicAttrDesc) Name() string { return lastComponent(d.fullName) }

func (d *DynamicAttrDesc) Subtags() []string { return subtags(d.fullName) }

// SetFullName renames the attribute and every variant unit.
func (d *DynamicAttrDesc) SetFullName(name string) {
	d.fullName = cleanPath(name)
	for _, u := range d.distinctUnits() {
		u.SetFullName(d.fullName)
	}
}

func (d *DynamicAttrDesc) IsArray() bool { return d.isArray }

func (d *DynamicAttrDesc) IsDynamic() bool { return true }

func (d *DynamicAttrDesc) Description() string { return d.description }

func (d *DynamicAttrDesc) SetDescription(text string) { d.description = text }

// Control is the full name of the controlling attribute.
func (d *DynamicAttrDesc) Control() string { return d.control }

// SetControl changes the controlling attribute.
func (d *DynamicAttrDesc) SetControl(name string) { d.control = cleanPath(name) }

// Unit returns the unit for key, or nil.
func (d *DynamicAttrDesc) Unit(key string) *NodeAttrDesc { return d.units[key] }

// DefaultKey is the key whose unit also serves as the "" fallback.
func (d *DynamicAttrDesc) DefaultKey() string { return d.defaultKey }

// AddUnit registers unit under every key. The first unit added becomes the default.
// The unit takes the attribute's full name and array flag. A unit without keys is only
// reachable as the default, so it is rejected once a default exists.
func (d *DynamicAttrDesc) AddUnit(keys []string, unit *NodeAttrDesc) error {
	if unit == nil {
		return fmt.Errorf("nil unit for %s", d.fullName)
	}
	if _, ok := d.units[""]; ok && firstNonEmpty(keys) == "" {
		return fmt.Errorf("%w in %s", ErrDuplicateDefault, d.fullName)
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, exists := d.units[k]; exists {
			return fmt.Errorf("%w %q in %s", ErrDuplicateKey, k, d.fullName)
		}
	}
	unit.fullName = d.fullName
	unit.isArray = d.isArray
	for _, k := range keys {
		if k != "" {
			d.units[k] = unit
		}
	}
	if _, ok := d.units[""]; !ok {
		d.units[""] = unit
		if len(keys) > 0 {
			d.defaultKey = firstNonEmpty(keys)
		}
	}
	return nil
}

// SetDefaultKey makes the unit of key the fallback.
func (d *DynamicAttrDesc) SetDefaultKey(key string) bool {
	u, ok := d.units[key]
	if !ok || key == "" {
		return false
	}
	d.units[""] = u
	d.defaultKey = key
	return true
}

// RemoveKey unregisters key. The fallback unit cannot be removed while it has no other key.
func (d *DynamicAttrDesc) RemoveKey(key string) bool {
	u, ok := d.units[key]
	if !ok || key == "" {
		return false
	}
	delete(d.units, key)
	if key == d.defaultKey {
		d.defaultKey = ""
		for _, k := range d.Keys() {
			if d.units[k] == u {
				d.defaultKey = k
				break
			}
		}
	}
	return true
}

// Keys returns the explicit variant keys, sorted.
func (d *DynamicAttrDesc) Keys() []string {
	keys := make([]string, 0, len(d.units))
	for k := range d.units {
		if k != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// KeysOf returns the sorted explicit keys that map to unit.
func (d *DynamicAttrDesc) KeysOf(unit *NodeAttrDesc) []string {
	var keys []string
	for _, k := range d.Keys() {
		if d.units[k] == unit {
			keys = append(keys, k)
		}
	}
	return keys
}

// Units returns each distinct unit once, ordered by its smallest key. The fallback unit comes
// first when it has no explicit key.
func (d *DynamicAttrDesc) Units() []*NodeAttrDesc { return d.distinctUnits() }

func (d *DynamicAttrDesc) distinctUnits() []*NodeAttrDesc {
	var out []*NodeAttrDesc
	seen := make(map[*NodeAttrDesc]bool)
	if u, ok := d.units[""]; ok && len(d.KeysOf(u)) == 0 {
		out = append(out, u)
		seen[u] = true
	}
	for _, k := range d.Keys() {
		if u := d.units[k]; !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// Resolve picks the unit for a control value. matched reports whether the value has a unit of
// its own; otherwise the fallback under key "" is returned.
func (d *DynamicAttrDesc) Resolve(controlValue string) (unit *NodeAttrDesc, key string, matched bool) {
	if controlValue != "" {
		if u, ok := d.units[controlValue]; ok {
			return u, controlValue, true
		}
	}
	return d.units[""], "", false
}

// Update re-derives the active variant of a from the control attribute in siblings. When the
// key changes the old values are carried over through their text form and re-validated
// against the new unit. It reports whether the control value matched a registered key.
func (d *DynamicAttrDesc) Update(a *NodeAttr, siblings map[string]*NodeAttr) bool {
	controlValue := ""
	if ctrl, ok := siblings[d.control]; ok && ctrl != nil {
		controlValue = ctrl.String()
	}
	unit, key, matched := d.Resolve(controlValue)
	if unit == nil {
		return false
	}
	if a.bound && key == a.key {
		return matched
	}
	a.rebind(unit, key)
	return matched
}

// Clone returns a deep copy in which keys that shared a unit still share its copy.
func (d *DynamicAttrDesc) Clone() *DynamicAttrDesc {
	c := *d
	c.units = make(map[string]*NodeAttrDesc, len(d.units))
	copies := make(map[*NodeAttrDesc]*NodeAttrDesc)
	for k, u := range d.units {
		cu, ok := copies[u]
		if !ok {
			cu = u.Clone()
			copies[u] = cu
		}
		c.units[k] = cu
	}
	return &c
}

func (d *DynamicAttrDesc) CloneDesc() Desc { return d.Clone() }

func firstNonEmpty(keys []string) string {
	for _, k := range keys {
		if k != "" {
			return k
		}
	}
	return ""
}
