package attr

import (
	"cmp"
	"math"
	"strconv"
)

// Kind enumerates the primitive attribute kinds.
type Kind uint8

const (
	KindBool Kind = iota
	KindChar
	KindUChar
	KindShort
	KindUShort
	KindInt
	KindUInt
	KindInt64
	KindUInt64
	KindLong
	KindFloat
	KindDouble
	KindString
	KindText
)

var kindNames = [...]string{
	KindBool:   "bool",
	KindChar:   "char",
	KindUChar:  "uchar",
	KindShort:  "short",
	KindUShort: "ushort",
	KindInt:    "int",
	KindUInt:   "uint",
	KindInt64:  "int64",
	KindUInt64: "uint64",
	KindLong:   "long",
	KindFloat:  "float",
	KindDouble: "double",
	KindString: "string",
	KindText:   "text",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool {
	switch k {
	case KindChar, KindShort, KindInt, KindInt64, KindLong:
		return true
	}
	return false
}

// IsUnsigned reports whether k is an unsigned integer kind.
func (k Kind) IsUnsigned() bool {
	switch k {
	case KindUChar, KindUShort, KindUInt, KindUInt64:
		return true
	}
	return false
}

// IsFloat reports whether k is float or double.
func (k Kind) IsFloat() bool { return k == KindFloat || k == KindDouble }

// IsNumeric reports whether values of k are ordered numbers.
func (k Kind) IsNumeric() bool { return k.IsSigned() || k.IsUnsigned() || k.IsFloat() }

// IsText reports whether k holds free text.
func (k Kind) IsText() bool { return k == KindString || k == KindText }

// bits is the storage width of integer and float kinds.
func (k Kind) bits() int {
	switch k {
	case KindChar, KindUChar:
		return 8
	case KindShort, KindUShort:
		return 16
	case KindInt, KindUInt, KindLong, KindFloat:
		return 32
	case KindInt64, KindUInt64, KindDouble:
		return 64
	}
	return 0
}

// Value is a closed tagged union over the primitive kinds. The zero Value is bool false.
type Value struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	s    string
}

// BoolValue returns a bool value.
func BoolValue(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.u = 1
	}
	return v
}

// IntValue returns a signed value of kind k. k must be a signed integer kind.
func IntValue(k Kind, n int64) Value { return Value{kind: k, i: n} }

// UintValue returns an unsigned value of kind k. k must be an unsigned integer kind.
func UintValue(k Kind, n uint64) Value { return Value{kind: k, u: n} }

// FloatValue returns a float or double value.
func FloatValue(k Kind, f float64) Value {
	if k == KindFloat {
		f = float64(float32(f))
	}
	return Value{kind: k, f: f}
}

// StringValue returns a string value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// TextValue returns a multi-line text value.
func TextValue(s string) Value { return Value{kind: KindText, s: s} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the bool payload.
func (v Value) Bool() bool { return v.kind == KindBool && v.u != 0 }

// Int returns the payload of a signed value.
func (v Value) Int() int64 { return v.i }

// Uint returns the payload of an unsigned value.
func (v Value) Uint() uint64 { return v.u }

// Float returns the payload of a float value.
func (v Value) Float() float64 { return v.f }

// Str returns the payload of a string value.
func (v Value) Str() string { return v.s }

// String is the raw, round-trippable text form.
func (v Value) String() string {
	switch {
	case v.kind == KindBool:
		return strconv.FormatBool(v.Bool())
	case v.kind.IsSigned():
		return strconv.FormatInt(v.i, 10)
	case v.kind.IsUnsigned():
		return strconv.FormatUint(v.u, 10)
	case v.kind.IsFloat():
		return strconv.FormatFloat(v.f, 'g', -1, v.kind.bits())
	default:
		return v.s
	}
}

// Equal reports whether v and o have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch {
	case v.kind.IsFloat():
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	default:
		return v.i == o.i && v.u == o.u && v.s == o.s
	}
}

// Compare orders two values of the same kind. Values of different kinds compare by kind.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		return cmp.Compare(v.kind, o.kind)
	}
	switch {
	case v.kind.IsSigned():
		return cmp.Compare(v.i, o.i)
	case v.kind.IsUnsigned(), v.kind == KindBool:
		return cmp.Compare(v.u, o.u)
	case v.kind.IsFloat():
		return cmp.Compare(v.f, o.f)
	default:
		return cmp.Compare(v.s, o.s)
	}
}
