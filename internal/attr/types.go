package attr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oxhq/btstudio/internal/xmlutil"
)

// ErrUnknownType is returned for type names that neither the registry nor the alias table know.
var ErrUnknownType = errors.New("unknown attribute type")

// ErrSyntax is returned when text cannot be converted to a value of the requested kind.
var ErrSyntax = errors.New("invalid value syntax")

// TypeInfo describes one primitive type: its natural bounds, default and converters.
// Instances are shared and must not be modified.
type TypeInfo struct {
	Name    string
	Kind    Kind
	Default Value
	Min     Value
	Max     Value
	Bounded bool
}

var registry = map[string]*TypeInfo{}

// canonical names in display order
var typeOrder = []string{
	"bool", "char", "uchar", "short", "ushort", "int", "uint",
	"int64", "uint64", "long", "float", "double", "string", "text",
}

func init() {
	signed := func(k Kind, lo, hi int64) {
		registry[k.String()] = &TypeInfo{Name: k.String(), Kind: k, Default: IntValue(k, 0),
			Min: IntValue(k, lo), Max: IntValue(k, hi), Bounded: true}
	}
	unsigned := func(k Kind, hi uint64) {
		registry[k.String()] = &TypeInfo{Name: k.String(), Kind: k, Default: UintValue(k, 0),
			Min: UintValue(k, 0), Max: UintValue(k, hi), Bounded: true}
	}
	floating := func(k Kind, hi float64) {
		registry[k.String()] = &TypeInfo{Name: k.String(), Kind: k, Default: FloatValue(k, 0),
			Min: FloatValue(k, -hi), Max: FloatValue(k, hi), Bounded: true}
	}

	registry["bool"] = &TypeInfo{Name: "bool", Kind: KindBool, Default: BoolValue(false)}
	signed(KindChar, math.MinInt8, math.MaxInt8)
	unsigned(KindUChar, math.MaxUint8)
	signed(KindShort, math.MinInt16, math.MaxInt16)
	unsigned(KindUShort, math.MaxUint16)
	signed(KindInt, math.MinInt32, math.MaxInt32)
	unsigned(KindUInt, math.MaxUint32)
	signed(KindInt64, math.MinInt64, math.MaxInt64)
	unsigned(KindUInt64, math.MaxUint64)
	signed(KindLong, math.MinInt32, math.MaxInt32)
	floating(KindFloat, math.MaxFloat32)
	floating(KindDouble, math.MaxFloat64)
	registry["string"] = &TypeInfo{Name: "string", Kind: KindString, Default: StringValue("")}
	registry["text"] = &TypeInfo{Name: "text", Kind: KindText, Default: TextValue("")}
}

// aliases maps squashed (lower case, no separators) spellings to canonical names.
var aliases = map[string]string{
	"boolean": "bool",

	"int8":       "char",
	"sint8":      "char",
	"signedchar": "char",
	"byte":       "uchar",
	"uint8":      "uchar",
	"unsigned8":  "uchar",

	"unsignedchar":  "uchar",
	"int16":         "short",
	"sint16":        "short",
	"signedshort":   "short",
	"shortint":      "short",
	"uint16":        "ushort",
	"unsigned16":    "ushort",
	"unsignedshort": "ushort",
	"word":          "ushort",

	"int32":         "int",
	"sint32":        "int",
	"integer":       "int",
	"signedint":     "int",
	"signed":        "int",
	"signedint32":   "int",
	"uint32":        "uint",
	"unsigned":      "uint",
	"unsignedint":   "uint",
	"unsignedint32": "uint",
	"unsigned32":    "uint",
	"dword":         "uint",

	"sint64":           "int64",
	"longlong":         "int64",
	"signedint64":      "int64",
	"signedlonglong":   "int64",
	"unsignedint64":    "uint64",
	"unsigned64":       "uint64",
	"unsignedlonglong": "uint64",
	"qword":            "uint64",

	"signedlong": "long",
	"longint":    "long",

	"float32": "float",
	"single":  "float",
	"real":    "float",
	"float64": "double",
	"real64":  "double",

	"str":        "string",
	"stdstring":  "string",
	"multiline":  "text",
	"longtext":   "text",
	"stdwstring": "text",
}

// NormalizeTypeName maps a human-written type name ("unsigned int32", "uint-32", ...) to its
// canonical registry name.
func NormalizeTypeName(name string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if _, ok := registry[lower]; ok {
		return lower, true
	}
	squashed := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-', '_', ':', '.':
			return -1
		}
		return r
	}, lower)
	if _, ok := registry[squashed]; ok {
		return squashed, true
	}
	if canon, ok := aliases[squashed]; ok {
		return canon, true
	}
	return "", false
}

// LookupType resolves name (canonical or alias) to its TypeInfo.
func LookupType(name string) (*TypeInfo, error) {
	canon, ok := NormalizeTypeName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return registry[canon], nil
}

// TypeNames returns the canonical type names.
func TypeNames() []string {
	out := make([]string, len(typeOrder))
	copy(out, typeOrder)
	return out
}

// Parse converts text to a value of this type. Out-of-range numbers clamp to the natural
// bounds. On syntax errors the type's zero value is returned with ErrSyntax.
func (t *TypeInfo) Parse(text string) (Value, error) {
	k := t.Kind
	switch {
	case k == KindBool:
		b, ok := xmlutil.ParseBool(text)
		if !ok {
			return t.Default, fmt.Errorf("%w: %q is not a %s", ErrSyntax, text, t.Name)
		}
		return BoolValue(b), nil
	case k.IsSigned():
		return t.parseSigned(text)
	case k.IsUnsigned():
		return t.parseUnsigned(text)
	case k.IsFloat():
		return t.parseFloat(text)
	case k == KindText:
		return TextValue(text), nil
	default:
		return StringValue(text), nil
	}
}

func (t *TypeInfo) parseSigned(text string) (Value, error) {
	s := trimSuffixFold(strings.TrimSpace(text), "i64", "ll", "l")
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	base := 10
	if hasHexPrefix(digits) {
		digits, base = digits[2:], 16
	}
	if neg {
		digits = "-" + digits
	}
	n, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			if neg {
				return t.Min, nil
			}
			return t.Max, nil
		}
		if f, ferr := strconv.ParseFloat(strings.TrimSpace(text), 64); ferr == nil && f == math.Trunc(f) {
			return t.Clamp(FloatValue(KindDouble, f)), nil
		}
		return t.Default, fmt.Errorf("%w: %q is not a %s", ErrSyntax, text, t.Name)
	}
	return t.Clamp(IntValue(KindInt64, n)), nil
}

func (t *TypeInfo) parseUnsigned(text string) (Value, error) {
	s := trimSuffixFold(strings.TrimSpace(text), "ull", "ul", "u", "ll", "l")
	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, "-") {
		if _, err := strconv.ParseFloat(s, 64); err == nil || isDigits(s[1:]) {
			return t.Min, nil
		}
		return t.Default, fmt.Errorf("%w: %q is not a %s", ErrSyntax, text, t.Name)
	}
	base := 10
	if hasHexPrefix(s) {
		s, base = s[2:], 16
	}
	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return t.Max, nil
		}
		if f, ferr := strconv.ParseFloat(strings.TrimSpace(text), 64); ferr == nil && f == math.Trunc(f) {
			return t.Clamp(FloatValue(KindDouble, f)), nil
		}
		return t.Default, fmt.Errorf("%w: %q is not a %s", ErrSyntax, text, t.Name)
	}
	return t.Clamp(UintValue(KindUInt64, n)), nil
}

func (t *TypeInfo) parseFloat(text string) (Value, error) {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(strings.ToLower(s), "inf") && !strings.HasPrefix(strings.ToLower(s), "-inf") {
		s = strings.TrimRight(s, "fF")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return t.Default, fmt.Errorf("%w: %q is not a %s", ErrSyntax, text, t.Name)
	}
	return t.Clamp(FloatValue(KindDouble, f)), nil
}

// Clamp converts v to this type's kind and limits it to the natural bounds. Text values are
// parsed; unconvertible values yield the default.
func (t *TypeInfo) Clamp(v Value) Value {
	k := t.Kind
	switch {
	case k == KindBool:
		switch {
		case v.kind == KindBool:
			return v
		case v.kind.IsNumeric():
			return BoolValue(v.i != 0 || v.u != 0 || v.f != 0)
		}
	case k.IsSigned():
		lo, hi := t.Min.i, t.Max.i
		switch {
		case v.kind.IsSigned():
			return IntValue(k, clampInt(v.i, lo, hi))
		case v.kind.IsUnsigned(), v.kind == KindBool:
			if v.u > uint64(hi) {
				return IntValue(k, hi)
			}
			return IntValue(k, int64(v.u))
		case v.kind.IsFloat():
			switch {
			case math.IsNaN(v.f):
				return t.Default
			case v.f <= float64(lo):
				return IntValue(k, lo)
			case v.f >= float64(hi):
				return IntValue(k, hi)
			}
			return IntValue(k, int64(v.f))
		}
	case k.IsUnsigned():
		hi := t.Max.u
		switch {
		case v.kind.IsSigned():
			if v.i < 0 {
				return UintValue(k, 0)
			}
			return UintValue(k, min(uint64(v.i), hi))
		case v.kind.IsUnsigned(), v.kind == KindBool:
			return UintValue(k, min(v.u, hi))
		case v.kind.IsFloat():
			switch {
			case math.IsNaN(v.f), v.f <= 0:
				return UintValue(k, 0)
			case v.f >= float64(hi):
				return UintValue(k, hi)
			}
			return UintValue(k, uint64(v.f))
		}
	case k.IsFloat():
		if v.kind.IsText() {
			break
		}
		lo, hi := t.Min.f, t.Max.f
		var f float64
		switch {
		case v.kind.IsSigned():
			f = float64(v.i)
		case v.kind.IsUnsigned(), v.kind == KindBool:
			f = float64(v.u)
		default:
			f = v.f
		}
		if !math.IsNaN(f) {
			f = math.Max(lo, math.Min(hi, f))
		}
		return FloatValue(k, f)
	case k == KindString:
		return StringValue(v.String())
	case k == KindText:
		return TextValue(v.String())
	}
	if v.kind.IsText() {
		if out, err := t.Parse(v.s); err == nil {
			return out
		}
	}
	return t.Default
}

// Format is the raw, round-trippable text form used in files.
func (t *TypeInfo) Format(v Value) string {
	return t.Clamp(v).String()
}

// Pretty is the display form: hex with suffix for uint64, a decimal point for floats.
func (t *TypeInfo) Pretty(v Value) string {
	v = t.Clamp(v)
	switch t.Kind {
	case KindUInt64:
		return fmt.Sprintf("0x%016Xull", v.u)
	case KindFloat, KindDouble:
		s := v.String()
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		if t.Kind == KindFloat {
			s += "f"
		}
		return s
	case KindBool:
		return xmlutil.YesNo(v.Bool())
	}
	return v.String()
}

func clampInt(n, lo, hi int64) int64 {
	return max(lo, min(hi, n))
}

func hasHexPrefix(s string) bool {
	return len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func trimSuffixFold(s string, suffixes ...string) string {
	lower := strings.ToLower(s)
	for _, suf := range suffixes {
		if strings.HasSuffix(lower, suf) && len(s) > len(suf) {
			return s[:len(s)-len(suf)]
		}
	}
	return s
}
