package alphabet

import "strings"

// CodeGenerator carries C++ generation metadata for an external generator. The core does not
// interpret it beyond token expansion.
type CodeGenerator struct {
	Interfaces []string
	Namespace  string
	BaseClass  string
	Appendix   string
	Includes   []string
	Methods    []Method
	Variables  []Variable
}

// Method is a method declaration of a generated class.
type Method struct {
	Interface string
	Name      string
	Return    string
	Args      string
	Impl      string
	Const     bool
}

// Variable is a member variable declaration of a generated class.
type Variable struct {
	Interface string
	Type      string
	Name      string
	Init      string
}

var tokenReplacer = strings.NewReplacer(
	"@ref", "&",
	"@[", "<",
	"@]", ">",
	"^", "->",
	"|", "\n",
)

// ExpandTokens substitutes the placeholder tokens used inside attribute values:
// @ref -> &, @[ -> <, @] -> >, ^ -> ->, | -> newline.
func ExpandTokens(s string) string {
	return tokenReplacer.Replace(s)
}

// MethodsFor returns the methods declared for iface.
func (g *CodeGenerator) MethodsFor(iface string) []Method {
	var out []Method
	for _, m := range g.Methods {
		if m.Interface == iface {
			out = append(out, m)
		}
	}
	return out
}

// VariablesFor returns the variables declared for iface.
func (g *CodeGenerator) VariablesFor(iface string) []Variable {
	var out []Variable
	for _, v := range g.Variables {
		if v.Interface == iface {
			out = append(out, v)
		}
	}
	return out
}
