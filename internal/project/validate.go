package project

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/oxhq/btstudio/internal/tree"
)

// Severity grades a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one finding of Validate.
type Diagnostic struct {
	Severity Severity
	Branch   string
	UID      tree.UID
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s uid=%d: %s", d.Severity, d.Branch, d.UID, d.Message)
}

// Validate reports cardinality problems, orphaned nodes and unresolved links of every branch.
// Partially authored trees are legal, so nothing here blocks a save.
func (p *Project) Validate() []Diagnostic {
	var out []Diagnostic
	for _, fq := range p.Branches.Names() {
		root, _ := p.Branches.Get(fq)
		for _, uid := range p.Store.Descendants(root) {
			out = append(out, p.validateNode(fq, p.Store.Get(uid))...)
		}
	}
	slices.SortStableFunc(out, func(a, b Diagnostic) int {
		return cmp.Or(cmp.Compare(a.Branch, b.Branch), cmp.Compare(a.UID, b.UID))
	})
	return out
}

func (p *Project) validateNode(fq string, n *tree.Node) []Diagnostic {
	var out []Diagnostic
	report := func(sev Severity, format string, args ...any) {
		out = append(out, Diagnostic{Severity: sev, Branch: fq, UID: n.UID, Message: fmt.Sprintf(format, args...)})
	}

	t := p.Alphabet.Type(n.Class, n.Type)
	if t == nil {
		report(SeverityError, "unknown class or type %s/%s", n.Class, n.Type)
		return out
	}
	if t.Link {
		if !p.Branches.Has(n.Target) {
			report(SeverityError, "link target %s does not exist", n.Target)
		}
		return out
	}
	if n.DescID == 0 || p.Catalog.ByID(n.DescID) == nil {
		report(SeverityWarning, "node %s/%s has no descriptor", n.LibName, n.NodeName)
	}
	for _, rule := range t.Children() {
		have := len(n.Children(rule.Class))
		switch {
		case have < rule.Min:
			report(SeverityWarning, "too few %s children: %d < %d", rule.Class, have, rule.Min)
		case have > rule.Max:
			report(SeverityWarning, "too many %s children: %d > %d", rule.Class, have, rule.Max)
		}
	}
	return out
}
