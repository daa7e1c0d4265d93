package alphabet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/logging"
	"github.com/oxhq/btstudio/internal/xmlutil"
)

// RootTag is the root element of alphabet files.
const RootTag = "alphabet"

// Load reads an alphabet file. Malformed classes, types and child rules are skipped with a
// logged warning; the load fails only on IO/XML errors, missing headers or when no class
// survives.
func Load(path string, log *zap.Logger) (*Alphabet, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("reading alphabet %s: %w", path, err)
	}
	a, err := fromDocument(doc, logging.OrNop(log).With(zap.String("file", path)))
	if err != nil {
		return nil, fmt.Errorf("alphabet %s: %w", path, err)
	}
	a.Path = path
	return a, nil
}

// Parse reads an alphabet from memory.
func Parse(data []byte, log *zap.Logger) (*Alphabet, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing alphabet: %w", err)
	}
	return fromDocument(doc, logging.OrNop(log))
}

func fromDocument(doc *etree.Document, log *zap.Logger) (*Alphabet, error) {
	root := doc.Root()
	if root == nil || root.Tag != RootTag {
		return nil, fmt.Errorf("root element must be <%s>", RootTag)
	}

	version := xmlutil.Version{Major: 1}
	if raw := xmlutil.Attr(root, "version"); raw != "" {
		v, err := xmlutil.ParseVersion(raw)
		if err != nil {
			log.Warn("unreadable alphabet version, assuming 1.0", zap.String("version", raw))
		} else {
			version = v
		}
	}

	var headerTree, headerLibrary string
	if version.Less(xmlutil.VersionSplitHeaders) {
		headerTree = xmlutil.Attr(root, "header")
		headerLibrary = headerTree
	} else {
		headerTree = xmlutil.Attr(root, "headerTree")
		headerLibrary = xmlutil.Attr(root, "headerLibrary")
	}
	if headerTree == "" || headerLibrary == "" {
		return nil, ErrNoHeaders
	}

	a := New(headerTree, headerLibrary)
	a.Version = version

	for _, el := range root.SelectElements("class") {
		c, ok := parseClass(el, log)
		if !ok {
			continue
		}
		if err := a.AddClass(c); err != nil {
			log.Warn("class rejected", zap.String("class", c.Name), zap.Error(err))
		}
	}

	a.pruneChildRules(log)

	if a.Len() == 0 {
		return nil, ErrNoClasses
	}
	return a, nil
}

func parseClass(el *etree.Element, log *zap.Logger) (*Class, bool) {
	name := xmlutil.Attr(el, "name")
	tag := xmlutil.Attr(el, "tag")
	libTag := xmlutil.Attr(el, "libraryTag")
	if name == "" || tag == "" || libTag == "" {
		log.Warn("class skipped: name, tag and libraryTag are required",
			zap.String("class", name), zap.String("tag", tag), zap.String("libraryTag", libTag))
		return nil, false
	}
	log = log.With(zap.String("class", name))

	c := NewClass(name, tag, libTag)
	c.TopLevel = xmlutil.BoolAttr(el, "toplevel", false)
	c.Debuggable = xmlutil.BoolAttr(el, "allowDebug", false)
	c.Invertible = xmlutil.BoolAttr(el, "allowInvert", false)
	c.LinkTag = xmlutil.Attr(el, "linkTag")
	c.InfoTag = xmlutil.Attr(el, "infoTag")
	if c.TopLevel && c.LinkTag == "" {
		c.LinkTag = "Branch"
		log.Warn("top-level class has no linkTag, using default", zap.String("linkTag", c.LinkTag))
	}

	if attrs := el.SelectElement("attributes"); attrs != nil {
		c.AttributesTag = xmlutil.Attr(attrs, "tag")
		c.AttributesObligatory = xmlutil.BoolAttr(attrs, "obligatory", false)
	}

	for _, se := range el.SelectElements("state") {
		s, ok := parseState(se, log)
		if !ok {
			continue
		}
		if !c.AddState(s) {
			log.Warn("duplicate state skipped", zap.String("state", s.Name))
		}
	}
	if len(c.states) == 0 {
		log.Warn("class skipped: at least one <state> is required")
		return nil, false
	}
	if ds := el.SelectElement("default_state"); ds != nil {
		want := xmlutil.Attr(ds, "name")
		if c.State(want) != nil {
			c.DefaultState = want
		} else {
			log.Warn("unknown default_state ignored", zap.String("state", want))
		}
	}

	for _, te := range el.SelectElements("type") {
		t, ok := parseType(te, log)
		if !ok {
			continue
		}
		if !c.AddType(t) {
			log.Warn("duplicate type skipped", zap.String("type", t.Name))
		}
	}
	if len(c.types) == 0 {
		log.Warn("class declares no types")
	}

	if ge := el.SelectElement("codeGenerator"); ge != nil {
		c.CodeGen = parseCodeGenerator(ge)
	}
	return c, true
}

func parseState(el *etree.Element, log *zap.Logger) (*State, bool) {
	name := xmlutil.Attr(el, "name")
	value, ok := xmlutil.IntAttr(el, "value")
	if name == "" || !ok {
		log.Warn("state skipped: name and integer value are required", zap.String("state", name))
		return nil, false
	}
	s := &State{Name: name, Value: value}

	enabled, hasEnabled := parseColor(xmlutil.Attr(el, "enabled"))
	disabled, hasDisabled := parseColor(xmlutil.Attr(el, "disabled"))
	switch {
	case hasEnabled && hasDisabled:
	case hasEnabled:
		disabled = Color{enabled.R, enabled.G, enabled.B, enabled.A / 2}
	case hasDisabled:
		enabled = Color{disabled.R, disabled.G, disabled.B, 255}
	default:
		enabled = Color{255, 255, 255, 255}
		disabled = Color{128, 128, 128, 255}
	}
	s.Enabled, s.Disabled = enabled, disabled
	return s, true
}

// parseColor reads "r g b [a]".
func parseColor(raw string) (Color, bool) {
	fields := strings.Fields(raw)
	if len(fields) != 3 && len(fields) != 4 {
		return Color{}, false
	}
	var rgba [4]uint8
	rgba[3] = 255
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > 255 {
			return Color{}, false
		}
		rgba[i] = uint8(n)
	}
	return Color{rgba[0], rgba[1], rgba[2], rgba[3]}, true
}

func parseType(el *etree.Element, log *zap.Logger) (*Type, bool) {
	name := xmlutil.Attr(el, "name")
	if name == "" {
		log.Warn("type skipped: name is required")
		return nil, false
	}
	log = log.With(zap.String("type", name))

	t := NewType(name)
	t.Link = xmlutil.BoolAttr(el, "link", false)
	t.SingleBlock = xmlutil.BoolAttr(el, "allowSingleBlock", false)
	if t.Link {
		t.TargetTag = xmlutil.Attr(el, "targetTag")
		t.CopyTarget = xmlutil.BoolAttr(el, "copyTarget", false)
		if t.TargetTag == "" {
			log.Warn("link type skipped: targetTag is required")
			return nil, false
		}
		return t, true
	}

	for _, ce := range el.SelectElements("children") {
		class := xmlutil.Attr(ce, "class")
		if class == "" {
			continue
		}
		r := ChildRule{Class: class, Min: 0, Max: Unbounded}
		if raw := xmlutil.Attr(ce, "min"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				log.Warn("children rule skipped: bad min", zap.String("child", class), zap.String("min", raw))
				continue
			}
			r.Min = n
		}
		if raw := xmlutil.Attr(ce, "max"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				log.Warn("children rule skipped: bad max", zap.String("child", class), zap.String("max", raw))
				continue
			}
			r.Max = n
		}
		if !t.AddChild(r) {
			log.Warn("children rule skipped", zap.String("child", class),
				zap.Int("min", r.Min), zap.Int("max", r.Max))
		}
	}
	return t, true
}

func parseCodeGenerator(el *etree.Element) *CodeGenerator {
	g := &CodeGenerator{
		Interfaces: strings.Fields(xmlutil.Attr(el, "interface")),
		Namespace:  xmlutil.Attr(el, "namespace"),
		BaseClass:  ExpandTokens(xmlutil.Attr(el, "baseclass")),
		Appendix:   ExpandTokens(xmlutil.Attr(el, "appendix")),
	}
	for _, ie := range el.SelectElements("include") {
		if f := xmlutil.Attr(ie, "file"); f != "" {
			g.Includes = append(g.Includes, f)
		}
	}
	for _, me := range el.SelectElements("method") {
		g.Methods = append(g.Methods, Method{
			Interface: xmlutil.Attr(me, "interface"),
			Name:      xmlutil.Attr(me, "name"),
			Return:    ExpandTokens(xmlutil.Attr(me, "return")),
			Args:      ExpandTokens(xmlutil.Attr(me, "args")),
			Impl:      ExpandTokens(me.SelectAttrValue("impl", "")),
			Const:     xmlutil.BoolAttr(me, "const", false),
		})
	}
	for _, ve := range el.SelectElements("variable") {
		g.Variables = append(g.Variables, Variable{
			Interface: xmlutil.Attr(ve, "interface"),
			Type:      ExpandTokens(xmlutil.Attr(ve, "type")),
			Name:      xmlutil.Attr(ve, "name"),
			Init:      ExpandTokens(xmlutil.Attr(ve, "init")),
		})
	}
	return g
}

// pruneChildRules drops rules that name classes the alphabet does not define.
func (a *Alphabet) pruneChildRules(log *zap.Logger) {
	for _, c := range a.Classes() {
		for _, t := range c.Types() {
			for _, r := range t.Children() {
				if a.Class(r.Class) == nil {
					log.Warn("children rule dropped: unknown class",
						zap.String("class", c.Name), zap.String("type", t.Name), zap.String("child", r.Class))
					t.removeChild(r.Class)
				}
			}
		}
	}
}
