// Package libparser reads and writes node library files.
package libparser

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/alphabet"
	"github.com/oxhq/btstudio/internal/attr"
	"github.com/oxhq/btstudio/internal/library"
	"github.com/oxhq/btstudio/internal/logging"
	"github.com/oxhq/btstudio/internal/xmlutil"
)

// LegacyRootTag is accepted as library root besides the alphabet's library header.
const LegacyRootTag = "libraries"

var ErrRootTag = errors.New("unexpected root element")

// Layout records which files were read and which files each of them included, so a save can
// reproduce the same file set.
type Layout struct {
	Files    []string
	Includes map[string][]string
}

// Result is the outcome of Load.
type Result struct {
	Layout
	Libraries []*library.Library
}

type loader struct {
	alphabet *alphabet.Alphabet
	existing *library.Catalog
	shapes   *library.ShapeLib
	log      *zap.Logger

	seen  map[string]bool
	names map[string]bool
	out   *Result
}

// Load reads library files. Library names must be unique across files and existing; nodes need
// a class/type known to a and a library-unique name. Offending elements are dropped with a log
// entry. IO and XML syntax errors abort the whole load.
func Load(a *alphabet.Alphabet, files []string, existing *library.Catalog, shapes *library.ShapeLib, log *zap.Logger) (*Result, error) {
	l := &loader{
		alphabet: a,
		existing: existing,
		shapes:   shapes,
		log:      logging.OrNop(log),
		seen:     make(map[string]bool),
		names:    make(map[string]bool),
		out:      &Result{Layout: Layout{Includes: make(map[string][]string)}},
	}
	for _, f := range files {
		if err := l.file(filepath.Clean(f)); err != nil {
			return nil, err
		}
	}
	return l.out, nil
}

func (l *loader) file(path string) error {
	if l.seen[path] {
		return nil
	}
	l.seen[path] = true

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return fmt.Errorf("reading library %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil || (root.Tag != l.alphabet.HeaderLibrary && root.Tag != LegacyRootTag) {
		return fmt.Errorf("%w in %s: want <%s>", ErrRootTag, path, l.alphabet.HeaderLibrary)
	}
	l.out.Files = append(l.out.Files, path)
	log := l.log.With(zap.String("file", path))

	for _, el := range root.ChildElements() {
		switch el.Tag {
		case "include":
			rel := xmlutil.Attr(el, "path")
			if rel == "" {
				log.Warn("include without path skipped")
				continue
			}
			inc := filepath.Clean(filepath.Join(filepath.Dir(path), filepath.FromSlash(rel)))
			l.out.Includes[path] = append(l.out.Includes[path], inc)
			if err := l.file(inc); err != nil {
				return err
			}
		case "library":
			if lib := l.library(el, path, log); lib != nil {
				l.out.Libraries = append(l.out.Libraries, lib)
			}
		default:
			log.Warn("unknown element skipped", zap.String("tag", el.Tag))
		}
	}
	return nil
}

func (l *loader) library(el *etree.Element, path string, log *zap.Logger) *library.Library {
	name := xmlutil.Attr(el, "name")
	if name == "" {
		log.Warn("library without name skipped")
		return nil
	}
	if l.names[name] || (l.existing != nil && l.existing.Has(name)) {
		log.Warn("duplicate library skipped", zap.String("library", name))
		return nil
	}
	l.names[name] = true

	lib := library.New(name, path)
	log = log.With(zap.String("library", name))
	for _, nodeEl := range el.SelectElements("node") {
		d := l.node(nodeEl, log)
		if d == nil {
			continue
		}
		if err := lib.Add(d); err != nil {
			log.Error("node dropped", zap.String("node", d.Name), zap.Error(err))
		}
	}
	return lib
}

func (l *loader) node(el *etree.Element, log *zap.Logger) *library.NodeDesc {
	class, typ, name := xmlutil.Attr(el, "class"), xmlutil.Attr(el, "type"), xmlutil.Attr(el, "name")
	log = log.With(zap.String("node", name), zap.String("class", class), zap.String("type", typ))
	if name == "" {
		log.Error("node without name dropped")
		return nil
	}
	t := l.alphabet.Type(class, typ)
	if t == nil {
		log.Error("node dropped: unknown class or type")
		return nil
	}

	d := library.NewNodeDesc(name, class, typ)
	d.Creator = xmlutil.Attr(el, "creator")
	d.DebugByDefault = xmlutil.BoolAttr(el, "debugDefault", false)
	d.ChildClasses = childClasses(el, t, log)

	if desc := el.SelectElement("description"); desc != nil {
		d.Description = desc.SelectAttrValue("text", "")
	}
	if shape := el.SelectElement("shape"); shape != nil {
		d.Shape = xmlutil.Attr(shape, "name")
		if d.Shape != "" && !l.shapes.Has(d.Shape) {
			log.Warn("unknown shape", zap.String("shape", d.Shape))
		}
	}
	if icon := el.SelectElement("icon"); icon != nil {
		d.Icon = xmlutil.Attr(icon, "path")
	}
	if events := el.SelectElement("events"); events != nil {
		for _, ev := range events.SelectElements("incoming") {
			if n := xmlutil.Attr(ev, "name"); n != "" {
				d.IncomingEvents = append(d.IncomingEvents, n)
			}
		}
		for _, ev := range events.SelectElements("outgoing") {
			if n := xmlutil.Attr(ev, "name"); n != "" {
				d.OutgoingEvents = append(d.OutgoingEvents, n)
			}
		}
	}

	for _, ael := range el.ChildElements() {
		var (
			a   attr.Desc
			err error
		)
		switch ael.Tag {
		case "attribute":
			a, err = staticAttr(ael, false, log)
		case "array":
			a, err = staticAttr(ael, true, log)
		case "dynamic_attribute":
			a, err = dynamicAttr(ael, false, log)
		case "dynamic_array":
			a, err = dynamicAttr(ael, true, log)
		default:
			continue
		}
		if err == nil {
			err = d.AddAttr(a)
		}
		if err != nil {
			log.Error("attribute dropped", zap.String("attr", xmlutil.Attr(ael, "name")), zap.Error(err))
		}
	}
	return d
}

// childClasses returns the type's child classes the node uses. Without any <children> element
// every class the type allows is used.
func childClasses(el *etree.Element, t *alphabet.Type, log *zap.Logger) []string {
	decl := el.SelectElements("children")
	if len(decl) == 0 {
		return t.ChildClasses()
	}
	var out []string
	for _, c := range decl {
		class := xmlutil.Attr(c, "class")
		if _, ok := t.Child(class); !ok {
			log.Warn("children entry skipped: class not allowed by type", zap.String("child", class))
			continue
		}
		if xmlutil.BoolAttr(c, "use", true) {
			out = append(out, class)
		}
	}
	return out
}

func staticAttr(el *etree.Element, isArray bool, log *zap.Logger) (*attr.NodeAttrDesc, error) {
	d, err := attr.NewNodeAttrDesc(xmlutil.Attr(el, "name"), xmlutil.Attr(el, "type"), isArray)
	if err != nil {
		return nil, err
	}
	if d.FullName() == "" {
		return nil, library.ErrEmptyName
	}
	configure(d, el, log.With(zap.String("attr", d.FullName())))
	d.SetDescription(el.SelectAttrValue("description", ""))
	return d, nil
}

// configure applies bounds, enumeration and default, in that order.
func configure(d *attr.NodeAttrDesc, el *etree.Element, log *zap.Logger) {
	if raw := xmlutil.Attr(el, "min"); raw != "" && !d.SetMin(raw) {
		log.Warn("min ignored", zap.String("min", raw))
	}
	if raw := xmlutil.Attr(el, "max"); raw != "" && !d.SetMax(raw) {
		log.Warn("max ignored", zap.String("max", raw))
	}
	if raw := el.SelectAttrValue("available", ""); raw != "" {
		d.SetAvailable(parseAvailable(d, raw, log))
	}
	if xmlutil.HasAttr(el, "default") {
		raw := el.SelectAttrValue("default", "")
		if !d.SetDefaultText(raw) {
			log.Warn("default ignored", zap.String("default", raw))
		}
	}
}

func dynamicAttr(el *etree.Element, isArray bool, log *zap.Logger) (*attr.DynamicAttrDesc, error) {
	name, control := xmlutil.Attr(el, "name"), xmlutil.Attr(el, "depend_on")
	if name == "" {
		return nil, library.ErrEmptyName
	}
	if control == "" {
		return nil, fmt.Errorf("%w: %s has no depend_on", library.ErrForwardRef, name)
	}
	log = log.With(zap.String("attr", name))
	d := attr.NewDynamicAttrDesc(name, control, isArray)
	d.SetDescription(el.SelectAttrValue("description", ""))
	for _, uel := range el.SelectElements("unit") {
		unit, err := attr.NewNodeAttrDesc(name, xmlutil.Attr(uel, "type"), isArray)
		if err != nil {
			log.Warn("unit skipped", zap.Error(err))
			continue
		}
		configure(unit, uel, log)
		if err := d.AddUnit(xmlutil.SplitList(uel.SelectAttrValue("keys", ""), ";"), unit); err != nil {
			log.Warn("unit skipped", zap.Error(err))
		}
	}
	if d.Unit("") == nil {
		return nil, fmt.Errorf("dynamic attribute %s has no units", name)
	}
	if key := xmlutil.Attr(el, "default"); key != "" && !d.SetDefaultKey(key) {
		log.Warn("default key ignored", zap.String("key", key))
	}
	return d, nil
}
