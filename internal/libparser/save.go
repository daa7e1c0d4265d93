package libparser

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/oxhq/btstudio/internal/alphabet"
	"github.com/oxhq/btstudio/internal/attr"
	"github.com/oxhq/btstudio/internal/library"
	"github.com/oxhq/btstudio/internal/xmlutil"
)

var ErrNoPath = errors.New("library has no backing file")

// Render produces one document per library file. Files listed in layout are rendered even when
// they no longer hold a library. Output ordering is fixed so unchanged libraries re-render
// byte for byte.
func Render(a *alphabet.Alphabet, libs []*library.Library, layout Layout) (map[string][]byte, error) {
	byFile := make(map[string][]*library.Library)
	for _, f := range layout.Files {
		byFile[filepath.Clean(f)] = nil
	}
	for _, l := range libs {
		if l.Path == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoPath, l.Name)
		}
		path := filepath.Clean(l.Path)
		byFile[path] = append(byFile[path], l)
	}

	out := make(map[string][]byte, len(byFile))
	for path, group := range byFile {
		slices.SortFunc(group, func(x, y *library.Library) int { return cmp.Compare(x.Name, y.Name) })
		data, err := renderFile(a, path, group, layout.Includes[path])
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", path, err)
		}
		out[path] = data
	}
	return out, nil
}

// Save renders and writes the library files directly.
func Save(a *alphabet.Alphabet, libs []*library.Library, layout Layout) error {
	files, err := Render(a, libs, layout)
	if err != nil {
		return err
	}
	for path, data := range files {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

func renderFile(a *alphabet.Alphabet, path string, libs []*library.Library, includes []string) ([]byte, error) {
	doc := xmlutil.NewDocument()
	root := doc.CreateElement(a.HeaderLibrary)
	for _, inc := range includes {
		rel, err := filepath.Rel(filepath.Dir(path), inc)
		if err != nil {
			rel = inc
		}
		root.CreateElement("include").CreateAttr("path", filepath.ToSlash(rel))
	}
	for _, l := range libs {
		writeLibrary(root.CreateElement("library"), a, l)
	}
	return xmlutil.Bytes(doc)
}

// writeLibrary emits nodes grouped by class (top-level class first, then alphabetical) and by
// name within each class.
func writeLibrary(el *etree.Element, a *alphabet.Alphabet, l *library.Library) {
	el.CreateAttr("name", l.Name)
	rank := make(map[string]int)
	for i, c := range a.SortedClasses() {
		rank[c.Name] = i
	}
	nodes := l.Nodes()
	slices.SortStableFunc(nodes, func(x, y *library.NodeDesc) int {
		rx, okx := rank[x.Class]
		ry, oky := rank[y.Class]
		if !okx {
			rx = len(rank)
		}
		if !oky {
			ry = len(rank)
		}
		return cmp.Or(cmp.Compare(rx, ry), cmp.Compare(x.Class, y.Class), cmp.Compare(x.Name, y.Name))
	})
	for _, d := range nodes {
		writeNode(el.CreateElement("node"), a, d)
	}
}

func writeNode(el *etree.Element, a *alphabet.Alphabet, d *library.NodeDesc) {
	el.CreateAttr("class", d.Class)
	el.CreateAttr("type", d.Type)
	el.CreateAttr("name", d.Name)
	if d.Creator != "" {
		el.CreateAttr("creator", d.Creator)
	}
	if d.DebugByDefault {
		el.CreateAttr("debugDefault", xmlutil.YesNo(true))
	}
	if t := a.Type(d.Class, d.Type); t != nil {
		for _, class := range t.ChildClasses() {
			c := el.CreateElement("children")
			c.CreateAttr("class", class)
			c.CreateAttr("use", xmlutil.YesNo(d.AcceptsChildClass(class)))
		}
	}
	if d.Description != "" {
		el.CreateElement("description").CreateAttr("text", d.Description)
	}
	if d.Shape != "" {
		el.CreateElement("shape").CreateAttr("name", d.Shape)
	}
	if d.Icon != "" {
		el.CreateElement("icon").CreateAttr("path", d.Icon)
	}
	if len(d.IncomingEvents) > 0 || len(d.OutgoingEvents) > 0 {
		events := el.CreateElement("events")
		for _, ev := range d.IncomingEvents {
			events.CreateElement("incoming").CreateAttr("name", ev)
		}
		for _, ev := range d.OutgoingEvents {
			events.CreateElement("outgoing").CreateAttr("name", ev)
		}
	}
	for _, ad := range sortedAttrs(d) {
		switch x := ad.(type) {
		case *attr.NodeAttrDesc:
			tag := "attribute"
			if x.IsArray() {
				tag = "array"
			}
			ael := el.CreateElement(tag)
			ael.CreateAttr("type", x.Type().Name)
			ael.CreateAttr("name", x.FullName())
			writeBounds(ael, x)
			if x.Description() != "" {
				ael.CreateAttr("description", x.Description())
			}
		case *attr.DynamicAttrDesc:
			tag := "dynamic_attribute"
			if x.IsArray() {
				tag = "dynamic_array"
			}
			ael := el.CreateElement(tag)
			ael.CreateAttr("name", x.FullName())
			ael.CreateAttr("depend_on", x.Control())
			if x.DefaultKey() != "" {
				ael.CreateAttr("default", x.DefaultKey())
			}
			if x.Description() != "" {
				ael.CreateAttr("description", x.Description())
			}
			for _, unit := range x.Units() {
				uel := ael.CreateElement("unit")
				if keys := x.KeysOf(unit); len(keys) > 0 {
					uel.CreateAttr("keys", strings.Join(keys, ";"))
				}
				uel.CreateAttr("type", unit.Type().Name)
				writeBounds(uel, unit)
			}
		}
	}
}

// writeBounds writes default, then min/max when they narrow the type, then the enumeration.
func writeBounds(el *etree.Element, d *attr.NodeAttrDesc) {
	el.CreateAttr("default", d.Format(d.Default()))
	if d.Enumerated() {
		el.CreateAttr("available", formatAvailable(d))
		return
	}
	if !d.Bounded() {
		return
	}
	if !d.Min().Equal(d.Type().Min) {
		el.CreateAttr("min", d.Format(d.Min()))
	}
	if !d.Max().Equal(d.Type().Max) {
		el.CreateAttr("max", d.Format(d.Max()))
	}
}

// attrGroup orders scalar, array, dynamic scalar, dynamic array.
func attrGroup(a attr.Desc) int {
	g := 0
	if a.IsArray() {
		g++
	}
	if a.IsDynamic() {
		g += 2
	}
	return g
}

// sortedAttrs orders attributes by group and name. A dynamic attribute always follows its
// control so that reloading never sees a forward reference.
func sortedAttrs(d *library.NodeDesc) []attr.Desc {
	attrs := d.Attrs()
	slices.SortStableFunc(attrs, func(x, y attr.Desc) int {
		return cmp.Or(cmp.Compare(attrGroup(x), attrGroup(y)), cmp.Compare(x.FullName(), y.FullName()))
	})
	var (
		out     []attr.Desc
		placed  = make(map[string]bool)
		pending = attrs
	)
	for len(pending) > 0 {
		var rest []attr.Desc
		for _, a := range pending {
			if dyn, ok := a.(*attr.DynamicAttrDesc); ok && !placed[dyn.Control()] {
				rest = append(rest, a)
				continue
			}
			out = append(out, a)
			placed[a.FullName()] = true
		}
		if len(rest) == len(pending) {
			out = append(out, rest...)
			break
		}
		pending = rest
	}
	return out
}
