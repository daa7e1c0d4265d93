package treeparser

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/alphabet"
	"github.com/oxhq/btstudio/internal/attr"
	"github.com/oxhq/btstudio/internal/logging"
	"github.com/oxhq/btstudio/internal/tree"
	"github.com/oxhq/btstudio/internal/xmlutil"
)

// Render produces, per tree file, the tree document and its .dgm companion, keyed by path.
// Files of layout without branches are rendered empty.
func Render(m Model, layout Layout, log *zap.Logger) (map[string][]byte, error) {
	log = logging.OrNop(log)
	files := make(map[string]bool)
	for _, f := range layout.Files {
		files[filepath.ToSlash(filepath.Clean(f))] = true
	}
	for _, f := range m.Branches.Files() {
		files[f] = true
	}

	out := make(map[string][]byte, 2*len(files))
	for _, file := range slices.Sorted(maps.Keys(files)) {
		path := filepath.FromSlash(file)
		treeDoc, dgmDoc := renderFile(m, file, log.With(zap.String("file", path)))
		data, err := xmlutil.Bytes(treeDoc)
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", path, err)
		}
		out[path] = data
		if data, err = xmlutil.Bytes(dgmDoc); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", DiagramPath(path), err)
		}
		out[DiagramPath(path)] = data
	}
	return out, nil
}

// Save renders and writes the tree files directly.
func Save(m Model, layout Layout, log *zap.Logger) error {
	files, err := Render(m, layout, log)
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

func renderFile(m Model, file string, log *zap.Logger) (*etree.Document, *etree.Document) {
	doc := xmlutil.NewDocument()
	root := doc.CreateElement(m.Alphabet.HeaderTree)
	root.CreateAttr("version", xmlutil.Current.String())

	dgm := xmlutil.NewDocument()
	dgmRoot := dgm.CreateElement(DiagramRootTag)
	dgmRoot.CreateAttr("version", xmlutil.Current.String())

	branches := m.Branches.BranchesIn(file)
	deps := make(map[string][]string, len(branches))
	external := make(map[string]bool)
	for _, fq := range branches {
		uid, _ := m.Branches.Get(fq)
		for _, target := range linkTargets(m.Store, uid) {
			targetFile, _ := tree.SplitQualified(target)
			if targetFile == file {
				deps[fq] = append(deps[fq], target)
			} else {
				external[targetFile] = true
			}
		}
	}

	for _, f := range slices.Sorted(maps.Keys(external)) {
		root.CreateElement(IncludeTag).CreateAttr("file", relPath(file, f))
	}
	w := &writer{m: m, file: file, dgm: dgmRoot, log: log}
	for _, fq := range orderBranches(branches, deps, log) {
		uid, _ := m.Branches.Get(fq)
		w.node(root, uid)
	}
	return doc, dgm
}

// orderBranches emits a branch once every same-file branch it links to has been emitted.
// The loop is bounded by the branch count, which is enough for any acyclic dependency graph;
// branches caught in a cycle are then emitted in name order.
func orderBranches(names []string, deps map[string][]string, log *zap.Logger) []string {
	emitted := make(map[string]bool, len(names))
	var out []string
	for range names {
		progress := false
		for _, fq := range names {
			if emitted[fq] {
				continue
			}
			ready := true
			for _, d := range deps[fq] {
				if d != fq && !emitted[d] && slices.Contains(names, d) {
					ready = false
					break
				}
			}
			if ready {
				emitted[fq] = true
				out = append(out, fq)
				progress = true
			}
		}
		if !progress {
			break
		}
	}
	for _, fq := range names {
		if !emitted[fq] {
			log.Warn("branch has cyclic links, emitted out of order", zap.String("branch", fq))
			out = append(out, fq)
		}
	}
	return out
}

func linkTargets(s *tree.Store, root tree.UID) []string {
	var out []string
	for _, uid := range s.Descendants(root) {
		if n := s.Get(uid); n.Target != "" {
			out = append(out, n.Target)
		}
	}
	return out
}

func relPath(fromFile, to string) string {
	rel, err := filepath.Rel(filepath.Dir(filepath.FromSlash(fromFile)), filepath.FromSlash(to))
	if err != nil {
		return to
	}
	return filepath.ToSlash(rel)
}

type writer struct {
	m    Model
	file string
	dgm  *etree.Element
	log  *zap.Logger
}

func (w *writer) node(parent *etree.Element, uid tree.UID) {
	n := w.m.Store.Get(uid)
	if n == nil {
		return
	}
	class := w.m.Alphabet.Class(n.Class)
	if class == nil {
		w.log.Error("node not saved: unknown class", zap.Uint32("uid", uint32(uid)), zap.String("class", n.Class))
		return
	}
	t := class.Type(n.Type)

	el := parent.CreateElement(class.Tag)
	typeText := n.Type
	if n.Debug {
		typeText = debugPrefix + typeText
	}
	el.CreateAttr("Type", typeText)
	el.CreateAttr("uid", n.UID.String())

	if t != nil && t.Link {
		targetFile, ref := tree.SplitQualified(n.Target)
		el.CreateAttr(t.TargetTag, ref)
		if targetFile != w.file {
			el.CreateAttr(FileAttr, relPath(w.file, targetFile))
		}
	} else {
		if n.LibName != "" {
			el.CreateAttr(LibAttr, n.LibName)
		}
		el.CreateAttr(class.LibraryTag, n.NodeName)
	}
	if n.Inverse || (t == nil || !t.Link) {
		name := n.NodeName
		if n.Inverse {
			name = "!" + name
		}
		el.CreateAttr("Name", name)
	}
	if n.RefName != "" && class.LinkTag != "" {
		el.CreateAttr(class.LinkTag, n.RefName)
	}
	if n.Info != "" && class.InfoTag != "" {
		el.CreateAttr(class.InfoTag, n.Info)
	}
	if n.SingleBlock {
		el.CreateAttr("SingleBlock", xmlutil.YesNo(true))
	}
	w.diagram(n)

	if t != nil && t.Link {
		return
	}
	w.attrs(el, n, class)

	order := n.ChildClasses()
	if t != nil {
		order = append(t.ChildClasses(), order...)
	}
	seen := make(map[string]bool)
	for _, c := range order {
		if seen[c] {
			continue
		}
		seen[c] = true
		for _, child := range n.Children(c) {
			w.node(el, child)
		}
	}
}

// attrs writes attribute values in descriptor order. Orphaned nodes keep their values in name
// order using the raw text form.
func (w *writer) attrs(el *etree.Element, n *tree.Node, class *alphabet.Class) {
	tag := class.AttributesTag
	type item struct {
		name  string
		array bool
		texts []string
	}
	var items []item
	if desc := descFor(w.m, n); desc != nil {
		for _, d := range desc.Attrs() {
			a := n.Attr(d.FullName())
			if a == nil {
				continue
			}
			unit := d.Unit(a.Key())
			if unit == nil {
				unit = d.Unit("")
			}
			items = append(items, item{d.FullName(), d.IsArray(), formatValues(unit, a.Values())})
		}
	} else {
		for _, name := range n.AttrNames() {
			a := n.Attrs[name]
			texts := make([]string, 0, a.Len())
			for _, v := range a.Values() {
				texts = append(texts, v.String())
			}
			items = append(items, item{name, a.IsArray(), texts})
		}
	}
	if tag == "" {
		kept := items[:0]
		for _, it := range items {
			if reservedName(w.m.Alphabet, class, it.name, it.array) {
				w.log.Warn("attribute not saved: name collides with node markup",
					zap.Uint32("uid", uint32(n.UID)), zap.String("attr", it.name))
				continue
			}
			kept = append(kept, it)
		}
		items = kept
	}
	if len(items) == 0 && !(class.AttributesObligatory && tag != "") {
		return
	}

	container := el
	if tag != "" {
		container = el.CreateElement(tag)
	}
	for _, it := range items {
		target := container
		parts := attr.SplitPath(it.name)
		for _, sub := range parts[:len(parts)-1] {
			next := target.SelectElement(sub)
			if next == nil {
				next = target.CreateElement(sub)
			}
			target = next
		}
		leaf := parts[len(parts)-1]
		if it.array {
			for _, text := range it.texts {
				target.CreateElement(leaf).CreateAttr(ValueAttr, text)
			}
			continue
		}
		if len(it.texts) > 0 {
			target.CreateAttr(leaf, it.texts[0])
		}
	}
}

func formatValues(unit *attr.NodeAttrDesc, values []attr.Value) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if unit != nil {
			out = append(out, unit.Format(v))
		} else {
			out = append(out, v.String())
		}
	}
	return out
}

func (w *writer) diagram(n *tree.Node) {
	if n.Diagram == tree.DefaultDiagram() {
		return
	}
	d := n.Diagram
	item := w.dgm.CreateElement("item")
	item.CreateAttr("uid", n.UID.String())
	item.CreateAttr("expanded", xmlutil.YesNo(d.Expanded))
	item.CreateAttr("hAuto", xmlutil.YesNo(d.HAuto))
	item.CreateAttr("vAuto", xmlutil.YesNo(d.VAuto))
	item.CreateAttr("hx", xmlutil.FormatFloat(d.HShift.X))
	item.CreateAttr("hy", xmlutil.FormatFloat(d.HShift.Y))
	item.CreateAttr("vx", xmlutil.FormatFloat(d.VShift.X))
	item.CreateAttr("vy", xmlutil.FormatFloat(d.VShift.Y))
	if d.HasScene {
		item.CreateAttr("sceneX", xmlutil.FormatFloat(d.Scene.X))
		item.CreateAttr("sceneY", xmlutil.FormatFloat(d.Scene.Y))
	}
}
