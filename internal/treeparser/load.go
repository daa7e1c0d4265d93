package treeparser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/alphabet"
	"github.com/oxhq/btstudio/internal/attr"
	"github.com/oxhq/btstudio/internal/library"
	"github.com/oxhq/btstudio/internal/logging"
	"github.com/oxhq/btstudio/internal/tree"
	"github.com/oxhq/btstudio/internal/xmlutil"
)

// Result holds what Load read. Nothing of it is in the Model yet.
type Result struct {
	Layout
	Branches *tree.BehaviorTree
	Store    *tree.Store
}

type loader struct {
	m    Model
	log  *zap.Logger
	seen map[string]bool
	out  *Result
}

// fileState is the per-file parse context.
type fileState struct {
	path     string
	readUIDs bool
	pending  map[string]bool
	diagrams map[tree.UID]tree.DiagramInfo
	log      *zap.Logger
}

// Load reads tree files. Included files are read before the file that includes them. Nodes
// with unknown types, missing library references, duplicate uids, duplicate branch names or
// unresolved link targets are dropped with their subtree; IO and XML syntax errors abort the
// load.
func Load(m Model, files []string, log *zap.Logger) (*Result, error) {
	if m.Alphabet == nil || m.Alphabet.TopLevel() == nil {
		return nil, errors.New("alphabet has no top-level class")
	}
	l := &loader{
		m:    m,
		log:  logging.OrNop(log),
		seen: make(map[string]bool),
		out: &Result{
			Layout:   Layout{Includes: make(map[string][]string)},
			Branches: tree.NewBehaviorTree(),
			Store:    tree.NewStore(),
		},
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
		return fmt.Errorf("reading tree %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != l.m.Alphabet.HeaderTree {
		return fmt.Errorf("%w in %s: want <%s>", ErrRootTag, path, l.m.Alphabet.HeaderTree)
	}
	log := l.log.With(zap.String("file", path))

	version := xmlutil.Version{Major: 1}
	if raw := xmlutil.Attr(root, "version"); raw != "" {
		v, err := xmlutil.ParseVersion(raw)
		if err != nil {
			log.Warn("unreadable tree version, assuming 1.0", zap.String("version", raw))
		} else {
			version = v
		}
	}

	for _, inc := range root.SelectElements(IncludeTag) {
		rel := xmlutil.Attr(inc, "file")
		if rel == "" {
			log.Warn("include without file skipped")
			continue
		}
		target := filepath.Clean(filepath.Join(filepath.Dir(path), filepath.FromSlash(rel)))
		l.out.Includes[path] = append(l.out.Includes[path], target)
		if err := l.file(target); err != nil {
			return err
		}
	}
	l.out.Files = append(l.out.Files, path)

	diagrams, err := readDiagram(DiagramPath(path), log)
	if err != nil {
		return err
	}
	st := &fileState{
		path:     path,
		readUIDs: version.AtLeast(xmlutil.VersionUID),
		pending:  make(map[string]bool),
		diagrams: diagrams,
		log:      log,
	}

	top := l.m.Alphabet.TopLevel()
	for _, el := range root.SelectElements(top.Tag) {
		if ref := xmlutil.Attr(el, top.LinkTag); ref != "" {
			st.pending[tree.QualifiedName(path, ref)] = true
		}
	}

	for _, el := range root.ChildElements() {
		switch el.Tag {
		case IncludeTag:
		case top.Tag:
			l.branch(el, top, st)
		default:
			log.Warn("unknown element skipped", zap.String("tag", el.Tag))
		}
	}
	l.dropDanglingLinks(st)
	return nil
}

func (l *loader) branch(el *etree.Element, top *alphabet.Class, st *fileState) {
	ref := xmlutil.Attr(el, top.LinkTag)
	if ref == "" {
		st.log.Error("branch dropped: missing name", zap.String("attr", top.LinkTag))
		return
	}
	fq := tree.QualifiedName(st.path, ref)
	if l.out.Branches.Has(fq) || (l.m.Branches != nil && l.m.Branches.Has(fq)) {
		st.log.Error("branch dropped: name already used", zap.String("branch", fq))
		return
	}
	n := l.node(el, top, st)
	if n == nil {
		delete(st.pending, fq)
		return
	}
	n.RefName = ref
	_ = l.out.Branches.Add(fq, n.UID)
}

// node parses el and its subtree into the result store. It returns nil when el is dropped.
func (l *loader) node(el *etree.Element, class *alphabet.Class, st *fileState) *tree.Node {
	log := st.log.With(zap.String("class", class.Name))

	typeName := xmlutil.Attr(el, "Type")
	debug := false
	if rest, ok := strings.CutPrefix(typeName, debugPrefix); ok {
		typeName, debug = strings.TrimSpace(rest), true
	}
	log = log.With(zap.String("type", typeName))
	t := class.Type(typeName)
	if t == nil {
		log.Error("node dropped: unknown type")
		return nil
	}

	uid, fromFile, err := l.uid(el, st)
	if err != nil {
		log.Error("node dropped", zap.Error(err))
		return nil
	}
	log = log.With(zap.Uint32("uid", uint32(uid)))

	n := tree.NewNode(uid, class.Name, t.Name)
	if debug {
		if class.Debuggable {
			n.Debug = true
		} else {
			log.Warn("debug flag ignored: class is not debuggable")
		}
	}
	if class.InfoTag != "" {
		n.Info = el.SelectAttrValue(class.InfoTag, "")
	}
	if fromFile {
		if info, ok := st.diagrams[uid]; ok {
			n.Diagram = info
		}
	}

	if t.Link {
		target, ok := l.linkTarget(el, t, st, log)
		if !ok {
			return nil
		}
		n.Target = target
		l.flags(el, class, t, n, log)
		_ = l.out.Store.Add(n)
		return n
	}

	nodeName := xmlutil.Attr(el, class.LibraryTag)
	if nodeName == "" {
		log.Error("node dropped: missing library reference", zap.String("attr", class.LibraryTag))
		return nil
	}
	libName := xmlutil.Attr(el, LibAttr)
	var desc *library.NodeDesc
	if l.m.Catalog != nil {
		if libName != "" {
			desc = l.m.Catalog.Lookup(libName, nodeName)
		} else if all := l.m.Catalog.FindAll(nodeName); len(all) > 0 {
			desc = all[0]
			if len(all) > 1 {
				libs := make([]string, len(all))
				for i, d := range all {
					libs[i] = d.LibName
				}
				log.Warn("node library ambiguous, using the first", zap.String("node", nodeName),
					zap.Strings("libraries", libs))
			}
		}
	}
	n.LibName, n.NodeName = libName, nodeName
	switch {
	case desc == nil:
		log.Warn("node descriptor not found, node is orphaned", zap.String("library", libName), zap.String("node", nodeName))
	case desc.Class != class.Name || desc.Type != t.Name:
		log.Warn("node descriptor classification differs", zap.String("node", nodeName),
			zap.String("descClass", desc.Class), zap.String("descType", desc.Type))
		n.Bind(desc)
	default:
		n.Bind(desc)
	}
	l.flags(el, class, t, n, log)

	container := el
	var skip func(name string, array bool) bool
	if class.AttributesTag != "" {
		container = el.SelectElement(class.AttributesTag)
	} else {
		skip = func(name string, array bool) bool { return reservedName(l.m.Alphabet, class, name, array) }
	}
	if desc != nil {
		readAttrs(n, desc, container, skip, log)
	} else {
		readRawAttrs(n, container, skip, log)
	}

	_ = l.out.Store.Add(n)
	l.children(el, n, t, st, log)
	return n
}

func (l *loader) flags(el *etree.Element, class *alphabet.Class, t *alphabet.Type, n *tree.Node, log *zap.Logger) {
	name := xmlutil.Attr(el, "Name")
	if strings.HasPrefix(name, "!") || strings.HasPrefix(name, "~") {
		if class.Invertible {
			n.Inverse = true
		} else {
			log.Warn("inverse flag ignored: class is not invertible")
		}
	}
	if xmlutil.BoolAttr(el, "SingleBlock", false) {
		if t.SingleBlock {
			n.SingleBlock = true
		} else {
			log.Warn("single block flag ignored: type does not allow it")
		}
	}
}

// uid returns the file's uid when the format carries one, else a fresh one.
func (l *loader) uid(el *etree.Element, st *fileState) (tree.UID, bool, error) {
	if st.readUIDs {
		if uid, ok := tree.ParseUID(xmlutil.Attr(el, "uid")); ok {
			if l.out.Store.Has(uid) || (l.m.Store != nil && l.m.Store.Has(uid)) {
				return 0, false, fmt.Errorf("%w: %d", tree.ErrDuplicateUID, uid)
			}
			return uid, true, nil
		}
	}
	uid, err := l.out.Store.NewUID(l.m.Store)
	return uid, false, err
}

func (l *loader) linkTarget(el *etree.Element, t *alphabet.Type, st *fileState, log *zap.Logger) (string, bool) {
	ref := xmlutil.Attr(el, t.TargetTag)
	if ref == "" {
		log.Error("link dropped: missing target", zap.String("attr", t.TargetTag))
		return "", false
	}
	file := st.path
	if rel := xmlutil.Attr(el, FileAttr); rel != "" {
		file = filepath.Clean(filepath.Join(filepath.Dir(st.path), filepath.FromSlash(rel)))
	}
	fq := tree.QualifiedName(file, ref)
	switch {
	case file == st.path && st.pending[fq]:
	case l.out.Branches.Has(fq):
	case l.m.Branches != nil && l.m.Branches.Has(fq):
	default:
		log.Error("link dropped: unresolved target", zap.String("target", fq))
		return "", false
	}
	return fq, true
}

func (l *loader) children(el *etree.Element, n *tree.Node, t *alphabet.Type, st *fileState, log *zap.Logger) {
	counts := make(map[string]int)
	for _, cel := range el.ChildElements() {
		class := l.m.Alphabet.ClassByTag(cel.Tag)
		if class == nil {
			continue
		}
		rule, ok := t.Child(class.Name)
		if !ok {
			log.Warn("child skipped: class not allowed", zap.String("child", class.Name))
			continue
		}
		if counts[class.Name] >= rule.Max {
			log.Debug("child ignored: cardinality reached", zap.String("child", class.Name), zap.Int("max", rule.Max))
			continue
		}
		child := l.node(cel, class, st)
		if child == nil {
			continue
		}
		if err := l.out.Store.AttachChild(n.UID, child.UID, -1, rule.Max); err != nil {
			log.Error("child dropped", zap.Error(err))
			l.out.Store.Remove(child.UID)
			continue
		}
		counts[class.Name]++
	}
	for _, rule := range t.Children() {
		if counts[rule.Class] < rule.Min {
			log.Warn("too few children", zap.String("child", rule.Class),
				zap.Int("min", rule.Min), zap.Int("have", counts[rule.Class]))
		}
	}
}

// dropDanglingLinks removes links to same-file branches that were announced but dropped.
func (l *loader) dropDanglingLinks(st *fileState) {
	for _, n := range l.out.Store.Find(func(n *tree.Node) bool { return n.Target != "" }) {
		file, _ := tree.SplitQualified(n.Target)
		if n.Parent == 0 || file != filepath.ToSlash(st.path) || l.out.Branches.Has(n.Target) {
			continue
		}
		st.log.Error("link dropped: target branch was not loaded",
			zap.Uint32("uid", uint32(n.UID)), zap.String("target", n.Target))
		l.out.Store.Remove(n.UID)
	}
}

// readAttrs loads static attributes first, then dynamic ones in definition order so that each
// dynamic attribute sees its control's loaded value.
func readAttrs(n *tree.Node, desc *library.NodeDesc, container *etree.Element, skip func(string, bool) bool, log *zap.Logger) {
	descs := desc.Attrs()
	slices.SortStableFunc(descs, func(x, y attr.Desc) int {
		switch {
		case !x.IsDynamic() && y.IsDynamic():
			return -1
		case x.IsDynamic() && !y.IsDynamic():
			return 1
		}
		return 0
	})
	for _, d := range descs {
		a := attr.NewNodeAttr(d)
		unit := d.Unit("")
		if dyn, ok := d.(*attr.DynamicAttrDesc); ok {
			// The variant follows the control's value as read from this file, not its default.
			dyn.Update(a, n.Attrs)
			unit = dyn.Unit(a.Key())
		}
		if skip != nil && skip(d.FullName(), d.IsArray()) {
			log.Debug("attribute not read: name collides with node markup", zap.String("attr", d.FullName()))
		} else if unit != nil && container != nil {
			if texts, found := attrTexts(container, d); found {
				a.Load(unit, parseTexts(unit, texts, log.With(zap.String("attr", d.FullName()))))
			}
		}
		n.SetAttr(a)
	}
}

// readRawAttrs keeps the stored values of a node without a descriptor as string attributes so
// that saving the node writes them back. An element carrying only a value attribute is an
// array item, any other element is a subtag.
func readRawAttrs(n *tree.Node, container *etree.Element, skip func(string, bool) bool, log *zap.Logger) {
	if container == nil {
		return
	}
	scalars := make(map[string]string)
	arrays := make(map[string][]string)
	var walk func(el *etree.Element, prefix string)
	walk = func(el *etree.Element, prefix string) {
		for _, a := range el.Attr {
			name := prefix + a.FullKey()
			if skip == nil || !skip(name, false) {
				scalars[name] = a.Value
			}
		}
		for _, child := range el.ChildElements() {
			name := prefix + child.FullTag()
			if skip != nil && skip(name, true) {
				continue
			}
			if len(child.Attr) == 1 && child.Attr[0].Key == ValueAttr && len(child.ChildElements()) == 0 {
				arrays[name] = append(arrays[name], child.Attr[0].Value)
				continue
			}
			walk(child, name+attr.PathSeparator)
		}
	}
	walk(container, "")

	keep := func(name string, array bool, texts []string) {
		d, err := attr.NewNodeAttrDesc(name, "string", array)
		if err != nil {
			log.Error("orphaned attribute dropped", zap.String("attr", name), zap.Error(err))
			return
		}
		values := make([]attr.Value, 0, len(texts))
		for _, text := range texts {
			values = append(values, attr.StringValue(text))
		}
		a := attr.NewNodeAttr(d)
		a.Load(d, values)
		n.SetAttr(a)
	}
	for name, text := range scalars {
		keep(name, false, []string{text})
	}
	for name, texts := range arrays {
		if _, clash := scalars[name]; clash {
			log.Warn("orphaned array shadowed by attribute", zap.String("attr", name))
			continue
		}
		keep(name, true, texts)
	}
}

// attrTexts walks the subtag path below container and returns the stored text(s).
func attrTexts(container *etree.Element, d attr.Desc) ([]string, bool) {
	el := container
	for _, tag := range d.Subtags() {
		if el = el.SelectElement(tag); el == nil {
			return nil, false
		}
	}
	if d.IsArray() {
		var out []string
		for _, item := range el.SelectElements(d.Name()) {
			out = append(out, item.SelectAttrValue(ValueAttr, ""))
		}
		return out, true
	}
	if a := el.SelectAttr(d.Name()); a != nil {
		return []string{a.Value}, true
	}
	return nil, false
}

func parseTexts(unit *attr.NodeAttrDesc, texts []string, log *zap.Logger) []attr.Value {
	out := make([]attr.Value, 0, len(texts))
	for _, text := range texts {
		v, err := unit.Parse(text)
		if err != nil {
			log.Error("unreadable attribute value", zap.String("value", text), zap.Error(err))
		}
		out = append(out, v)
	}
	return out
}

func readDiagram(path string, log *zap.Logger) (map[tree.UID]tree.DiagramInfo, error) {
	out := make(map[tree.UID]tree.DiagramInfo)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("reading diagram %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != DiagramRootTag {
		log.Warn("diagram file ignored: unexpected root", zap.String("diagram", path))
		return out, nil
	}
	for _, item := range root.SelectElements("item") {
		uid, ok := tree.ParseUID(xmlutil.Attr(item, "uid"))
		if !ok {
			log.Warn("diagram item without uid skipped", zap.String("diagram", path))
			continue
		}
		info := tree.DefaultDiagram()
		info.Expanded = xmlutil.BoolAttr(item, "expanded", true)
		info.HAuto = xmlutil.BoolAttr(item, "hAuto", true)
		info.VAuto = xmlutil.BoolAttr(item, "vAuto", true)
		info.HShift = tree.Point{X: xmlutil.FloatAttr(item, "hx", 0), Y: xmlutil.FloatAttr(item, "hy", 0)}
		info.VShift = tree.Point{X: xmlutil.FloatAttr(item, "vx", 0), Y: xmlutil.FloatAttr(item, "vy", 0)}
		if xmlutil.HasAttr(item, "sceneX") || xmlutil.HasAttr(item, "sceneY") {
			info.HasScene = true
			info.Scene = tree.Point{X: xmlutil.FloatAttr(item, "sceneX", 0), Y: xmlutil.FloatAttr(item, "sceneY", 0)}
		}
		out[uid] = info
	}
	return out, nil
}
