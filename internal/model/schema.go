package model

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"

	"github.com/mark3labs/swagger2client/internal/diag"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// StringType is the builtin string primitive. It is always present in a built Graph.
const StringType TypeID = "builtin:string"

type schemaModeler struct {
	res     *spec.Resolver
	b       *builder
	diag    *diag.Collector
	cfg     *buildConfig
	msEnums map[string]TypeID
}

// BuildTypes models every named schema of the input documents, then every schema
// used by their operations, and returns the completed graph.
//
// Reference resolution failures abort the build. Schemas the modeler cannot give a
// precise shape become Unknown types and are reported through the run's diagnostics.
func BuildTypes(ctx context.Context, res *spec.Resolver, opts ...BuildOption) (*Graph, error) {
	m := &schemaModeler{
		res:     res,
		b:       newBuilder(),
		diag:    diag.FromContext(ctx),
		cfg:     newBuildConfig(opts),
		msEnums: make(map[string]TypeID),
	}
	m.b.put(Primitive{Meta: Meta{TypeID: StringType}, Prim: PrimString})

	inputs := res.Documents().Inputs()
	for _, doc := range inputs {
		for _, section := range definitionSections(doc.Root) {
			for _, e := range section.Entries() {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if _, err := m.model(e.Value, e.Key); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, doc := range inputs {
		err := forEachOperation(res, doc, m.cfg, func(s opSite) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.modelOperation(s); err != nil {
				return spec.NewOperationError(s.method, s.path, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m.b.g, nil
}

func definitionSections(root *spec.Node) []*spec.Node {
	var out []*spec.Node
	if d := root.Get("definitions"); d != nil {
		out = append(out, d)
	}
	if s, ok := root.Child("components", "schemas"); ok {
		out = append(out, s)
	}
	return out
}

// definitionName reports whether key addresses a named schema definition and returns its name.
func definitionName(key spec.RefKey) (string, bool) {
	if key.Pointer == "" {
		base := key.Doc[strings.LastIndexAny(key.Doc, `/\`)+1:]
		if i := strings.Index(base, "."); i > 0 {
			base = base[:i]
		}
		return base, true
	}
	parts := strings.Split(strings.TrimPrefix(key.Pointer, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "definitions":
		return jsonpointer.Unescape(parts[1]), true
	case len(parts) == 3 && parts[0] == "components" && parts[1] == "schemas":
		return jsonpointer.Unescape(parts[2]), true
	}
	return "", false
}

// model returns the type for the schema at n, modeling it on first use.
// hint names the type when the schema is an inline definition.
func (m *schemaModeler) model(n *spec.Node, hint string) (TypeID, error) {
	site := spec.KeyOf(n)
	if id, ok := m.b.g.byKey[site]; ok {
		return id, nil
	}
	res, err := m.res.ResolveNode(n)
	if err != nil {
		if !errors.Is(err, spec.ErrCircularReference) {
			return "", err
		}
		m.diag.Warn(diag.CodeCircularRef, n.Origin(), "%v", err)
		id := m.putUnknown(Meta{TypeID: TypeID(site.String()), Origin: n.Origin()}, n, "circular reference chain")
		m.b.link(site, id)
		return id, nil
	}
	if id, ok := m.b.g.byKey[res.Key]; ok {
		if res.Deferred {
			m.b.deferred[id] = true
		}
		m.b.link(site, id)
		return id, nil
	}
	node := res.Node
	if res.Deferred {
		if node, err = m.res.Lookup(res.Key); err != nil {
			return "", err
		}
	}
	name, named := definitionName(res.Key)
	if !named {
		name = hint
	}
	id, err := m.define(res.Key, node, name, named)
	if err != nil {
		return "", err
	}
	m.b.link(site, id)
	return id, nil
}

// define models node under the identity key. Named definitions always get their own
// type; inline schemas that reduce to another type are linked to it instead.
func (m *schemaModeler) define(key spec.RefKey, node *spec.Node, name string, named bool) (TypeID, error) {
	id := TypeID(key.String())
	m.b.link(key, id)
	if named {
		name = m.b.claimName(Pascal(name))
	}
	var out TypeID
	err := m.res.Expand(key, func() error {
		var err error
		out, err = m.build(id, node, name, named)
		return err
	})
	if err != nil {
		return "", err
	}
	if out == id {
		return id, nil
	}
	if !named && !m.b.deferred[id] {
		m.b.link(key, out)
		return out, nil
	}
	target, ok := m.b.get(out)
	if !ok {
		// The alias points back at a schema still being expanded.
		m.diag.Warn(diag.CodeCircularRef, node.Origin(), "schema %s aliases a type that is still being defined", name)
		return m.putUnknown(Meta{TypeID: id, Name: m.ensureName(name, named), Origin: node.Origin()}, node, "alias cycle"), nil
	}
	meta := Meta{
		TypeID:      id,
		Name:        m.ensureName(name, named),
		Description: node.Str("description"),
		Origin:      node.Origin(),
		Nullable:    isNullable(node) || target.Info().Nullable,
	}
	if meta.Description == "" {
		meta.Description = target.Info().Description
	}
	copied := withMeta(target, meta)
	if st, isStruct := copied.(Struct); isStruct && target.Info().Name != "" {
		st.Bases = []TypeID{out}
		copied = st
	}
	return m.b.put(copied), nil
}

func (m *schemaModeler) ensureName(name string, named bool) string {
	if named {
		return name
	}
	return m.b.claimName(Pascal(name))
}

func (m *schemaModeler) build(id TypeID, node *spec.Node, name string, named bool) (TypeID, error) {
	meta := Meta{
		TypeID:      id,
		Description: node.Str("description"),
		Origin:      node.Origin(),
		Nullable:    isNullable(node),
	}
	if named {
		meta.Name = name
	}
	hint := name
	if !named {
		hint = Pascal(name)
	}

	if node.Kind() != spec.MappingKind {
		if node.Kind() == spec.BoolKind {
			m.diag.Info(diag.CodeUnknownShape, node.Origin(), "boolean schema modeled as an opaque value")
			return m.putUnknown(meta, node, "boolean schema"), nil
		}
		m.diag.Warn(diag.CodeUnknownShape, node.Origin(), "schema is a %s, not an object; modeled as an opaque value", node.Kind())
		return m.putUnknown(meta, node, "schema is not an object"), nil
	}

	switch {
	case node.Has("enum"):
		return m.enumType(meta, node, name, named)
	case node.Has("allOf"):
		return m.allOfType(meta, node, hint, named)
	case node.Has("oneOf"):
		return m.unionType(meta, node, "oneOf", hint, named)
	case node.Has("anyOf"):
		return m.unionType(meta, node, "anyOf", hint, named)
	}

	typ, problem := schemaType(node)
	switch typ {
	case "object":
		return m.objectType(meta, node, hint, named)
	case "array":
		return m.arrayType(meta, node, hint, named)
	case "":
		if problem != "" {
			m.diag.Warn(diag.CodeUnknownShape, node.Origin(), "%s; modeled as an opaque value", problem)
		} else {
			m.diag.Info(diag.CodeUnknownShape, node.Origin(), "schema without type information modeled as an opaque value")
		}
		return m.putUnknown(meta, node, "no type information"), nil
	}
	p, ok := primitiveOf(typ, node.Str("format"))
	if !ok {
		m.diag.Warn(diag.CodeUnknownShape, node.Origin(), "unrecognized type %q; modeled as an opaque value", typ)
		return m.putUnknown(meta, node, fmt.Sprintf("unrecognized type %q", typ)), nil
	}
	if named {
		p.Meta = meta
		return m.b.put(p), nil
	}
	return m.builtin(p), nil
}

func (m *schemaModeler) putUnknown(meta Meta, node *spec.Node, reason string) TypeID {
	return m.b.put(Unknown{Meta: meta, Reason: reason, Raw: node})
}

// builtin returns the shared anonymous definition of p.
func (m *schemaModeler) builtin(p Primitive) TypeID {
	id := builtinID(p)
	if _, ok := m.b.get(id); !ok {
		m.b.put(Primitive{Meta: Meta{TypeID: id}, Prim: p.Prim, Width: p.Width, Format: p.Format})
	}
	return id
}

func builtinID(p Primitive) TypeID {
	s := "builtin:" + p.Prim.String()
	if p.Width != 0 {
		s += strconv.Itoa(p.Width)
	}
	if p.Format != "" && (p.Prim == PrimString || p.Prim == PrimBytes) {
		s += ":" + p.Format
	}
	return TypeID(s)
}

// schemaType returns the effective JSON type of a schema, inferring object and
// array from structural keywords. problem explains an empty result when the
// schema is malformed rather than merely untyped.
func schemaType(n *spec.Node) (typ string, problem string) {
	t := n.Get("type")
	switch t.Kind() {
	case spec.StringKind:
		return t.Scalar(), ""
	case spec.SequenceKind:
		var types []string
		for _, it := range t.Items() {
			if s := it.Scalar(); s != "" && s != "null" {
				types = append(types, s)
			}
		}
		if len(types) == 1 {
			return types[0], ""
		}
		if len(types) == 0 {
			return "", "type list only allows null"
		}
		return "", fmt.Sprintf("multiple types %v", types)
	case spec.NullKind:
		if t != nil {
			return "", "type is null"
		}
	default:
		return "", fmt.Sprintf("type must be a string, found %s", t.Kind())
	}
	switch {
	case n.Has("properties"), n.Has("additionalProperties"):
		return "object", ""
	case n.Has("items"):
		return "array", ""
	}
	return "", ""
}

func primitiveOf(typ, format string) (Primitive, bool) {
	switch typ {
	case "boolean":
		return Primitive{Prim: PrimBool}, true
	case "integer":
		switch format {
		case "int32", "int16", "int8", "uint32", "uint16", "uint8":
			return Primitive{Prim: PrimInt, Width: 32}, true
		}
		return Primitive{Prim: PrimInt, Width: 64}, true
	case "number":
		switch format {
		case "float":
			return Primitive{Prim: PrimFloat, Width: 32}, true
		case "int32":
			return Primitive{Prim: PrimInt, Width: 32}, true
		case "int64":
			return Primitive{Prim: PrimInt, Width: 64}, true
		}
		return Primitive{Prim: PrimFloat, Width: 64}, true
	case "string":
		switch format {
		case "byte", "binary", "base64":
			return Primitive{Prim: PrimBytes, Format: format}, true
		case "date":
			return Primitive{Prim: PrimDate}, true
		case "date-time":
			return Primitive{Prim: PrimDateTime}, true
		}
		return Primitive{Prim: PrimString, Format: format}, true
	case "file":
		return Primitive{Prim: PrimBytes, Format: "binary"}, true
	}
	return Primitive{}, false
}

// isNullable reports nullable (3.0), x-nullable (2.0), a null member of a 3.1 type
// list, or a null alternative of oneOf/anyOf.
func isNullable(n *spec.Node) bool {
	if n.Flag("nullable") || n.Flag("x-nullable") {
		return true
	}
	for _, t := range n.Strings("type") {
		if t == "null" {
			return true
		}
	}
	for _, key := range []string{"oneOf", "anyOf"} {
		for _, it := range n.Get(key).Items() {
			if isNullSchema(it) {
				return true
			}
		}
	}
	return false
}

func isNullSchema(n *spec.Node) bool {
	if n.Str("type") == "null" {
		return true
	}
	if vals := n.Get("enum").Items(); len(vals) == 1 && vals[0].IsNull() {
		return true
	}
	return false
}

func (m *schemaModeler) objectType(meta Meta, node *spec.Node, hint string, named bool) (TypeID, error) {
	props := node.Get("properties")
	if props != nil && props.Kind() != spec.MappingKind {
		m.diag.Warn(diag.CodeUnknownShape, props.Origin(), "properties must be a mapping, found %s; modeled as an opaque value", props.Kind())
		return m.putUnknown(meta, node, "properties is not a mapping"), nil
	}
	ap := node.Get("additionalProperties")
	if len(props.Entries()) == 0 {
		if ap.Kind() == spec.MappingKind && len(ap.Entries()) > 0 {
			elem, err := m.model(ap, hint+"Value")
			if err != nil {
				return "", err
			}
			c := Collection{Meta: meta, Coll: Map, Elem: elem}
			if !named {
				c.Meta = Meta{TypeID: "map[string]" + elem}
				if _, ok := m.b.get(c.TypeID); ok {
					return c.TypeID, nil
				}
			}
			return m.b.put(c), nil
		}
		m.diag.Info(diag.CodeUnknownShape, node.Origin(), "free-form object modeled as an opaque value")
		return m.putUnknown(meta, node, "free-form object"), nil
	}

	fs := newFieldSet()
	if err := m.collectFields(node, hint, fs); err != nil {
		return "", err
	}
	s := Struct{Meta: meta, Fields: fs.fields, Bases: fs.bases}
	if ap.Kind() == spec.MappingKind && len(ap.Entries()) > 0 {
		elem, err := m.model(ap, hint+"Value")
		if err != nil {
			return "", err
		}
		s.AdditionalProperties = elem
	}
	s.Name = m.ensureName(hint, named)
	return m.b.put(s), nil
}

func (m *schemaModeler) arrayType(meta Meta, node *spec.Node, hint string, named bool) (TypeID, error) {
	items := node.Get("items")
	var elem TypeID
	switch items.Kind() {
	case spec.MappingKind:
		id, err := m.model(items, hint+"Item")
		if err != nil {
			return "", err
		}
		elem = id
	default:
		reason := "array without items"
		if items != nil {
			reason = "tuple-style items"
		}
		m.diag.Warn(diag.CodeUnknownShape, node.Origin(), "%s; elements modeled as opaque values", reason)
		elem = m.putUnknown(Meta{TypeID: TypeID(spec.KeyOf(node).String() + "/items")}, node, reason)
	}
	c := Collection{Meta: meta, Coll: Sequence, Elem: elem}
	if !named {
		c.Meta = Meta{TypeID: "[]" + elem}
		if _, ok := m.b.get(c.TypeID); ok {
			return c.TypeID, nil
		}
	}
	return m.b.put(c), nil
}

// fieldSet accumulates merged struct fields. A later field with the same wire name
// replaces the earlier one in place; requiredness accumulates.
type fieldSet struct {
	fields []Field
	index  map[string]int
	bases  []TypeID
	others []TypeID
}

func newFieldSet() *fieldSet { return &fieldSet{index: make(map[string]int)} }

func (fs *fieldSet) merge(fields ...Field) {
	for _, f := range fields {
		if i, ok := fs.index[f.Name]; ok {
			f.Required = f.Required || fs.fields[i].Required
			fs.fields[i] = f
			continue
		}
		fs.index[f.Name] = len(fs.fields)
		fs.fields = append(fs.fields, f)
	}
}

func (fs *fieldSet) require(names []string) {
	for _, n := range names {
		if i, ok := fs.index[n]; ok {
			fs.fields[i].Required = true
		}
	}
}

// collectFields merges the allOf branches of node, in order, followed by its own properties.
func (m *schemaModeler) collectFields(node *spec.Node, hint string, fs *fieldSet) error {
	if all := node.Get("allOf"); all != nil {
		if all.Kind() != spec.SequenceKind {
			m.diag.Warn(diag.CodeAllOfBranch, all.Origin(), "allOf must be a sequence, found %s; ignored", all.Kind())
		}
		for i, br := range all.Items() {
			if isInlineObject(br) {
				if err := m.collectFields(br, hint, fs); err != nil {
					return err
				}
				continue
			}
			bid, err := m.model(br, hint+"AllOf"+strconv.Itoa(i+1))
			if err != nil {
				return err
			}
			t, ok := m.b.get(bid)
			if !ok {
				m.diag.Warn(diag.CodeCircularRef, br.Origin(), "allOf branch refers back to a schema that is still being defined; its fields are not merged")
				continue
			}
			if st, isStruct := t.(Struct); isStruct {
				fs.merge(st.Fields...)
				fs.bases = append(fs.bases, bid)
				continue
			}
			fs.others = append(fs.others, bid)
		}
	}
	props := node.Get("properties")
	if props != nil && props.Kind() != spec.MappingKind {
		m.diag.Warn(diag.CodeUnknownShape, props.Origin(), "properties must be a mapping, found %s; ignored", props.Kind())
		props = nil
	}
	required := make(map[string]bool)
	for _, r := range node.Strings("required") {
		required[r] = true
	}
	for _, e := range props.Entries() {
		f, err := m.field(e.Key, e.Value, hint, required[e.Key])
		if err != nil {
			return err
		}
		fs.merge(f)
	}
	fs.require(node.Strings("required"))
	return nil
}

func isInlineObject(n *spec.Node) bool {
	if n.Kind() != spec.MappingKind || n.Has("$ref") {
		return false
	}
	if n.Has("enum") || n.Has("oneOf") || n.Has("anyOf") || n.Has("items") {
		return false
	}
	if ap := n.Get("additionalProperties"); ap.Kind() == spec.MappingKind && !n.Has("properties") {
		return false
	}
	typ, _ := schemaType(n)
	return typ == "object" || n.Has("allOf") || (typ == "" && n.Has("required"))
}

func (m *schemaModeler) field(wire string, pnode *spec.Node, owner string, required bool) (Field, error) {
	hint := owner + Pascal(wire)
	if x := pnode.Get("x-ms-enum"); x != nil && x.Str("name") != "" {
		hint = x.Str("name")
	}
	tid, err := m.model(pnode, hint)
	if err != nil {
		return Field{}, err
	}
	nullable := isNullable(pnode)
	if t, ok := m.b.get(tid); ok && t.Info().Nullable {
		nullable = true
	}
	return Field{
		Name:        wire,
		Type:        tid,
		Required:    required,
		Nullable:    nullable,
		ReadOnly:    pnode.Flag("readOnly"),
		Boxed:       m.cfg.boxed(owner, wire),
		Description: pnode.Str("description"),
	}, nil
}

func (m *schemaModeler) allOfType(meta Meta, node *spec.Node, hint string, named bool) (TypeID, error) {
	fs := newFieldSet()
	if err := m.collectFields(node, hint, fs); err != nil {
		return "", err
	}
	if len(fs.fields) == 0 && len(fs.others) == 1 {
		return fs.others[0], nil
	}
	for _, o := range fs.others {
		t, _ := m.b.get(o)
		m.diag.Warn(diag.CodeAllOfBranch, node.Origin(), "allOf branch of kind %s cannot be merged into an object; skipped", t.Kind())
	}
	if len(fs.fields) == 0 && !named {
		m.diag.Info(diag.CodeUnknownShape, node.Origin(), "allOf without mergeable fields modeled as an opaque value")
		return m.putUnknown(meta, node, "empty allOf"), nil
	}
	s := Struct{Meta: meta, Fields: fs.fields, Bases: fs.bases}
	if ap := node.Get("additionalProperties"); ap.Kind() == spec.MappingKind && len(ap.Entries()) > 0 {
		elem, err := m.model(ap, hint+"Value")
		if err != nil {
			return "", err
		}
		s.AdditionalProperties = elem
	}
	s.Name = m.ensureName(hint, named)
	return m.b.put(s), nil
}

func (m *schemaModeler) enumType(meta Meta, node *spec.Node, name string, named bool) (TypeID, error) {
	values := node.Get("enum")
	if values.Kind() != spec.SequenceKind {
		m.diag.Warn(diag.CodeUnknownShape, values.Origin(), "enum must be a sequence, found %s; modeled as an opaque value", values.Kind())
		return m.putUnknown(meta, node, "enum is not a sequence"), nil
	}
	base := PrimString
	typ, _ := schemaType(node)
	switch typ {
	case "integer":
		base = PrimInt
	case "number":
		base = PrimFloat
	case "boolean":
		base = PrimBool
	case "":
		for _, v := range values.Items() {
			if v.Kind() == spec.NumberKind {
				base = PrimFloat
				if _, isInt := v.Value().(int64); isInt {
					base = PrimInt
				}
				break
			}
			if v.Kind() != spec.NullKind {
				break
			}
		}
	}

	msEnum := node.Get("x-ms-enum")
	labels := make(map[string]string)
	for _, v := range msEnum.Get("values").Items() {
		if lbl := v.Str("name"); lbl != "" {
			labels[v.Get("value").Scalar()] = lbl
		}
	}

	e := Enum{Meta: meta, Base: base}
	used := make(map[string]bool)
	for i, v := range values.Items() {
		switch v.Kind() {
		case spec.NullKind:
			e.Nullable = true
			continue
		case spec.MappingKind, spec.SequenceKind:
			m.diag.Warn(diag.CodeUnknownShape, v.Origin(), "non-scalar enum value skipped")
			continue
		}
		var value any
		switch base {
		case PrimString:
			value = v.Scalar()
		case PrimInt:
			if iv, ok := v.Value().(int64); ok {
				value = iv
			} else {
				m.diag.Warn(diag.CodeUnknownShape, v.Origin(), "enum value %q is not an integer; skipped", v.Scalar())
				continue
			}
		case PrimFloat:
			if v.Kind() != spec.NumberKind {
				m.diag.Warn(diag.CodeUnknownShape, v.Origin(), "enum value %q is not a number; skipped", v.Scalar())
				continue
			}
			value = v.Value()
		case PrimBool:
			if v.Kind() != spec.BoolKind {
				m.diag.Warn(diag.CodeUnknownShape, v.Origin(), "enum value %q is not a boolean; skipped", v.Scalar())
				continue
			}
			value = v.Value()
		default:
			value = v.Value()
		}
		vname := labels[v.Scalar()]
		if vname == "" {
			vname = enumVariantName(v)
		}
		if vname = Pascal(vname); vname == "" {
			vname = "Value" + strconv.Itoa(i+1)
		}
		for base, n := vname, 2; used[vname]; n++ {
			vname = base + strconv.Itoa(n)
		}
		used[vname] = true
		e.Variants = append(e.Variants, EnumVariant{Name: vname, Value: value})
	}
	if len(e.Variants) == 0 {
		m.diag.Warn(diag.CodeUnknownShape, node.Origin(), "enum without usable values; modeled as an opaque value")
		return m.putUnknown(meta, node, "empty enum"), nil
	}

	if named {
		return m.b.put(e), nil
	}
	if msName := msEnum.Str("name"); msName != "" {
		if prev, ok := m.msEnums[msName]; ok {
			if pt, ok := m.b.get(prev); ok && sameVariants(pt.(Enum).Variants, e.Variants) {
				return prev, nil
			}
		}
		name = msName
		e.Name = m.ensureName(name, false)
		id := m.b.put(e)
		m.msEnums[msName] = id
		return id, nil
	}
	e.Name = m.ensureName(name, false)
	return m.b.put(e), nil
}

func enumVariantName(v *spec.Node) string {
	s := v.Scalar()
	switch v.Kind() {
	case spec.NumberKind:
		return "Value" + strings.NewReplacer("-", "Minus", ".", "Dot", "+", "").Replace(s)
	case spec.BoolKind:
		return s
	}
	if strings.TrimSpace(s) == "" {
		return "Empty"
	}
	return s
}

func sameVariants(a, b []EnumVariant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type discriminator struct {
	property string
	mapping  []spec.Entry
	doc      string
}

func discriminatorOf(node *spec.Node) discriminator {
	d := node.Get("discriminator")
	switch d.Kind() {
	case spec.StringKind:
		return discriminator{property: d.Scalar(), doc: node.Doc()}
	case spec.MappingKind:
		return discriminator{property: d.Str("propertyName"), mapping: d.Get("mapping").Entries(), doc: node.Doc()}
	}
	return discriminator{}
}

func (m *schemaModeler) unionType(meta Meta, node *spec.Node, key, hint string, named bool) (TypeID, error) {
	list := node.Get(key)
	if list.Kind() != spec.SequenceKind {
		m.diag.Warn(diag.CodeUnknownShape, list.Origin(), "%s must be a sequence, found %s; modeled as an opaque value", key, list.Kind())
		return m.putUnknown(meta, node, key+" is not a sequence"), nil
	}
	disc := discriminatorOf(node)
	u := Union{Meta: meta, Discriminator: disc.property}
	pos := make(map[TypeID]int)
	for i, v := range list.Items() {
		if isNullSchema(v) {
			u.Nullable = true
			continue
		}
		vhint := hint + "Variant" + strconv.Itoa(i+1)
		if t := v.Str("title"); t != "" {
			vhint = Pascal(t)
		}
		vid, err := m.model(v, vhint)
		if err != nil {
			return "", err
		}
		var tags []string
		if disc.property != "" {
			tags = m.variantTags(disc, v)
		}
		if at, dup := pos[vid]; dup {
			u.Variants[at].Tags = appendUnique(u.Variants[at].Tags, tags...)
			continue
		}
		pos[vid] = len(u.Variants)
		u.Variants = append(u.Variants, UnionVariant{Type: vid, Tags: appendUnique(nil, tags...)})
	}
	switch {
	case len(u.Variants) == 0:
		m.diag.Warn(diag.CodeUnknownShape, node.Origin(), "%s without usable variants; modeled as an opaque value", key)
		return m.putUnknown(meta, node, "empty "+key), nil
	case len(u.Variants) == 1 && disc.property == "":
		return u.Variants[0].Type, nil
	}
	if disc.property != "" {
		for _, v := range u.Variants {
			if len(v.Tags) > 0 {
				continue
			}
			label := string(v.Type)
			if t, ok := m.b.get(v.Type); ok && t.Info().Name != "" {
				label = t.Info().Name
			}
			m.diag.Warn(diag.CodeUnknownShape, node.Origin(), "variant %s has no discriminator value for %q", label, disc.property)
		}
	}
	u.Name = m.ensureName(hint, named)
	return m.b.put(u), nil
}

// variantTags finds the discriminator values that select variant v: explicit mapping
// entries first, then a constant discriminator property, then x-ms-discriminator-value,
// then the referenced schema name.
func (m *schemaModeler) variantTags(d discriminator, v *spec.Node) []string {
	res, err := m.res.ResolveNode(v)
	if err != nil {
		return nil
	}
	var tags []string
	for _, e := range d.mapping {
		target := e.Value.Scalar()
		if key, ok := m.mappingKey(d.doc, target); ok && key == res.Key {
			tags = append(tags, e.Key)
		}
	}
	if len(tags) > 0 {
		return tags
	}
	node := res.Node
	if node == nil {
		if node, err = m.res.Lookup(res.Key); err != nil {
			return nil
		}
	}
	if lit, ok := m.discriminatorLiteral(node, d.property, 0); ok {
		return []string{lit}
	}
	if x := node.Get("x-ms-discriminator-value"); x != nil {
		return []string{x.Scalar()}
	}
	if _, isRef := v.Ref(); isRef {
		if name, ok := definitionName(res.Key); ok {
			return []string{name}
		}
	}
	return nil
}

func (m *schemaModeler) mappingKey(doc, target string) (spec.RefKey, bool) {
	candidates := []string{target}
	if !strings.ContainsAny(target, "#/") {
		candidates = []string{"#/components/schemas/" + target, "#/definitions/" + target}
	}
	for _, c := range candidates {
		if res, err := m.res.Resolve(doc, c); err == nil {
			return res.Key, true
		}
	}
	return spec.RefKey{}, false
}

func (m *schemaModeler) discriminatorLiteral(node *spec.Node, prop string, depth int) (string, bool) {
	if depth > 8 {
		return "", false
	}
	if p := node.Get("properties").Get(prop); p != nil {
		if res, err := m.res.ResolveNode(p); err == nil && res.Node != nil {
			p = res.Node
		}
		if c := p.Get("const"); c != nil && c.Kind() != spec.MappingKind && c.Kind() != spec.SequenceKind {
			return c.Scalar(), true
		}
		if vals := p.Get("enum").Items(); len(vals) == 1 {
			return vals[0].Scalar(), true
		}
	}
	for _, br := range node.Get("allOf").Items() {
		res, err := m.res.ResolveNode(br)
		if err != nil {
			continue
		}
		n := res.Node
		if n == nil {
			if n, err = m.res.Lookup(res.Key); err != nil {
				continue
			}
		}
		if lit, ok := m.discriminatorLiteral(n, prop, depth+1); ok {
			return lit, true
		}
	}
	return "", false
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
