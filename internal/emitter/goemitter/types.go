package goemitter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/swagger2client/internal/model"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// renderModels writes every named type. Scalars and enums come first, then aliases
// and unions, then structs with dependencies ahead of their users.
func (gen *generator) renderModels() ([]byte, error) {
	f := newFile(gen.pkg)
	var prims, enums, aliases, unions []model.Type
	var structs []model.TypeID
	for _, t := range gen.g.Named() {
		switch t.Kind() {
		case model.KindPrimitive:
			prims = append(prims, t)
		case model.KindEnum:
			enums = append(enums, t)
		case model.KindCollection, model.KindUnknown:
			aliases = append(aliases, t)
		case model.KindUnion:
			unions = append(unions, t)
		case model.KindStruct:
			structs = append(structs, t.ID())
		}
	}
	for _, t := range prims {
		if err := gen.renderNamedAlias(f, t); err != nil {
			return nil, err
		}
	}
	for _, t := range enums {
		gen.renderEnum(f, t.(model.Enum))
	}
	for _, t := range aliases {
		if err := gen.renderNamedAlias(f, t); err != nil {
			return nil, err
		}
	}
	strict := false
	for _, t := range unions {
		usesStrict, err := gen.renderUnion(f, t.(model.Union))
		if err != nil {
			return nil, err
		}
		strict = strict || usesStrict
	}
	for _, id := range gen.structOrder(structs) {
		t, _ := gen.g.Get(id)
		if err := gen.renderStruct(f, t.(model.Struct)); err != nil {
			return nil, err
		}
	}
	if strict {
		f.use("bytes")
		f.use("encoding/json")
		f.p("func strictUnmarshal(data []byte, v any) error {")
		f.p("\tdec := json.NewDecoder(bytes.NewReader(data))")
		f.p("\tdec.DisallowUnknownFields()")
		f.p("\treturn dec.Decode(v)")
		f.p("}")
	}
	return f.bytes(), nil
}

// structOrder is a depth-first post-order over struct dependencies, seeded in
// declaration order. Cycles are broken at the first revisit.
func (gen *generator) structOrder(roots []model.TypeID) []model.TypeID {
	var out []model.TypeID
	state := make(map[model.TypeID]int)
	var visit func(id model.TypeID)
	var deps func(id model.TypeID, seen map[model.TypeID]bool) []model.TypeID
	deps = func(id model.TypeID, seen map[model.TypeID]bool) []model.TypeID {
		if seen[id] {
			return nil
		}
		seen[id] = true
		t, ok := gen.g.Get(id)
		if !ok {
			return nil
		}
		switch v := t.(type) {
		case model.Struct:
			return []model.TypeID{id}
		case model.Collection:
			return deps(v.Elem, seen)
		case model.Union:
			var ids []model.TypeID
			for _, uv := range v.Variants {
				ids = append(ids, deps(uv.Type, seen)...)
			}
			return ids
		}
		return nil
	}
	visit = func(id model.TypeID) {
		if state[id] != 0 {
			return
		}
		state[id] = 1
		t, _ := gen.g.Get(id)
		s := t.(model.Struct)
		for _, fd := range s.Fields {
			for _, dep := range deps(fd.Type, map[model.TypeID]bool{}) {
				if _, named := gen.typeNames[dep]; named {
					visit(dep)
				}
			}
		}
		state[id] = 2
		out = append(out, id)
	}
	for _, id := range roots {
		visit(id)
	}
	return out
}

func (gen *generator) renderNamedAlias(f *file, t model.Type) error {
	name := gen.typeNames[t.ID()]
	var target string
	alias := false
	switch v := t.(type) {
	case model.Primitive:
		target = primitiveGo(f, v)
		alias = v.Prim == model.PrimDateTime
	case model.Collection:
		elem, err := gen.goType(f, v.Elem)
		if err != nil {
			return err
		}
		target = "[]" + elem
		if v.Coll == model.Map {
			target = "map[string]" + elem
		}
	case model.Unknown:
		f.use("encoding/json")
		target = "json.RawMessage"
		alias = true
	}
	f.doc("", name, t.Info().Description)
	if alias {
		f.p("type %s = %s", name, target)
	} else {
		f.p("type %s %s", name, target)
	}
	f.blank()
	return nil
}

func (gen *generator) renderEnum(f *file, e model.Enum) {
	name := gen.typeNames[e.ID()]
	base := "string"
	switch e.Base {
	case model.PrimInt:
		base = "int64"
	case model.PrimFloat:
		base = "float64"
	case model.PrimBool:
		base = "bool"
	}
	f.doc("", name, e.Description)
	f.p("type %s %s", name, base)
	f.blank()
	if len(e.Variants) == 0 {
		return
	}
	f.p("const (")
	for i, v := range e.Variants {
		f.p("\t%s %s = %s", gen.enumConsts[e.ID()][i], name, literal(v.Value, e.Base))
	}
	f.p(")")
	f.blank()
}

// literal renders an enum value as a Go constant expression of the enum's base kind.
func literal(v any, base model.PrimitiveKind) string {
	switch base {
	case model.PrimInt:
		switch n := v.(type) {
		case int64:
			return strconv.FormatInt(n, 10)
		case float64:
			return strconv.FormatInt(int64(n), 10)
		}
	case model.PrimFloat:
		switch n := v.(type) {
		case int64:
			return strconv.FormatInt(n, 10)
		case float64:
			return strconv.FormatFloat(n, 'g', -1, 64)
		}
	case model.PrimBool:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b)
		}
	}
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return strconv.Quote(fmt.Sprint(v))
}

func (gen *generator) renderStruct(f *file, s model.Struct) error {
	name := gen.typeNames[s.ID()]
	f.doc("", name, s.Description)
	f.p("type %s struct {", name)
	used := make(map[string]bool)
	for i, fd := range s.Fields {
		typ, err := gen.fieldType(f, s.ID(), fd)
		if err != nil {
			return err
		}
		field := model.Pascal(fd.Name)
		if field == "" {
			field = "Field" + strconv.Itoa(i)
		}
		base := field
		for n := 2; used[field]; n++ {
			field = base + strconv.Itoa(n)
		}
		used[field] = true
		tag := fd.Name
		if !fd.Required {
			tag += ",omitempty"
		}
		f.doc("\t", field, fd.Description)
		f.p("\t%s %s `json:%q`", field, typ, tag)
	}
	f.p("}")
	f.blank()
	return nil
}

// variantField names the struct member holding one union alternative.
func (gen *generator) variantField(id model.TypeID) string {
	if name, ok := gen.typeNames[id]; ok {
		return name
	}
	t, ok := gen.g.Get(id)
	if !ok {
		return "Value"
	}
	switch v := t.(type) {
	case model.Primitive:
		switch v.Prim {
		case model.PrimBool:
			return "Bool"
		case model.PrimInt:
			if v.Width == 32 {
				return "Int32"
			}
			return "Int64"
		case model.PrimFloat:
			if v.Width == 32 {
				return "Float32"
			}
			return "Float64"
		case model.PrimBytes:
			return "Bytes"
		case model.PrimDateTime:
			return "Time"
		}
		return "String"
	case model.Collection:
		if v.Coll == model.Map {
			return gen.variantField(v.Elem) + "Map"
		}
		return gen.variantField(v.Elem) + "List"
	}
	return "Raw"
}

// renderUnion writes a struct with one pointer per alternative. Exactly one is set
// after decoding. It reports whether the decoder relies on strictUnmarshal.
func (gen *generator) renderUnion(f *file, u model.Union) (bool, error) {
	name := gen.typeNames[u.ID()]
	if len(u.Variants) == 0 {
		return false, spec.NewEmitError(u.Origin, "union %s has no variants", name)
	}
	type member struct {
		field string
		typ   string
		tags  []string
	}
	members := make([]member, 0, len(u.Variants))
	used := make(map[string]bool)
	for _, v := range u.Variants {
		typ, err := gen.goType(f, v.Type)
		if err != nil {
			return false, err
		}
		field := gen.variantField(v.Type)
		base := field
		for n := 2; used[field]; n++ {
			field = base + strconv.Itoa(n)
		}
		used[field] = true
		members = append(members, member{field: field, typ: typ, tags: v.Tags})
	}

	f.use("encoding/json")
	f.use("fmt")
	desc := u.Description
	if desc == "" {
		fieldNames := make([]string, len(members))
		for i, m := range members {
			fieldNames[i] = m.field
		}
		desc = "holds exactly one of " + strings.Join(fieldNames, ", ") + "."
	}
	f.doc("", name, desc)
	f.p("type %s struct {", name)
	for _, m := range members {
		f.p("\t%s *%s", m.field, m.typ)
	}
	f.p("}")
	f.blank()

	f.p("func (u %s) MarshalJSON() ([]byte, error) {", name)
	f.p("\tswitch {")
	for _, m := range members {
		f.p("\tcase u.%s != nil:", m.field)
		f.p("\t\treturn json.Marshal(u.%s)", m.field)
	}
	f.p("\t}")
	f.p("\treturn []byte(\"null\"), nil")
	f.p("}")
	f.blank()

	f.p("func (u *%s) UnmarshalJSON(data []byte) error {", name)
	f.p("\t*u = %s{}", name)
	strict := false
	if u.Tagged() {
		f.use("strings")
		f.p("\tvar probe struct {")
		f.p("\t\tTag json.RawMessage `json:%q`", u.Discriminator)
		f.p("\t}")
		f.p("\tif err := json.Unmarshal(data, &probe); err != nil {")
		f.p("\t\treturn err")
		f.p("\t}")
		f.p("\tswitch strings.Trim(string(probe.Tag), `\"`) {")
		for _, m := range members {
			if len(m.tags) == 0 {
				continue
			}
			quoted := make([]string, len(m.tags))
			for i, t := range m.tags {
				quoted[i] = strconv.Quote(t)
			}
			f.p("\tcase %s:", strings.Join(quoted, ", "))
			f.p("\t\tu.%s = new(%s)", m.field, m.typ)
			f.p("\t\treturn json.Unmarshal(data, u.%s)", m.field)
		}
		f.p("\t}")
	}
	for _, m := range members {
		if u.Tagged() && len(m.tags) > 0 {
			continue
		}
		strict = true
		f.p("\t{")
		f.p("\t\tvar v %s", m.typ)
		f.p("\t\tif err := strictUnmarshal(data, &v); err == nil {")
		f.p("\t\t\tu.%s = &v", m.field)
		f.p("\t\t\treturn nil")
		f.p("\t\t}")
		f.p("\t}")
	}
	if u.Tagged() {
		f.p("\treturn fmt.Errorf(\"%s: unknown %s %%s\", probe.Tag)", name, u.Discriminator)
	} else {
		f.p("\treturn fmt.Errorf(\"%s: value matches no variant\")", name)
	}
	f.p("}")
	f.blank()
	return strict, nil
}
