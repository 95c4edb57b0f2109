package goemitter

import (
	"strconv"

	"github.com/mark3labs/swagger2client/internal/model"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// Identifiers the client runtime declares at package level.
var runtimeIdents = []string{
	"Client", "NewClient", "Option", "RequestEditor", "WithHTTPClient", "WithBaseURL",
	"WithRequestEditor", "WithUserAgent", "APIError", "APIVersion", "DefaultBaseURL",
	"newAPIError", "decodePayload", "joinValues", "strictUnmarshal", "formFields", "encodeMultipart",
}

// generator owns the Go names chosen for one render.
type generator struct {
	api *model.API
	g   *model.Graph
	pkg string

	idents     map[string]bool
	typeNames  map[model.TypeID]string
	enumConsts map[model.TypeID][]string
	groupTypes map[string]string
	groupField map[string]string
	groupFiles map[string]string

	// Set while rendering operations; renderClient emits the matching helpers.
	usesFormFields bool
	usesMultipart  bool
}

func newGenerator(api *model.API, pkg string) *generator {
	gen := &generator{
		api:        api,
		g:          api.Types,
		pkg:        pkg,
		idents:     make(map[string]bool),
		typeNames:  make(map[model.TypeID]string),
		enumConsts: make(map[model.TypeID][]string),
		groupTypes: make(map[string]string),
		groupField: make(map[string]string),
		groupFiles: make(map[string]string),
	}
	for _, id := range runtimeIdents {
		gen.idents[id] = true
	}
	for _, t := range gen.g.Named() {
		base := model.Pascal(t.Info().Name)
		if base == "" {
			base = "Type"
		}
		if gen.idents[base] {
			base += "Model"
		}
		gen.typeNames[t.ID()] = gen.claim(base)
	}
	for _, t := range gen.g.Named() {
		e, ok := t.(model.Enum)
		if !ok {
			continue
		}
		name := gen.typeNames[e.ID()]
		consts := make([]string, len(e.Variants))
		for i, v := range e.Variants {
			consts[i] = gen.claim(name + model.Pascal(v.Name))
		}
		gen.enumConsts[e.ID()] = consts
	}
	fields := map[string]bool{"httpClient": true, "baseURL": true, "userAgent": true, "editors": true}
	files := map[string]bool{"client.go": true, "models.go": true, "go.mod": true}
	for _, grp := range api.Groups {
		field := model.Pascal(grp.Name)
		if field == "" {
			field = model.DefaultGroup
		}
		for i := 2; fields[field]; i++ {
			field = model.Pascal(grp.Name) + strconv.Itoa(i)
		}
		fields[field] = true
		gen.groupField[grp.Name] = field
		gen.groupTypes[grp.Name] = gen.claim(field + "Client")

		stem := fileSafe(grp.Name) + "_client"
		name := stem + ".go"
		for i := 2; files[name]; i++ {
			name = stem + strconv.Itoa(i) + ".go"
		}
		files[name] = true
		gen.groupFiles[grp.Name] = name
	}
	return gen
}

// claim reserves base, or base2, base3... when taken.
func (gen *generator) claim(base string) string {
	name := base
	for i := 2; gen.idents[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	gen.idents[name] = true
	return name
}

func (gen *generator) get(id model.TypeID) (model.Type, error) {
	t, ok := gen.g.Get(id)
	if !ok {
		return nil, spec.NewEmitError(spec.Origin{}, "type %s is not defined", id)
	}
	return t, nil
}

// goType is the Go spelling of id, recording the imports it needs in f.
func (gen *generator) goType(f *file, id model.TypeID) (string, error) {
	t, err := gen.get(id)
	if err != nil {
		return "", err
	}
	if name, ok := gen.typeNames[id]; ok {
		return name, nil
	}
	switch v := t.(type) {
	case model.Primitive:
		return primitiveGo(f, v), nil
	case model.Collection:
		elem, err := gen.goType(f, v.Elem)
		if err != nil {
			return "", err
		}
		if v.Coll == model.Map {
			return "map[string]" + elem, nil
		}
		return "[]" + elem, nil
	case model.Unknown:
		f.use("encoding/json")
		return "json.RawMessage", nil
	}
	return "", spec.NewEmitError(t.Info().Origin, "anonymous %s %s cannot be rendered", t.Kind(), id)
}

func primitiveGo(f *file, p model.Primitive) string {
	switch p.Prim {
	case model.PrimBool:
		return "bool"
	case model.PrimInt:
		if p.Width == 32 {
			return "int32"
		}
		return "int64"
	case model.PrimFloat:
		if p.Width == 32 {
			return "float32"
		}
		return "float64"
	case model.PrimBytes:
		return "[]byte"
	case model.PrimDateTime:
		f.use("time")
		return "time.Time"
	}
	return "string"
}

// nilable reports whether the Go type for id already has a nil value.
func (gen *generator) nilable(id model.TypeID) bool {
	t, ok := gen.g.Get(id)
	if !ok {
		return false
	}
	switch v := t.(type) {
	case model.Collection, model.Unknown:
		return true
	case model.Primitive:
		return v.Prim == model.PrimBytes
	}
	return false
}

func (gen *generator) kindOf(id model.TypeID) model.Kind {
	if t, ok := gen.g.Get(id); ok {
		return t.Kind()
	}
	return 0
}

// scalar reports whether values of id render as a single string on the wire.
func (gen *generator) scalar(id model.TypeID) bool {
	switch gen.kindOf(id) {
	case model.KindPrimitive, model.KindEnum:
		return true
	}
	return false
}

// scalarList reports a sequence of scalars.
func (gen *generator) scalarList(id model.TypeID) bool {
	t, ok := gen.g.Get(id)
	if !ok {
		return false
	}
	c, ok := t.(model.Collection)
	return ok && c.Coll == model.Sequence && gen.scalar(c.Elem)
}

// byValue reports a field that embeds its struct type directly.
func (gen *generator) byValue(f model.Field) bool {
	return f.Required && !f.Nullable && !f.Boxed && gen.kindOf(f.Type) == model.KindStruct
}

// reaches reports whether a value of from contains a value of target without any
// pointer in between.
func (gen *generator) reaches(from, target model.TypeID, seen map[model.TypeID]bool) bool {
	if from == target {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	t, ok := gen.g.Get(from)
	if !ok {
		return false
	}
	s, ok := t.(model.Struct)
	if !ok {
		return false
	}
	for _, f := range s.Fields {
		if gen.byValue(f) && gen.reaches(f.Type, target, seen) {
			return true
		}
	}
	return false
}

// fieldType is the Go type of a struct member. Optional, nullable and boxed members
// are pointers, and so is any member that would otherwise contain its owner.
func (gen *generator) fieldType(f *file, owner model.TypeID, fd model.Field) (string, error) {
	base, err := gen.goType(f, fd.Type)
	if err != nil {
		return "", err
	}
	if gen.nilable(fd.Type) {
		return base, nil
	}
	indirect := fd.Boxed || !fd.Required || fd.Nullable
	if !indirect && gen.byValue(fd) {
		indirect = gen.reaches(fd.Type, owner, map[model.TypeID]bool{})
	}
	if indirect {
		return "*" + base, nil
	}
	return base, nil
}
