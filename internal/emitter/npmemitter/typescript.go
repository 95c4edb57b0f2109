package npmemitter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mark3labs/swagger2client/internal/emitter"
	"github.com/mark3labs/swagger2client/internal/model"
	"github.com/mark3labs/swagger2client/internal/spec"
)

const generatedHeader = emitter.GeneratedMarker + "\n\n"

var (
	identRe       = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)
)

// Names client.ts exports; models must not shadow them through index.ts.
var runtimeIdents = []string{"Client", "ClientOptions", "ApiError", "SendOptions", "QueryValue", "API_VERSION", "DEFAULT_BASE_URL"}

type generator struct {
	api        *model.API
	g          *model.Graph
	idents     map[string]bool
	typeNames  map[model.TypeID]string
	groupClass map[string]string
	groupProp  map[string]string
}

func newGenerator(api *model.API) *generator {
	gen := &generator{
		api:        api,
		g:          api.Types,
		idents:     make(map[string]bool),
		typeNames:  make(map[model.TypeID]string),
		groupClass: make(map[string]string),
		groupProp:  make(map[string]string),
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
	props := map[string]bool{"options": true, "baseUrl": true, "send": true}
	for _, grp := range api.Groups {
		gen.groupClass[grp.Name] = gen.claim(model.Pascal(grp.Name) + "Client")
		prop := model.Camel(grp.Name)
		for i := 2; props[prop]; i++ {
			prop = model.Camel(grp.Name) + strconv.Itoa(i)
		}
		props[prop] = true
		gen.groupProp[grp.Name] = prop
	}
	return gen
}

func (gen *generator) claim(base string) string {
	name := base
	for i := 2; gen.idents[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	gen.idents[name] = true
	return name
}

// tsType spells id; named types are qualified with prefix.
func (gen *generator) tsType(id model.TypeID, prefix string) (string, error) {
	t, ok := gen.g.Get(id)
	if !ok {
		return "", spec.NewEmitError(spec.Origin{}, "type %s is not defined", id)
	}
	if name, ok := gen.typeNames[id]; ok {
		return prefix + name, nil
	}
	switch v := t.(type) {
	case model.Primitive:
		return primitiveTS(v), nil
	case model.Collection:
		elem, err := gen.tsType(v.Elem, prefix)
		if err != nil {
			return "", err
		}
		if v.Coll == model.Map {
			return "Record<string, " + elem + ">", nil
		}
		return "Array<" + elem + ">", nil
	case model.Unknown:
		return "unknown", nil
	}
	return "", spec.NewEmitError(t.Info().Origin, "anonymous %s %s cannot be rendered", t.Kind(), id)
}

func primitiveTS(p model.Primitive) string {
	switch p.Prim {
	case model.PrimBool:
		return "boolean"
	case model.PrimInt, model.PrimFloat:
		return "number"
	}
	return "string"
}

func propertyKey(name string) string {
	if identRe.MatchString(name) {
		return name
	}
	return strconv.Quote(name)
}

func access(obj, name string) string {
	if identRe.MatchString(name) {
		return obj + "." + name
	}
	return obj + "[" + strconv.Quote(name) + "]"
}

type tsFile struct{ b strings.Builder }

func (f *tsFile) p(format string, args ...any) {
	fmt.Fprintf(&f.b, format, args...)
	f.b.WriteByte('\n')
}

func (f *tsFile) doc(indent, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	lines := strings.Split(strings.ReplaceAll(text, "*/", "* /"), "\n")
	if len(lines) == 1 {
		f.p("%s/** %s */", indent, lines[0])
		return
	}
	f.p("%s/**", indent)
	for _, l := range lines {
		f.p("%s * %s", indent, strings.TrimRight(l, " \t\r"))
	}
	f.p("%s */", indent)
}

func (f *tsFile) bytes() []byte {
	return []byte(generatedHeader + strings.TrimRight(f.b.String(), "\n") + "\n")
}

// renderModels writes one declaration per named type in graph order. TypeScript
// resolves forward references, so no dependency ordering is needed.
func (gen *generator) renderModels() ([]byte, error) {
	f := &tsFile{}
	for _, t := range gen.g.Named() {
		name := gen.typeNames[t.ID()]
		f.doc("", t.Info().Description)
		switch v := t.(type) {
		case model.Struct:
			if err := gen.renderInterface(f, name, v); err != nil {
				return nil, err
			}
		case model.Enum:
			gen.renderEnum(f, name, v)
		case model.Union:
			var alts []string
			for _, uv := range v.Variants {
				s, err := gen.tsType(uv.Type, "")
				if err != nil {
					return nil, err
				}
				alts = append(alts, s)
			}
			if len(alts) == 0 {
				return nil, spec.NewEmitError(v.Origin, "union %s has no variants", name)
			}
			if v.Tagged() {
				f.p("// Discriminated by %q.", v.Discriminator)
			}
			f.p("export type %s = %s;", name, strings.Join(alts, " | "))
		case model.Primitive:
			f.p("export type %s = %s;", name, primitiveTS(v))
		case model.Collection:
			elem, err := gen.tsType(v.Elem, "")
			if err != nil {
				return nil, err
			}
			if v.Coll == model.Map {
				f.p("export type %s = Record<string, %s>;", name, elem)
			} else {
				f.p("export type %s = Array<%s>;", name, elem)
			}
		case model.Unknown:
			f.p("export type %s = unknown;", name)
		}
		f.p("")
	}
	return f.bytes(), nil
}

func (gen *generator) renderInterface(f *tsFile, name string, s model.Struct) error {
	f.p("export interface %s {", name)
	for _, fd := range s.Fields {
		typ, err := gen.tsType(fd.Type, "")
		if err != nil {
			return err
		}
		if fd.Nullable {
			typ += " | null"
		}
		opt := ""
		if !fd.Required {
			opt = "?"
		}
		ro := ""
		if fd.ReadOnly {
			ro = "readonly "
		}
		f.doc("  ", fd.Description)
		f.p("  %s%s%s: %s;", ro, propertyKey(fd.Name), opt, typ)
	}
	if s.AdditionalProperties != "" {
		f.p("  [key: string]: unknown;")
	}
	f.p("}")
	return nil
}

func (gen *generator) renderEnum(f *tsFile, name string, e model.Enum) {
	if len(e.Variants) == 0 {
		f.p("export type %s = %s;", name, primitiveTS(model.Primitive{Prim: e.Base}))
		return
	}
	lits := make([]string, len(e.Variants))
	for i, v := range e.Variants {
		lits[i] = tsLiteral(v.Value)
	}
	f.p("export type %s = %s;", name, strings.Join(lits, " | "))
	f.p("export const %s = {", name)
	used := make(map[string]bool)
	for i, v := range e.Variants {
		key := model.Pascal(v.Name)
		if key == "" {
			key = "Value" + strconv.Itoa(i)
		}
		base := key
		for n := 2; used[key]; n++ {
			key = base + strconv.Itoa(n)
		}
		used[key] = true
		f.p("  %s: %s,", key, lits[i])
	}
	f.p("} as const;")
}

func tsLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case nil:
		return "null"
	}
	return strconv.Quote(fmt.Sprint(v))
}
