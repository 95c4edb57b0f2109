package goemitter

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/swagger2client/internal/model"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// Names the generated method bodies declare themselves.
var reservedLocals = map[string]bool{
	"ctx": true, "c": true, "path": true, "query": true, "header": true, "reqBody": true,
	"contentType": true, "resp": true, "data": true, "err": true, "out": true, "apiErr": true,
	"form": true, "files": true, "fields": true, "raw": true, "v": true, "k": true, "vs": true,
	"s": true,
}

// Package-scope names a parameter must not shadow: the imports a generated
// file may carry, the predeclared identifiers and the client.go helpers.
var fileScopeNames = map[string]bool{
	"bytes": true, "context": true, "fmt": true, "http": true, "io": true, "json": true,
	"multipart": true, "strings": true, "time": true, "url": true,

	"any": true, "bool": true, "byte": true, "comparable": true, "complex64": true, "complex128": true,
	"error": true, "float32": true, "float64": true, "int": true, "int8": true, "int16": true,
	"int32": true, "int64": true, "rune": true, "string": true, "uint": true, "uint8": true,
	"uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"true": true, "false": true, "iota": true, "nil": true,
	"append": true, "cap": true, "clear": true, "close": true, "complex": true, "copy": true,
	"delete": true, "imag": true, "len": true, "make": true, "max": true, "min": true,
	"new": true, "panic": true, "print": true, "println": true, "real": true, "recover": true,

	"decodePayload": true, "encodeMultipart": true, "formFields": true, "joinValues": true,
	"newAPIError": true, "strictUnmarshal": true,
}

// paramIdent reports whether ident can name a method argument.
func paramIdent(ident string) bool {
	return !isKeyword(ident) && !reservedLocals[ident] && !fileScopeNames[ident]
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// goParam is one method argument.
type goParam struct {
	model.Param
	ident   string
	typ     string
	pointer bool
}

func (gen *generator) renderGroup(grp model.Group) ([]byte, error) {
	f := newFile(gen.pkg)
	typeName := gen.groupTypes[grp.Name]
	f.doc("", typeName, "groups the "+grp.Name+" operations.")
	f.p("type %s struct {", typeName)
	f.p("\tclient *Client")
	f.p("}")
	f.blank()
	used := make(map[string]bool)
	for _, op := range grp.Operations {
		method := model.Pascal(op.Name)
		if method == "" {
			method = model.FallbackOperationName(op.Method, op.Path)
		}
		base := method
		for i := 2; used[method]; i++ {
			method = base + strconv.Itoa(i)
		}
		used[method] = true
		if err := gen.renderOperation(f, typeName, method, op); err != nil {
			return nil, err
		}
	}
	return f.bytes(), nil
}

func (gen *generator) operationParams(f *file, op *model.Operation) ([]goParam, *goParam, error) {
	var params []goParam
	var body *goParam
	idents := make(map[string]bool)
	for i, p := range op.Params {
		ident := model.Camel(p.Name)
		if ident == "" {
			ident = "param" + strconv.Itoa(i)
		}
		if !paramIdent(ident) {
			ident += "Param"
		}
		base := ident
		for n := 2; idents[ident]; n++ {
			ident = base + strconv.Itoa(n)
		}
		idents[ident] = true

		typ, err := gen.goType(f, p.Type)
		if err != nil {
			return nil, nil, err
		}
		gp := goParam{Param: p, ident: ident, typ: typ}
		if p.Location == model.InBody {
			gp.pointer = !gen.nilable(p.Type)
			if gp.pointer {
				gp.typ = "*" + typ
			}
			body = &gp
			continue
		}
		if !gen.scalar(p.Type) && !gen.scalarList(p.Type) {
			return nil, nil, spec.NewEmitError(op.Origin, "%s %s: %s parameter %q has %s type %s and cannot be serialized",
				op.Method, op.Path, p.Location, p.Name, gen.kindOf(p.Type), p.Type)
		}
		if !p.Required && p.Location != model.InPath && !gen.nilable(p.Type) {
			gp.pointer = true
			gp.typ = "*" + typ
		}
		params = append(params, gp)
	}
	return params, body, nil
}

// valueString renders expr, a scalar of type id, as a string expression.
func (gen *generator) valueString(f *file, expr string, id model.TypeID) string {
	t, _ := gen.g.Get(id)
	switch v := t.(type) {
	case model.Primitive:
		switch v.Prim {
		case model.PrimString, model.PrimDate:
			if _, named := gen.typeNames[id]; named {
				return "string(" + expr + ")"
			}
			return expr
		case model.PrimBytes:
			return "string(" + expr + ")"
		case model.PrimDateTime:
			f.use("time")
			return expr + ".Format(time.RFC3339)"
		}
	case model.Enum:
		if v.Base == model.PrimString {
			return "string(" + expr + ")"
		}
	case model.Collection:
		return "joinValues(" + expr + ")"
	}
	f.use("fmt")
	return "fmt.Sprint(" + expr + ")"
}

func (gen *generator) elemOf(id model.TypeID) model.TypeID {
	if t, ok := gen.g.Get(id); ok {
		if c, ok := t.(model.Collection); ok {
			return c.Elem
		}
	}
	return ""
}

// setValues writes the statements storing p into the url.Values or http.Header
// named target with the given method (Set or Add).
func (gen *generator) setValues(f *file, target string, p goParam, wire string) {
	expr := p.ident
	indent := "\t"
	switch {
	case gen.scalarList(p.Type) && p.Explode && target != "header":
		f.p("\tfor _, v := range %s {", expr)
		f.p("\t\t%s.Add(%q, %s)", target, wire, gen.valueString(f, "v", gen.elemOf(p.Type)))
		f.p("\t}")
		return
	case gen.nilable(p.Type):
		f.p("\tif len(%s) > 0 {", expr)
		indent = "\t\t"
	case p.pointer:
		f.p("\tif %s != nil {", expr)
		expr = "(*" + expr + ")"
		indent = "\t\t"
	}
	f.p("%s%s.Set(%q, %s)", indent, target, wire, gen.valueString(f, expr, p.Type))
	if indent != "\t" {
		f.p("\t}")
	}
}

func isMultipart(ct string) bool { return strings.HasPrefix(ct, "multipart/") }

func isURLForm(ct string) bool { return ct == "application/x-www-form-urlencoded" }

func (gen *generator) isBytes(id model.TypeID) bool {
	t, ok := gen.g.Get(id)
	if !ok {
		return false
	}
	p, ok := t.(model.Primitive)
	return ok && p.Prim == model.PrimBytes
}

func (gen *generator) isString(id model.TypeID) bool {
	t, ok := gen.g.Get(id)
	if !ok {
		return false
	}
	p, ok := t.(model.Primitive)
	return ok && p.Prim == model.PrimString
}

func (gen *generator) renderOperation(f *file, recv, method string, op *model.Operation) error {
	params, body, err := gen.operationParams(f, op)
	if err != nil {
		return err
	}
	f.use("context")
	f.use("fmt")
	label := recv + "." + method

	success, hasSuccess := op.Success()
	hasOut := hasSuccess && success.Type != ""
	outType := ""
	if hasOut {
		outType, err = gen.goType(f, success.Type)
		if err != nil {
			return err
		}
		if !gen.nilable(success.Type) {
			outType = "*" + outType
		}
	}
	ret := func(vals ...string) string {
		if hasOut {
			return "return nil, " + strings.Join(vals, ", ")
		}
		return "return " + strings.Join(vals, ", ")
	}

	args := []string{"ctx context.Context"}
	for _, p := range params {
		args = append(args, p.ident+" "+p.typ)
	}
	if body != nil {
		args = append(args, body.ident+" "+body.typ)
	}
	results := "error"
	if hasOut {
		results = "(" + outType + ", error)"
	}

	gen.operationDoc(f, method, op)
	f.p("func (c *%s) %s(%s) %s {", recv, method, strings.Join(args, ", "), results)

	pathExpr, err := gen.pathExpr(f, op, params)
	if err != nil {
		return err
	}
	f.p("\tpath := %s", pathExpr)

	queryArg, headerArg := "nil", "nil"
	var query, headers, cookies, form []goParam
	for _, p := range params {
		switch p.Location {
		case model.InQuery:
			query = append(query, p)
		case model.InHeader:
			headers = append(headers, p)
		case model.InCookie:
			cookies = append(cookies, p)
		case model.InForm:
			form = append(form, p)
		}
	}
	if len(query) > 0 {
		f.use("net/url")
		queryArg = "query"
		f.p("\tquery := url.Values{}")
		for _, p := range query {
			gen.setValues(f, "query", p, p.Name)
		}
	}
	if len(headers)+len(cookies) > 0 {
		f.use("net/http")
		headerArg = "header"
		f.p("\theader := http.Header{}")
		for _, p := range headers {
			gen.setValues(f, "header", p, p.Name)
		}
		for _, p := range cookies {
			gen.setCookie(f, p)
		}
	}

	bodyArg, ctArg := "nil", `""`
	ct := ""
	if op.RequestBody != nil {
		ct = op.RequestBody.ContentType
	}
	switch {
	case len(form) > 0 || (body != nil && (isMultipart(ct) || isURLForm(ct))):
		f.use("net/url")
		bodyArg, ctArg = "reqBody", "contentType"
		f.p("\tform := url.Values{}")
		if body != nil {
			gen.usesFormFields = true
			f.p("\tif %s != nil {", body.ident)
			f.p("\t\tfields, err := formFields(%s)", body.ident)
			f.p("\t\tif err != nil {")
			f.p("\t\t\t%s", ret(`fmt.Errorf("`+label+`: encode body: %w", err)`))
			f.p("\t\t}")
			f.p("\t\tfor k, vs := range fields {")
			f.p("\t\t\tform[k] = vs")
			f.p("\t\t}")
			f.p("\t}")
		}
		var files []goParam
		for _, p := range form {
			if isMultipart(ct) && gen.isBytes(p.Type) {
				files = append(files, p)
				continue
			}
			gen.setValues(f, "form", p, p.Name)
		}
		if isMultipart(ct) {
			gen.usesMultipart = true
			filesArg := "nil"
			if len(files) > 0 {
				filesArg = "files"
				f.p("\tfiles := map[string][]byte{}")
				for _, p := range files {
					f.p("\tif %s != nil {", p.ident)
					f.p("\t\tfiles[%q] = %s", p.Name, p.ident)
					f.p("\t}")
				}
			}
			f.p("\treqBody, contentType, err := encodeMultipart(form, %s)", filesArg)
			f.p("\tif err != nil {")
			f.p("\t\t%s", ret(`fmt.Errorf("`+label+`: encode body: %w", err)`))
			f.p("\t}")
		} else {
			f.use("io")
			f.use("strings")
			f.p("\tvar reqBody io.Reader = strings.NewReader(form.Encode())")
			f.p("\tcontentType := %q", "application/x-www-form-urlencoded")
		}
	case body != nil:
		f.use("io")
		f.use("bytes")
		if ct == "" {
			ct = "application/json"
		}
		bodyArg, ctArg = "reqBody", strconv.Quote(ct)
		f.p("\tvar reqBody io.Reader")
		f.p("\tif %s != nil {", body.ident)
		if gen.isBytes(body.Type) {
			f.p("\t\treqBody = bytes.NewReader(%s)", body.ident)
		} else {
			f.use("encoding/json")
			f.p("\t\traw, err := json.Marshal(%s)", body.ident)
			f.p("\t\tif err != nil {")
			f.p("\t\t\t%s", ret(`fmt.Errorf("`+label+`: encode body: %w", err)`))
			f.p("\t\t}")
			f.p("\t\treqBody = bytes.NewReader(raw)")
		}
		f.p("\t}")
	}

	f.p("\tresp, data, err := c.client.do(ctx, %q, path, %s, %s, %s, %s)", op.Method, queryArg, headerArg, bodyArg, ctArg)
	f.p("\tif err != nil {")
	f.p("\t\t%s", ret(`fmt.Errorf("`+label+`: %w", err)`))
	f.p("\t}")
	if err := gen.errorBlock(f, op, ret); err != nil {
		return err
	}

	if !hasOut {
		f.p("\treturn nil")
		f.p("}")
		f.blank()
		return nil
	}
	f.p("\tif len(data) == 0 {")
	f.p("\t\treturn nil, nil")
	f.p("\t}")
	elemType := strings.TrimPrefix(outType, "*")
	switch {
	case gen.isBytes(success.Type):
		f.p("\treturn %s(data), nil", elemType)
	case gen.isString(success.Type) && !strings.Contains(success.ContentType, "json"):
		f.p("\tout := %s(data)", elemType)
		f.p("\treturn &out, nil")
	default:
		f.use("encoding/json")
		f.p("\tvar out %s", elemType)
		f.p("\tif err := json.Unmarshal(data, &out); err != nil {")
		f.p("\t\treturn nil, fmt.Errorf(\"%s: decode response: %%w\", err)", label)
		f.p("\t}")
		if strings.HasPrefix(outType, "*") {
			f.p("\treturn &out, nil")
		} else {
			f.p("\treturn out, nil")
		}
	}
	f.p("}")
	f.blank()
	return nil
}

func (gen *generator) setCookie(f *file, p goParam) {
	expr := p.ident
	indent := "\t"
	switch {
	case gen.nilable(p.Type):
		f.p("\tif len(%s) > 0 {", expr)
		indent = "\t\t"
	case p.pointer:
		f.p("\tif %s != nil {", expr)
		expr = "(*" + expr + ")"
		indent = "\t\t"
	}
	f.p("%sheader.Add(\"Cookie\", %q+%s)", indent, p.Name+"=", gen.valueString(f, expr, p.Type))
	if indent != "\t" {
		f.p("\t}")
	}
}

func (gen *generator) operationDoc(f *file, method string, op *model.Operation) {
	summary := strings.TrimSpace(op.Summary)
	if summary == "" {
		summary = "calls " + op.Method + " " + op.Path + "."
	}
	f.doc("", method, summary)
	if d := strings.TrimSpace(op.Description); d != "" && d != summary {
		f.p("//")
		f.doc("", "", d)
	}
	f.p("//")
	f.p("//\t%s %s", op.Method, op.Path)
	if op.Deprecated {
		f.p("//")
		f.p("// Deprecated: the API marks this operation as deprecated.")
	}
}

// pathExpr builds the request path from the template and the path arguments.
func (gen *generator) pathExpr(f *file, op *model.Operation, params []goParam) (string, error) {
	byName := make(map[string]goParam)
	for _, p := range params {
		if p.Location == model.InPath {
			byName[p.Name] = p
		}
	}
	var parts []string
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(op.Path, -1) {
		if m[0] > last {
			parts = append(parts, strconv.Quote(op.Path[last:m[0]]))
		}
		name := op.Path[m[2]:m[3]]
		p, ok := byName[name]
		if !ok {
			return "", spec.NewEmitError(op.Origin, "%s %s: no argument for path placeholder {%s}", op.Method, op.Path, name)
		}
		f.use("net/url")
		parts = append(parts, "url.PathEscape("+gen.valueString(f, p.ident, p.Type)+")")
		last = m[1]
	}
	if last < len(op.Path) || len(parts) == 0 {
		parts = append(parts, strconv.Quote(op.Path[last:]))
	}
	return strings.Join(parts, " + "), nil
}

// statusCase is one arm of the error payload switch.
type statusCase struct {
	cond string
	typ  string
	rank int
}

func (gen *generator) errorBlock(f *file, op *model.Operation, ret func(...string) string) error {
	var cases []statusCase
	defaultType := ""
	for _, ev := range op.Errors {
		if ev.Type == "" {
			continue
		}
		typ, err := gen.goType(f, ev.Type)
		if err != nil {
			return err
		}
		switch ev.Kind {
		case model.ErrorDefault:
			defaultType = typ
		case model.ErrorStatus:
			if code, err := strconv.Atoi(ev.Status); err == nil {
				cases = append(cases, statusCase{cond: "resp.StatusCode == " + strconv.Itoa(code), typ: typ})
			} else if len(ev.Status) == 3 && ev.Status[0] >= '1' && ev.Status[0] <= '5' {
				cases = append(cases, statusCase{cond: "resp.StatusCode/100 == " + ev.Status[:1], typ: typ, rank: 1})
			}
		}
	}
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].rank < cases[j].rank })

	f.p("\tif resp.StatusCode < 200 || resp.StatusCode > 299 {")
	if len(cases) == 0 && defaultType == "" {
		f.p("\t\t%s", ret("newAPIError(resp, data)"))
		f.p("\t}")
		return nil
	}
	f.p("\t\tapiErr := newAPIError(resp, data)")
	f.p("\t\tswitch {")
	for _, c := range cases {
		f.p("\t\tcase %s:", c.cond)
		f.p("\t\t\tapiErr.Payload = decodePayload[%s](data)", c.typ)
	}
	if defaultType != "" {
		f.p("\t\tdefault:")
		f.p("\t\t\tapiErr.Payload = decodePayload[%s](data)", defaultType)
	}
	f.p("\t\t}")
	f.p("\t\t%s", ret("apiErr"))
	f.p("\t}")
	return nil
}
