package npmemitter

import (
	"strconv"
	"strings"

	"github.com/mark3labs/swagger2client/internal/model"
	"github.com/mark3labs/swagger2client/internal/spec"
)

const clientRuntime = `export type QueryValue = string | number | boolean | Array<string | number | boolean> | undefined | null;

export interface SendOptions {
  query?: Record<string, QueryValue>;
  headers?: Record<string, string | undefined>;
  body?: unknown;
  contentType?: string;
}

export interface ClientOptions {
  baseUrl?: string;
  headers?: Record<string, string>;
  fetch?: typeof fetch;
}

/** Thrown for every response outside the 2xx range. */
export class ApiError extends Error {
  constructor(
    readonly status: number,
    readonly body: unknown,
  ) {
    super("unexpected response: " + status);
  }
}
`

const sendMethod = `  async send(method: string, path: string, opts: SendOptions = {}): Promise<unknown> {
    const url = new URL(this.baseUrl + path);
    for (const [key, value] of Object.entries(opts.query ?? {})) {
      if (value === undefined || value === null) continue;
      if (Array.isArray(value)) {
        for (const v of value) url.searchParams.append(key, String(v));
      } else {
        url.searchParams.set(key, String(value));
      }
    }
    const headers: Record<string, string> = { Accept: "application/json", ...this.options.headers };
    for (const [key, value] of Object.entries(opts.headers ?? {})) {
      if (value !== undefined) headers[key] = value;
    }
    let body: BodyInit | undefined;
    if (opts.body !== undefined) {
      const fields = opts.body as Record<string, unknown>;
      if (opts.contentType === "application/x-www-form-urlencoded") {
        const form = new URLSearchParams();
        for (const [key, value] of Object.entries(fields)) {
          if (value !== undefined) form.set(key, String(value));
        }
        body = form.toString();
        headers["Content-Type"] = opts.contentType;
      } else if (opts.contentType?.startsWith("multipart/")) {
        const form = new FormData();
        for (const [key, value] of Object.entries(fields)) {
          if (value !== undefined) form.append(key, value instanceof Blob ? value : String(value));
        }
        body = form;
      } else if (opts.body instanceof Blob) {
        body = opts.body;
        headers["Content-Type"] = opts.contentType ?? "application/octet-stream";
      } else {
        body = JSON.stringify(opts.body);
        headers["Content-Type"] = opts.contentType ?? "application/json";
      }
    }
    const res = await (this.options.fetch ?? fetch)(url.toString(), { method, headers, body });
    const text = await res.text();
    let data: unknown = text;
    if (text !== "" && (res.headers.get("content-type") ?? "").includes("json")) {
      data = JSON.parse(text);
    }
    if (!res.ok) throw new ApiError(res.status, data);
    return text === "" ? undefined : data;
  }
`

func (gen *generator) renderClient(version string) ([]byte, error) {
	f := &tsFile{}
	f.p(`import * as models from "./models";`)
	f.p("")
	f.p("export const API_VERSION = %s;", strconv.Quote(version))
	f.p("export const DEFAULT_BASE_URL = %s;", strconv.Quote(strings.TrimRight(gen.api.BaseURL, "/")))
	f.p("")
	f.b.WriteString(clientRuntime)
	f.p("")

	title := strings.TrimSpace(gen.api.Title)
	if title != "" {
		f.doc("", "Entry point of the "+title+" API.")
	}
	f.p("export class Client {")
	for _, grp := range gen.api.Groups {
		f.p("  readonly %s: %s;", gen.groupProp[grp.Name], gen.groupClass[grp.Name])
	}
	f.p("  private readonly baseUrl: string;")
	f.p("")
	f.p("  constructor(private readonly options: ClientOptions = {}) {")
	f.p("    this.baseUrl = (options.baseUrl ?? DEFAULT_BASE_URL).replace(/\\/+$/, \"\");")
	for _, grp := range gen.api.Groups {
		f.p("    this.%s = new %s(this);", gen.groupProp[grp.Name], gen.groupClass[grp.Name])
	}
	f.p("  }")
	f.p("")
	f.b.WriteString(sendMethod)
	f.p("}")

	for _, grp := range gen.api.Groups {
		f.p("")
		f.p("export class %s {", gen.groupClass[grp.Name])
		f.p("  constructor(private readonly client: Client) {}")
		used := make(map[string]bool)
		for _, op := range grp.Operations {
			name := model.Camel(op.Name)
			if name == "" {
				name = model.Camel(model.FallbackOperationName(op.Method, op.Path))
			}
			base := name
			for i := 2; used[name] || name == "constructor"; i++ {
				name = base + strconv.Itoa(i)
			}
			used[name] = true
			if err := gen.renderMethod(f, name, op); err != nil {
				return nil, err
			}
		}
		f.p("}")
	}
	return f.bytes(), nil
}

func (gen *generator) serializable(id model.TypeID) bool {
	t, ok := gen.g.Get(id)
	if !ok {
		return false
	}
	switch v := t.(type) {
	case model.Primitive, model.Enum:
		return true
	case model.Collection:
		if v.Coll != model.Sequence {
			return false
		}
		e, ok := gen.g.Get(v.Elem)
		return ok && (e.Kind() == model.KindPrimitive || e.Kind() == model.KindEnum)
	}
	return false
}

func (gen *generator) isList(id model.TypeID) bool {
	t, ok := gen.g.Get(id)
	if !ok {
		return false
	}
	c, ok := t.(model.Collection)
	return ok && c.Coll == model.Sequence
}

func (gen *generator) renderMethod(f *tsFile, name string, op *model.Operation) error {
	var fields []string
	anyRequired := false
	var bodyParam *model.Param
	var query, headers, cookies, form []model.Param
	for i, p := range op.Params {
		if p.Location == model.InBody {
			bodyParam = &op.Params[i]
			continue
		}
		if !gen.serializable(p.Type) {
			return spec.NewEmitError(op.Origin, "%s %s: %s parameter %q has %s type %s and cannot be serialized",
				op.Method, op.Path, p.Location, p.Name, kindName(gen.g, p.Type), p.Type)
		}
		typ, err := gen.tsType(p.Type, "models.")
		if err != nil {
			return err
		}
		if p.Location == model.InForm && primitiveBytes(gen.g, p.Type) {
			typ = "Blob"
		}
		opt := "?"
		if p.Required {
			opt = ""
			anyRequired = true
		}
		fields = append(fields, propertyKey(p.Name)+opt+": "+typ)
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

	var args []string
	if len(fields) > 0 {
		arg := "params: { " + strings.Join(fields, "; ") + " }"
		if !anyRequired {
			arg += " = {}"
		}
		args = append(args, arg)
	}
	if bodyParam != nil {
		typ, err := gen.tsType(bodyParam.Type, "models.")
		if err != nil {
			return err
		}
		if primitiveBytes(gen.g, bodyParam.Type) {
			typ = "Blob"
		}
		if bodyParam.Required {
			args = append(args, "body: "+typ)
		} else {
			args = append(args, "body?: "+typ)
		}
	}

	result := "void"
	success, ok := op.Success()
	if ok && success.Type != "" {
		typ, err := gen.tsType(success.Type, "models.")
		if err != nil {
			return err
		}
		result = typ
	}

	f.p("")
	var doc []string
	if op.Summary != "" {
		doc = append(doc, op.Summary)
	}
	if op.Description != "" && op.Description != op.Summary {
		doc = append(doc, op.Description)
	}
	doc = append(doc, op.Method+" "+op.Path)
	if op.Deprecated {
		doc = append(doc, "@deprecated")
	}
	f.doc("  ", strings.Join(doc, "\n\n"))
	f.p("  async %s(%s): Promise<%s> {", name, strings.Join(args, ", "), result)

	path, err := pathTemplate(op)
	if err != nil {
		return err
	}
	var opts []string
	if len(query) > 0 {
		var entries []string
		for _, p := range query {
			val := access("params", p.Name)
			if gen.isList(p.Type) && !p.Explode {
				val += "?.join(\",\")"
			}
			entries = append(entries, propertyKey(p.Name)+": "+val)
		}
		opts = append(opts, "query: { "+strings.Join(entries, ", ")+" }")
	}
	if len(headers)+len(cookies) > 0 {
		var entries []string
		for _, p := range headers {
			entries = append(entries, propertyKey(p.Name)+": "+stringify(access("params", p.Name), p.Required))
		}
		if len(cookies) > 0 {
			var parts []string
			for _, p := range cookies {
				parts = append(parts, strconv.Quote(p.Name+"=")+" + "+access("params", p.Name))
			}
			entries = append(entries, "Cookie: ["+strings.Join(parts, ", ")+"].join(\"; \")")
		}
		opts = append(opts, "headers: { "+strings.Join(entries, ", ")+" }")
	}
	ct := ""
	if op.RequestBody != nil {
		ct = op.RequestBody.ContentType
	}
	switch {
	case len(form) > 0:
		var entries []string
		for _, p := range form {
			entries = append(entries, propertyKey(p.Name)+": "+access("params", p.Name))
		}
		opts = append(opts, "body: { "+strings.Join(entries, ", ")+" }")
	case bodyParam != nil:
		opts = append(opts, "body")
	}
	if ct != "" && (len(form) > 0 || bodyParam != nil) {
		opts = append(opts, "contentType: "+strconv.Quote(ct))
	}

	call := "this.client.send(" + strconv.Quote(op.Method) + ", " + path
	if len(opts) > 0 {
		call += ", { " + strings.Join(opts, ", ") + " }"
	}
	call += ")"
	if result == "void" {
		f.p("    await %s;", call)
	} else {
		f.p("    return (await %s) as %s;", call, result)
	}
	f.p("  }")
	return nil
}

func stringify(expr string, required bool) string {
	if required {
		return "String(" + expr + ")"
	}
	return expr + " === undefined ? undefined : String(" + expr + ")"
}

func pathTemplate(op *model.Operation) (string, error) {
	declared := make(map[string]bool)
	for _, p := range op.Params {
		if p.Location == model.InPath {
			declared[p.Name] = true
		}
	}
	var b strings.Builder
	b.WriteByte('`')
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(op.Path, -1) {
		b.WriteString(escapeTemplate(op.Path[last:m[0]]))
		name := op.Path[m[2]:m[3]]
		if !declared[name] {
			return "", spec.NewEmitError(op.Origin, "%s %s: no argument for path placeholder {%s}", op.Method, op.Path, name)
		}
		b.WriteString("${encodeURIComponent(String(" + access("params", name) + "))}")
		last = m[1]
	}
	b.WriteString(escapeTemplate(op.Path[last:]))
	b.WriteByte('`')
	return b.String(), nil
}

func escapeTemplate(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`", "${", "\\${")
	return r.Replace(s)
}

func primitiveBytes(g *model.Graph, id model.TypeID) bool {
	t, ok := g.Get(id)
	if !ok {
		return false
	}
	p, ok := t.(model.Primitive)
	return ok && p.Prim == model.PrimBytes
}

func kindName(g *model.Graph, id model.TypeID) string {
	if t, ok := g.Get(id); ok {
		return t.Kind().String()
	}
	return "undefined"
}
