package model

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/swagger2client/internal/diag"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// ParamLocation is where a parameter travels in the request.
type ParamLocation string

const (
	InPath   ParamLocation = "path"
	InQuery  ParamLocation = "query"
	InHeader ParamLocation = "header"
	InCookie ParamLocation = "cookie"
	InForm   ParamLocation = "formData"
	InBody   ParamLocation = "body"
)

var locationRank = map[ParamLocation]int{
	InPath:   0,
	InQuery:  1,
	InHeader: 2,
	InCookie: 3,
	InForm:   4,
	InBody:   5,
}

// Param is one operation input. The request body, when present, is the last Param.
type Param struct {
	Name        string
	Location    ParamLocation
	Type        TypeID
	Required    bool
	Description string
	// Explode sends array query values as repeated keys instead of one comma-joined value.
	Explode     bool
	Synthesized bool
}

// Body is the request payload.
type Body struct {
	Type        TypeID
	Required    bool
	ContentType string
}

// Response is one declared response. Type is empty when the response has no content.
type Response struct {
	Status      string
	Type        TypeID
	Description string
	ContentType string
}

// IsSuccess reports a 2xx status.
func (r Response) IsSuccess() bool {
	return len(r.Status) == 3 && r.Status[0] == '2'
}

// ErrorKind classifies an ErrorVariant.
type ErrorKind int

const (
	ErrorStatus ErrorKind = iota + 1
	ErrorDefault
	ErrorTransport
)

// ErrorVariant is one way an operation call can fail.
type ErrorVariant struct {
	Kind   ErrorKind
	Status string
	Type   TypeID
}

// Operation describes one callable endpoint.
type Operation struct {
	ID          string
	Name        string
	Group       string
	Tags        []string
	Method      string // upper case
	Path        string
	PathParams  []string
	Params      []Param
	RequestBody *Body
	Responses   []Response
	Errors      []ErrorVariant
	Summary     string
	Description string
	Deprecated  bool
	Origin      spec.Origin
}

// Success returns the response a successful call decodes into: the lowest 2xx status
// carrying content, else the lowest 2xx status.
func (o *Operation) Success() (Response, bool) {
	var best Response
	found := false
	for _, r := range o.Responses {
		if !r.IsSuccess() {
			continue
		}
		switch {
		case !found:
			best, found = r, true
		case best.Type == "" && r.Type != "":
			best = r
		case (best.Type == "") == (r.Type == "") && r.Status < best.Status:
			best = r
		}
	}
	return best, found
}

// ParamsIn returns the parameters at loc in binding order.
func (o *Operation) ParamsIn(loc ParamLocation) []Param {
	var out []Param
	for _, p := range o.Params {
		if p.Location == loc {
			out = append(out, p)
		}
	}
	return out
}

var methodOrder = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

type opSite struct {
	doc    *spec.Document
	path   string
	method string
	item   *spec.Node
	op     *spec.Node
	group  string
	name   string
}

// forEachOperation visits the operations of doc in declaration order, skipping filtered ones.
func forEachOperation(res *spec.Resolver, doc *spec.Document, cfg *buildConfig, fn func(opSite) error) error {
	for _, pe := range doc.Root.Get("paths").Entries() {
		if strings.HasPrefix(pe.Key, "x-") {
			continue
		}
		r, err := res.ResolveNode(pe.Value)
		if err != nil {
			return spec.NewOperationError("", pe.Key, err)
		}
		item := r.Node
		if item == nil {
			continue
		}
		for _, method := range methodOrder {
			op := item.Get(method)
			if op.Kind() != spec.MappingKind {
				continue
			}
			if !cfg.allow(method, pe.Key, op.Strings("tags")) {
				continue
			}
			s := opSite{doc: doc, path: pe.Key, method: method, item: item, op: op}
			s.group, s.name = operationNames(op, method, pe.Key)
			if err := fn(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// operationNames derives the group and method name of an operation. The first tag
// names the group; without tags a "Group_Name" operationId supplies it.
func operationNames(op *spec.Node, method, path string) (group, name string) {
	id := op.Str("operationId")
	idGroup, idName := SplitOperationID(id)
	if tags := op.Strings("tags"); len(tags) > 0 {
		group = Pascal(tags[0])
	} else {
		group = Pascal(idGroup)
	}
	switch {
	case id == "":
		name = FallbackOperationName(method, path)
	case idGroup != "" && Pascal(idGroup) == group:
		name = Pascal(idName)
	default:
		name = Pascal(id)
	}
	if name == "" {
		name = FallbackOperationName(method, path)
	}
	return group, name
}

type paramSite struct {
	node *spec.Node
	name string
	in   string
}

// mergedParams returns path-item parameters overridden by operation parameters with
// the same location and name.
func mergedParams(res *spec.Resolver, item, op *spec.Node) ([]paramSite, error) {
	var out []paramSite
	index := make(map[string]int)
	for _, list := range []*spec.Node{item.Get("parameters"), op.Get("parameters")} {
		for _, raw := range list.Items() {
			r, err := res.ResolveNode(raw)
			if err != nil {
				return nil, err
			}
			n := r.Node
			if n == nil {
				if n, err = res.Lookup(r.Key); err != nil {
					return nil, err
				}
			}
			p := paramSite{node: n, name: n.Str("name"), in: n.Str("in")}
			if p.name == "" || p.in == "" {
				return nil, &spec.SpecError{Code: spec.ParseError, Message: "parameter requires name and in", Location: n.Doc(), JSONPointer: n.Pointer()}
			}
			key := paramKey(p.in, p.name)
			if i, ok := index[key]; ok {
				out[i] = p
				continue
			}
			index[key] = len(out)
			out = append(out, p)
		}
	}
	return out, nil
}

func paramKey(in, name string) string { return in + ":" + name }

// paramSchema returns the node describing a parameter's value: its schema, the schema
// of its content, or, for Swagger 2 parameters, the parameter itself.
func paramSchema(p paramSite) *spec.Node {
	if s := p.node.Get("schema"); s != nil {
		return s
	}
	if c := p.node.Get("content"); c != nil {
		if _, media := selectMedia(c); media != nil && media.Get("schema") != nil {
			return media.Get("schema")
		}
	}
	return p.node
}

// selectMedia prefers application/json, then any JSON flavour, then the first declared type.
func selectMedia(content *spec.Node) (string, *spec.Node) {
	entries := content.Entries()
	if len(entries) == 0 {
		return "", nil
	}
	for _, e := range entries {
		if mediaBase(e.Key) == "application/json" {
			return e.Key, e.Value
		}
	}
	for _, e := range entries {
		if b := mediaBase(e.Key); strings.HasSuffix(b, "+json") || strings.HasSuffix(b, "/json") {
			return e.Key, e.Value
		}
	}
	return entries[0].Key, entries[0].Value
}

func mediaBase(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

func bodyKey(op *spec.Node) spec.RefKey {
	return spec.RefKey{Doc: op.Doc(), Pointer: op.Pointer() + "/parameters/x-body"}
}

func responseHint(opName, status string, seenSuccess bool) string {
	switch {
	case status == "default":
		return opName + "DefaultResponse"
	case len(status) == 3 && status[0] == '2' && !seenSuccess:
		return opName + "Response"
	}
	return opName + "Response" + status
}

// modelOperation models every schema an operation uses so the operation modeler can
// later bind them without touching the graph.
func (m *schemaModeler) modelOperation(s opSite) error {
	hint := s.group + s.name
	params, err := mergedParams(m.res, s.item, s.op)
	if err != nil {
		return err
	}
	var bodies []paramSite
	for _, p := range params {
		if p.in == "body" {
			bodies = append(bodies, p)
			continue
		}
		if _, err := m.model(paramSchema(p), hint+Pascal(p.name)); err != nil {
			return err
		}
	}
	switch {
	case len(bodies) == 1:
		if _, err := m.model(paramSchema(bodies[0]), hint+"Request"); err != nil {
			return err
		}
	case len(bodies) > 1:
		if err := m.mergeBodies(s, hint, bodies); err != nil {
			return err
		}
	}
	if rb := s.op.Get("requestBody"); rb != nil {
		r, err := m.res.ResolveNode(rb)
		if err != nil {
			return err
		}
		if _, media := selectMedia(r.Node.Get("content")); media != nil && media.Get("schema") != nil {
			if _, err := m.model(media.Get("schema"), hint+"Request"); err != nil {
				return err
			}
		}
	}
	seenSuccess := false
	for _, e := range s.op.Get("responses").Entries() {
		if strings.HasPrefix(e.Key, "x-") {
			continue
		}
		schema, _, err := responseSchema(m.res, e.Value)
		if err != nil {
			return err
		}
		if schema == nil {
			continue
		}
		if _, err := m.model(schema, responseHint(hint, e.Key, seenSuccess)); err != nil {
			return err
		}
		if len(e.Key) == 3 && e.Key[0] == '2' {
			seenSuccess = true
		}
	}
	return nil
}

// mergeBodies folds several Swagger 2 body parameters into one object with a field per parameter.
func (m *schemaModeler) mergeBodies(s opSite, hint string, bodies []paramSite) error {
	key := bodyKey(s.op)
	if _, ok := m.b.g.byKey[key]; ok {
		return nil
	}
	fs := newFieldSet()
	for _, p := range bodies {
		tid, err := m.model(paramSchema(p), hint+Pascal(p.name))
		if err != nil {
			return err
		}
		fs.merge(Field{Name: p.name, Type: tid, Required: p.node.Flag("required"), Description: p.node.Str("description")})
	}
	m.diag.Info(diag.CodeUnsupportedMedia, s.op.Origin(), "%d body parameters merged into one request object", len(bodies))
	st := Struct{
		Meta:   Meta{TypeID: TypeID(key.String()), Name: m.b.claimName(hint + "Body"), Origin: s.op.Origin()},
		Fields: fs.fields,
	}
	m.b.link(key, m.b.put(st))
	return nil
}

// responseSchema resolves a response object and returns its schema node, if any.
func responseSchema(res *spec.Resolver, raw *spec.Node) (*spec.Node, string, error) {
	r, err := res.ResolveNode(raw)
	if err != nil {
		return nil, "", err
	}
	n := r.Node
	if n == nil {
		return nil, "", nil
	}
	if s := n.Get("schema"); s != nil {
		return s, "application/json", nil
	}
	ct, media := selectMedia(n.Get("content"))
	if media == nil || media.Get("schema") == nil {
		return nil, ct, nil
	}
	return media.Get("schema"), ct, nil
}

// BuildOperations builds one descriptor per operation of the input documents against
// a completed graph. Operations are modeled concurrently; the result keeps
// declaration order and names are unique within each group.
func BuildOperations(ctx context.Context, res *spec.Resolver, g *Graph, opts ...BuildOption) ([]*Operation, error) {
	cfg := newBuildConfig(opts)
	d := diag.FromContext(ctx)
	var sites []opSite
	for _, doc := range res.Documents().Inputs() {
		err := forEachOperation(res, doc, cfg, func(s opSite) error {
			sites = append(sites, s)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]*Operation, len(sites))
	errs := make([]error, len(sites))
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range sites {
		eg.Go(func() error {
			op, err := buildOperation(res, g, d, s)
			if err != nil {
				errs[i] = spec.NewOperationError(s.method, s.path, err)
				return errs[i]
			}
			out[i] = op
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		// Report the first failure in declaration order, not the first to finish.
		for _, e := range errs {
			if e != nil {
				return nil, e
			}
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assignNames(out)
	return out, nil
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// PathPlaceholders returns the parameter names of a path template in order.
func PathPlaceholders(path string) []string {
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(path, -1) {
		out = append(out, m[1])
	}
	return out
}

func buildOperation(res *spec.Resolver, g *Graph, d *diag.Collector, s opSite) (*Operation, error) {
	op := &Operation{
		ID:          s.op.Str("operationId"),
		Name:        s.name,
		Group:       s.group,
		Tags:        s.op.Strings("tags"),
		Method:      strings.ToUpper(s.method),
		Path:        s.path,
		PathParams:  PathPlaceholders(s.path),
		Summary:     strings.TrimSpace(s.op.Str("summary")),
		Description: strings.TrimSpace(s.op.Str("description")),
		Deprecated:  s.op.Flag("deprecated"),
		Origin:      s.op.Origin(),
	}
	params, err := mergedParams(res, s.item, s.op)
	if err != nil {
		return nil, err
	}

	var bodies []paramSite
	for _, p := range params {
		loc := ParamLocation(p.in)
		if loc == InBody {
			bodies = append(bodies, p)
			continue
		}
		if _, known := locationRank[loc]; !known {
			return nil, &spec.SpecError{Code: spec.ParseError, Message: fmt.Sprintf("parameter %q has unknown location %q", p.name, p.in), Location: p.node.Doc(), JSONPointer: p.node.Pointer()}
		}
		tid, err := typeOfSite(g, paramSchema(p))
		if err != nil {
			return nil, err
		}
		op.Params = append(op.Params, Param{
			Name:        p.name,
			Location:    loc,
			Type:        tid,
			Required:    p.node.Flag("required") || loc == InPath,
			Description: strings.TrimSpace(p.node.Str("description")),
			Explode:     explodes(p.node, loc),
		})
	}
	op.Params = orderParams(op, d)

	body, bodyParam, err := requestBody(res, g, s, bodies, op.ParamsIn(InForm))
	if err != nil {
		return nil, err
	}
	if body != nil {
		op.RequestBody = body
		if bodyParam.Location == InBody {
			op.Params = append(op.Params, bodyParam)
		}
	}

	for _, e := range s.op.Get("responses").Entries() {
		if strings.HasPrefix(e.Key, "x-") {
			continue
		}
		schema, ct, err := responseSchema(res, e.Value)
		if err != nil {
			return nil, err
		}
		r := Response{Status: e.Key, ContentType: ct}
		if rn, err := res.ResolveNode(e.Value); err == nil && rn.Node != nil {
			r.Description = strings.TrimSpace(rn.Node.Str("description"))
		}
		if schema != nil {
			if r.Type, err = typeOfSite(g, schema); err != nil {
				return nil, err
			}
		}
		op.Responses = append(op.Responses, r)
	}
	var def *ErrorVariant
	for _, r := range op.Responses {
		switch {
		case r.Status == "default":
			def = &ErrorVariant{Kind: ErrorDefault, Status: r.Status, Type: r.Type}
		case isErrorStatus(r.Status):
			op.Errors = append(op.Errors, ErrorVariant{Kind: ErrorStatus, Status: r.Status, Type: r.Type})
		}
	}
	if def != nil {
		op.Errors = append(op.Errors, *def)
	}
	op.Errors = append(op.Errors, ErrorVariant{Kind: ErrorTransport})
	return op, nil
}

func isErrorStatus(status string) bool {
	if len(status) != 3 {
		return false
	}
	if strings.EqualFold(status[1:], "XX") {
		return status[0] == '4' || status[0] == '5'
	}
	code, err := strconv.Atoi(status)
	return err == nil && code >= 400
}

func explodes(p *spec.Node, loc ParamLocation) bool {
	if loc != InQuery && loc != InForm {
		return false
	}
	if cf := p.Str("collectionFormat"); cf != "" {
		return cf == "multi"
	}
	if e := p.Get("explode"); e != nil {
		return e.Scalar() == "true"
	}
	// form style explodes by default in OpenAPI 3.
	return p.Has("schema") && (p.Str("style") == "" || p.Str("style") == "form")
}

// orderParams sorts by location and places path parameters in template order.
// Template placeholders without a declared parameter are synthesized as strings.
func orderParams(op *Operation, d *diag.Collector) []Param {
	declared := make(map[string]bool)
	for _, p := range op.Params {
		if p.Location == InPath {
			declared[p.Name] = true
		}
	}
	params := op.Params
	for _, name := range op.PathParams {
		if !declared[name] {
			d.Warn(diag.CodePathParam, op.Origin, "path parameter %q of %s %s is not declared; assuming a string", name, op.Method, op.Path)
			params = append(params, Param{Name: name, Location: InPath, Type: StringType, Required: true, Synthesized: true})
			declared[name] = true
		}
	}
	position := make(map[string]int, len(op.PathParams))
	for i, name := range op.PathParams {
		if _, ok := position[name]; !ok {
			position[name] = i
		}
	}
	for _, p := range params {
		if _, ok := position[p.Name]; p.Location == InPath && !ok {
			d.Warn(diag.CodePathParam, op.Origin, "path parameter %q does not appear in %s", p.Name, op.Path)
		}
	}
	out := append([]Param(nil), params...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Location != b.Location {
			return locationRank[a.Location] < locationRank[b.Location]
		}
		if a.Location == InPath {
			pa, oka := position[a.Name]
			pb, okb := position[b.Name]
			if oka != okb {
				return oka
			}
			return pa < pb
		}
		return false
	})
	return out
}

func requestBody(res *spec.Resolver, g *Graph, s opSite, bodies []paramSite, form []Param) (*Body, Param, error) {
	switch {
	case len(bodies) == 1:
		tid, err := typeOfSite(g, paramSchema(bodies[0]))
		if err != nil {
			return nil, Param{}, err
		}
		b := &Body{Type: tid, Required: bodies[0].node.Flag("required"), ContentType: consumes(s, "application/json")}
		return b, Param{Name: bodies[0].name, Location: InBody, Type: tid, Required: b.Required, Description: strings.TrimSpace(bodies[0].node.Str("description"))}, nil
	case len(bodies) > 1:
		tid, ok := g.ByKey(bodyKey(s.op))
		if !ok {
			return nil, Param{}, fmt.Errorf("merged body of %s %s was not modeled", s.method, s.path)
		}
		required := false
		for _, p := range bodies {
			required = required || p.node.Flag("required")
		}
		b := &Body{Type: tid, Required: required, ContentType: consumes(s, "application/json")}
		return b, Param{Name: "body", Location: InBody, Type: tid, Required: required}, nil
	}
	if rb := s.op.Get("requestBody"); rb != nil {
		r, err := res.ResolveNode(rb)
		if err != nil {
			return nil, Param{}, err
		}
		ct, media := selectMedia(r.Node.Get("content"))
		if media == nil || media.Get("schema") == nil {
			return nil, Param{}, nil
		}
		tid, err := typeOfSite(g, media.Get("schema"))
		if err != nil {
			return nil, Param{}, err
		}
		b := &Body{Type: tid, Required: r.Node.Flag("required"), ContentType: ct}
		return b, Param{Name: "body", Location: InBody, Type: tid, Required: b.Required, Description: strings.TrimSpace(r.Node.Str("description"))}, nil
	}
	if len(form) > 0 {
		ct := "application/x-www-form-urlencoded"
		for _, c := range consumesList(s) {
			if mediaBase(c) == "multipart/form-data" {
				ct = "multipart/form-data"
			}
		}
		for _, p := range form {
			if t, ok := g.Get(p.Type); ok {
				if prim, isPrim := t.(Primitive); isPrim && prim.Prim == PrimBytes {
					ct = "multipart/form-data"
				}
			}
		}
		// Form parameters stay individual parameters; the body only records the encoding.
		return &Body{ContentType: ct}, Param{}, nil
	}
	return nil, Param{}, nil
}

func consumesList(s opSite) []string {
	if c := s.op.Strings("consumes"); len(c) > 0 {
		return c
	}
	return s.doc.Root.Strings("consumes")
}

func consumes(s opSite, fallback string) string {
	list := consumesList(s)
	for _, c := range list {
		if b := mediaBase(c); b == "application/json" || strings.HasSuffix(b, "+json") {
			return c
		}
	}
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}

func typeOfSite(g *Graph, n *spec.Node) (TypeID, error) {
	if id, ok := g.ByKey(spec.KeyOf(n)); ok {
		return id, nil
	}
	return "", &spec.SpecError{Code: spec.OperationModelError, Message: "no type was modeled for this schema", Location: n.Doc(), JSONPointer: n.Pointer()}
}

// assignNames makes operation names unique within their group, in declaration order.
func assignNames(ops []*Operation) {
	used := make(map[string]map[string]bool)
	for _, op := range ops {
		names := used[op.Group]
		if names == nil {
			names = make(map[string]bool)
			used[op.Group] = names
		}
		base := op.Name
		for i := 2; names[op.Name]; i++ {
			op.Name = base + strconv.Itoa(i)
		}
		names[op.Name] = true
	}
}
