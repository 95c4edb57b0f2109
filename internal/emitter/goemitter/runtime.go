package goemitter

import "strings"

// renderClient writes the Client type, its options and the helpers the operation
// methods call.
func (gen *generator) renderClient(title, version string) []byte {
	f := newFile(gen.pkg)
	for _, p := range []string{"context", "encoding/json", "fmt", "io", "net/http", "net/url", "strings"} {
		f.use(p)
	}

	f.p("// APIVersion is the version of the API description this client was generated from.")
	f.p("const APIVersion = %q", version)
	f.blank()
	f.p("// DefaultBaseURL is used unless WithBaseURL overrides it.")
	f.p("const DefaultBaseURL = %q", strings.TrimRight(gen.api.BaseURL, "/"))
	f.blank()
	f.p("// RequestEditor can modify each request before it is sent, for example to add credentials.")
	f.p("type RequestEditor func(ctx context.Context, req *http.Request) error")
	f.blank()
	f.p("// Option configures a Client.")
	f.p("type Option func(*Client)")
	f.blank()
	f.p("// WithHTTPClient replaces http.DefaultClient.")
	f.p("func WithHTTPClient(hc *http.Client) Option {")
	f.p("\treturn func(c *Client) { c.httpClient = hc }")
	f.p("}")
	f.blank()
	f.p("func WithBaseURL(baseURL string) Option {")
	f.p("\treturn func(c *Client) { c.baseURL = strings.TrimRight(baseURL, \"/\") }")
	f.p("}")
	f.blank()
	f.p("func WithUserAgent(ua string) Option {")
	f.p("\treturn func(c *Client) { c.userAgent = ua }")
	f.p("}")
	f.blank()
	f.p("func WithRequestEditor(fn RequestEditor) Option {")
	f.p("\treturn func(c *Client) { c.editors = append(c.editors, fn) }")
	f.p("}")
	f.blank()

	desc := "talks to the API."
	if t := strings.TrimSpace(title); t != "" {
		desc = "talks to the " + t + " API."
	}
	f.doc("", "Client", desc)
	f.p("type Client struct {")
	f.p("\thttpClient *http.Client")
	f.p("\tbaseURL    string")
	f.p("\tuserAgent  string")
	f.p("\teditors    []RequestEditor")
	if len(gen.api.Groups) > 0 {
		f.blank()
		for _, g := range gen.api.Groups {
			f.p("\t%s *%s", gen.groupField[g.Name], gen.groupTypes[g.Name])
		}
	}
	f.p("}")
	f.blank()
	f.p("func NewClient(opts ...Option) *Client {")
	f.p("\tc := &Client{httpClient: http.DefaultClient, baseURL: DefaultBaseURL}")
	f.p("\tfor _, opt := range opts {")
	f.p("\t\topt(c)")
	f.p("\t}")
	for _, g := range gen.api.Groups {
		f.p("\tc.%s = &%s{client: c}", gen.groupField[g.Name], gen.groupTypes[g.Name])
	}
	f.p("\treturn c")
	f.p("}")
	f.blank()

	f.p("func (c *Client) do(ctx context.Context, method, path string, query url.Values, header http.Header, body io.Reader, contentType string) (*http.Response, []byte, error) {")
	f.p("\tu := c.baseURL + path")
	f.p("\tif len(query) > 0 {")
	f.p("\t\tu += \"?\" + query.Encode()")
	f.p("\t}")
	f.p("\treq, err := http.NewRequestWithContext(ctx, method, u, body)")
	f.p("\tif err != nil {")
	f.p("\t\treturn nil, nil, err")
	f.p("\t}")
	f.p("\tfor k, vs := range header {")
	f.p("\t\tfor _, v := range vs {")
	f.p("\t\t\treq.Header.Add(k, v)")
	f.p("\t\t}")
	f.p("\t}")
	f.p("\tif body != nil && contentType != \"\" {")
	f.p("\t\treq.Header.Set(\"Content-Type\", contentType)")
	f.p("\t}")
	f.p("\tif req.Header.Get(\"Accept\") == \"\" {")
	f.p("\t\treq.Header.Set(\"Accept\", \"application/json\")")
	f.p("\t}")
	f.p("\tif c.userAgent != \"\" {")
	f.p("\t\treq.Header.Set(\"User-Agent\", c.userAgent)")
	f.p("\t}")
	f.p("\tfor _, edit := range c.editors {")
	f.p("\t\tif err := edit(ctx, req); err != nil {")
	f.p("\t\t\treturn nil, nil, err")
	f.p("\t\t}")
	f.p("\t}")
	f.p("\tresp, err := c.httpClient.Do(req)")
	f.p("\tif err != nil {")
	f.p("\t\treturn nil, nil, err")
	f.p("\t}")
	f.p("\tdefer resp.Body.Close()")
	f.p("\tdata, err := io.ReadAll(resp.Body)")
	f.p("\tif err != nil {")
	f.p("\t\treturn nil, nil, err")
	f.p("\t}")
	f.p("\treturn resp, data, nil")
	f.p("}")
	f.blank()

	f.p("// APIError is returned for any response outside the 2xx range. Payload holds the")
	f.p("// decoded error body when the operation declares a schema for the status.")
	f.p("type APIError struct {")
	f.p("\tStatusCode int")
	f.p("\tStatus     string")
	f.p("\tBody       []byte")
	f.p("\tPayload    any")
	f.p("}")
	f.blank()
	f.p("func (e *APIError) Error() string {")
	f.p("\treturn fmt.Sprintf(\"unexpected response: %%s\", e.Status)")
	f.p("}")
	f.blank()
	f.p("func newAPIError(resp *http.Response, data []byte) *APIError {")
	f.p("\treturn &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: data}")
	f.p("}")
	f.blank()
	f.p("func decodePayload[T any](data []byte) any {")
	f.p("\tv := new(T)")
	f.p("\tif err := json.Unmarshal(data, v); err != nil {")
	f.p("\t\treturn nil")
	f.p("\t}")
	f.p("\treturn v")
	f.p("}")
	f.blank()
	f.p("func joinValues[T any](vs []T) string {")
	f.p("\tparts := make([]string, len(vs))")
	f.p("\tfor i, v := range vs {")
	f.p("\t\tparts[i] = fmt.Sprint(v)")
	f.p("\t}")
	f.p("\treturn strings.Join(parts, \",\")")
	f.p("}")

	if gen.usesFormFields {
		f.blank()
		f.p("// formFields flattens the top-level members of v into form values.")
		f.p("func formFields(v any) (url.Values, error) {")
		f.p("\traw, err := json.Marshal(v)")
		f.p("\tif err != nil {")
		f.p("\t\treturn nil, err")
		f.p("\t}")
		f.p("\tvar members map[string]any")
		f.p("\tif err := json.Unmarshal(raw, &members); err != nil {")
		f.p("\t\treturn nil, err")
		f.p("\t}")
		f.p("\tform := url.Values{}")
		f.p("\tfor k, m := range members {")
		f.p("\t\tif s, ok := m.(string); ok {")
		f.p("\t\t\tform.Set(k, s)")
		f.p("\t\t\tcontinue")
		f.p("\t\t}")
		f.p("\t\tenc, err := json.Marshal(m)")
		f.p("\t\tif err != nil {")
		f.p("\t\t\treturn nil, err")
		f.p("\t\t}")
		f.p("\t\tform.Set(k, string(enc))")
		f.p("\t}")
		f.p("\treturn form, nil")
		f.p("}")
	}
	if gen.usesMultipart {
		f.use("bytes")
		f.use("mime/multipart")
		f.blank()
		f.p("func encodeMultipart(form url.Values, files map[string][]byte) (io.Reader, string, error) {")
		f.p("\tvar buf bytes.Buffer")
		f.p("\tmw := multipart.NewWriter(&buf)")
		f.p("\tfor k, vs := range form {")
		f.p("\t\tfor _, v := range vs {")
		f.p("\t\t\tif err := mw.WriteField(k, v); err != nil {")
		f.p("\t\t\t\treturn nil, \"\", err")
		f.p("\t\t\t}")
		f.p("\t\t}")
		f.p("\t}")
		f.p("\tfor k, data := range files {")
		f.p("\t\tfw, err := mw.CreateFormFile(k, k)")
		f.p("\t\tif err != nil {")
		f.p("\t\t\treturn nil, \"\", err")
		f.p("\t\t}")
		f.p("\t\tif _, err := fw.Write(data); err != nil {")
		f.p("\t\t\treturn nil, \"\", err")
		f.p("\t\t}")
		f.p("\t}")
		f.p("\tif err := mw.Close(); err != nil {")
		f.p("\t\treturn nil, \"\", err")
		f.p("\t}")
		f.p("\treturn &buf, mw.FormDataContentType(), nil")
		f.p("}")
	}
	return f.bytes()
}
