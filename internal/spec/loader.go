package spec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowRemote permits http(s) references from documents loaded off the local filesystem.
	AllowRemote bool
	// MaxDocuments bounds the number of documents discovered through references.
	MaxDocuments int
	// HTTPClient overrides the client used for remote documents.
	HTTPClient *http.Client
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout:  10 * time.Second,
		MaxRetries:   3,
		BackoffBase:  200 * time.Millisecond,
		MaxDocuments: 256,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option             { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option  { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowRemote(allow bool) Option       { return func(s *Settings) { s.AllowRemote = allow } }
func WithMaxDocuments(n int) Option           { return func(s *Settings) { s.MaxDocuments = n } }
func WithHTTPClient(c *http.Client) Option    { return func(s *Settings) { s.HTTPClient = c } }

// Document is one parsed input or referenced document.
type Document struct {
	ID      string // canonical absolute path or URL
	Root    *Node
	Version int  // 3 for OpenAPI 3.x, 2 for Swagger 2.0, 0 for fragments
	Input   bool // named by the caller rather than discovered through a reference
	Raw     []byte
}

// DocumentSet holds every document of one generation run in load order.
type DocumentSet struct {
	Docs []*Document
	byID map[string]*Document
}

// NewDocumentSet builds a set from already parsed documents.
func NewDocumentSet(docs ...*Document) *DocumentSet {
	s := &DocumentSet{byID: make(map[string]*Document, len(docs))}
	for _, d := range docs {
		s.add(d)
	}
	return s
}

func (s *DocumentSet) add(d *Document) {
	s.Docs = append(s.Docs, d)
	s.byID[d.ID] = d
}

// Get returns the document with the given canonical id.
func (s *DocumentSet) Get(id string) (*Document, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// Inputs returns the caller-named documents in the order they were given.
func (s *DocumentSet) Inputs() []*Document {
	var out []*Document
	for _, d := range s.Docs {
		if d.Input {
			out = append(out, d)
		}
	}
	return out
}

type pendingDoc struct {
	id    string
	input bool
	from  string
	ref   string
}

// Load reads every input document and, transitively, every document they reference.
//
// Inputs may be filesystem paths, file:// URLs or http/https URLs. JSON and YAML are both
// accepted; the loaded trees preserve mapping order and source positions.
func Load(ctx context.Context, inputs []string, opts ...Option) (*DocumentSet, error) {
	if len(inputs) == 0 {
		return nil, &SpecError{Code: IoError, Message: "spec: no input documents"}
	}
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	var queue []pendingDoc
	for _, in := range inputs {
		id, err := canonicalInput(in)
		if err != nil {
			return nil, err
		}
		queue = append(queue, pendingDoc{id: id, input: true})
	}

	set := NewDocumentSet()
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := queue[0]
		queue = queue[1:]
		if existing, ok := set.byID[p.id]; ok {
			existing.Input = existing.Input || p.input
			continue
		}
		if settings.MaxDocuments > 0 && len(set.Docs) >= settings.MaxDocuments {
			return nil, ioErr(p.id, nil, "spec: more than %d documents referenced", settings.MaxDocuments)
		}
		doc, err := loadDocument(ctx, p.id, settings)
		if err != nil {
			var se *SpecError
			if p.ref != "" && errors.As(err, &se) && se.Code == IoError {
				se.Message = fmt.Sprintf("%s (referenced as %q from %s)", se.Message, p.ref, p.from)
				se.Ref = p.ref
			}
			return nil, err
		}
		doc.Input = p.input
		set.add(doc)

		for _, raw := range externalRefs(doc.Root) {
			ref, err := ParseReference(raw)
			if err != nil || ref.File == "" {
				// Left for the resolver to report.
				continue
			}
			target, err := resolveDocID(doc.ID, ref.File)
			if err != nil {
				continue
			}
			if isRemote(target) && !isRemote(doc.ID) && !settings.AllowRemote {
				return nil, &SpecError{Code: IoError, Message: fmt.Sprintf("remote reference %q blocked (enable remote references to follow it)", raw), Location: doc.ID, Ref: raw}
			}
			if !isRemote(target) && isRemote(doc.ID) {
				return nil, &SpecError{Code: IoError, Message: fmt.Sprintf("local file reference %q from a remote document is blocked", raw), Location: doc.ID, Ref: raw}
			}
			queue = append(queue, pendingDoc{id: target, from: doc.ID, ref: raw})
		}
	}
	return set, nil
}

// ParseDocument parses raw JSON or YAML into a Document with the given id.
func ParseDocument(id string, raw []byte) (*Document, error) {
	root, err := parseTree(id, raw)
	if err != nil {
		return nil, err
	}
	if root.Kind() != MappingKind {
		return nil, parseErr(id, "", "document root must be a mapping, found %s", root.Kind())
	}
	return &Document{ID: id, Root: root, Version: detectVersion(root), Raw: raw}, nil
}

func canonicalInput(input string) (string, error) {
	in := strings.TrimSpace(input)
	if in == "" {
		return "", &SpecError{Code: IoError, Message: "spec: input is empty"}
	}
	if u, err := url.Parse(in); err == nil && len(u.Scheme) > 1 {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			if u.Host == "" {
				return "", &SpecError{Code: IoError, Message: fmt.Sprintf("spec: invalid URL %q", in), Location: in}
			}
			u.Fragment = ""
			return u.String(), nil
		case "file":
			p := u.Path
			if p == "" {
				p = u.Opaque
			}
			return filepath.Clean(filepath.FromSlash(p)), nil
		default:
			return "", &SpecError{Code: IoError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https/file allowed)", u.Scheme), Location: in}
		}
	}
	abs, err := filepath.Abs(in)
	if err != nil {
		return "", ioErr(in, err, "resolve path %s", in)
	}
	return abs, nil
}

func loadDocument(ctx context.Context, id string, settings Settings) (*Document, error) {
	var raw []byte
	if isRemote(id) {
		b, err := fetchWithRetry(ctx, id, settings)
		if err != nil {
			return nil, ioErr(id, err, "fetch %s", id)
		}
		raw = b
	} else {
		b, err := os.ReadFile(id)
		if err != nil {
			return nil, ioErr(id, err, "read file %s", id)
		}
		raw = b
	}
	return ParseDocument(id, raw)
}

func parseTree(id string, raw []byte) (*Node, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, parseErr(id, "", "document is empty")
	}
	if looksLikeJSON(id, raw) {
		var probe json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			e := parseErr(id, "", "malformed JSON")
			var syn *json.SyntaxError
			if errors.As(err, &syn) {
				e.Message = fmt.Sprintf("malformed JSON at line %d", 1+bytes.Count(raw[:syn.Offset], []byte("\n")))
			}
			e.Cause = err
			return nil, e
		}
		// Tabs are only legal as whitespace in valid JSON; YAML rejects them in some positions.
		raw = bytes.ReplaceAll(raw, []byte("\t"), []byte(" "))
	}
	var y yaml.Node
	if err := yaml.Unmarshal(raw, &y); err != nil {
		e := parseErr(id, "", "malformed YAML")
		e.Cause = err
		return nil, e
	}
	return buildNode(id, &y)
}

func looksLikeJSON(id string, raw []byte) bool {
	if strings.EqualFold(filepath.Ext(strings.SplitN(id, "?", 2)[0]), ".json") {
		return true
	}
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && (t[0] == '{' || t[0] == '[')
}

// detectVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else 0.
func detectVersion(root *Node) int {
	if v := strings.TrimSpace(root.Get("openapi").Scalar()); strings.HasPrefix(v, "3.") {
		return 3
	}
	if v := strings.TrimSpace(root.Get("swagger").Scalar()); strings.HasPrefix(v, "2.") || v == "2" {
		return 2
	}
	return 0
}

// externalRefs lists the $ref strings of n in document order.
func externalRefs(n *Node) []string {
	var out []string
	var walk func(*Node)
	walk = func(n *Node) {
		switch n.Kind() {
		case MappingKind:
			for _, e := range n.entries {
				if e.Key == "$ref" && e.Value.Kind() == StringKind {
					if !strings.HasPrefix(e.Value.scalar, "#") {
						out = append(out, e.Value.scalar)
					}
					continue
				}
				walk(e.Value)
			}
		case SequenceKind:
			for _, it := range n.items {
				walk(it)
			}
		}
	}
	walk(n)
	return out
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := settings.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: settings.HTTPTimeout}
	}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case resp.StatusCode < 300 && readErr == nil:
				return body, nil
			case resp.StatusCode < 300:
				lastErr = readErr
			case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
				lastErr = fmt.Errorf("transient http error %d", resp.StatusCode)
			default:
				if len(body) > 1024 {
					body = body[:1024]
				}
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}
