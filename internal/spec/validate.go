package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
)

// Issue is an advisory validation finding. Issues never stop generation.
type Issue struct {
	Location    string
	JSONPointer string
	Message     string
}

// Validate checks an input document of docs against the OpenAPI schema using
// kin-openapi. References are served from docs, so nothing is read twice and
// nothing outside the loaded set is fetched. Fragment documents (no
// openapi/swagger version) are not checked.
func Validate(ctx context.Context, docs *DocumentSet, doc *Document) []Issue {
	if doc == nil || doc.Version == 0 {
		return nil
	}
	var err error
	switch doc.Version {
	case 3:
		err = validateV3(ctx, docs, doc)
	case 2:
		err = validateV2(ctx, doc)
	}
	if err == nil {
		return nil
	}
	var issues []Issue
	for _, e := range flatten(err) {
		issues = append(issues, Issue{Location: doc.ID, JSONPointer: extractJSONPointer(e), Message: e.Error()})
	}
	return issues
}

func validateV3(ctx context.Context, docs *DocumentSet, doc *Document) error {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true
	loader.ReadFromURIFunc = func(_ *openapi3.Loader, uri *url.URL) ([]byte, error) {
		id := loadedID(uri)
		if docs != nil {
			if d, ok := docs.Get(id); ok {
				return d.Raw, nil
			}
		}
		return nil, fmt.Errorf("reference to %s: document was not loaded", id)
	}
	location, err := url.Parse(doc.ID)
	if err != nil || !isRemote(doc.ID) {
		location = &url.URL{Path: filepath.ToSlash(doc.ID)}
	}
	t, err := loader.LoadFromDataWithPath(doc.Raw, location)
	if err != nil {
		return err
	}
	return t.Validate(ctx)
}

// loadedID maps a URI requested by kin-openapi to a DocumentSet id.
func loadedID(uri *url.URL) string {
	switch strings.ToLower(uri.Scheme) {
	case "http", "https":
		u := *uri
		u.Fragment = ""
		return u.String()
	}
	p := uri.Path
	if p == "" {
		p = uri.Opaque
	}
	return filepath.Clean(filepath.FromSlash(p))
}

func validateV2(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc.Root.Value())
	if err != nil {
		return err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(data, &v2); err != nil {
		return err
	}
	v3, err := openapi2conv.ToV3(&v2)
	if err != nil {
		return err
	}
	return v3.Validate(ctx)
}

func flatten(err error) []error {
	var me openapi3.MultiError
	if errors.As(err, &me) {
		var out []error
		for _, e := range me {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "/" + strings.Join(parts, "/")
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return strings.TrimPrefix(m, "#")
	}
	return ""
}
