package goemitter

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/mark3labs/swagger2client/internal/emitter"
	"github.com/mark3labs/swagger2client/internal/format"
	"github.com/mark3labs/swagger2client/internal/model"
)

// Options controls how the Go emitter renders a client package.
type Options struct {
	PackageName string // Go package name; derived from the API title when empty
	ModuleName  string // when set, a go.mod declaring this module is emitted
	APIVersion  string // overrides info.version for the APIVersion constant
	Formatter   format.Formatter
}

// Result returns the rendered files and the final resolved names.
type Result struct {
	PackageName string
	ModuleName  string
	Files       emitter.FileSet
	Planned     []emitter.PlannedFile
}

// Render produces a Go client package for api. It does not touch the filesystem.
func Render(ctx context.Context, api *model.API, opts Options) (*Result, error) {
	if api == nil || api.Types == nil {
		return nil, fmt.Errorf("goemitter: nil API")
	}
	pkg := sanitizePackageName(opts.PackageName)
	if pkg == "" {
		pkg = derivePackageName(api.Title)
		if pkg == "" {
			pkg = "client"
		}
	}
	version := strings.TrimSpace(opts.APIVersion)
	if version == "" {
		version = api.Version
	}

	gen := newGenerator(api, pkg)
	files := emitter.FileSet{}

	models, err := gen.renderModels()
	if err != nil {
		return nil, err
	}
	files["models.go"] = models
	for _, g := range api.Groups {
		src, err := gen.renderGroup(g)
		if err != nil {
			return nil, err
		}
		files[gen.groupFiles[g.Name]] = src
	}
	files["client.go"] = gen.renderClient(api.Title, version)
	module := strings.TrimSpace(opts.ModuleName)
	if module != "" {
		files["go.mod"] = []byte(fmt.Sprintf("module %s\n\ngo 1.21\n", module))
	}
	if opts.Formatter != nil {
		files = format.Apply(ctx, opts.Formatter, files, func(p string) bool {
			return path.Ext(p) == ".go"
		})
	}
	return &Result{
		PackageName: pkg,
		ModuleName:  module,
		Files:       files,
		Planned:     emitter.Plan(files),
	}, nil
}

// sanitizePackageName keeps lower-case letters and digits; the result never starts with a digit.
func sanitizePackageName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	b := strings.Builder{}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), "0123456789")
	if isKeyword(out) {
		out += "api"
	}
	return out
}

func derivePackageName(title string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		return ""
	}
	t = strings.ToLower(t)
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ", "-", " ")
	parts := strings.Fields(repl.Replace(t))
	// "Swagger Petstore API" becomes "petstore".
	var kept []string
	for _, p := range parts {
		switch p {
		case "api", "swagger", "openapi", "service", "client", "rest":
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		kept = parts
	}
	return sanitizePackageName(strings.Join(kept, ""))
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true, "default": true,
	"defer": true, "else": true, "fallthrough": true, "for": true, "func": true, "go": true,
	"goto": true, "if": true, "import": true, "interface": true, "map": true, "package": true,
	"range": true, "return": true, "select": true, "struct": true, "switch": true, "type": true,
	"var": true,
}

func isKeyword(s string) bool { return goKeywords[s] }

// fileSafe turns a group name into a snake_case file stem.
func fileSafe(name string) string {
	words := model.Words(name)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	out := strings.Join(words, "_")
	if out == "" {
		out = "default"
	}
	return out
}
