// Package npmemitter renders a TypeScript client as an npm package.
package npmemitter

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/mark3labs/swagger2client/internal/emitter"
	"github.com/mark3labs/swagger2client/internal/format"
	"github.com/mark3labs/swagger2client/internal/model"
)

// Options controls how the TypeScript emitter renders a package.
type Options struct {
	PackageName string // npm package name; derived from the API title when empty
	APIVersion  string // overrides info.version for API_VERSION
	Formatter   format.Formatter
}

// Result returns the rendered files and the final resolved names.
type Result struct {
	PackageName string
	Files       emitter.FileSet
	Planned     []emitter.PlannedFile
}

// Render produces an npm package exposing a typed fetch client for api.
func Render(ctx context.Context, api *model.API, opts Options) (*Result, error) {
	if api == nil || api.Types == nil {
		return nil, fmt.Errorf("npmemitter: nil API")
	}
	pkgName := sanitizePackageName(opts.PackageName)
	if pkgName == "" {
		pkgName = derivePackageName(api.Title)
		if pkgName == "" {
			pkgName = "api-client"
		}
	}
	version := strings.TrimSpace(opts.APIVersion)
	if version == "" {
		version = api.Version
	}

	gen := newGenerator(api)
	files := emitter.FileSet{}
	models, err := gen.renderModels()
	if err != nil {
		return nil, err
	}
	files["src/models.ts"] = models
	client, err := gen.renderClient(version)
	if err != nil {
		return nil, err
	}
	files["src/client.ts"] = client
	files["src/index.ts"] = []byte(generatedHeader + "export * from \"./models\";\nexport * from \"./client\";\n")

	pkgJSON, err := renderPackageJSON(pkgName, version, api.Description)
	if err != nil {
		return nil, err
	}
	files["package.json"] = pkgJSON
	tsconfig, err := renderTSConfig()
	if err != nil {
		return nil, err
	}
	files["tsconfig.json"] = tsconfig

	if opts.Formatter != nil {
		files = format.Apply(ctx, opts.Formatter, files, func(p string) bool {
			return path.Ext(p) == ".ts"
		})
	}
	return &Result{PackageName: pkgName, Files: files, Planned: emitter.Plan(files)}, nil
}

type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Description     string            `json:"description,omitempty"`
	Type            string            `json:"type"`
	Main            string            `json:"main"`
	Types           string            `json:"types"`
	Files           []string          `json:"files"`
	Scripts         map[string]string `json:"scripts"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func renderPackageJSON(name, version, description string) ([]byte, error) {
	if !semverLike(version) {
		version = "0.0.0"
	}
	if i := strings.IndexByte(description, '\n'); i >= 0 {
		description = description[:i]
	}
	pkg := packageJSON{
		Name:            name,
		Version:         version,
		Description:     strings.TrimSpace(description),
		Type:            "module",
		Main:            "dist/index.js",
		Types:           "dist/index.d.ts",
		Files:           []string{"dist"},
		Scripts:         map[string]string{"build": "tsc -p ."},
		DevDependencies: map[string]string{"typescript": "^5.4.0"},
	}
	b, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal package.json: %w", err)
	}
	return append(b, '\n'), nil
}

type tsConfig struct {
	CompilerOptions map[string]any `json:"compilerOptions"`
	Include         []string       `json:"include"`
}

func renderTSConfig() ([]byte, error) {
	cfg := tsConfig{
		CompilerOptions: map[string]any{
			"target":           "ES2020",
			"module":           "ES2020",
			"moduleResolution": "node",
			"declaration":      true,
			"outDir":           "dist",
			"strict":           true,
			"lib":              []string{"ES2020", "DOM"},
		},
		Include: []string{"src"},
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tsconfig.json: %w", err)
	}
	return append(b, '\n'), nil
}

// semverLike accepts MAJOR.MINOR.PATCH with optional suffixes.
func semverLike(v string) bool {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts[:2] {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return false
		}
	}
	return parts[2] != "" && parts[2][0] >= '0' && parts[2][0] <= '9'
}

func sanitizePackageName(name string) string {
	// Simplified npm name sanitizer (no scope handling here); keep lowercase, dot, dash
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "/", "-")
	b := strings.Builder{}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-._")
}

func derivePackageName(title string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		return ""
	}
	t = strings.ToLower(t)
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ")
	parts := strings.Fields(repl.Replace(t))
	if len(parts) == 0 {
		return ""
	}
	if last := parts[len(parts)-1]; last != "client" && last != "sdk" {
		parts = append(parts, "client")
	}
	return sanitizePackageName(strings.Join(parts, "-"))
}
