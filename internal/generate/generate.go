// Package generate runs the whole pipeline for one set of input documents:
// load, resolve, model, validate and render.
package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/swagger2client/internal/diag"
	"github.com/mark3labs/swagger2client/internal/emitter"
	"github.com/mark3labs/swagger2client/internal/emitter/goemitter"
	"github.com/mark3labs/swagger2client/internal/emitter/npmemitter"
	"github.com/mark3labs/swagger2client/internal/format"
	"github.com/mark3labs/swagger2client/internal/model"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// Target languages.
const (
	LangGo = "go"
	LangTS = "ts"
)

// Options configures a run. The zero value renders a Go package without formatting.
type Options struct {
	Lang        string
	PackageName string
	ModuleName  string // Go only
	APIVersion  string

	Formatter format.Formatter

	IncludeTags   []string
	ExcludeTags   []string
	Methods       []string
	PathPatterns  []string
	BoxProperties []string // "Schema.property"

	// Validate runs the kin-openapi schema check over every input document and
	// reports findings as warnings. It never fails a run.
	Validate bool

	AllowRemote bool
	HTTPTimeout time.Duration

	Logger diag.Logger
}

// Result is the outcome of a successful run. Nothing has been written yet.
type Result struct {
	API         *model.API
	PackageName string
	Files       emitter.FileSet
	Planned     []emitter.PlannedFile
	Diagnostics []diag.Event
}

// Generate loads inputs and renders a client for opts.Lang.
func Generate(ctx context.Context, inputs []string, opts Options) (*Result, error) {
	lang := strings.ToLower(strings.TrimSpace(opts.Lang))
	switch lang {
	case "":
		lang = LangGo
	case LangGo, LangTS:
	default:
		return nil, fmt.Errorf("generate: unsupported language %q (allowed: go, ts)", opts.Lang)
	}

	d := diag.NewCollector(opts.Logger)
	ctx = diag.WithCollector(ctx, d)
	log := d.Logger()

	var loadOpts []spec.Option
	if opts.AllowRemote {
		loadOpts = append(loadOpts, spec.WithAllowRemote(true))
	}
	if opts.HTTPTimeout > 0 {
		loadOpts = append(loadOpts, spec.WithHTTPTimeout(opts.HTTPTimeout))
	}
	docs, err := spec.Load(ctx, inputs, loadOpts...)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded documents", "count", len(docs.Docs), "inputs", len(docs.Inputs()))

	res := spec.NewResolver(docs)
	if err := res.CheckAll(ctx); err != nil {
		return nil, err
	}

	buildOpts := []model.BuildOption{
		model.WithIncludeTags(opts.IncludeTags),
		model.WithExcludeTags(opts.ExcludeTags),
		model.WithMethods(opts.Methods),
		model.WithPathPatterns(opts.PathPatterns),
		model.WithBoxProperties(opts.BoxProperties),
	}
	g, err := model.BuildTypes(ctx, res, buildOpts...)
	if err != nil {
		return nil, err
	}
	log.Debug("modeled types", "count", g.Len(), "named", len(g.Named()))

	// The graph is frozen from here on; operation modeling and validation only read it.
	var ops []*model.Operation
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		ops, err = model.BuildOperations(egCtx, res, g, buildOpts...)
		return err
	})
	if opts.Validate {
		for _, doc := range docs.Inputs() {
			eg.Go(func() error {
				for _, issue := range spec.Validate(egCtx, docs, doc) {
					d.Warn(diag.CodeValidation, spec.Origin{Doc: issue.Location, Pointer: issue.JSONPointer}, "%s", issue.Message)
				}
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	log.Debug("modeled operations", "count", len(ops))

	api := model.NewAPI(docs, g, ops)
	out := &Result{API: api}
	switch lang {
	case LangGo:
		r, err := goemitter.Render(ctx, api, goemitter.Options{
			PackageName: opts.PackageName,
			ModuleName:  opts.ModuleName,
			APIVersion:  opts.APIVersion,
			Formatter:   opts.Formatter,
		})
		if err != nil {
			return nil, err
		}
		out.PackageName, out.Files, out.Planned = r.PackageName, r.Files, r.Planned
	case LangTS:
		r, err := npmemitter.Render(ctx, api, npmemitter.Options{
			PackageName: opts.PackageName,
			APIVersion:  opts.APIVersion,
			Formatter:   opts.Formatter,
		})
		if err != nil {
			return nil, err
		}
		out.PackageName, out.Files, out.Planned = r.PackageName, r.Files, r.Planned
	}
	out.Diagnostics = d.Events()
	return out, nil
}
