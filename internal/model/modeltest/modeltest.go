// Package modeltest builds model inputs from inline documents for tests.
package modeltest

import (
	"context"
	"testing"

	"github.com/mark3labs/swagger2client/internal/model"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// Docs parses each id/source pair into a document set. The first id is the only input.
func Docs(t testing.TB, id, src string, more ...string) *spec.DocumentSet {
	t.Helper()
	if len(more)%2 != 0 {
		t.Fatalf("modeltest: more must hold id/source pairs")
	}
	doc, err := spec.ParseDocument(id, []byte(src))
	if err != nil {
		t.Fatalf("parse %s: %v", id, err)
	}
	doc.Input = true
	docs := []*spec.Document{doc}
	for i := 0; i < len(more); i += 2 {
		d, err := spec.ParseDocument(more[i], []byte(more[i+1]))
		if err != nil {
			t.Fatalf("parse %s: %v", more[i], err)
		}
		docs = append(docs, d)
	}
	return spec.NewDocumentSet(docs...)
}

// API models src, an OpenAPI or Swagger document, and fails the test on any error.
func API(t testing.TB, src string, opts ...model.BuildOption) *model.API {
	t.Helper()
	api, err := Build(context.Background(), Docs(t, "/virtual/api.yaml", src), opts...)
	if err != nil {
		t.Fatalf("build api: %v", err)
	}
	return api
}

// Build runs the modeling stages over docs.
func Build(ctx context.Context, docs *spec.DocumentSet, opts ...model.BuildOption) (*model.API, error) {
	res := spec.NewResolver(docs)
	if err := res.CheckAll(ctx); err != nil {
		return nil, err
	}
	g, err := model.BuildTypes(ctx, res, opts...)
	if err != nil {
		return nil, err
	}
	ops, err := model.BuildOperations(ctx, res, g, opts...)
	if err != nil {
		return nil, err
	}
	return model.NewAPI(docs, g, ops), nil
}
