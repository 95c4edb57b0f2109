package spec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	}
	return dir
}

func TestLoad_FollowsRelativeReferences(t *testing.T) {
	t.Parallel()
	dir := writeFiles(t, map[string]string{
		"api.yaml": `openapi: 3.0.0
info: {title: t, version: "1"}
paths: {}
components:
  schemas:
    Pet: {$ref: 'defs/pet.yaml#/Pet'}
    Again: {$ref: './defs/pet.yaml#/Pet'}
`,
		"defs/pet.yaml": `Pet:
  type: object
  properties:
    owner: {$ref: 'owner.json'}
`,
		"defs/owner.json": `{"type": "object", "properties": {"name": {"type": "string"}}}`,
	})

	set, err := Load(context.Background(), []string{filepath.Join(dir, "api.yaml")})
	require.NoError(t, err)
	require.Len(t, set.Docs, 3)

	inputs := set.Inputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, filepath.Join(dir, "api.yaml"), inputs[0].ID)

	owner, ok := set.Get(filepath.Join(dir, "defs", "owner.json"))
	require.True(t, ok, "reference relative to the referring document")
	assert.False(t, owner.Input)
	assert.Equal(t, 0, owner.Version)
}

func TestLoad_MultipleInputsShareDocuments(t *testing.T) {
	t.Parallel()
	dir := writeFiles(t, map[string]string{
		"a.yaml":      "openapi: 3.0.0\ninfo: {title: a, version: '1'}\npaths: {}\ncomponents: {schemas: {X: {$ref: 'common.yaml#/X'}}}\n",
		"b.yaml":      "openapi: 3.0.0\ninfo: {title: b, version: '1'}\npaths: {}\ncomponents: {schemas: {Y: {$ref: 'common.yaml#/X'}}}\n",
		"common.yaml": "X: {type: string}\n",
	})
	set, err := Load(context.Background(), []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml")})
	require.NoError(t, err)
	assert.Len(t, set.Docs, 3)
	assert.Len(t, set.Inputs(), 2)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	dir := writeFiles(t, map[string]string{
		"bad.json":    "{",
		"missing.yaml": "openapi: 3.0.0\ncomponents: {schemas: {A: {$ref: 'nope.yaml#/A'}}}\n",
		"remote.yaml": "openapi: 3.0.0\ncomponents: {schemas: {A: {$ref: 'https://example.com/a.yaml#/A'}}}\n",
	})

	_, err := Load(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrIO))

	_, err = Load(context.Background(), []string{"ftp://example.com/spec.yaml"})
	assert.True(t, errors.Is(err, ErrIO))
	assert.ErrorContains(t, err, `unsupported URL scheme "ftp"`)

	_, err = Load(context.Background(), []string{filepath.Join(dir, "bad.json")})
	assert.True(t, errors.Is(err, ErrParse), "got %v", err)

	_, err = Load(context.Background(), []string{filepath.Join(dir, "missing.yaml")})
	require.True(t, errors.Is(err, ErrIO), "got %v", err)
	var se *SpecError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "nope.yaml#/A", se.Ref)
	assert.Contains(t, se.Message, "referenced as")

	_, err = Load(context.Background(), []string{filepath.Join(dir, "remote.yaml")})
	assert.ErrorContains(t, err, "remote reference")
}

func TestLoad_MaxDocuments(t *testing.T) {
	t.Parallel()
	dir := writeFiles(t, map[string]string{
		"a.yaml": "A: {$ref: 'b.yaml#/B'}\n",
		"b.yaml": "B: {$ref: 'c.yaml#/C'}\n",
		"c.yaml": "C: {type: string}\n",
	})
	_, err := Load(context.Background(), []string{filepath.Join(dir, "a.yaml")}, WithMaxDocuments(2))
	assert.ErrorContains(t, err, "more than 2 documents")
}

func TestLoad_RemoteRetriesTransientFailures(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api.yaml":
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("openapi: 3.0.0\ninfo: {title: remote, version: '1'}\npaths: {}\ncomponents: {schemas: {A: {$ref: 'defs.yaml#/A'}}}\n"))
		case "/defs.yaml":
			_, _ = w.Write([]byte("A: {type: string}\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	set, err := Load(context.Background(), []string{srv.URL + "/api.yaml"}, WithBackoffBase(time.Millisecond), WithMaxRetries(3))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	_, ok := set.Get(srv.URL + "/defs.yaml")
	assert.True(t, ok, "relative reference resolved against the remote base")
}

func TestLoad_RemoteClientError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	_, err := Load(context.Background(), []string{srv.URL + "/api.yaml"}, WithBackoffBase(time.Millisecond))
	require.True(t, errors.Is(err, ErrIO), "got %v", err)
	assert.ErrorContains(t, err, "http 410")
}
