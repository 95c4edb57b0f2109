package spec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_PreservesOrderAndPositions(t *testing.T) {
	t.Parallel()
	src := `openapi: 3.0.0
info: {title: t, version: "1"}
components:
  schemas:
    Zebra: {type: string}
    Apple: {type: integer}
    "a/b~c": {type: boolean}
`
	doc, err := ParseDocument("/tmp/api.yaml", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Version)

	schemas, ok := doc.Root.Child("components", "schemas")
	require.True(t, ok)
	var keys []string
	for _, e := range schemas.Entries() {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"Zebra", "Apple", "a/b~c"}, keys)

	apple := schemas.Get("Apple")
	assert.Equal(t, "/components/schemas/Apple", apple.Pointer())
	assert.Equal(t, 6, apple.Origin().Line)
	assert.Equal(t, "/components/schemas/a~1b~0c", schemas.Get("a/b~c").Pointer())
	assert.Equal(t, "integer", apple.Str("type"))
	assert.Equal(t, "1", doc.Root.Get("info").Get("version").Scalar())
}

func TestParseDocument_JSONAndYAMLAgree(t *testing.T) {
	t.Parallel()
	y, err := ParseDocument("a.yaml", []byte("swagger: '2.0'\npaths: {}\ndefinitions:\n  A: {type: object, required: [x]}\n"))
	require.NoError(t, err)
	j, err := ParseDocument("a.json", []byte(`{"swagger": "2.0", "paths": {}, "definitions": {"A": {"type": "object", "required": ["x"]}}}`))
	require.NoError(t, err)

	assert.Equal(t, 2, y.Version)
	assert.Equal(t, y.Root.Value(), j.Root.Value())
}

func TestParseDocument_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, id, src, want string
	}{
		{"empty", "a.yaml", "  \n", "document is empty"},
		{"malformed json", "a.json", "{\n\"a\": 1,\n}", "malformed JSON at line 3"},
		{"malformed yaml", "a.yaml", "a: [1, 2\n", "malformed YAML"},
		{"scalar root", "a.yaml", "just text\n", "document root must be a mapping"},
		{"duplicate key", "a.yaml", "a: 1\na: 2\n", `duplicate key "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseDocument(tt.id, []byte(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseDocument_MergeKeys(t *testing.T) {
	t.Parallel()
	src := `base: &base
  type: object
  description: shared
derived:
  <<: *base
  description: own
`
	doc, err := ParseDocument("m.yaml", []byte(src))
	require.NoError(t, err)
	derived := doc.Root.Get("derived")
	assert.Equal(t, "object", derived.Str("type"))
	assert.Equal(t, "own", derived.Str("description"))
}

func TestParseDocument_AliasExpansionLimit(t *testing.T) {
	t.Parallel()
	// Each level repeats the previous one ten times: a million nodes from a few hundred bytes.
	var b strings.Builder
	b.WriteString("l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= 6; i++ {
		prev := "*l" + strconv.Itoa(i-1)
		items := strings.TrimSuffix(strings.Repeat(prev+", ", 10), ", ")
		fmt.Fprintf(&b, "l%d: &l%d [%s]\n", i, i, items)
	}
	_, err := ParseDocument("bomb.yaml", []byte(b.String()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse), "got %v", err)
	assert.Contains(t, err.Error(), "expands too many aliases")

	// Ordinary reuse stays well under the limit.
	var ok strings.Builder
	ok.WriteString("shared: &shared {type: string, description: reused}\nprops:\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&ok, "  p%d: *shared\n", i)
	}
	doc, err := ParseDocument("reuse.yaml", []byte(ok.String()))
	require.NoError(t, err)
	assert.Equal(t, "reused", doc.Root.Get("props").Get("p199").Str("description"))
}

func TestNode_Accessors(t *testing.T) {
	t.Parallel()
	doc, err := ParseDocument("n.yaml", []byte(`
flag: true
count: 1000
ratio: 0.5
one: single
many: [a, 1, b]
nothing: null
list: [x, y]
`))
	require.NoError(t, err)
	root := doc.Root

	assert.True(t, root.Flag("flag"))
	n, err := root.Get("count").Number()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, n)
	assert.Equal(t, int64(1000), root.Get("count").Value())
	assert.Equal(t, 0.5, root.Get("ratio").Value())
	assert.Equal(t, []string{"single"}, root.Strings("one"))
	assert.Equal(t, []string{"a", "b"}, root.Strings("many"))
	assert.True(t, root.Get("nothing").IsNull())
	assert.True(t, root.Get("absent").IsNull())

	item, ok := root.Child("list", "1")
	require.True(t, ok)
	assert.Equal(t, "y", item.Scalar())
	_, ok = root.Child("list", "7")
	assert.False(t, ok)

	_, err = root.Get("one").Sequence()
	assert.True(t, errors.Is(err, ErrParse))
	_, err = root.Get("absent").Text()
	assert.ErrorContains(t, err, "expected string, found null")
}
