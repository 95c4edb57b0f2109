package spec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedSet(t *testing.T, pairs ...string) *DocumentSet {
	t.Helper()
	var docs []*Document
	for i := 0; i+1 < len(pairs); i += 2 {
		d, err := ParseDocument(pairs[i], []byte(pairs[i+1]))
		require.NoError(t, err)
		d.Input = i == 0
		docs = append(docs, d)
	}
	return NewDocumentSet(docs...)
}

func TestResolver_FollowsChainsAcrossDocuments(t *testing.T) {
	t.Parallel()
	set := parsedSet(t,
		"/s/api.yaml", `components:
  schemas:
    Alias: {$ref: '#/components/schemas/Pet'}
    Pet: {$ref: 'common.yaml#/Pet'}
`,
		"/s/common.yaml", "Pet: {type: object, description: from common}\n",
	)
	r := NewResolver(set)

	res, err := r.Resolve("/s/api.yaml", "#/components/schemas/Alias")
	require.NoError(t, err)
	assert.Equal(t, RefKey{Doc: "/s/common.yaml", Pointer: "/Pet"}, res.Key)
	assert.Equal(t, "from common", res.Node.Str("description"))
	assert.False(t, res.Deferred)
	assert.NoError(t, r.CheckAll(context.Background()))
}

func TestResolver_Unresolved(t *testing.T) {
	t.Parallel()
	set := parsedSet(t, "/s/api.yaml", "a: {$ref: '#/nowhere'}\nb: {$ref: 'other.yaml#/X'}\n")
	r := NewResolver(set)

	_, err := r.Resolve("/s/api.yaml", "#/nowhere")
	require.True(t, errors.Is(err, ErrUnresolvedReference))
	var se *SpecError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "#/nowhere", se.Ref)
	assert.Equal(t, "/s/api.yaml", se.Location)

	_, err = r.Resolve("/s/api.yaml", "other.yaml#/X")
	assert.ErrorContains(t, err, "is not loaded")

	err = r.CheckAll(context.Background())
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "/a", se.JSONPointer, "CheckAll reports the first reference in document order")
}

func TestResolver_PureReferenceCycle(t *testing.T) {
	t.Parallel()
	set := parsedSet(t, "/s/api.yaml", "A: {$ref: '#/B'}\nB: {$ref: '#/A'}\n")
	r := NewResolver(set)

	_, err := r.Resolve("/s/api.yaml", "#/A")
	assert.True(t, errors.Is(err, ErrCircularReference))
	assert.True(t, errors.Is(err, ErrUnresolvedReference))
	assert.NoError(t, r.CheckAll(context.Background()), "cycles are left for the modelers")
}

func TestResolver_ExpandDefersReentry(t *testing.T) {
	t.Parallel()
	set := parsedSet(t, "/s/api.yaml", "Node:\n  type: object\n  properties:\n    next: {$ref: '#/Node'}\n")
	r := NewResolver(set)
	key := RefKey{Doc: "/s/api.yaml", Pointer: "/Node"}

	var inner Resolution
	err := r.Expand(key, func() error {
		var err error
		inner, err = r.Resolve("/s/api.yaml", "#/Node")
		return err
	})
	require.NoError(t, err)
	assert.True(t, inner.Deferred)
	assert.Nil(t, inner.Node)
	assert.Equal(t, key, inner.Key)

	after, err := r.Resolve("/s/api.yaml", "#/Node")
	require.NoError(t, err)
	assert.False(t, after.Deferred, "expansion mark is cleared when fn returns")
}

func TestResolver_Lookup(t *testing.T) {
	t.Parallel()
	set := parsedSet(t, "/s/api.yaml", "paths:\n  /pets:\n    get: {operationId: list}\n")
	r := NewResolver(set)

	n, err := r.Lookup(RefKey{Doc: "/s/api.yaml", Pointer: "/paths/~1pets/get"})
	require.NoError(t, err)
	assert.Equal(t, "list", n.Str("operationId"))

	root, err := r.Lookup(RefKey{Doc: "/s/api.yaml"})
	require.NoError(t, err)
	assert.True(t, root.Has("paths"))

	_, err = r.Lookup(RefKey{Doc: "/s/other.yaml", Pointer: "/x"})
	assert.True(t, errors.Is(err, ErrUnresolvedReference))
}
