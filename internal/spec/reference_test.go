package spec

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		file    string
		pointer string
		tokens  []string
	}{
		{"#/components/schemas/Pet", "", "/components/schemas/Pet", []string{"components", "schemas", "Pet"}},
		{"other.yaml#/Pet", "other.yaml", "/Pet", []string{"Pet"}},
		{"other.yaml", "other.yaml", "", nil},
		{"#/paths/~1pets~1{id}/get", "", "/paths/~1pets~1{id}/get", []string{"paths", "/pets/{id}", "get"}},
		{"#/definitions/a%20b", "", "/definitions/a b", []string{"definitions", "a b"}},
		{"https://example.com/x.yaml#/A", "https://example.com/x.yaml", "/A", []string{"A"}},
	}
	for _, tt := range tests {
		ref, err := ParseReference(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.file, ref.File, tt.raw)
		assert.Equal(t, tt.pointer, ref.Pointer, tt.raw)
		assert.Equal(t, tt.tokens, ref.Tokens, tt.raw)
	}
}

func TestParseReference_Unsupported(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"#anchor", "", "ftp://example.com/a.yaml#/A", "other.yaml#name"} {
		_, err := ParseReference(raw)
		assert.True(t, errors.Is(err, ErrUnsupportedReference), "%q: got %v", raw, err)
	}
}

func TestRefKey_Name(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a/b", RefKey{Pointer: "/definitions/a~1b"}.Name())
	assert.Equal(t, "", RefKey{}.Name())
}

func TestResolveDocID(t *testing.T) {
	t.Parallel()
	base := filepath.Join(string(filepath.Separator), "specs", "api.yaml")
	got, err := resolveDocID(base, "defs/pet.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(string(filepath.Separator), "specs", "defs", "pet.yaml"), got)

	got, err = resolveDocID(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = resolveDocID("https://example.com/v1/api.yaml", "../common.yaml")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/common.yaml", got)
}
