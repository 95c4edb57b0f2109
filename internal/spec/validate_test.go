package spec

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseInput(t *testing.T, id, src string) *Document {
	t.Helper()
	doc, err := ParseDocument(id, []byte(src))
	require.NoError(t, err)
	doc.Input = true
	return doc
}

func TestValidate_ServesReferencesFromLoadedSet(t *testing.T) {
	t.Parallel()
	// Neither file exists on disk; both come from the set.
	api := parseInput(t, "/virtual/api.yaml", `openapi: 3.0.3
info: {title: Pets, version: "1"}
paths:
  /pets:
    get:
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema: {$ref: 'pet.yaml#/Pet'}
`)
	pet, err := ParseDocument("/virtual/pet.yaml", []byte("Pet:\n  type: object\n  properties:\n    name: {type: string}\n"))
	require.NoError(t, err)

	issues := Validate(context.Background(), NewDocumentSet(api, pet), api)
	assert.Empty(t, issues)
}

func TestValidate_DoesNotFetchUnloadedDocuments(t *testing.T) {
	t.Parallel()
	api := parseInput(t, "/virtual/api.yaml", `openapi: 3.0.3
info: {title: Pets, version: "1"}
paths:
  /pets:
    get:
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema: {$ref: 'https://schemas.invalid/pet.yaml#/Pet'}
`)
	issues := Validate(context.Background(), NewDocumentSet(api), api)
	require.NotEmpty(t, issues)
	var msgs []string
	for _, is := range issues {
		assert.Equal(t, "/virtual/api.yaml", is.Location)
		msgs = append(msgs, is.Message)
	}
	assert.Contains(t, strings.Join(msgs, "\n"), "was not loaded")
}

func TestValidate_SkipsFragments(t *testing.T) {
	t.Parallel()
	frag := parseInput(t, "/virtual/pet.yaml", "Pet: {type: object}\n")
	assert.Nil(t, Validate(context.Background(), NewDocumentSet(frag), frag))
}
