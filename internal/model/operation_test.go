package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/swagger2client/internal/diag"
	"github.com/mark3labs/swagger2client/internal/model"
	"github.com/mark3labs/swagger2client/internal/model/modeltest"
)

const toysAPI = `openapi: 3.0.3
info:
  title: Toys
  version: 1.4.0
  description: Toy store.
servers:
  - url: https://toys.example.com/v1/
paths:
  /pets/{petId}/toys/{toyId}:
    parameters:
      - {name: toyId, in: path, required: true, schema: {type: string}}
      - {name: trace, in: header, schema: {type: string}}
    get:
      tags: [pets]
      operationId: Pets_GetToy
      summary: Fetch one toy.
      parameters:
        - {name: verbose, in: header, schema: {type: boolean}}
        - {name: fields, in: query, schema: {type: array, items: {type: string}}}
        - {name: tags, in: query, explode: false, schema: {type: array, items: {type: string}}}
        - {name: petId, in: path, required: true, schema: {type: integer}}
        - {name: trace, in: header, required: true, schema: {type: string}}
        - {name: session, in: cookie, schema: {type: string}}
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Toy'}
        '404':
          description: missing
          content:
            application/problem+json:
              schema: {$ref: '#/components/schemas/Problem'}
        5XX:
          description: server
        default:
          description: other
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Problem'}
  /toys:
    post:
      tags: [toys]
      operationId: createToy
      requestBody:
        required: true
        content:
          application/json:
            schema: {$ref: '#/components/schemas/Toy'}
      responses:
        '202': {description: accepted}
        '201':
          description: created
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Toy'}
  /items/{id}:
    delete:
      responses:
        '204': {description: gone}
components:
  schemas:
    Toy:
      type: object
      properties:
        name: {type: string}
    Problem:
      type: object
      properties:
        title: {type: string}
`

type paramShape struct {
	Name     string
	Location model.ParamLocation
	Required bool
	Explode  bool
}

func shapes(params []model.Param) []paramShape {
	var out []paramShape
	for _, p := range params {
		out = append(out, paramShape{Name: p.Name, Location: p.Location, Required: p.Required, Explode: p.Explode})
	}
	return out
}

func TestBuildOperations_ParameterOrder(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, toysAPI)
	require.Len(t, api.Operations, 3)

	op := api.Operations[0]
	assert.Equal(t, "Pets", op.Group)
	assert.Equal(t, "GetToy", op.Name)
	assert.Equal(t, "GET", op.Method)
	assert.Equal(t, "Fetch one toy.", op.Summary)
	assert.Equal(t, []string{"petId", "toyId"}, op.PathParams)
	assert.Equal(t, []paramShape{
		{Name: "petId", Location: model.InPath, Required: true},
		{Name: "toyId", Location: model.InPath, Required: true},
		{Name: "fields", Location: model.InQuery, Explode: true},
		{Name: "tags", Location: model.InQuery},
		{Name: "trace", Location: model.InHeader, Required: true},
		{Name: "verbose", Location: model.InHeader},
		{Name: "session", Location: model.InCookie},
	}, shapes(op.Params))
	assert.Nil(t, op.RequestBody)

	petID := op.ParamsIn(model.InPath)[0]
	assert.Equal(t, model.TypeID("builtin:int64"), petID.Type)
}

func TestBuildOperations_ErrorVariants(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, toysAPI)
	op := api.Operations[0]
	problem, ok := api.Types.ByName("Problem")
	require.True(t, ok)

	assert.Equal(t, []model.ErrorVariant{
		{Kind: model.ErrorStatus, Status: "404", Type: problem.ID()},
		{Kind: model.ErrorStatus, Status: "5XX"},
		{Kind: model.ErrorDefault, Status: "default", Type: problem.ID()},
		{Kind: model.ErrorTransport},
	}, op.Errors)

	require.Len(t, op.Responses, 4)
	assert.Equal(t, "application/problem+json", op.Responses[1].ContentType)
	assert.Equal(t, "missing", op.Responses[1].Description)
}

func TestBuildOperations_RequestBodyAndSuccess(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, toysAPI)
	op := api.Operations[1]
	toy, ok := api.Types.ByName("Toy")
	require.True(t, ok)

	assert.Equal(t, "Toys", op.Group)
	assert.Equal(t, "CreateToy", op.Name)
	require.NotNil(t, op.RequestBody)
	assert.Equal(t, model.Body{Type: toy.ID(), Required: true, ContentType: "application/json"}, *op.RequestBody)

	require.Len(t, op.Params, 1)
	assert.Equal(t, model.Param{Name: "body", Location: model.InBody, Type: toy.ID(), Required: true}, op.Params[0])

	success, ok := op.Success()
	require.True(t, ok)
	assert.Equal(t, "201", success.Status, "a status with content wins over a lower one without")
	assert.Equal(t, toy.ID(), success.Type)
}

func TestBuildOperations_SynthesizedPathParam(t *testing.T) {
	t.Parallel()
	api, c := buildDiag(t, toysAPI)
	op := api.Operations[2]

	assert.Equal(t, "", op.Group)
	assert.Equal(t, "DeleteItemsByID", op.Name)
	assert.Equal(t, []model.Param{
		{Name: "id", Location: model.InPath, Type: model.StringType, Required: true, Synthesized: true},
	}, op.Params)
	assert.Equal(t, []model.ErrorVariant{{Kind: model.ErrorTransport}}, op.Errors)

	warnings := c.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.CodePathParam, warnings[0].Code)
	assert.Contains(t, warnings[0].Message, `"id"`)
}

func TestNewAPI_GroupsAndMetadata(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, toysAPI)

	assert.Equal(t, "Toys", api.Title)
	assert.Equal(t, "1.4.0", api.Version)
	assert.Equal(t, "Toy store.", api.Description)
	assert.Equal(t, "https://toys.example.com/v1", api.BaseURL)

	var groups []string
	for _, g := range api.Groups {
		groups = append(groups, g.Name)
	}
	assert.Equal(t, []string{"Pets", "Toys", model.DefaultGroup}, groups)
}

func TestBuildOperations_Swagger2(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, `swagger: '2.0'
info: {title: Files, version: '3'}
host: files.example.com
basePath: /api/
schemes: [http, https]
consumes: [application/json]
paths:
  /pets:
    post:
      tags: [pets]
      operationId: addPet
      parameters:
        - {name: pet, in: body, required: true, description: The pet., schema: {$ref: '#/definitions/Pet'}}
      responses:
        '201': {description: created, schema: {$ref: '#/definitions/Pet'}}
  /upload:
    post:
      operationId: Files_Upload
      consumes: [multipart/form-data]
      parameters:
        - {name: file, in: formData, type: file, required: true}
        - {name: ids, in: query, type: array, items: {type: integer}, collectionFormat: multi}
        - {name: note, in: formData, type: string}
      responses:
        '204': {description: ok}
definitions:
  Pet:
    type: object
    properties:
      name: {type: string}
`)
	assert.Equal(t, "https://files.example.com/api", api.BaseURL)
	require.Len(t, api.Operations, 2)
	pet, ok := api.Types.ByName("Pet")
	require.True(t, ok)

	add := api.Operations[0]
	assert.Equal(t, "AddPet", add.Name)
	require.NotNil(t, add.RequestBody)
	assert.Equal(t, "application/json", add.RequestBody.ContentType)
	assert.Equal(t, model.Param{Name: "pet", Location: model.InBody, Type: pet.ID(), Required: true, Description: "The pet."}, add.Params[0])
	success, ok := add.Success()
	require.True(t, ok)
	assert.Equal(t, pet.ID(), success.Type)

	upload := api.Operations[1]
	assert.Equal(t, "Files", upload.Group)
	assert.Equal(t, "Upload", upload.Name)
	assert.Equal(t, []paramShape{
		{Name: "ids", Location: model.InQuery, Explode: true},
		{Name: "file", Location: model.InForm, Required: true},
		{Name: "note", Location: model.InForm},
	}, shapes(upload.Params))
	require.NotNil(t, upload.RequestBody)
	assert.Equal(t, model.Body{ContentType: "multipart/form-data"}, *upload.RequestBody)
	file := upload.ParamsIn(model.InForm)[0]
	typ, ok := api.Types.Get(file.Type)
	require.True(t, ok)
	assert.Equal(t, model.PrimBytes, typ.(model.Primitive).Prim)
}

func TestBuildOperations_BodyIsLast(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, `swagger: '2.0'
info: {title: Order, version: '1'}
paths:
  /stores/{storeId}/orders:
    post:
      operationId: placeOrder
      parameters:
        - {name: order, in: body, required: true, schema: {type: object, properties: {qty: {type: integer}}}}
        - {name: dryRun, in: query, type: boolean}
        - {name: storeId, in: path, required: true, type: string}
        - {name: coupon, in: query, type: string}
      responses:
        '200': {description: ok}
`)
	op := api.Operations[0]
	assert.Equal(t, []paramShape{
		{Name: "storeId", Location: model.InPath, Required: true},
		{Name: "dryRun", Location: model.InQuery},
		{Name: "coupon", Location: model.InQuery},
		{Name: "order", Location: model.InBody, Required: true},
	}, shapes(op.Params))

	body, ok := api.Types.Get(op.RequestBody.Type)
	require.True(t, ok)
	assert.Equal(t, "PlaceOrderRequest", body.Info().Name)
}

func TestBuildOperations_MergedBodyParameters(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, `swagger: '2.0'
info: {title: Merge, version: '1'}
paths:
  /pairs:
    put:
      operationId: putPair
      parameters:
        - {name: left, in: body, required: true, schema: {type: string}}
        - {name: right, in: body, schema: {type: integer}}
      responses:
        '200': {description: ok}
`)
	op := api.Operations[0]
	require.NotNil(t, op.RequestBody)
	assert.True(t, op.RequestBody.Required)

	body, ok := api.Types.Get(op.RequestBody.Type)
	require.True(t, ok)
	st, ok := body.(model.Struct)
	require.True(t, ok)
	assert.Equal(t, "PutPairBody", st.Name)
	require.Len(t, st.Fields, 2)
	assert.Equal(t, "left", st.Fields[0].Name)
	assert.True(t, st.Fields[0].Required)
	assert.False(t, st.Fields[1].Required)
}

func TestBuildOperations_NamesUniqueWithinGroup(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, `openapi: 3.0.3
info: {title: T, version: "1"}
paths:
  /a:
    get:
      tags: [pets]
      operationId: Pets_List
      responses: {'204': {description: ok}}
  /b:
    get:
      tags: [pets]
      operationId: list
      responses: {'204': {description: ok}}
  /c:
    get:
      tags: [toys]
      operationId: list
      responses: {'204': {description: ok}}
`)
	var names []string
	for _, op := range api.Operations {
		names = append(names, op.Group+"."+op.Name)
	}
	assert.Equal(t, []string{"Pets.List", "Pets.List2", "Toys.List"}, names)
}

func TestBuildOperations_Filters(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		opts []model.BuildOption
		want []string
	}{
		{name: "none", want: []string{"GetToy", "CreateToy", "DeleteItemsByID"}},
		{name: "include tag", opts: []model.BuildOption{model.WithIncludeTags([]string{"toys"})}, want: []string{"CreateToy"}},
		{name: "exclude tag", opts: []model.BuildOption{model.WithExcludeTags([]string{"pets", " "})}, want: []string{"CreateToy", "DeleteItemsByID"}},
		{name: "methods", opts: []model.BuildOption{model.WithMethods([]string{"DELETE", "get"})}, want: []string{"GetToy", "DeleteItemsByID"}},
		{name: "path pattern", opts: []model.BuildOption{model.WithPathPatterns([]string{"^/toys$", "("})}, want: []string{"CreateToy"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			api := modeltest.API(t, toysAPI, tc.opts...)
			var got []string
			for _, op := range api.Operations {
				got = append(got, op.Name)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPathPlaceholders(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a", "b"}, model.PathPlaceholders("/x/{a}/y/{b}.json"))
	assert.Nil(t, model.PathPlaceholders("/static"))
}
