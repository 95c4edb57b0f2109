package npmemitter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/swagger2client/internal/model/modeltest"
	"github.com/mark3labs/swagger2client/internal/spec"
)

const sample = `
swagger: "2.0"
info:
  title: Sample API
  version: 1.0.0
host: api.example.com
basePath: /v2
schemes: [http, https]
paths:
  /hello/{name}:
    get:
      operationId: Greetings_Hello
      summary: Say hello
      parameters:
        - {name: name, in: path, required: true, type: string}
        - {name: lang, in: query, type: array, items: {type: string}, collectionFormat: csv}
        - {name: X-Request-ID, in: header, type: string}
      responses:
        '200':
          description: ok
          schema: {$ref: '#/definitions/Hello'}
        '500':
          description: boom
          schema: {$ref: '#/definitions/Problem'}
    put:
      operationId: Greetings_Update
      parameters:
        - {name: name, in: path, required: true, type: string}
        - {name: hello, in: body, required: true, schema: {$ref: '#/definitions/Hello'}}
      responses:
        '204': {description: done}
definitions:
  Mood:
    type: string
    enum: [happy, grumpy]
  Hello:
    type: object
    description: Greeting
    required: [message]
    properties:
      message: {type: string}
      mood: {$ref: '#/definitions/Mood'}
      tags: {type: array, items: {type: string}}
      count: {type: integer, x-nullable: true}
  Problem:
    type: object
    properties:
      detail: {type: string}
`

func TestRender_Plan(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, sample)
	res, err := Render(context.Background(), api, Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.PackageName != "sample-api-client" {
		t.Fatalf("package name: got %q", res.PackageName)
	}
	var got []string
	for _, pf := range res.Planned {
		got = append(got, pf.RelPath)
	}
	want := []string{"package.json", "src/client.ts", "src/index.ts", "src/models.ts", "tsconfig.json"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("planned files (-want +got):\n%s", diff)
	}

	var pkg map[string]any
	if err := json.Unmarshal(res.Files["package.json"], &pkg); err != nil {
		t.Fatalf("package.json: %v", err)
	}
	if pkg["name"] != "sample-api-client" || pkg["version"] != "1.0.0" {
		t.Fatalf("package.json fields: %+v", pkg)
	}
}

func TestRender_ModelsAndClient(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, sample)
	res, err := Render(context.Background(), api, Options{PackageName: "@Acme/Hello"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.PackageName != "acme-hello" {
		t.Fatalf("package name: got %q", res.PackageName)
	}
	models := string(res.Files["src/models.ts"])
	for _, want := range []string{
		`export type Mood = "happy" | "grumpy";`,
		`  Happy: "happy",`,
		"/** Greeting */\nexport interface Hello {",
		"  message: string;",
		"  mood?: Mood;",
		"  tags?: Array<string>;",
		"  count?: number | null;",
	} {
		if !strings.Contains(models, want) {
			t.Errorf("models.ts missing %q\n%s", want, models)
		}
	}

	client := string(res.Files["src/client.ts"])
	for _, want := range []string{
		`export const DEFAULT_BASE_URL = "https://api.example.com/v2";`,
		"  readonly greetings: GreetingsClient;",
		`  async hello(params: { name: string; lang?: Array<string>; "X-Request-ID"?: string }): Promise<models.Hello> {`,
		"this.client.send(\"GET\", `/hello/${encodeURIComponent(String(params.name))}`, { query: { lang: params.lang?.join(\",\") }, headers: { \"X-Request-ID\": params[\"X-Request-ID\"] === undefined ? undefined : String(params[\"X-Request-ID\"]) } })",
		`  async update(params: { name: string }, body: models.Hello): Promise<void> {`,
		`contentType: "application/json"`,
	} {
		if !strings.Contains(client, want) {
			t.Errorf("client.ts missing %q\n%s", want, client)
		}
	}
}

func TestRender_MapInHeaderIsEmitError(t *testing.T) {
	t.Parallel()
	api := modeltest.API(t, `
openapi: 3.0.0
info: {title: t, version: "1"}
paths:
  /x:
    get:
      parameters:
        - name: X-Labels
          in: header
          schema: {type: object, additionalProperties: {type: string}}
      responses:
        '200': {description: ok}
`)
	_, err := Render(context.Background(), api, Options{})
	if !errors.Is(err, spec.ErrEmit) {
		t.Fatalf("expected emit error, got %v", err)
	}
}

func TestSanitizePackageName(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"My Client", "my-client"},
		{"a/b", "a-b"},
		{"..weird--", "weird"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizePackageName(tt.in); got != tt.want {
			t.Errorf("sanitizePackageName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDerivePackageName(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"Sample API", "sample-api-client"},
		{"Storage Client", "storage-client"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := derivePackageName(tt.in); got != tt.want {
			t.Errorf("derivePackageName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
