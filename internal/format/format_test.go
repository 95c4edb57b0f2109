package format

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/swagger2client/internal/diag"
	"github.com/mark3labs/swagger2client/internal/emitter"
)

func TestGoImports(t *testing.T) {
	t.Parallel()
	src := []byte("package p\nfunc   F( ) int {return 1}\n")
	got, err := GoImports{}.Format(context.Background(), "p.go", src)
	require.NoError(t, err)
	assert.Contains(t, string(got), "func F() int { return 1 }")
}

func TestGoImports_SyntaxError(t *testing.T) {
	t.Parallel()
	_, err := GoImports{}.Format(context.Background(), "p.go", []byte("package p\nfunc {"))
	assert.Error(t, err)
}

func TestCommand_Stdin(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("tr"); err != nil {
		t.Skip("tr not available")
	}
	got, err := Command{Argv: []string{"tr", "a-z", "A-Z"}}.Format(context.Background(), "x.ts", []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(got))
}

func TestCommand_FilePlaceholder(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cmd := Command{Argv: []string{"sh", "-c", "printf formatted > \"$0\"", "{file}"}}
	got, err := cmd.Format(context.Background(), "src/client.ts", []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "formatted", string(got))
}

type failing struct{}

func (failing) Format(context.Context, string, []byte) ([]byte, error) {
	return nil, errors.New("boom")
}

type upper struct{}

func (upper) Format(_ context.Context, _ string, src []byte) ([]byte, error) {
	return append([]byte("// formatted\n"), src...), nil
}

func TestApply_FailureKeepsSourceAndWarns(t *testing.T) {
	t.Parallel()
	c := diag.NewCollector(nil)
	ctx := diag.WithCollector(context.Background(), c)
	files := emitter.FileSet{"a.go": []byte("a"), "b.go": []byte("b")}

	out := Apply(ctx, failing{}, files, nil)

	assert.Equal(t, files, out)
	warnings := c.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, diag.CodeFormatter, warnings[0].Code)
	assert.Equal(t, "a.go", warnings[0].Origin.Doc)
}

func TestApply_Match(t *testing.T) {
	t.Parallel()
	files := emitter.FileSet{"a.go": []byte("a"), "go.mod": []byte("module m\n")}
	out := Apply(context.Background(), upper{}, files, func(p string) bool { return p == "a.go" })
	assert.Equal(t, "// formatted\na", string(out["a.go"]))
	assert.Equal(t, "module m\n", string(out["go.mod"]))
	// The input set is left untouched.
	assert.Equal(t, "a", string(files["a.go"]))
}

func TestByName(t *testing.T) {
	t.Parallel()
	f, err := ByName("none", "")
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = ByName("goimports", "")
	require.NoError(t, err)
	assert.IsType(t, GoImports{}, f)

	f, err = ByName("command", "prettier --parser typescript")
	require.NoError(t, err)
	assert.Equal(t, Command{Argv: []string{"prettier", "--parser", "typescript"}}, f)

	_, err = ByName("command", " ")
	assert.Error(t, err)
	_, err = ByName("clang-format", "")
	assert.Error(t, err)
}
