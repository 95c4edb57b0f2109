// Package format runs generated sources through an external or in-process formatter.
// Formatting is best effort: a file that fails to format is kept as rendered.
package format

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/mark3labs/swagger2client/internal/diag"
	"github.com/mark3labs/swagger2client/internal/emitter"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// Formatter rewrites one source file. path is the file's relative output path.
type Formatter interface {
	Format(ctx context.Context, path string, src []byte) ([]byte, error)
}

// GoImports formats Go sources in process with golang.org/x/tools/imports.
type GoImports struct{}

func (GoImports) Format(_ context.Context, path string, src []byte) ([]byte, error) {
	return imports.Process(path, src, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
}

// Command runs an external formatter. When an argument contains {file}, the source
// is written to a temporary file named like path, the placeholder is replaced by its
// location, and the file is read back after the command exits. Otherwise the source
// is piped through stdin and stdout.
type Command struct {
	Argv []string
}

const filePlaceholder = "{file}"

func (c Command) Format(ctx context.Context, path string, src []byte) ([]byte, error) {
	if len(c.Argv) == 0 {
		return nil, fmt.Errorf("format: empty command")
	}
	usesFile := false
	for _, a := range c.Argv {
		if strings.Contains(a, filePlaceholder) {
			usesFile = true
		}
	}
	if !usesFile {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
		cmd.Stdin = bytes.NewReader(src)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("%s: %w: %s", c.Argv[0], err, strings.TrimSpace(stderr.String()))
		}
		return stdout.Bytes(), nil
	}

	dir, err := os.MkdirTemp("", "swagger2client-format-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	tmp := filepath.Join(dir, filepath.Base(filepath.FromSlash(path)))
	if err := os.WriteFile(tmp, src, 0o644); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	args := make([]string, len(c.Argv))
	for i, a := range c.Argv {
		args[i] = strings.ReplaceAll(a, filePlaceholder, tmp)
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return os.ReadFile(tmp)
}

// ByName returns the formatter selected by the --format flag. "none" and the
// empty string disable formatting.
func ByName(name, command string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "goimports", "gofmt":
		return GoImports{}, nil
	case "command":
		argv := strings.Fields(command)
		if len(argv) == 0 {
			return nil, fmt.Errorf("--format command requires --formatter-cmd")
		}
		return Command{Argv: argv}, nil
	}
	return nil, fmt.Errorf("unknown formatter %q (want none, goimports or command)", name)
}

// Apply formats every file accepted by match concurrently. A failure is recorded as a
// warning in the run's diagnostics and that file keeps its unformatted content.
func Apply(ctx context.Context, f Formatter, files emitter.FileSet, match func(path string) bool) emitter.FileSet {
	out := make(emitter.FileSet, len(files))
	for p, src := range files {
		out[p] = src
	}
	if f == nil {
		return out
	}
	d := diag.FromContext(ctx)
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range files.Paths() {
		if match != nil && !match(p) {
			continue
		}
		src := files[p]
		g.Go(func() error {
			formatted, err := f.Format(ctx, p, src)
			if err != nil {
				d.Warn(diag.CodeFormatter, spec.Origin{Doc: p}, "formatting %s failed, keeping unformatted output: %v", p, err)
				return nil
			}
			mu.Lock()
			out[p] = formatted
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
