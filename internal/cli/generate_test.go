package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// captureConfig runs the root command with args and returns the config handed to
// the generate runner. Tests using it swap a package variable and must not run in parallel.
func captureConfig(t *testing.T, args ...string) (*GenerateConfig, error) {
	t.Helper()
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })

	root.SetArgs(args)
	err := root.Execute()
	return captured, err
}

func TestGenerateConfigFromFlags(t *testing.T) {
	captured, err := captureConfig(t,
		"--verbose",
		"generate",
		"--input-file", "a.yaml",
		"-i", "b.json",
		"--lang", "typescript",
		"--out", "./build",
		"--include-tags", "foo,bar",
		"--exclude-tags", "baz",
		"--include-methods", "GET,post",
		"--path-pattern", "^/(pets|toys){1,2}",
		"--path-pattern", "^/admin",
		"--box-property", "Node.next",
		"--package-name", "pkg",
		"--api-version", "3",
		"--format", "command",
		"--formatter-cmd", "prettier --stdin-filepath {file}",
		"--validate",
		"--dry-run",
		"--force",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}

	want := &GenerateConfig{
		Inputs:        []string{"a.yaml", "b.json"},
		Lang:          "ts",
		Out:           "./build",
		PackageName:   "pkg",
		APIVersion:    "3",
		Format:        "command",
		FormatterCmd:  "prettier --stdin-filepath {file}",
		IncludeTags:   []string{"foo", "bar"},
		ExcludeTags:   []string{"baz"},
		Methods:       []string{"get", "post"},
		PathPatterns:  []string{"^/(pets|toys){1,2}", "^/admin"},
		BoxProperties: []string{"Node.next"},
		Validate:      true,
		DryRun:        true,
		Force:         true,
		Verbose:       true,
	}
	if diff := cmp.Diff(want, captured); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`inputs:
  - config-spec.yaml
lang: go
out: from-config
includeTags:
  - cfgFoo
excludeTags: cfgBar
methods: get, PUT
pathPatterns: ^/v{1,2}/
package_name: cfgpkg
module-name: example.com/cfg
apiVersion: 2
dryRun: true
force: false
verbose: true
`) + "\n"

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	captured, err := captureConfig(t,
		"--config", configPath,
		"generate",
		"--input-file", "flag-spec.yaml",
		"--include-tags", "flagTag",
		"--dry-run=false",
		"--force",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}

	want := &GenerateConfig{
		Inputs:       []string{"flag-spec.yaml"},
		Lang:         "go",
		Out:          "from-config",
		PackageName:  "cfgpkg",
		ModuleName:   "example.com/cfg",
		APIVersion:   "2",
		IncludeTags:  []string{"flagTag"},
		ExcludeTags:  []string{"cfgBar"},
		Methods:      []string{"get", "put"},
		PathPatterns: []string{"^/v{1,2}/"},
		ConfigPath:   configPath,
		DryRun:       false,
		Force:        true,
		Verbose:      true,
	}
	if diff := cmp.Diff(want, captured); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateConfigUnknownKey(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("unknown: value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := captureConfig(t, "--config", configPath, "generate", "--input-file", "spec.yaml")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestGenerateConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{"generate"}, "--input-file is required"},
		{"bad lang", []string{"generate", "-i", "a.yaml", "--lang", "python"}, `--lang "python" is not supported (allowed: go, ts)`},
		{"bad format", []string{"generate", "-i", "a.yaml", "--format", "black"}, `--format "black" is not supported`},
		{"command without cmd", []string{"generate", "-i", "a.yaml", "--format", "command"}, "--formatter-cmd is required when --format is command"},
		{"bad box property", []string{"generate", "-i", "a.yaml", "--box-property", "next"}, `"next" must have the form Schema.property`},
		{"tag overlap", []string{"generate", "-i", "a.yaml", "--include-tags", "a,b", "--exclude-tags", "b"}, "include/exclude tags overlap: b"},
		{"bad method", []string{"generate", "-i", "a.yaml", "--include-methods", "fetch"}, `--include-methods "fetch" is not supported`},
		{"bad path pattern", []string{"generate", "-i", "a.yaml", "--path-pattern", "(pets"}, `--path-pattern "(pets" is not a valid regular expression`},
		{"module for ts", []string{"generate", "-i", "a.yaml", "--lang", "ts", "--module-name", "x"}, "--module-name only applies to --lang go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captured, err := captureConfig(t, tt.args...)
			if err == nil {
				t.Fatalf("expected an error, got config %+v", captured)
			}
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
			if captured != nil {
				t.Fatalf("runner must not be called on invalid config")
			}
		})
	}
}

func TestValueAsStringSlice(t *testing.T) {
	t.Parallel()
	got, err := valueAsStringSlice(" a, ,b ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if _, err := valueAsStringSlice(map[string]any{}); err == nil {
		t.Fatalf("expected error for a mapping")
	}
}
