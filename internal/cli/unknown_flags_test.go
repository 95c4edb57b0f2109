package cli

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFlagErrors_AreUsageErrorsWithHelp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown generate flag", args: []string{"generate", "--unknown-flag"}, want: "unknown flag"},
		{name: "unknown init flag", args: []string{"init", "--lang", "go"}, want: "unknown flag"},
		{name: "bad bool", args: []string{"generate", "--validate=maybe"}, want: "invalid argument"},
		{name: "missing value", args: []string{"generate", "--input-file"}, want: "needs an argument"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			root := NewRootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(tc.args)

			err := root.Execute()
			if err == nil {
				t.Fatalf("expected an error for %v", tc.args)
			}
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %T: %v", err, err)
			}
			if got := ExitCode(err); got != ExitUsage {
				t.Fatalf("exit code = %d, want %d", got, ExitUsage)
			}
			if !strings.Contains(err.Error(), tc.want) || !strings.Contains(err.Error(), "Usage:") {
				t.Fatalf("unexpected error text: %v", err)
			}
		})
	}
}
