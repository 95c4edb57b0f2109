package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/swagger2client/internal/diag"
	"github.com/mark3labs/swagger2client/internal/emitter"
	"github.com/mark3labs/swagger2client/internal/format"
	"github.com/mark3labs/swagger2client/internal/generate"
	genspec "github.com/mark3labs/swagger2client/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Inputs        []string `flag:"input-file" validate:"required,dive,required"`
	Lang          string   `flag:"lang" validate:"oneof=go ts"`
	Out           string   `flag:"out"`
	PackageName   string   `flag:"package-name"`
	ModuleName    string   `flag:"module-name"`
	APIVersion    string   `flag:"api-version"`
	Format        string   `flag:"format" validate:"omitempty,oneof=none goimports gofmt command"`
	FormatterCmd  string   `flag:"formatter-cmd" validate:"required_if=Format command"`
	IncludeTags   []string `flag:"include-tags"`
	ExcludeTags   []string `flag:"exclude-tags"`
	Methods       []string `flag:"include-methods" validate:"dive,oneof=get put post delete options head patch trace"`
	PathPatterns  []string `flag:"path-pattern"`
	BoxProperties []string `flag:"box-property" validate:"dive,contains=."`
	Validate      bool     `flag:"validate"`
	AllowRemote   bool     `flag:"allow-remote"`
	ConfigPath    string   `flag:"config"`
	DryRun        bool     `flag:"dry-run"`
	Force         bool     `flag:"force"`
	Verbose       bool     `flag:"verbose"`
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Lang: generate.LangGo}
}

var generateRunner = runGenerate

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by the flag that sets them.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("flag"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a typed API client from OpenAPI/Swagger documents",
		Long: "Generate a typed API client from one or more OpenAPI 3.x or Swagger 2.0 documents. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  swagger2client generate --input-file spec.yaml --lang go --out ./petstore
  swagger2client generate --input-file a.yaml --input-file b.json --lang ts --format command --formatter-cmd "prettier --stdin-filepath {file}"
  swagger2client --config config.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayP("input-file", "i", nil, "Path or URL of an OpenAPI/Swagger document (repeatable)")
	flags.String("lang", "", "Target language to emit (go|ts); defaults to go")
	flags.String("out", "", "Output directory (derived from the package name when omitted)")
	flags.String("package-name", "", "Override the generated package name")
	flags.String("module-name", "", "Go: emit a go.mod declaring this module path")
	flags.String("api-version", "", "Override the API version constant (defaults to info.version)")
	flags.String("format", "", "Formatter to run over generated sources (none|goimports|command)")
	flags.String("formatter-cmd", "", "External formatter command for --format command; {file} is replaced by a temp file path")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("include-methods", nil, "Only include operations with these HTTP methods")
	flags.StringArray("path-pattern", nil, "Only include operations whose path matches this regular expression (repeatable)")
	flags.StringSlice("box-property", nil, "Force indirection for Schema.property fields")
	flags.Bool("validate", false, "Report OpenAPI schema violations as warnings")
	flags.Bool("allow-remote", false, "Follow http(s) references from local documents")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	for _, name := range []string{"lang", "out", "package-name", "module-name", "api-version", "format", "formatter-cmd"} {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*cfg.stringField(name) = strings.TrimSpace(value)
	}
	if flags.Changed("input-file") {
		value, err := flags.GetStringArray("input-file")
		if err != nil {
			return err
		}
		cfg.Inputs = value
	}
	if flags.Changed("path-pattern") {
		value, err := flags.GetStringArray("path-pattern")
		if err != nil {
			return err
		}
		cfg.PathPatterns = sanitizeTags(value)
	}
	for _, name := range []string{"include-tags", "exclude-tags", "include-methods", "box-property"} {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*cfg.sliceField(name) = sanitizeTags(value)
	}
	for _, name := range []string{"validate", "allow-remote", "dry-run", "force", "verbose"} {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*cfg.boolField(name) = value
	}

	return nil
}

func (c *GenerateConfig) stringField(name string) *string {
	switch name {
	case "lang":
		return &c.Lang
	case "out":
		return &c.Out
	case "package-name":
		return &c.PackageName
	case "module-name":
		return &c.ModuleName
	case "api-version":
		return &c.APIVersion
	case "format":
		return &c.Format
	case "formatter-cmd":
		return &c.FormatterCmd
	}
	panic("cli: unknown string field " + name)
}

func (c *GenerateConfig) sliceField(name string) *[]string {
	switch name {
	case "include-tags":
		return &c.IncludeTags
	case "exclude-tags":
		return &c.ExcludeTags
	case "include-methods":
		return &c.Methods
	case "box-property":
		return &c.BoxProperties
	}
	panic("cli: unknown list field " + name)
}

func (c *GenerateConfig) boolField(name string) *bool {
	switch name {
	case "validate":
		return &c.Validate
	case "allow-remote":
		return &c.AllowRemote
	case "dry-run":
		return &c.DryRun
	case "force":
		return &c.Force
	case "verbose":
		return &c.Verbose
	}
	panic("cli: unknown bool field " + name)
}

func (c *GenerateConfig) normalize() {
	var inputs []string
	for _, in := range c.Inputs {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, in)
		}
	}
	c.Inputs = inputs
	c.Lang = strings.ToLower(strings.TrimSpace(c.Lang))
	switch c.Lang {
	case "":
		c.Lang = generate.LangGo
	case "typescript", "npm":
		c.Lang = generate.LangTS
	}
	c.Out = strings.TrimSpace(c.Out)
	c.PackageName = strings.TrimSpace(c.PackageName)
	c.ModuleName = strings.TrimSpace(c.ModuleName)
	c.APIVersion = strings.TrimSpace(c.APIVersion)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.FormatterCmd = strings.TrimSpace(c.FormatterCmd)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.BoxProperties = sanitizeTags(c.BoxProperties)
	methods := make([]string, len(c.Methods))
	for i, m := range c.Methods {
		methods[i] = strings.ToLower(m)
	}
	c.Methods = sanitizeTags(methods)
	c.PathPatterns = sanitizeTags(c.PathPatterns)
}

func (c *GenerateConfig) validate() error {
	if err := configValidator.Struct(c); err != nil {
		var valErrs validator.ValidationErrors
		if !errors.As(err, &valErrs) {
			return err
		}
		msgs := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			field, _, _ := strings.Cut(ve.Field(), "[")
			msgs = append(msgs, fmt.Sprintf("--%s %s", field, formatValidationError(ve)))
		}
		return newUsageError("generate: " + strings.Join(msgs, "; "))
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	for _, p := range c.PathPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return newUsageError(fmt.Sprintf("generate: --path-pattern %q is not a valid regular expression: %v", p, err))
		}
	}
	if c.ModuleName != "" && c.Lang != generate.LangGo {
		return newUsageError("generate: --module-name only applies to --lang go")
	}

	return nil
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		if ve.Field() == "input-file" {
			return "is required (set via flag or config file)"
		}
		return "must not be empty"
	case "required_if":
		return "is required when --format is command"
	case "oneof":
		return fmt.Sprintf("%q is not supported (allowed: %s)", ve.Value(), strings.ReplaceAll(ve.Param(), " ", ", "))
	case "contains":
		return fmt.Sprintf("%q must have the form Schema.property", ve.Value())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

func newLogger(verbose bool) diag.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return diag.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	formatter, err := format.ByName(cfg.Format, cfg.FormatterCmd)
	if err != nil {
		return newUsageError("generate: " + err.Error())
	}
	log := newLogger(cfg.Verbose)

	res, err := generate.Generate(ctx, cfg.Inputs, generate.Options{
		Lang:          cfg.Lang,
		PackageName:   cfg.PackageName,
		ModuleName:    cfg.ModuleName,
		APIVersion:    cfg.APIVersion,
		Formatter:     formatter,
		IncludeTags:   cfg.IncludeTags,
		ExcludeTags:   cfg.ExcludeTags,
		Methods:       cfg.Methods,
		PathPatterns:  cfg.PathPatterns,
		BoxProperties: cfg.BoxProperties,
		Validate:      cfg.Validate,
		AllowRemote:   cfg.AllowRemote,
		Logger:        log,
	})
	if err != nil {
		// Map structured spec errors into friendly messages
		var se *genspec.SpecError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("spec: %s", se.Message)
			if se.Cause != nil && !strings.Contains(se.Message, se.Cause.Error()) {
				msg = fmt.Sprintf("%s: %v", msg, se.Cause)
			}
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			if se.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
			}
			return wrapUsageError(msg, err)
		}
		return err
	}

	outDir := cfg.Out
	if outDir == "" {
		outDir = res.PackageName
	}
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}

	planned, err := emitter.Write(outDir, res.Files, emitter.WriteOptions{Force: cfg.Force, DryRun: cfg.DryRun})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	warnings := 0
	for _, e := range res.Diagnostics {
		if e.Level == diag.LevelWarn {
			warnings++
		}
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(planned))
		for _, p := range planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(absOut, len(planned), paths)
		return nil
	}
	log.Info("generated client", "out", absOut, "files", len(planned), "operations", len(res.API.Operations), "warnings", warnings)
	fmt.Fprintf(os.Stdout, "Wrote %d files to %s\n", len(planned), absOut)
	return nil
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") || strings.Contains(lower, "not a directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

// configFields maps normalized config keys to flag names.
var configFields = map[string]string{
	"lang":           "lang",
	"out":            "out",
	"packagename":    "package-name",
	"modulename":     "module-name",
	"apiversion":     "api-version",
	"format":         "format",
	"formattercmd":   "formatter-cmd",
	"includetags":    "include-tags",
	"excludetags":    "exclude-tags",
	"includemethods": "include-methods",
	"methods":        "include-methods",
	"pathpattern":    "path-pattern",
	"pathpatterns":   "path-pattern",
	"boxproperty":    "box-property",
	"boxproperties":  "box-property",
	"validate":       "validate",
	"allowremote":    "allow-remote",
	"dryrun":         "dry-run",
	"force":          "force",
	"verbose":        "verbose",
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		switch normalized {
		case "input", "inputs", "inputfile", "inputfiles":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Inputs = list
			continue
		}
		name, ok := configFields[normalized]
		if !ok {
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		switch name {
		case "path-pattern":
			// Patterns may contain commas, so a string value is a single pattern.
			if str, ok := value.(string); ok {
				value = []any{str}
			}
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.PathPatterns = sanitizeTags(list)
		case "include-tags", "exclude-tags", "include-methods", "box-property":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*cfg.sliceField(name) = sanitizeTags(list)
		case "validate", "allow-remote", "dry-run", "force", "verbose":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*cfg.boolField(name) = val
		default:
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*cfg.stringField(name) = str
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	case int, float64:
		// api versions like 2 or 1.5 arrive as numbers
		return fmt.Sprint(val), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
