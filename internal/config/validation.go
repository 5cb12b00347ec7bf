package config

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/validation"
)

// AllowedStyleCommands lists the stylesheet compilers the build may execute.
var AllowedStyleCommands = map[string]bool{
	"sass":      true,
	"dart-sass": true,
	"sassc":     true,
}

var (
	attributeNameRegex = regexp.MustCompile(`^[a-zA-Z_:][-a-zA-Z0-9_:.]*$`)
	tagNameRegex       = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)+$`)
	jsonKeyRegex       = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	hostnameRegex      = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    → %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    → %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateLayoutDetails(config, result)
	validateHTMLConfigDetails(&config.HTML, result)
	validateStylesConfigDetails(&config.Styles, result)
	validateBundlesConfigDetails(&config.Bundles, result)
	validateDepsConfigDetails(&config.Deps, result)
	validateServeConfigDetails(&config.Serve, result)
	validateLogConfigDetails(&config.Log, result)

	if config.Build.Concurrency < 0 {
		result.addError("build.concurrency", config.Build.Concurrency,
			"concurrency cannot be negative",
			"Use 0 to run one worker per CPU")
	}

	if config.Metrics.Textfile != "" {
		if err := validation.ValidatePath(config.Metrics.Textfile); err != nil {
			result.addError("metrics.textfile", config.Metrics.Textfile, err.Error(),
				"Use a relative path such as 'metrics/sitepress.prom'")
		}
	}

	result.Valid = !result.HasErrors()

	return result
}

// validateConfig returns the first validation error as a config BuildError.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}

	first := result.Errors[0]
	return errors.NewConfigError(errors.ErrCodeConfigInvalid, first.Error()).
		WithContext("field", first.Field).
		WithContext("error_count", len(result.Errors))
}

func validateLayoutDetails(config *Config, result *ValidationResult) {
	// The project directory may be absolute; everything else resolves
	// against it.
	if strings.TrimSpace(config.ProjectDir) == "" {
		result.addError("project_dir", config.ProjectDir, "project directory cannot be empty",
			"Use '.' for the working directory")
	} else if strings.ContainsAny(config.ProjectDir, ";&|$`<>") {
		result.addError("project_dir", config.ProjectDir, "project directory contains shell metacharacters")
	}

	paths := map[string]string{
		"source.root":         config.Source.Root,
		"source.compiled_dir": config.Source.CompiledDir,
		"output.root":         config.Output.Root,
		"output.assets_dir":   config.Output.AssetsDir,
	}
	for field, path := range paths {
		if err := validation.ValidatePath(path); err != nil {
			result.addError(field, path, err.Error(),
				"Use a relative path from the project root",
				"Avoid parent directory references (..)")
		}
	}

	src := filepath.Clean(config.Source.Root)
	out := filepath.Clean(config.Output.Root)
	if src == out || isWithin(out, src) || isWithin(src, out) {
		result.addError("output.root", config.Output.Root,
			fmt.Sprintf("output root %q overlaps source root %q", config.Output.Root, config.Source.Root),
			"Publish to a sibling directory such as 'build'")
	}

	for i, name := range config.Source.Passthrough {
		if name == "" || strings.ContainsAny(name, `/\`) {
			result.addError(fmt.Sprintf("source.passthrough[%d]", i), name,
				"passthrough entries must be plain file names",
				"List files that live directly in the project directory, e.g. 'CNAME'")
		}
	}

	if !config.Output.Atomic {
		result.addWarning("output.atomic", config.Output.Atomic,
			"non-atomic publish leaves a partial tree on failure",
			"Enable output.atomic to stage the build beside the output root")
	}
}

func validateHTMLConfigDetails(config *HTMLConfig, result *ValidationResult) {
	for field, name := range map[string]string{
		"html.shell":     config.Shell,
		"html.homepage":  config.Homepage,
		"html.page_name": config.PageName,
	} {
		if err := validation.ValidateFileExtension(name, []string{".html", ".htm"}); err != nil {
			result.addError(field, name, err.Error(), "Use an .html file name")
		}
	}

	if config.Shell == config.Homepage {
		result.addError("html.homepage", config.Homepage,
			"homepage and shell must be different files")
	}

	if strings.TrimSpace(config.Placeholder) == "" {
		result.addError("html.placeholder", config.Placeholder,
			"placeholder cannot be empty",
			"Use the default 'REPLACE_WITH_HTML'")
	}

	if !attributeNameRegex.MatchString(config.CachebustAttribute) {
		result.addError("html.cachebust_attribute", config.CachebustAttribute,
			"not a valid HTML attribute name",
			"Use the default 'data-cachebust'")
	}

	if !tagNameRegex.MatchString(config.IncludeTag) {
		result.addError("html.include_tag", config.IncludeTag,
			"include tag must be a lower-case custom element name containing a hyphen",
			"Use the default 'import-component'")
	}
}

func validateStylesConfigDetails(config *StylesConfig, result *ValidationResult) {
	if err := validation.ValidateCommand(config.Command, AllowedStyleCommands); err != nil {
		result.addError("styles.command", config.Command, err.Error(),
			"Install dart-sass and use 'sass'",
			"Allowed commands: sass, dart-sass, sassc")
	}

	for i, arg := range config.Args {
		if err := validation.ValidateArgument(arg); err != nil {
			result.addError(fmt.Sprintf("styles.args[%d]", i), arg, err.Error(),
				"Avoid shell metacharacters in compiler flags")
		}
	}

	if len(config.Patterns) == 0 {
		result.addWarning("styles.patterns", config.Patterns,
			"no stylesheet patterns - compile-styles will do nothing",
			"Add '**/*.scss' to compile Sass sources")
	}
	for i, pattern := range config.Patterns {
		if !doublestar.ValidatePattern(pattern) {
			result.addError(fmt.Sprintf("styles.patterns[%d]", i), pattern, "invalid glob pattern")
		}
	}

	validatePolicy("styles.on_error", config.OnError, result)

	if config.Timeout <= 0 {
		result.addError("styles.timeout", config.Timeout, "timeout must be positive",
			"Use a duration such as '60s'")
	}
}

func validateBundlesConfigDetails(config *BundlesConfig, result *ValidationResult) {
	for field, path := range map[string]string{
		"bundles.application":        config.Application,
		"bundles.application_target": config.ApplicationTarget,
		"bundles.worker":             config.Worker,
		"bundles.worker_target":      config.WorkerTarget,
	} {
		if err := validation.ValidatePath(path); err != nil {
			result.addError(field, path, err.Error(),
				"Use a path relative to the compiled or output root")
		}
	}

	if config.Components != "" && !doublestar.ValidatePattern(config.Components) {
		result.addError("bundles.components", config.Components, "invalid glob pattern",
			"Use a pattern such as '**/*.js'")
	}
}

func validateDepsConfigDetails(config *DepsConfig, result *ValidationResult) {
	if err := validation.ValidatePath(config.Manifest); err != nil {
		result.addError("deps.manifest", config.Manifest, err.Error())
	}
	if err := validation.ValidatePath(config.ScratchDir); err != nil {
		result.addError("deps.scratch_dir", config.ScratchDir, err.Error())
	}
	if !jsonKeyRegex.MatchString(config.Key) {
		result.addError("deps.key", config.Key, "manifest key must be a plain identifier",
			"Use the default 'webDependencies'")
	}

	validatePolicy("deps.on_error", config.OnError, result)
}

func validateServeConfigDetails(config *ServeConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("serve.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("serve.port", config.Port,
			"port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("serve.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces")
		}
	}

	if config.Debounce < 0 {
		result.addError("serve.debounce", config.Debounce, "debounce cannot be negative")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		result.addError("log.level", config.Level, "unknown log level",
			"Use one of: debug, info, warn, error")
	}

	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, "unknown log format",
			"Use 'text' or 'json'")
	}
}

func validatePolicy(field string, policy FailurePolicy, result *ValidationResult) {
	switch policy {
	case PolicyAbort, PolicyContinue:
	default:
		result.addError(field, policy, fmt.Sprintf("unknown failure policy %q", policy),
			"Use 'abort' to fail the build on the first broken item",
			"Use 'continue' to skip broken items with a warning")
	}
}

func validateHostname(host string) error {
	if strings.ContainsAny(host, ";&|$`()<>\"'\\") {
		return fmt.Errorf("contains dangerous character")
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func isWithin(path, root string) bool {
	if root == "." {
		return true
	}
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
