package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of a build failure.
type Kind string

const (
	KindFilesystem Kind = "filesystem"
	KindValidation Kind = "validation"
	KindTool       Kind = "tool"
	KindManifest   Kind = "manifest"
	KindConfig     Kind = "config"
	KindInternal   Kind = "internal"
)

// BuildError is a structured error carrying the stage and source location
// of a failure.
type BuildError struct {
	Kind     Kind
	Code     string
	Stage    string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BuildError with the same kind and code.
func (e *BuildError) Is(target error) bool {
	var t *BuildError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *BuildError) WithContext(key string, value interface{}) *BuildError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *BuildError) WithLocation(filePath string, line, column int) *BuildError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithStage records the pipeline stage the error surfaced in. An error that
// already carries a stage keeps it.
func (e *BuildError) WithStage(stage string) *BuildError {
	if e.Stage == "" {
		e.Stage = stage
	}

	return e
}

// NewFilesystemError creates an error for a missing or unwritable path.
func NewFilesystemError(code, message string, cause error) *BuildError {
	return &BuildError{
		Kind:    KindFilesystem,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *BuildError {
	return &BuildError{
		Kind:    KindValidation,
		Code:    code,
		Message: message,
	}
}

// NewToolInvocationError creates an error for a failed preprocessor or
// bundler run.
func NewToolInvocationError(code, message string, cause error) *BuildError {
	return &BuildError{
		Kind:    KindTool,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewManifestError creates an error for a malformed dependency manifest.
func NewManifestError(code, message string) *BuildError {
	return &BuildError{
		Kind:    KindManifest,
		Code:    code,
		Message: message,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *BuildError {
	return &BuildError{
		Kind:    KindConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *BuildError {
	return &BuildError{
		Kind:    KindInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns the kind of the first BuildError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind
	}

	return KindInternal
}

// IsKind checks whether err carries a BuildError of the given kind.
func IsKind(err error, kind Kind) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind == kind
	}

	return false
}

// IsFilesystemError checks if an error is filesystem-related.
func IsFilesystemError(err error) bool { return IsKind(err, KindFilesystem) }

// IsValidationError checks if an error is a validation failure.
func IsValidationError(err error) bool { return IsKind(err, KindValidation) }

// IsToolInvocationError checks if an error came from an external tool.
func IsToolInvocationError(err error) bool { return IsKind(err, KindTool) }

// IsManifestError checks if an error came from the dependency manifest.
func IsManifestError(err error) bool { return IsKind(err, KindManifest) }

// HasCode checks whether err carries a BuildError with the given code.
func HasCode(err error, code string) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == code
	}

	return false
}

// Common error codes.
const (
	ErrCodeResetFailed        = "ERR_RESET_FAILED"
	ErrCodeWriteFailed        = "ERR_WRITE_FAILED"
	ErrCodeReadFailed         = "ERR_READ_FAILED"
	ErrCodeMissingBundle      = "ERR_MISSING_BUNDLE"
	ErrCodeTokenCollision     = "ERR_TOKEN_COLLISION"
	ErrCodeInvalidToken       = "ERR_INVALID_TOKEN"
	ErrCodeShellMissing       = "ERR_SHELL_MISSING"
	ErrCodePlaceholderMissing = "ERR_PLACEHOLDER_MISSING"
	ErrCodeHomepageMissing    = "ERR_HOMEPAGE_MISSING"
	ErrCodeIncludeNotFound    = "ERR_INCLUDE_NOT_FOUND"
	ErrCodeEmptyOutputName    = "ERR_EMPTY_OUTPUT_NAME"
	ErrCodeDuplicateOutput    = "ERR_DUPLICATE_OUTPUT"
	ErrCodePathTraversal      = "ERR_PATH_TRAVERSAL"
	ErrCodeStyleCompile       = "ERR_STYLE_COMPILE"
	ErrCodeBundleFailed       = "ERR_BUNDLE_FAILED"
	ErrCodeManifestInvalid    = "ERR_MANIFEST_INVALID"
	ErrCodeBundleNameConflict = "ERR_BUNDLE_NAME_COLLISION"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeCommandRejected    = "ERR_COMMAND_REJECTED"
	ErrCodePublishFailed      = "ERR_PUBLISH_FAILED"
	ErrCodeListingConsumed    = "ERR_LISTING_CONSUMED"
	ErrCodeInternalError      = "ERR_INTERNAL"
)

// ErrPathTraversal creates an error for a path escaping its root.
func ErrPathTraversal(path string) *BuildError {
	return NewValidationError(ErrCodePathTraversal, "path escapes source root: "+path)
}

// ErrWriteFailed creates an error for an output file that could not be
// written.
func ErrWriteFailed(path string, cause error) *BuildError {
	return NewFilesystemError(ErrCodeWriteFailed, "failed to write output", cause).
		WithLocation(path, 0, 0)
}

// ErrReadFailed creates an error for a source file that could not be read.
func ErrReadFailed(path string, cause error) *BuildError {
	return NewFilesystemError(ErrCodeReadFailed, "failed to read source", cause).
		WithLocation(path, 0, 0)
}
