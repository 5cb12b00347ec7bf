package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns a plain error with the given text.
func New(text string) error { return errors.New(text) }

// Wrap wraps err as a BuildError of the given kind. When err already is a
// BuildError its stage and location carry over to the wrapper.
func Wrap(err error, kind Kind, code, message string) *BuildError {
	if err == nil {
		return nil
	}

	wrapped := &BuildError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   err,
	}

	var be *BuildError
	if errors.As(err, &be) {
		wrapped.Stage = be.Stage
		wrapped.FilePath = be.FilePath
		wrapped.Line = be.Line
		wrapped.Column = be.Column
		wrapped.Context = be.Context
	}

	return wrapped
}

// WrapFilesystem wraps an error as a filesystem error
func WrapFilesystem(err error, code, message string) *BuildError {
	return Wrap(err, KindFilesystem, code, message)
}

// WrapTool wraps an error as an external tool failure
func WrapTool(err error, code, message string) *BuildError {
	return Wrap(err, KindTool, code, message)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, code, message string) *BuildError {
	return Wrap(err, KindInternal, code, message)
}

// GetErrorContext extracts context information from a BuildError
func GetErrorContext(err error) map[string]interface{} {
	var be *BuildError
	if errors.As(err, &be) {
		context := make(map[string]interface{}, len(be.Context)+6)
		for k, v := range be.Context {
			context[k] = v
		}
		if be.Stage != "" {
			context["stage"] = be.Stage
		}
		if be.FilePath != "" {
			context["file"] = be.FilePath
			if be.Line > 0 {
				context["line"] = be.Line
				if be.Column > 0 {
					context["column"] = be.Column
				}
			}
		}
		context["kind"] = string(be.Kind)
		context["code"] = be.Code
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"kind":    "unknown",
	}
}

// ContextFields flattens GetErrorContext into key/value pairs sorted by key,
// ready to pass to a logger.
func ContextFields(err error) []interface{} {
	ctx := GetErrorContext(err)
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		fields = append(fields, k, ctx[k])
	}
	return fields
}

// ExtractCause returns the innermost cause of a chain of BuildErrors.
func ExtractCause(err error) error {
	for err != nil {
		var be *BuildError
		if !errors.As(err, &be) || be.Cause == nil {
			return err
		}
		err = be.Cause
	}
	return nil
}

// CollectErrors helper for common error collection patterns
func CollectErrors(errs ...error) []error {
	var collected []error
	for _, err := range errs {
		if err != nil {
			collected = append(collected, err)
		}
	}
	return collected
}

// FirstError returns the first non-nil error from a list
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// CombineErrors combines multiple errors into one. A single error is
// returned unchanged.
func CombineErrors(errs ...error) error {
	nonNilErrs := CollectErrors(errs...)
	switch len(nonNilErrs) {
	case 0:
		return nil
	case 1:
		return nonNilErrs[0]
	}

	messages := make([]string, 0, len(nonNilErrs))
	for _, err := range nonNilErrs {
		messages = append(messages, err.Error())
	}

	return &BuildError{
		Kind:    KindOf(nonNilErrs[0]),
		Code:    "ERR_MULTIPLE_ERRORS",
		Message: fmt.Sprintf("multiple errors occurred: %d errors", len(nonNilErrs)),
		Cause:   errors.Join(nonNilErrs...),
		Context: map[string]interface{}{
			"error_count": len(nonNilErrs),
			"errors":      messages,
		},
	}
}
