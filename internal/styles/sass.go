package styles

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/validation"
)

// Preprocessor turns one stylesheet source into CSS.
type Preprocessor interface {
	Compile(ctx context.Context, path string) ([]byte, error)
}

// SassCLI runs the sass command line compiler.
type SassCLI struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
	parser  *errors.ErrorParser
}

// NewSassCLI creates a preprocessor that runs cfg.Command in projectDir.
func NewSassCLI(cfg config.StylesConfig, projectDir string) (*SassCLI, error) {
	s := &SassCLI{
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		dir:     projectDir,
		timeout: cfg.Timeout,
		parser:  errors.NewErrorParser(),
	}
	if err := s.validateCommand(); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeCommandRejected, err.Error())
	}
	return s, nil
}

// validateCommand validates the command and arguments to prevent command injection
func (s *SassCLI) validateCommand() error {
	if err := validation.ValidateCommand(s.command, config.AllowedStyleCommands); err != nil {
		return err
	}

	for _, arg := range s.args {
		if err := validation.ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}

	return nil
}

// Compile runs the compiler on path and returns its standard output. The
// path is passed relative to the project directory.
func (s *SassCLI) Compile(ctx context.Context, path string) ([]byte, error) {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(s.dir, path)
		if err != nil {
			return nil, errors.ErrPathTraversal(path)
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	if err := validation.ValidateArgument(rel); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeCommandRejected, err.Error()).
			WithLocation(path, 0, 0)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), s.args...), rel)
	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Dir = s.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewToolInvocationError(errors.ErrCodeStyleCompile,
				fmt.Sprintf("%s timed out", s.command), ctx.Err()).
				WithLocation(rel, 0, 0)
		}
		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		if output == "" {
			output = err.Error()
		}
		return nil, s.parser.ToBuildError(errors.ErrCodeStyleCompile, rel, output, err)
	}

	return stdout.Bytes(), nil
}
