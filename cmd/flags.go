package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepress/internal/config"
)

// outputFormat is the value of a --format flag.
type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(s string) error {
	switch outputFormat(s) {
	case formatText, formatJSON, formatYAML:
		*f = outputFormat(s)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", s)
	}
}

func (f *outputFormat) Type() string { return "format" }

func addFormatFlag(cmd *cobra.Command, target *outputFormat) {
	*target = formatText
	cmd.Flags().VarP(target, "format", "f", "Output format (text, json, yaml)")
}

// policyValue is the value of --on-error. The empty value keeps the
// configured policies.
type policyValue string

var _ pflag.Value = (*policyValue)(nil)

func (p *policyValue) String() string { return string(*p) }

func (p *policyValue) Set(s string) error {
	switch config.FailurePolicy(s) {
	case config.PolicyAbort, config.PolicyContinue:
		*p = policyValue(s)
		return nil
	default:
		return fmt.Errorf("unsupported failure policy: %s (supported: abort, continue)", s)
	}
}

func (p *policyValue) Type() string { return "policy" }

// textWriter is implemented by values with a human-readable rendering.
type textWriter interface {
	WriteText(w io.Writer) error
}

// writeFormatted renders v to w in format. Text output uses v's WriteText
// when it has one and fmt otherwise.
func writeFormatted(w io.Writer, format outputFormat, v interface{}) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		if tw, ok := v.(textWriter); ok {
			return tw.WriteText(w)
		}
		_, err := fmt.Fprintln(w, v)
		return err
	}
}
