package pipeline

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/conneroisu/sitepress/internal/cachebust"
)

// StageStatus is how a stage ended.
type StageStatus string

const (
	StatusSucceeded StageStatus = "succeeded"
	// StatusWarning means the stage succeeded with skipped items.
	StatusWarning StageStatus = "warning"
	StatusFailed  StageStatus = "failed"
	StatusSkipped StageStatus = "skipped"
)

// StageReport describes one stage of a build.
type StageReport struct {
	Stage     Stage         `json:"stage" yaml:"stage"`
	Status    StageStatus   `json:"status" yaml:"status"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Artifacts []string      `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Warnings  []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the outcome of one Run.
type Report struct {
	BuildID  string          `json:"build_id" yaml:"build_id"`
	Token    cachebust.Token `json:"token" yaml:"token"`
	State    State           `json:"state" yaml:"state"`
	Output   string          `json:"output" yaml:"output"`
	Duration time.Duration   `json:"duration" yaml:"duration"`
	Stages   []StageReport   `json:"stages" yaml:"stages"`
}

func newReport(buildID, output string) *Report {
	r := &Report{BuildID: buildID, State: StatePending, Output: output}
	r.Stages = make([]StageReport, len(Stages))
	for i, s := range Stages {
		r.Stages[i] = StageReport{Stage: s, Status: StatusSkipped}
	}
	return r
}

// Stage returns the report of stage s.
func (r *Report) Stage(s Stage) *StageReport {
	for i := range r.Stages {
		if r.Stages[i].Stage == s {
			return &r.Stages[i]
		}
	}
	return nil
}

// Artifacts returns every artifact path relative to the output root, in
// stage order.
func (r *Report) Artifacts() []string {
	var out []string
	for _, s := range r.Stages {
		out = append(out, s.Artifacts...)
	}
	return out
}

// Warnings returns every stage warning prefixed with its stage.
func (r *Report) Warnings() []string {
	var out []string
	for _, s := range r.Stages {
		for _, w := range s.Warnings {
			out = append(out, string(s.Stage)+": "+w)
		}
	}
	return out
}

// Succeeded reports whether the build reached done.
func (r *Report) Succeeded() bool { return r.State == StateDone }

// WriteText renders the report as an aligned table.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Build %s: %s (token %s, %s)\n", r.BuildID, r.State, r.Token, r.Duration.Round(time.Millisecond))
	fmt.Fprintln(tw, "STAGE\tSTATUS\tDURATION\tARTIFACTS")
	for _, s := range r.Stages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Stage, s.Status, s.Duration.Round(time.Microsecond), len(s.Artifacts))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warning := range r.Warnings() {
		if _, err := fmt.Fprintln(w, "warning: "+warning); err != nil {
			return err
		}
	}
	for _, s := range r.Stages {
		if s.Error != "" {
			_, err := fmt.Fprintln(w, "error: "+string(s.Stage)+": "+strings.TrimSpace(s.Error))
			return err
		}
	}
	return nil
}
