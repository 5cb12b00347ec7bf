package pipeline

import (
	"context"

	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/metrics"
)

// Observer is notified around every stage. Calls happen on the goroutine
// running the build.
type Observer interface {
	StageStarted(ctx context.Context, stage Stage)
	StageFinished(ctx context.Context, report StageReport)
}

// metricsObserver forwards stage outcomes to a metrics.Recorder.
type metricsObserver struct {
	recorder metrics.Recorder
}

func (m metricsObserver) StageStarted(context.Context, Stage) {}

func (m metricsObserver) StageFinished(_ context.Context, r StageReport) {
	stage := string(r.Stage)
	m.recorder.ObserveStageDuration(stage, r.Duration)
	m.recorder.AddArtifacts(stage, len(r.Artifacts))
	for range r.Warnings {
		m.recorder.IncItemFailure(stage)
	}

	switch r.Status {
	case StatusSucceeded:
		m.recorder.IncStageResult(stage, metrics.ResultSuccess)
	case StatusWarning:
		m.recorder.IncStageResult(stage, metrics.ResultWarning)
	case StatusFailed:
		m.recorder.IncStageResult(stage, metrics.ResultFatal)
	case StatusSkipped:
		m.recorder.IncStageResult(stage, metrics.ResultSkipped)
	}
}

// logObserver logs stage boundaries.
type logObserver struct {
	logger logging.Logger
}

func (l logObserver) StageStarted(ctx context.Context, stage Stage) {
	l.logger.Debug(ctx, "Stage started", "stage", string(stage))
}

func (l logObserver) StageFinished(ctx context.Context, r StageReport) {
	fields := []interface{}{
		"stage", string(r.Stage),
		"status", string(r.Status),
		"duration_ms", r.Duration.Milliseconds(),
		"artifacts", len(r.Artifacts),
	}
	if r.Status == StatusWarning {
		l.logger.Warn(ctx, nil, "Stage finished with warnings", append(fields, "warnings", len(r.Warnings))...)
		return
	}
	l.logger.Debug(ctx, "Stage finished", fields...)
}
