package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepress/internal/pipeline"
)

func TestServeBuildsAndStops(t *testing.T) {
	cfg := newProject(t)
	cfg.Serve.Host = "127.0.0.1"
	cfg.Serve.Port = 0
	s := NewServeService(cfg, newBuildService(t, cfg), nil)

	ctx, cancel := context.WithCancel(context.Background())
	builds := make(chan *pipeline.Report, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, func(report *pipeline.Report, err error) {
			select {
			case builds <- report:
			default:
			}
		})
	}()

	report := <-builds
	assert.Equal(t, pipeline.StateDone, report.State)

	cancel()
	require.NoError(t, <-done)
}
