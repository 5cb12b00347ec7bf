// Package metrics records build and stage observations.
//
// Components receive a Recorder. NoopRecorder is the default; the
// PrometheusRecorder registers sitepress_* collectors on a registry that the
// build command can export to a node_exporter textfile and the development
// server can expose over HTTP. History keeps running totals across the
// rebuilds of a watch or serve session.
package metrics
