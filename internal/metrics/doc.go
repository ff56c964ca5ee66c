// Package metrics provides the feeder's metrics hooks.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check. The daemon swaps in a
// PrometheusRecorder when monitoring.metrics.enabled is set and mounts
// HTTPHandler on the control surface.
package metrics
