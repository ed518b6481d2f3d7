// Package metrics provides the observability hooks for sync runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	type Client struct {
//	    recorder metrics.Recorder
//	}
//
// When a textfile path is configured the CLI swaps in a PrometheusRecorder
// and flushes it with WriteTextfile once the run completes, which lets the
// node_exporter textfile collector pick up the results of batch runs.
package metrics
