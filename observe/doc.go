// Package observe provides flow callbacks that export node executions to
// Prometheus and OpenTelemetry.
//
// Both are plain flow_go.Callback values; attach them per node with
// Builder.Callback or to every node with flow_go.WithCallbacks.
package observe
