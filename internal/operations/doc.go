// Package operations runs datasets end to end.
//
// A DatasetSpec names a source, an ordered list of transform steps and an
// output. Manager.Run fetches and parses the source, applies each step
// through the dataprocessing package and writes the result with the
// exporter package, recording everything in a RunReport:
//
//	registry := operations.NewRegistry()
//	for _, spec := range datasets.Builtin() {
//		registry.Register(spec)
//	}
//	specs, _ := registry.Select("usa", "mexico")
//	reports, err := manager.RunAll(ctx, specs)
//
// Retrieval and parse errors stop a run. Step and persistence failures are
// soft: the step is recorded as failed, the table is carried forward
// unchanged and the run ends as degraded.
//
// Every run gets a UUID run ID and a trace ID in its context so that log
// records, spans and the stored report can be correlated.
package operations
