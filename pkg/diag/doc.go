// Package diag provides the diagnostic records and collector shared by every stage of
// the compiler pipeline.
//
// # Overview
//
// A Diag is an immutable (kind, location, message) triple. Only two kinds exist: Error
// and Warning. A run fails iff at least one Error was recorded; warnings never block.
//
// # Collector
//
// The Collector accumulates diagnostics in order. It may be bounded: once the number of
// collected diagnostics exceeds the ceiling, Add reports Aborted and the collector stays
// aborted. The stage scheduler treats an aborted collector as ordinary stage failure.
//
// # Suppression
//
// Targets implementing Suppressor carry directives such as "http-*". Before a diagnostic
// identified as "<aspect>-<rule>" is appended via AddFor, the directives of the target
// and all of its ancestors are matched against the identifier. Matching diagnostics are
// dropped permanently.
//
// # Usage Example
//
//	c := diag.NewCollector(100)
//	c.Add(diag.Errorf(diag.SimpleLocation{File: "api.yaml", Line: 3}, "unknown selector %q", sel))
//	if c.HasErrors() {
//		for _, d := range c.Diags() {
//			fmt.Println(d)
//		}
//	}
//
// # Related Packages
//
//   - pkg/model: Owns one Collector per Model
//   - pkg/linter: Reports lint violations through the collector
package diag
