// Package protosrc compiles .proto sources into descriptor sets for the compiler
// pipeline.
//
// Compilation uses protocompile with standard source info so comments and positions
// reach the model. Imports resolve against the given sources, the standard imports and
// the files linked into the binary, which covers google/api/annotations.proto.
// Results are cached by a hash of the sources.
//
// @api: comment directives are scanned from the raw sources as well, because detached
// comments belong to no element. A directive such as
//
//	// @api:suppress-file:documentation-missing-comment
//
// suppresses matching diagnostics for the whole run.
package protosrc
