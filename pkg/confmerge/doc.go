// Package confmerge implements the location-preserving configuration tree used to
// assemble and merge service configuration.
//
// # Overview
//
// A Config is an immutable, message-shaped value tree described by a protobuf message
// descriptor. Every node carries an opaque NodeID assigned when the node is created. The
// root of each tree owns a side table that maps (node id, field, element key) to the
// source location the value came from. Node identity is never structural: two equal
// sub-trees built independently keep independent provenance.
//
// # Building
//
// Builder is a copy-on-write view over a Config. SetValue, AddValue and the WithBuilder
// family record the acting field, element key and location in a local diff which is
// folded back into the parent when a scoped sub-builder finishes. Build produces a new
// Config; locations recorded against the previous tree are carried forward for fields
// that were not touched.
//
// # Merge Policies
//
// MergeFrom uses legacy (proto2-like) semantics: in addition to the usual field-level
// merge, a scalar that was only set through default propagation and is not set in the
// incoming tree is reset to its default. MergeFromWithProto3Semantics never does that
// reset, and treats incoming zero-valued scalars without presence as unset. Both
// policies are kept deliberately; callers select one.
//
// # Usage Example
//
//	b := confmerge.NewBuilder((&serviceconfig.Service{}).ProtoReflect().Descriptor())
//	b.SetValue("name", "", "library.example.com", loc)
//	b.WithBuilder("http", func(h *confmerge.Builder) {
//		h.WithAddedBuilder("rules", func(r *confmerge.Builder) {
//			r.SetValue("selector", "", "example.Library.GetBook", loc)
//			r.SetValue("get", "", "/v1/{name=shelves/*/books/*}", loc)
//		})
//	})
//	cfg, err := b.Build()
//
// # Related Packages
//
//   - pkg/diag: Location types
//   - pkg/processors: Builds the normalized service configuration with this package
package confmerge
