// Package descgen regenerates protobuf descriptors from a normalized service
// configuration.
//
// A service configuration lists its types, enums and apis in the google.protobuf.Type,
// Enum and Api forms. FromService turns them back into a FileDescriptorSet with one file
// per package, nests types whose enclosing type is also listed, restores map entries
// from the map_entry option and attaches configured http rules to methods as
// google.api.http options. The result is validated with protodesc before it is returned.
package descgen
