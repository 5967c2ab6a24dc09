// Package aspects provides the built-in aspects: http bindings, documentation and
// versioning.
//
// Each aspect reads its section of the service configuration and the element tree
// while Merged is established, attaches attributes to elements, writes its section of
// the normalized configuration, and contributes lint rules reported as
// "<aspect>-<rule>" (for example "http-param-reserved-keyword").
//
// # Usage Example
//
//	if err := aspects.Register(m); err != nil {
//		return err
//	}
package aspects
