// Package compiler drives a complete conversion run.
//
// An input is an OpenAPI or Swagger document, a descriptor set, or a set of .proto
// sources, plus optional YAML service configurations. The compiler turns the input into
// a descriptor set, builds a model over it, registers the stage processors and built-in
// aspects and establishes the Linted stage. The normalized google.api.Service and every
// diagnostic are returned on the Result.
//
// Usage:
//
//	c, err := compiler.New(cfg, compiler.WithLogger(logger))
//	res, err := c.Compile(ctx, compiler.Input{Name: "petstore", OpenAPI: doc})
//	if res.HasErrors() {
//	    // print res.Diags
//	}
//
// CompileAll runs independent inputs concurrently.
package compiler
