// Package openapi imports Swagger 2.0 and OpenAPI 3.x documents as protobuf services.
//
// # Overview
//
// ParseDocument decodes a document with yaml.v3, keeping paths, properties and
// responses in document order so generated numbering is stable. A TypeBuilder
// translates schemas into google.protobuf.Type values and an Importer assembles one api
// with a method per operation, request and response messages, http rules and
// documentation rules. The result carries a descriptor set built with pkg/descgen, so
// the standard pipeline can compile it like any other input.
//
// # Translation
//
// Schemas are classified in priority order:
//
//   - unions (allOf, anyOf, oneOf) become google.protobuf.Value
//   - arrays become repeated fields; arrays of arrays become repeated ListValue
//   - references resolve to a type named after the definition
//   - primitives map through the type and format table
//   - objects with both properties and additionalProperties become Struct
//   - objects with only additionalProperties become maps
//   - objects with properties become messages numbered from 1 in declaration order
//
// Inline objects are named only when first used as a field value, after the enclosing
// name and property ("PetOwner"); clashes get a numeric suffix.
//
// # Usage Example
//
//	doc, err := openapi.ParseDocument("petstore.yaml", data)
//	if err != nil {
//		return err
//	}
//	res, err := openapi.NewImporter(openapi.Options{}, logger).Import(doc)
//	if err != nil {
//		return err
//	}
//	for _, d := range res.Diags {
//		fmt.Println(d)
//	}
package openapi
