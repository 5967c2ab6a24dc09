// Package cli provides the apicompiler command-line interface.
//
// # Commands
//
// convert: Compile inputs into normalized service configurations
//
//	apicompiler convert ./proto \
//		--supplementary library.yaml \
//		-o yaml
//
// Inputs may be directories or files of .proto sources, binary descriptor sets or
// OpenAPI/Swagger documents; several inputs are compiled concurrently:
//
//	apicompiler convert petstore.yaml api.pb --out-dir ./out -o json
//
// lint: Report diagnostics only
//
//	apicompiler lint ./proto --format github --fail-on-warning
//	apicompiler lint --rules
//
// descriptor: Rebuild a descriptor set from a normalized configuration
//
//	apicompiler descriptor service.yaml --out service.pb
//
// watch: Recompile on every change, optionally serving /metrics
//
//	apicompiler watch ./proto --metrics-addr :9090
//
// # Configuration
//
// Tool settings come from the --config file and APICOMPILER_* environment variables;
// see package config. NO_COLOR or --no-color disables colored diagnostics.
package cli
