package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/apicompiler/pkg/compiler"
	"github.com/platinummonkey/apicompiler/pkg/openapi"
)

// inputFlags are shared by every command that compiles inputs
type inputFlags struct {
	serviceConfig string
	supplementary []string
	importPaths   []string
	namespace     string
	serviceName   string
	suppress      []string
	strict        bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.serviceConfig, "service-config", "", "Primary service configuration (YAML or JSON)")
	fs.StringSliceVar(&f.supplementary, "supplementary", nil, "Service configurations merged on top, in order")
	fs.StringSliceVarP(&f.importPaths, "proto-path", "I", nil, "Additional directories searched for proto imports")
	fs.StringVar(&f.namespace, "namespace", "", "Package of types imported from OpenAPI documents")
	fs.StringVar(&f.serviceName, "service-name", "", "Service name of OpenAPI imports")
	fs.StringSliceVar(&f.suppress, "suppress", nil, "Diagnostic id patterns to suppress")
	fs.BoolVar(&f.strict, "strict-resolution", false, "Resolve type references anchored at their first component")
}

// descriptorExts are the extensions of binary descriptor sets
var descriptorExts = map[string]bool{".pb": true, ".desc": true, ".protoset": true, ".binpb": true}

// openapiExts are the extensions of OpenAPI and Swagger documents
var openapiExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// load turns each path into an input. A directory compiles every .proto file under it,
// a .proto file compiles on its own, descriptor set files are decoded and YAML or JSON
// files are read as OpenAPI or Swagger documents.
func (f *inputFlags) load(paths []string) ([]compiler.Input, error) {
	primary, supplementary, err := f.configs()
	if err != nil {
		return nil, err
	}
	inputs := make([]compiler.Input, 0, len(paths))
	for _, p := range paths {
		in, err := f.input(p)
		if err != nil {
			return nil, err
		}
		in.ServiceConfig = primary
		in.Supplementary = supplementary
		in.Suppressions = f.suppress
		in.StrictResolution = f.strict
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func (f *inputFlags) input(path string) (compiler.Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return compiler.Input{}, err
	}
	if info.IsDir() {
		roots, err := findProtoFiles(path)
		if err != nil {
			return compiler.Input{}, fmt.Errorf("failed to find proto files: %w", err)
		}
		if len(roots) == 0 {
			return compiler.Input{}, fmt.Errorf("no proto files found in %s", path)
		}
		return f.protoInput(path, path, roots)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".proto":
		dir := filepath.Dir(path)
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return compiler.Input{}, err
		}
		return f.protoInput(path, dir, []string{filepath.ToSlash(rel)})
	case descriptorExts[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return compiler.Input{}, err
		}
		set, err := compiler.DecodeDescriptorSet(data)
		if err != nil {
			return compiler.Input{}, fmt.Errorf("%s: %w", path, err)
		}
		return compiler.Input{Name: path, Descriptors: set}, nil
	case openapiExts[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return compiler.Input{}, err
		}
		doc, err := openapi.ParseDocument(path, data)
		if err != nil {
			return compiler.Input{}, err
		}
		return compiler.Input{
			Name:           path,
			OpenAPI:        doc,
			OpenAPIOptions: openapi.Options{Namespace: f.namespace, ServiceName: f.serviceName},
		}, nil
	}
	return compiler.Input{}, fmt.Errorf("don't know how to compile %s", path)
}

// protoInput reads the .proto files under dir and the import paths, keyed by their
// path relative to the directory they were found in. Files under dir win.
func (f *inputFlags) protoInput(name, dir string, roots []string) (compiler.Input, error) {
	sources := make(map[string]string)
	for _, root := range append([]string{dir}, f.importPaths...) {
		files, err := findProtoFiles(root)
		if err != nil {
			return compiler.Input{}, fmt.Errorf("failed to read %s: %w", root, err)
		}
		for _, rel := range files {
			if _, ok := sources[rel]; ok {
				continue
			}
			content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return compiler.Input{}, err
			}
			sources[rel] = string(content)
		}
	}
	return compiler.Input{Name: name, Sources: sources, Roots: roots}, nil
}

func (f *inputFlags) configs() (*compiler.ConfigFile, []compiler.ConfigFile, error) {
	var primary *compiler.ConfigFile
	if f.serviceConfig != "" {
		cf, err := readConfigFile(f.serviceConfig)
		if err != nil {
			return nil, nil, err
		}
		primary = &cf
	}
	var supplementary []compiler.ConfigFile
	for _, p := range f.supplementary {
		cf, err := readConfigFile(p)
		if err != nil {
			return nil, nil, err
		}
		supplementary = append(supplementary, cf)
	}
	return primary, supplementary, nil
}

func readConfigFile(path string) (compiler.ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return compiler.ConfigFile{}, fmt.Errorf("failed to read service config: %w", err)
	}
	return compiler.ConfigFile{Name: path, Data: data}, nil
}

// findProtoFiles lists the .proto files under dir relative to it, with forward slashes.
// Hidden and vendored directories are skipped.
func findProtoFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != dir && (strings.HasPrefix(name, ".") || name == "vendor" || name == "third_party") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".proto" {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	return files, err
}
