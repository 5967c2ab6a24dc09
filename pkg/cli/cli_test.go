package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/api/serviceconfig"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

const libraryProto = `syntax = "proto3";

package example.library.v1;

import "google/api/annotations.proto";

service Library {
  rpc GetBook(GetBookRequest) returns (Book) {
    option (google.api.http) = {get: "/v1/{name=books/*}"};
  }
}

message GetBookRequest {
  string name = 1;
}

message Book {
  string name = 1;
  string title = 2;
}
`

const libraryConfig = `type: google.api.Service
config_version: 3
name: library.example.com
title: Library API
`

// workspace writes the library sources to a fresh directory and returns the proto
// directory and the service config path
func workspace(t *testing.T, proto string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	protoDir := filepath.Join(dir, "proto")
	require.NoError(t, os.MkdirAll(protoDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(protoDir, "library.proto"), []byte(proto), 0o644))
	cfg := filepath.Join(dir, "library.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(libraryConfig), 0o644))
	return protoDir, cfg
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(&out, &errOut)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, "apicompiler", root.Name())

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"convert", "lint", "descriptor", "watch"}, names)
}

func TestConvert_JSON(t *testing.T) {
	protoDir, cfg := workspace(t, libraryProto)
	out, _, err := run(t, "convert", protoDir, "--supplementary", cfg, "-o", "json")
	require.NoError(t, err)

	svc := &serviceconfig.Service{}
	require.NoError(t, protojson.Unmarshal([]byte(out), svc))
	assert.Equal(t, "library.example.com", svc.GetName())
	assert.Equal(t, "Library API", svc.GetTitle())
	require.Len(t, svc.GetApis(), 1)
	assert.Equal(t, "example.library.v1.Library", svc.GetApis()[0].GetName())
	assert.Len(t, svc.GetHttp().GetRules(), 1)
}

func TestConvert_ThenDescriptor(t *testing.T) {
	protoDir, cfg := workspace(t, libraryProto)
	outDir := t.TempDir()
	_, _, err := run(t, "convert", protoDir, "--supplementary", cfg, "--out-dir", outDir)
	require.NoError(t, err)

	written := filepath.Join(outDir, "proto.yaml")
	svc, err := readService(written)
	require.NoError(t, err)
	assert.Equal(t, "library.example.com", svc.GetName())

	setPath := filepath.Join(outDir, "library.pb")
	_, _, err = run(t, "descriptor", written, "--out", setPath)
	require.NoError(t, err)

	data, err := os.ReadFile(setPath)
	require.NoError(t, err)
	set := &descriptorpb.FileDescriptorSet{}
	require.NoError(t, proto.Unmarshal(data, set))
	files, err := protodesc.NewFiles(set)
	require.NoError(t, err)
	_, err = files.FindDescriptorByName("example.library.v1.Library")
	assert.NoError(t, err)

	// the regenerated set compiles like any other descriptor set
	out, _, err := run(t, "convert", setPath, "--service-config", cfg, "-o", "json", "--skip-lint")
	require.NoError(t, err)
	again := &serviceconfig.Service{}
	require.NoError(t, protojson.Unmarshal([]byte(out), again))
	assert.Equal(t, "library.example.com", again.GetName())
	assert.Len(t, again.GetApis()[0].GetMethods(), 1)
}

func TestConvert_Errors(t *testing.T) {
	protoDir, _ := workspace(t, "syntax = \"proto3\";\npackage x;\nmessage A {\n  Missing m = 1;\n}\n")
	out, errOut, err := run(t, "convert", protoDir)
	assert.ErrorContains(t, err, "1 of 1 inputs failed")
	assert.Empty(t, out)
	assert.Contains(t, errOut, "error:")
	assert.Contains(t, errOut, "library.proto:4:")

	unknown := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(unknown, []byte("hi"), 0o644))
	_, _, err = run(t, "convert", unknown)
	assert.ErrorContains(t, err, "don't know how to compile")

	_, _, err = run(t, "convert", protoDir, "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestLint(t *testing.T) {
	protoDir, cfg := workspace(t, libraryProto)
	out, _, err := run(t, "lint", protoDir, "--supplementary", cfg, "--format", "json")
	require.NoError(t, err)

	var report struct {
		Results []lintInput `json:"results"`
		Summary lintSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.Summary.Inputs)
	assert.Zero(t, report.Summary.Errors)
	assert.Positive(t, report.Summary.Warnings)

	_, _, err = run(t, "lint", protoDir, "--supplementary", cfg, "--fail-on-warning")
	assert.ErrorContains(t, err, "warnings")

	_, _, err = run(t, "lint", protoDir, "--supplementary", cfg, "--suppress", "*", "--fail-on-warning")
	assert.NoError(t, err)

	out, _, err = run(t, "lint", "--rules")
	require.NoError(t, err)
	assert.Contains(t, out, "Naming rules:")
}

func TestMarshal_YAMLRoundTrip(t *testing.T) {
	svc := &serviceconfig.Service{Name: "x.example.com", Title: "3"}
	data, err := marshal(svc, formatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: x.example.com")
	assert.Contains(t, string(data), `title: "3"`)

	path := filepath.Join(t.TempDir(), "svc.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	back, err := readService(path)
	require.NoError(t, err)
	assert.True(t, proto.Equal(svc, back))

	_, err = marshal(svc, "xml")
	assert.Error(t, err)
}
