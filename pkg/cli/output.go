package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"google.golang.org/genproto/googleapis/api/serviceconfig"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

// Output formats
const (
	formatYAML   = "yaml"
	formatJSON   = "json"
	formatText   = "text"
	formatBinary = "binary"
)

var formatExts = map[string]string{
	formatYAML:   ".yaml",
	formatJSON:   ".json",
	formatText:   ".textproto",
	formatBinary: ".pb",
}

func checkFormat(format string) error {
	if _, ok := formatExts[format]; !ok {
		return fmt.Errorf("unknown output format %q (must be yaml, json, text or binary)", format)
	}
	return nil
}

// marshal renders msg in format. JSON and YAML use the proto field names so the output
// reads back as a service configuration.
func marshal(msg proto.Message, format string) ([]byte, error) {
	switch format {
	case formatJSON:
		return protojson.MarshalOptions{Multiline: true, Indent: "  ", UseProtoNames: true}.Marshal(msg)
	case formatText:
		return prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	case formatBinary:
		return proto.Marshal(msg)
	case formatYAML:
		data, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(msg)
		if err != nil {
			return nil, err
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		blockStyle(&doc)
		return yaml.Marshal(&doc)
	}
	return nil, checkFormat(format)
}

// blockStyle drops the flow style and quoting JSON input decodes with
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// readService reads a service configuration: binary when the extension says so, YAML or
// JSON otherwise. Fields outside google.api.Service, such as the type marker, are
// ignored.
func readService(path string) (*serviceconfig.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	svc := &serviceconfig.Service{}
	if descriptorExts[strings.ToLower(filepath.Ext(path))] {
		if err := proto.Unmarshal(data, svc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return svc, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(js, svc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return svc, nil
}

// writeOutput writes data to w, or to dir/<base of name><ext of format> when dir is set
func writeOutput(w io.Writer, dir, name, format string, data []byte) error {
	if dir == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return os.WriteFile(filepath.Join(dir, base+formatExts[format]), data, 0o644)
}

var (
	errorLabel   = color.New(color.FgRed, color.Bold)
	warningLabel = color.New(color.FgYellow, color.Bold)
	locationText = color.New(color.Bold)
)

// printDiags prints diagnostics one per line and returns the error and warning counts
func printDiags(w io.Writer, diags []diag.Diag) (errors, warnings int) {
	for _, d := range diags {
		label := warningLabel
		if d.Kind() == diag.Error {
			label = errorLabel
			errors++
		} else {
			warnings++
		}
		fmt.Fprintf(w, "%s %s %s\n",
			label.Sprintf("%s:", strings.ToLower(d.Kind().String())),
			locationText.Sprintf("%s:", d.Location().DisplayString()),
			d.Message())
	}
	return errors, warnings
}
