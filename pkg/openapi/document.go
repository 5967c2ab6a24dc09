package openapi

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotOpenAPI is returned for documents that declare neither swagger nor openapi
var ErrNotOpenAPI = errors.New("document is not an OpenAPI or Swagger description")

// verbs lists the operation keys of a path item in the order operations are imported
var verbs = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Document is a Swagger 2.0 or OpenAPI 3.x description. Only the parts that shape a
// service configuration are decoded.
type Document struct {
	Swagger  string `yaml:"swagger"`
	OpenAPI  string `yaml:"openapi"`
	Info     Info   `yaml:"info"`
	Host     string `yaml:"host"`
	BasePath string `yaml:"basePath"`
	Paths    Paths  `yaml:"paths"`

	// Swagger 2.0 components
	Definitions NamedSchemas          `yaml:"definitions"`
	Parameters  map[string]*Parameter `yaml:"parameters"`

	Components Components `yaml:"components"`

	name string
}

type Info struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// Components holds the reusable objects of an OpenAPI 3.x document
type Components struct {
	Schemas       NamedSchemas            `yaml:"schemas"`
	Parameters    map[string]*Parameter   `yaml:"parameters"`
	RequestBodies map[string]*RequestBody `yaml:"requestBodies"`
}

// Paths keeps path items in document order
type Paths []*PathItem

type PathItem struct {
	Path       string
	Parameters []*Parameter
	Operations []*Operation
}

type Operation struct {
	// Method is the upper-case http verb
	Method      string       `yaml:"-"`
	OperationID string       `yaml:"operationId"`
	Summary     string       `yaml:"summary"`
	Description string       `yaml:"description"`
	Tags        []string     `yaml:"tags"`
	Deprecated  bool         `yaml:"deprecated"`
	Parameters  []*Parameter `yaml:"parameters"`
	RequestBody *RequestBody `yaml:"requestBody"`
	Responses   Responses    `yaml:"responses"`
}

// Parameter is a path, query, header or body parameter. Swagger 2.0 declares the type
// of non-body parameters inline.
type Parameter struct {
	Ref         string  `yaml:"$ref"`
	Name        string  `yaml:"name"`
	In          string  `yaml:"in"`
	Description string  `yaml:"description"`
	Required    bool    `yaml:"required"`
	Schema      *Schema `yaml:"schema"`
	Type        string  `yaml:"type"`
	Format      string  `yaml:"format"`
	Items       *Schema `yaml:"items"`
}

// ValueSchema returns the schema of the parameter's value
func (p *Parameter) ValueSchema() *Schema {
	if p.Schema != nil {
		return p.Schema
	}
	return &Schema{Type: p.Type, Format: p.Format, Items: p.Items}
}

type RequestBody struct {
	Ref         string  `yaml:"$ref"`
	Description string  `yaml:"description"`
	Required    bool    `yaml:"required"`
	Content     Content `yaml:"content"`
}

// Content keeps media types in document order
type Content []MediaType

type MediaType struct {
	Type   string
	Schema *Schema
}

func (c *Content) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: content must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var mt struct {
			Schema *Schema `yaml:"schema"`
		}
		if err := n.Content[i+1].Decode(&mt); err != nil {
			return err
		}
		*c = append(*c, MediaType{Type: n.Content[i].Value, Schema: mt.Schema})
	}
	return nil
}

// JSONSchema returns the schema of the JSON media type, or of the first media type
func (c Content) JSONSchema() *Schema {
	for _, mt := range c {
		if mt.Type == "application/json" || strings.HasSuffix(mt.Type, "+json") {
			return mt.Schema
		}
	}
	if len(c) > 0 {
		return c[0].Schema
	}
	return nil
}

// Responses keeps responses in document order
type Responses []*Response

type Response struct {
	Code        string  `yaml:"-"`
	Description string  `yaml:"description"`
	Schema      *Schema `yaml:"schema"`
	Content     Content `yaml:"content"`
}

// BodySchema returns the Swagger 2.0 schema or the OpenAPI 3.x JSON content schema
func (r *Response) BodySchema() *Schema {
	if r.Schema != nil {
		return r.Schema
	}
	return r.Content.JSONSchema()
}

func (rs *Responses) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: responses must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		r := &Response{Code: n.Content[i].Value}
		if err := n.Content[i+1].Decode(r); err != nil {
			return fmt.Errorf("response %s: %w", r.Code, err)
		}
		*rs = append(*rs, r)
	}
	return nil
}

// Success returns the first 2xx response, or the default response when there is none
func (rs Responses) Success() *Response {
	var fallback *Response
	for _, r := range rs {
		switch {
		case strings.HasPrefix(r.Code, "2"):
			return r
		case r.Code == "default":
			fallback = r
		}
	}
	return fallback
}

func (ps *Paths) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: paths must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		item := &PathItem{Path: n.Content[i].Value}
		if err := item.decode(n.Content[i+1]); err != nil {
			return fmt.Errorf("%s: %w", item.Path, err)
		}
		*ps = append(*ps, item)
	}
	return nil
}

func (p *PathItem) decode(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: path item must be a mapping", n.Line)
	}
	ops := make(map[string]*Operation)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, v := n.Content[i].Value, n.Content[i+1]
		if key == "parameters" {
			if err := v.Decode(&p.Parameters); err != nil {
				return err
			}
			continue
		}
		if !isVerb(key) {
			continue
		}
		op := &Operation{Method: strings.ToUpper(key)}
		if err := v.Decode(op); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		ops[key] = op
	}
	for _, verb := range verbs {
		if op, ok := ops[verb]; ok {
			p.Operations = append(p.Operations, op)
		}
	}
	return nil
}

func isVerb(key string) bool {
	for _, v := range verbs {
		if v == key {
			return true
		}
	}
	return false
}

// ParseDocument decodes a YAML or JSON description
func ParseDocument(name string, data []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if doc.Swagger == "" && doc.OpenAPI == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNotOpenAPI)
	}
	doc.name = name
	return doc, nil
}

// Name returns the name the document was parsed under
func (d *Document) Name() string { return d.name }

// ResolveRef returns the name and schema a local schema reference points at
func (d *Document) ResolveRef(ref string) (string, *Schema, error) {
	for _, prefix := range []string{"#/definitions/", "#/components/schemas/"} {
		name, ok := strings.CutPrefix(ref, prefix)
		if !ok {
			continue
		}
		schemas := d.Definitions
		if prefix != "#/definitions/" {
			schemas = d.Components.Schemas
		}
		if s := schemas.Get(name); s != nil {
			return name, s, nil
		}
		return "", nil, fmt.Errorf("reference %q names no schema", ref)
	}
	return "", nil, fmt.Errorf("unsupported reference %q", ref)
}

// parameter resolves a parameter reference
func (d *Document) parameter(p *Parameter) (*Parameter, error) {
	if p.Ref == "" {
		return p, nil
	}
	if name, ok := strings.CutPrefix(p.Ref, "#/parameters/"); ok && d.Parameters[name] != nil {
		return d.Parameters[name], nil
	}
	if name, ok := strings.CutPrefix(p.Ref, "#/components/parameters/"); ok && d.Components.Parameters[name] != nil {
		return d.Components.Parameters[name], nil
	}
	return nil, fmt.Errorf("parameter reference %q names no parameter", p.Ref)
}

// requestBody resolves a request body reference
func (d *Document) requestBody(rb *RequestBody) (*RequestBody, error) {
	if rb == nil || rb.Ref == "" {
		return rb, nil
	}
	if name, ok := strings.CutPrefix(rb.Ref, "#/components/requestBodies/"); ok && d.Components.RequestBodies[name] != nil {
		return d.Components.RequestBodies[name], nil
	}
	return nil, fmt.Errorf("request body reference %q names no request body", rb.Ref)
}
