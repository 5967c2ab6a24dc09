package openapi

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Schema is one node of a Swagger 2.0 or OpenAPI 3.x schema tree. Properties keep their
// declaration order.
type Schema struct {
	Ref         string
	Type        string
	Format      string
	Title       string
	Description string
	Properties  []Property
	Required    []string
	Items       *Schema
	Enum        []string

	// AdditionalProperties is the catch-all schema; AdditionalAllowed is set for
	// "additionalProperties: true"
	AdditionalProperties *Schema
	AdditionalAllowed    bool

	AllOf []*Schema
	AnyOf []*Schema
	OneOf []*Schema

	// Line is where the schema starts in its document
	Line int
}

// Property is a named member of an object schema
type Property struct {
	Name   string
	Schema *Schema
}

// HasCatchAll reports whether the schema accepts properties beyond the declared ones
func (s *Schema) HasCatchAll() bool {
	return s.AdditionalProperties != nil || s.AdditionalAllowed
}

// IsComposed reports whether the schema is a union or composition
func (s *Schema) IsComposed() bool {
	return len(s.AllOf) > 0 || len(s.AnyOf) > 0 || len(s.OneOf) > 0
}

// UnmarshalYAML decodes a schema from a yaml.v3 node, which also covers JSON input
func (s *Schema) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema must be a mapping", n.Line)
	}
	s.Line = n.Line
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, v := n.Content[i].Value, n.Content[i+1]
		var err error
		switch key {
		case "$ref":
			err = v.Decode(&s.Ref)
		case "type":
			err = decodeType(v, &s.Type)
		case "format":
			err = v.Decode(&s.Format)
		case "title":
			err = v.Decode(&s.Title)
		case "description":
			err = v.Decode(&s.Description)
		case "required":
			err = v.Decode(&s.Required)
		case "items":
			s.Items = &Schema{}
			err = v.Decode(s.Items)
		case "properties":
			s.Properties, err = decodeProperties(v)
		case "additionalProperties":
			if v.Kind == yaml.ScalarNode {
				err = v.Decode(&s.AdditionalAllowed)
				break
			}
			s.AdditionalProperties = &Schema{}
			err = v.Decode(s.AdditionalProperties)
		case "allOf":
			err = v.Decode(&s.AllOf)
		case "anyOf":
			err = v.Decode(&s.AnyOf)
		case "oneOf":
			err = v.Decode(&s.OneOf)
		case "enum":
			for _, e := range v.Content {
				s.Enum = append(s.Enum, e.Value)
			}
		}
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", v.Line, key, err)
		}
	}
	return nil
}

// decodeType accepts a single type name or, as in OpenAPI 3.1, a list of them where
// "null" only marks the value as nullable
func decodeType(v *yaml.Node, out *string) error {
	if v.Kind != yaml.SequenceNode {
		return v.Decode(out)
	}
	var types []string
	if err := v.Decode(&types); err != nil {
		return err
	}
	for _, t := range types {
		if t != "" && t != "null" {
			*out = t
			return nil
		}
	}
	return nil
}

func decodeProperties(v *yaml.Node) ([]Property, error) {
	if v.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("properties must be a mapping")
	}
	props := make([]Property, 0, len(v.Content)/2)
	for i := 0; i+1 < len(v.Content); i += 2 {
		ps := &Schema{}
		if err := v.Content[i+1].Decode(ps); err != nil {
			return nil, err
		}
		props = append(props, Property{Name: v.Content[i].Value, Schema: ps})
	}
	return props, nil
}

// NamedSchema is one entry of definitions or components.schemas
type NamedSchema struct {
	Name   string
	Schema *Schema
}

// NamedSchemas keeps schema definitions in document order
type NamedSchemas []NamedSchema

func (ns *NamedSchemas) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema definitions must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		s := &Schema{}
		if err := n.Content[i+1].Decode(s); err != nil {
			return fmt.Errorf("%s: %w", n.Content[i].Value, err)
		}
		*ns = append(*ns, NamedSchema{Name: n.Content[i].Value, Schema: s})
	}
	return nil
}

// Get returns the schema defined under name
func (ns NamedSchemas) Get(name string) *Schema {
	for _, s := range ns {
		if s.Name == name {
			return s.Schema
		}
	}
	return nil
}
