// Package catalog describes the tools exposed by a tool-server and coerces
// positional string arguments to their declared parameter types.
package catalog

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// ErrInvalidSchema is returned for tool metadata that can not be interpreted.
var ErrInvalidSchema = errors.New("invalid tool schema")

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	Integer        ParamType = "integer"
	Number         ParamType = "number"
	ArrayOfInteger ParamType = "array_of_integer"
	String         ParamType = "string"
)

// Parameter is a named, typed tool parameter.
type Parameter struct {
	Name        string    `json:"name" yaml:"name" toml:"name"`
	Type        ParamType `json:"type" yaml:"type" toml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// ToolDescriptor describes one remote tool. Parameters are kept in the
// order they are declared in the input schema.
type ToolDescriptor struct {
	Name        string      `json:"name" yaml:"name" toml:"name"`
	Description string      `json:"description" yaml:"description" toml:"description"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters" toml:"parameters"`
}

// FromSchema builds a descriptor from the tool's JSON input schema.
func FromSchema(name, description string, inputSchema json.RawMessage) (*ToolDescriptor, error) {
	if name == "" {
		return nil, errors.WithMessage(ErrInvalidSchema, "tool name is empty")
	}

	td := &ToolDescriptor{
		Name:        name,
		Description: description,
	}

	if len(inputSchema) == 0 || string(inputSchema) == "null" {
		return td, nil
	}

	s := new(jsonschema.Schema)
	if err := json.Unmarshal(inputSchema, s); err != nil {
		return nil, errors.WithMessagef(ErrInvalidSchema, "%s: %s", name, err.Error())
	}
	if s.Properties == nil {
		return td, nil
	}

	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		td.Parameters = append(td.Parameters, Parameter{
			Name:        pair.Key,
			Type:        paramType(pair.Value),
			Description: pair.Value.Description,
		})
	}
	return td, nil
}

func paramType(s *jsonschema.Schema) ParamType {
	if s == nil {
		return String
	}
	t := s.Type
	if t == "" {
		// optional parameters are declared as anyOf [T, null]
		for _, alt := range s.AnyOf {
			if alt != nil && alt.Type != "" && alt.Type != "null" {
				t = alt.Type
				break
			}
		}
	}
	switch t {
	case "integer":
		return Integer
	case "number":
		return Number
	case "array":
		return ArrayOfInteger
	}
	return String
}

// Signature renders parameters as "a: integer, b: string".
func (t *ToolDescriptor) Signature() string {
	if len(t.Parameters) == 0 {
		return "no parameters"
	}
	parts := make([]string, len(t.Parameters))
	for i, p := range t.Parameters {
		parts[i] = p.Name + ": " + string(p.Type)
	}
	return strings.Join(parts, ", ")
}

// Catalog is the ordered, immutable list of tools fetched from a server.
type Catalog struct {
	tools  []*ToolDescriptor
	byName map[string]*ToolDescriptor
}

// New returns a catalog of the given tools. Tool names must be unique.
func New(tools ...*ToolDescriptor) (*Catalog, error) {
	c := &Catalog{
		tools:  make([]*ToolDescriptor, 0, len(tools)),
		byName: make(map[string]*ToolDescriptor, len(tools)),
	}
	for _, td := range tools {
		if _, ok := c.byName[td.Name]; ok {
			return nil, errors.WithMessagef(ErrInvalidSchema, "duplicate tool name: %s", td.Name)
		}
		c.byName[td.Name] = td
		c.tools = append(c.tools, td)
	}
	return c, nil
}

// Tools returns the descriptors in server order.
func (c *Catalog) Tools() []*ToolDescriptor {
	return append([]*ToolDescriptor(nil), c.tools...)
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}

// Find returns the tool with the exact name.
func (c *Catalog) Find(name string) (*ToolDescriptor, bool) {
	td, ok := c.byName[name]
	return td, ok
}

// Names returns the tool names in server order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, td := range c.tools {
		names[i] = td.Name
	}
	return names
}
