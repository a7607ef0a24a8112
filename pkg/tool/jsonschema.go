package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	jsonschemav6 "github.com/santhosh-tekuri/jsonschema/v6"
)

// GoStructSchema generates a JSON Schema document for a Go struct, for
// parameters naturally expressed as a typed struct rather than the
// hand-rolled Schema/Parameter model above. No tool or template in this
// module calls it.
func GoStructSchema(v any) (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(v)
	return json.Marshal(schema)
}

// ExternalSchemaValidator validates arbitrary caller-supplied JSON against a
// JSON Schema document that did not originate from this package's own
// Schema/Parameter model — namely, tools discovered from an MCP server
// (pkg/tools/mcp.go), which advertise their parameters as JSON Schema
// directly rather than as a Go Parameter list, and template config schemas
// (pkg/template/sequential.go).
type ExternalSchemaValidator struct {
	schema *jsonschemav6.Schema
}

func NewExternalSchemaValidator(schemaJSON []byte) (*ExternalSchemaValidator, error) {
	compiler := jsonschemav6.NewCompiler()
	doc, err := jsonschemav6.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("tool: invalid JSON schema: %w", err)
	}
	const resourceURL = "mem://tool-schema.json"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("tool: failed to load JSON schema: %w", err)
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("tool: failed to compile JSON schema: %w", err)
	}
	return &ExternalSchemaValidator{schema: schema}, nil
}

func (v *ExternalSchemaValidator) Validate(input Input) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("tool: failed to marshal input: %w", err)
	}
	inst, err := jsonschemav6.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("tool: failed to parse input: %w", err)
	}
	return v.schema.Validate(inst)
}
