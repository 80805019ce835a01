package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the Go Workflow struct using invopop/jsonschema. The same document
// backs the semantic validation phase and the `schema export` command.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Workflow{})
	s.ID = "https://github.com/stepflow-ai/stepflow/schemas/workflow-v0.json"
	s.Title = "Stepflow Workflow Definition v0"
	s.Description = "Schema for stepflow workflow definition documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
