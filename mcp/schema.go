package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var schemas = map[string]json.RawMessage{
	ToolCreate: json.RawMessage(`{
		"type": "object",
		"properties": {
			"companyId": {"type": "string", "minLength": 1, "description": "Company receiving the settlement"},
			"usageCount": {"type": "integer", "minimum": 0, "description": "Usage count at creation time"},
			"settlementAmount": {"type": ["string", "number"], "description": "MPS amount to lock"}
		},
		"required": ["companyId", "settlementAmount"]
	}`),
	ToolFinish: json.RawMessage(`{
		"type": "object",
		"properties": {
			"escrowSequence": {"type": "integer", "minimum": 1},
			"condition": {"type": "string", "pattern": "^[0-9A-Fa-f]+$", "description": "Hex condition returned by escrow_create"},
			"actualUsageCount": {"type": "integer", "minimum": 0}
		},
		"required": ["escrowSequence", "condition", "actualUsageCount"]
	}`),
	ToolCancel: json.RawMessage(`{
		"type": "object",
		"properties": {
			"escrowSequence": {"type": "integer", "minimum": 1},
			"reason": {"type": "string"}
		},
		"required": ["escrowSequence"]
	}`),
	ToolSettle: json.RawMessage(`{
		"type": "object",
		"properties": {
			"companyId": {"type": "string", "minLength": 1},
			"usageCount": {"type": "integer", "minimum": 0},
			"settlementAmount": {"type": ["string", "number"]}
		},
		"required": ["companyId", "usageCount", "settlementAmount"]
	}`),
	ToolDemo:     json.RawMessage(`{"type": "object"}`),
	ToolBalances: json.RawMessage(`{"type": "object"}`),
}

// InputSchema returns the JSON schema for a tool's arguments.
func InputSchema(tool string) (json.RawMessage, bool) {
	s, ok := schemas[tool]
	return s, ok
}

// ValidationError lists every schema violation of a tool call.
type ValidationError struct {
	Tool   string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s arguments: %s", e.Tool, strings.Join(e.Errors, "; "))
}

// ValidateArguments checks args against the tool's input schema. Empty args
// validate as an empty object.
func ValidateArguments(tool string, args json.RawMessage) error {
	schema, ok := schemas[tool]
	if !ok {
		return fmt.Errorf("unknown tool %q", tool)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(args))
	if err != nil {
		return &ValidationError{Tool: tool, Errors: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return &ValidationError{Tool: tool, Errors: errs}
}

// decodeArguments validates args then decodes them into v.
func decodeArguments(tool string, args json.RawMessage, v interface{}) error {
	if err := ValidateArguments(tool, args); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, v)
}
