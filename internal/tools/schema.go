package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lumenos/lumen/internal/domain"
)

var schemaCache sync.Map // schema text -> *jsonschema.Schema

// ValidateArgs checks model-supplied arguments against a tool's parameter
// schema. A validation failure is an ordinary tool outcome (the model can
// correct itself on the next turn), not a terminal run error.
func ValidateArgs(desc domain.ToolDescriptor, args map[string]any) error {
	schema, err := compileSchema(desc.Parameters)
	if err != nil {
		return fmt.Errorf("tools.ValidateArgs(%q): %w", desc.Name, err)
	}

	// Round-trip through JSON so numbers and nested values take the shapes
	// the validator expects.
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("tools.ValidateArgs(%q): encode args: %w", desc.Name, err)
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("tools.ValidateArgs(%q): decode args: %w", desc.Name, err)
	}
	if decoded == nil {
		decoded = map[string]any{}
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tools.ValidateArgs(%q): %w", desc.Name, err)
	}

	return nil
}

func compileSchema(params domain.ParameterSchema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemaCache.Store(key, compiled)

	return compiled, nil
}
