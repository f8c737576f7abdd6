package domain

// ToolDescriptor is the model-facing metadata for one tool: its name, a
// human-readable description, and the JSON-schema-like shape of its
// arguments. The executable side of a tool never crosses the wire.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema describes a tool's arguments as an object schema.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes a single named argument.
type PropertySchema struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Items       *PropertySchema `json:"items,omitempty"`
}

// ObjectSchema is the conventional root type for tool parameters.
func ObjectSchema(props map[string]PropertySchema, required ...string) ParameterSchema {
	return ParameterSchema{Type: "object", Properties: props, Required: required}
}

// ToolResult is the outcome of executing one tool call.
// Invariant: Success=false implies Data is absent and Error is set;
// Success=true never carries Error.
type ToolResult struct {
	Success         bool       `json:"success"`
	Data            any        `json:"data,omitempty"`
	Error           string     `json:"error,omitempty"`
	UIUpdate        *UIUpdate  `json:"uiUpdate,omitempty"`
	MultipleUpdates []UIUpdate `json:"multipleUpdates,omitempty"`
}

// OK builds a successful result carrying data.
func OK(data any) *ToolResult {
	return &ToolResult{Success: true, Data: data}
}

// Fail builds a failed result carrying an error message.
func Fail(err error) *ToolResult {
	return &ToolResult{Success: false, Error: err.Error()}
}
