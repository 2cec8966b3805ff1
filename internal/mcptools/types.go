package mcptools

// --- MCP tool types for the consortium server mode (consortium mcp) ---

// RunConsortiumInput is the input for the run_consortium MCP tool. Either
// Consortium names a saved configuration or Models lists the voters; the
// remaining fields override the chosen configuration.
type RunConsortiumInput struct {
	Prompt              string         `json:"prompt" jsonschema:"the prompt to answer"`
	Consortium          string         `json:"consortium,omitempty" jsonschema:"name of a saved consortium to run"`
	Models              map[string]int `json:"models,omitempty" jsonschema:"model id to instance count"`
	Arbiter             string         `json:"arbiter,omitempty" jsonschema:"model that synthesizes each round"`
	ConfidenceThreshold float64        `json:"confidenceThreshold,omitempty" jsonschema:"stop once the arbiter is this confident (0-1, or a percentage)"`
	MaxIterations       int            `json:"maxIterations,omitempty" jsonschema:"maximum number of rounds"`
	MinIterations       int            `json:"minIterations,omitempty" jsonschema:"minimum number of rounds"`
	SystemPrompt        string         `json:"systemPrompt,omitempty" jsonschema:"instructions prepended to every voter prompt"`
}

// RunConsortiumOutput is the result of the run_consortium MCP tool.
type RunConsortiumOutput struct {
	Synthesis       string            `json:"synthesis"`
	Confidence      float64           `json:"confidence"`
	Analysis        string            `json:"analysis,omitempty"`
	Dissent         string            `json:"dissent,omitempty"`
	RefinementAreas []string          `json:"refinementAreas,omitempty"`
	IterationCount  int               `json:"iterationCount"`
	RunID           string            `json:"runId"`
	Responses       []ResponseSummary `json:"responses"`
}

// ResponseSummary is one voter's final-round answer.
type ResponseSummary struct {
	Model      string  `json:"model"`
	Instance   int     `json:"instance"`
	Confidence float64 `json:"confidence"`
	Response   string  `json:"response,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ListConsortiumsInput is the input for the list_consortiums MCP tool.
type ListConsortiumsInput struct{}

// ListConsortiumsOutput is the result of the list_consortiums MCP tool.
type ListConsortiumsOutput struct {
	Consortiums []ConsortiumSummary `json:"consortiums"`
}

// ConsortiumSummary describes one saved consortium. Error is set instead
// of the other fields when the stored configuration cannot be decoded.
type ConsortiumSummary struct {
	Name                string         `json:"name"`
	Models              map[string]int `json:"models,omitempty"`
	Arbiter             string         `json:"arbiter,omitempty"`
	ConfidenceThreshold float64        `json:"confidenceThreshold,omitempty"`
	MaxIterations       int            `json:"maxIterations,omitempty"`
	MinIterations       int            `json:"minIterations,omitempty"`
	SystemPrompt        string         `json:"systemPrompt,omitempty"`
	Error               string         `json:"error,omitempty"`
}

// SaveConsortiumInput is the input for the save_consortium MCP tool.
type SaveConsortiumInput struct {
	Name                string         `json:"name" jsonschema:"name to save the consortium under"`
	Models              map[string]int `json:"models" jsonschema:"model id to instance count"`
	Arbiter             string         `json:"arbiter,omitempty" jsonschema:"model that synthesizes each round"`
	ConfidenceThreshold float64        `json:"confidenceThreshold,omitempty" jsonschema:"stop once the arbiter is this confident (0-1, or a percentage)"`
	MaxIterations       int            `json:"maxIterations,omitempty" jsonschema:"maximum number of rounds"`
	MinIterations       int            `json:"minIterations,omitempty" jsonschema:"minimum number of rounds"`
	SystemPrompt        string         `json:"systemPrompt,omitempty" jsonschema:"instructions prepended to every voter prompt"`
}

// SaveConsortiumOutput is the result of the save_consortium MCP tool.
type SaveConsortiumOutput struct {
	Name   string            `json:"name"`
	Config ConsortiumSummary `json:"config"`
}

// RemoveConsortiumInput is the input for the remove_consortium MCP tool.
type RemoveConsortiumInput struct {
	Name string `json:"name" jsonschema:"name of the saved consortium"`
}

// RemoveConsortiumOutput is the result of the remove_consortium MCP tool.
type RemoveConsortiumOutput struct {
	Name    string `json:"name"`
	Removed bool   `json:"removed"`
}
