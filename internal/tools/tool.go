// Package tools exposes engine operations behind a name → handler registry.
// Each handler declares a JSON schema for its parameters, reflected from its
// params struct, so callers can discover and invoke tools generically.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/swaggest/jsonschema-go"
)

// Context carries what handlers operate on during one call.
type Context struct {
	// RepoPath is the worktree directory of the repository.
	RepoPath string
}

// Tool is one callable operation.
type Tool interface {
	// Name identifies the tool in the registry.
	Name() string
	// Description says what the tool does, for discovery.
	Description() string
	// Parameters returns the JSON schema of the tool's parameters.
	Parameters() (json.RawMessage, error)
	// Call invokes the tool. Parameters arrive as raw JSON.
	Call(params json.RawMessage, ctx *Context) (any, error)
}

// Emitter observes completed tool calls.
type Emitter func(name string, params json.RawMessage, result json.RawMessage)

// Toolset is the tool registry. Handler failures never escape as errors;
// they are encoded into the result JSON so a caller loop can keep going.
type Toolset struct {
	ctx     *Context
	emitter Emitter
	tools   map[string]Tool
}

// NewToolset creates a registry bound to a call context. The emitter may be
// nil.
func NewToolset(ctx *Context, emitter Emitter) *Toolset {
	return &Toolset{
		ctx:     ctx,
		emitter: emitter,
		tools:   make(map[string]Tool),
	}
}

// Register adds a tool under its name. Later registrations replace earlier
// ones.
func (t *Toolset) Register(tool Tool) {
	t.tools[tool.Name()] = tool
}

// Get returns the named tool.
func (t *Toolset) Get(name string) (Tool, bool) {
	tool, ok := t.tools[name]
	return tool, ok
}

// List returns all tools ordered by name.
func (t *Toolset) List() []Tool {
	names := make([]string, 0, len(t.tools))
	for name := range t.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, t.tools[name])
	}
	return out
}

// Call invokes a tool by name and returns its result as JSON. Failures of
// any kind are reported inside the JSON, never as an error.
func (t *Toolset) Call(name string, params json.RawMessage) json.RawMessage {
	result := t.callInner(name, params)
	if t.emitter != nil {
		t.emitter(name, params, result)
	}
	return result
}

func (t *Toolset) callInner(name string, params json.RawMessage) json.RawMessage {
	tool, ok := t.Get(name)
	if !ok {
		return errorJSON(fmt.Sprintf("Tool '%s' not found", name))
	}
	value, err := tool.Call(params, t.ctx)
	if err != nil {
		return errorJSON(fmt.Sprintf("Failed to call tool '%s': %s", name, err))
	}
	encoded, err := json.Marshal(map[string]any{"result": value})
	if err != nil {
		return errorJSON(fmt.Sprintf("Failed to serialize result of '%s': %s", name, err))
	}
	return encoded
}

func errorJSON(message string) json.RawMessage {
	encoded, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return json.RawMessage(`{"error":"failed to encode error"}`)
	}
	return encoded
}

// reflectSchema builds the JSON schema of a params struct.
func reflectSchema(params any) (json.RawMessage, error) {
	r := jsonschema.Reflector{}
	schema, err := r.Reflect(params, jsonschema.InlineRefs)
	if err != nil {
		return nil, fmt.Errorf("failed to reflect schema: %w", err)
	}
	encoded, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return encoded, nil
}
