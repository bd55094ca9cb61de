package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ToolFunc executes one tool call. argsJSON is the raw JSON arguments from
// the inference session's tool-call event; the returned bytes become the
// JSON payload of the paired function_call_output frame.
type ToolFunc func(ctx context.Context, session *ConversationSession, argsJSON json.RawMessage) (json.RawMessage, error)

// ToolRegistry maps tool names to their executors. Adapted from
// AltairaLabs-PromptKit's skills.Executor lookup/activate bookkeeping:
// a map guarded by a RWMutex, looked up by name on each call rather than
// pre-resolved, so tools can be registered or replaced at runtime through
// Register. The operator session.update payload carries no tool schemas and
// does not change the registry.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolFunc
}

// NewToolRegistry builds an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolFunc)}
}

// Register adds or replaces the executor for name.
func (r *ToolRegistry) Register(name string, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// Names returns the currently registered tool names.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// Invoke runs the named tool and returns its result. The orchestrator must
// call this for Invoke's side effect in every case — for `save_parameters`
// (registered by RegisterBuiltins) the return value carries no information
// beyond the empty object and must not be inspected.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, session *ConversationSession, argsJSON json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %q is not registered", name)
	}
	return fn(ctx, session, argsJSON)
}

var emptyToolResult = json.RawMessage(`{}`)

// RegisterBuiltins wires the tools the gateway always provides regardless
// of what the inference session's tool schema list enumerates.
//
// save_parameters resolves SPEC_FULL.md §4.6.1's documented contract: its
// only effect is mutating session's stored parameter map; it always
// returns the empty JSON object and the orchestrator must not rely on the
// return value for anything.
func (r *ToolRegistry) RegisterBuiltins() {
	r.Register("save_parameters", func(_ context.Context, session *ConversationSession, argsJSON json.RawMessage) (json.RawMessage, error) {
		var params map[string]interface{}
		if err := json.Unmarshal(argsJSON, &params); err != nil {
			return nil, fmt.Errorf("save_parameters: invalid arguments: %w", err)
		}
		session.SetParameters(params)
		return emptyToolResult, nil
	})
}
