// Package agent contains the tool dispatch layer and the conversation loop:
// tool registration, argument normalization, structured error isolation, and
// the LLM round loop that drives tool calls until a plain-text answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zeebo/blake3"

	"github.com/davidzheglov/longevity-knowledge-base/internal/artifacts"
	"github.com/davidzheglov/longevity-knowledge-base/internal/llm"
)

// ArtifactRef points at a file a tool produced during one call.
type ArtifactRef struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

// ToolResult is the single normalized outcome of a tool call. Tools either
// succeed with text (plus any produced artifacts) or fail with a message;
// the string/dict duck typing of individual tools stops at their adapters.
type ToolResult struct {
	ToolName string
	CallID   string

	// Output is the (possibly truncated) text sent back to the model.
	Output string

	// FullOutput is the untruncated output.
	FullOutput string

	Artifacts []ArtifactRef
	IsError   bool
}

// ModelContent renders the result the way the model consumes it: plain text
// on success, an {"error": ...} object on failure.
func (r ToolResult) ModelContent() string {
	if !r.IsError {
		return r.Output
	}
	b, err := json.Marshal(map[string]string{"error": r.Output})
	if err != nil {
		return r.Output
	}
	return string(b)
}

// ToolFunc executes a tool against a session with normalized arguments.
// Returned artifacts are already registered in the session's store.
type ToolFunc func(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []ArtifactRef, error)

type OutputLimit struct {
	MaxChars int
}

const defaultMaxChars = 20_000

// RegisteredTool couples a tool's schema (advertised to the model), its
// argument contract (normalization from model-supplied names), and its
// implementation.
type RegisteredTool struct {
	Definition llm.ToolDefinition
	Schema     *jsonschema.Schema
	Spec       *ArgSpec
	Exec       ToolFunc
	Limit      OutputLimit
}

// ToolRegistry is the closed set of tools resolvable at dispatch time.
// Built once at startup; lookups are read-mostly.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]RegisteredTool
	order []string
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]RegisteredTool{}}
}

// Register installs a tool. Misconfiguration (bad name, missing executor,
// uncompilable schema) is a programming error and surfaces here, at
// initialization time, as a plain error.
func (r *ToolRegistry) Register(t RegisteredTool) error {
	if err := llm.ValidateToolName(t.Definition.Name); err != nil {
		return err
	}
	if t.Exec == nil {
		return fmt.Errorf("tool %s missing executor", t.Definition.Name)
	}
	if t.Limit.MaxChars == 0 {
		t.Limit.MaxChars = defaultMaxChars
	}
	if t.Schema == nil {
		s, err := compileSchema(t.Definition.Parameters)
		if err != nil {
			return fmt.Errorf("tool %s schema: %w", t.Definition.Name, err)
		}
		t.Schema = s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Definition.Name]; !exists {
		r.order = append(r.order, t.Definition.Name)
	}
	r.tools[t.Definition.Name] = t
	return nil
}

// Definitions returns tool schemas in registration order.
func (r *ToolRegistry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition)
	}
	return out
}

// ExecuteCall dispatches one tool call. Every failure mode — unknown tool,
// malformed argument JSON, schema violation, executor error or panic — is
// absorbed into an erroring ToolResult; nothing propagates to the caller.
func (r *ToolRegistry) ExecuteCall(ctx context.Context, sess *artifacts.Session, call llm.ToolCallData) ToolResult {
	name := call.Name
	callID := call.ID
	if strings.TrimSpace(callID) == "" {
		callID = "call_" + shortHash(call.Arguments)
	}

	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return errResult(name, callID, fmt.Sprintf("Unknown function: %s", name), OutputLimit{MaxChars: defaultMaxChars})
	}

	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return errResult(name, callID, fmt.Sprintf("invalid tool arguments JSON: %v", err), t.Limit)
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	// Schemas stay permissive about key names (no required list, additional
	// properties allowed): the model may use synonym names, and the argument
	// spec below supplies defaults. Validation catches shape errors only.
	if t.Schema != nil {
		if err := t.Schema.Validate(args); err != nil {
			return errResult(name, callID, fmt.Sprintf("tool args schema validation failed: %v", err), t.Limit)
		}
	}

	norm := t.Spec.Normalize(args)

	text, refs, err := invoke(ctx, t, sess, norm)
	if err != nil {
		return errResult(name, callID, fmt.Sprintf("Error executing %s: %v", name, err), t.Limit)
	}
	res := ToolResult{
		ToolName:   name,
		CallID:     callID,
		Output:     truncateChars(text, t.Limit.MaxChars),
		FullOutput: text,
		Artifacts:  refs,
	}
	return res
}

// invoke shields dispatch from panicking tool implementations.
func invoke(ctx context.Context, t RegisteredTool, sess *artifacts.Session, args map[string]any) (text string, refs []ArtifactRef, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	return t.Exec(ctx, sess, args)
}

func errResult(name, callID, msg string, lim OutputLimit) ToolResult {
	return ToolResult{
		ToolName:   name,
		CallID:     callID,
		Output:     truncateChars(msg, lim.MaxChars),
		FullOutput: msg,
		IsError:    true,
	}
}

func truncateChars(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	removed := len(s) - max
	head := max / 2
	tail := max - head
	marker := fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. Re-run the tool with more targeted parameters to see specific parts.]\n\n", removed)
	return s[:head] + marker + s[len(s)-tail:]
}

func compileSchema(params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		params = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

func shortHash(b []byte) string {
	sum := blake3.Sum256(b)
	return fmt.Sprintf("%x", sum[:8])
}
