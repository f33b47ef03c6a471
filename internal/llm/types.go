// Package llm is a small provider-agnostic client for chat-completion APIs
// with tool calling. Adapters translate the unified request/response shapes
// to a concrete provider's wire format.
package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
)

// ToolCallData is one structured tool-call request emitted by the model.
// Arguments is the raw JSON-encoded argument object.
type ToolCallData struct {
	ID        string          `json:"id"`
	Type      string          `json:"type,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResultData carries a tool's output back to the model.
type ToolResultData struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Content    any    `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

type ContentPart struct {
	Kind       ContentKind     `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolCall   *ToolCallData   `json:"tool_call,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
}

type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

func System(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{{Kind: ContentText, Text: text}}}
}

func User(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{{Kind: ContentText, Text: text}}}
}

func Assistant(text string) Message {
	m := Message{Role: RoleAssistant}
	if text != "" {
		m.Content = append(m.Content, ContentPart{Kind: ContentText, Text: text})
	}
	return m
}

// ToolResultNamed builds a tool-role message for one tool result.
func ToolResultNamed(callID, name string, content any, isError bool) Message {
	return Message{Role: RoleTool, Content: []ContentPart{{
		Kind: ContentToolResult,
		ToolResult: &ToolResultData{
			ToolCallID: callID,
			Name:       name,
			Content:    content,
			IsError:    isError,
		},
	}}}
}

// Text concatenates the text parts of a message.
func (m Message) Text() string {
	var parts []string
	for _, p := range m.Content {
		if p.Kind == ContentText && strings.TrimSpace(p.Text) != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolDefinition is a tool schema advertised to the model. Parameters is a
// JSON-schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

var validToolName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

func ValidateToolName(name string) error {
	if !validToolName.MatchString(name) {
		return fmt.Errorf("invalid tool name: %q", name)
	}
	return nil
}

type Request struct {
	Model    string
	Provider string
	Messages []Message
	Tools    []ToolDefinition
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return &ConfigurationError{Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &ConfigurationError{Message: "at least one message is required"}
	}
	return nil
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type FinishReason struct {
	Reason string `json:"reason"`
	Raw    string `json:"raw,omitempty"`
}

type Response struct {
	ID       string
	Model    string
	Provider string
	Message  Message
	Finish   FinishReason
	Usage    Usage
}

// Text returns the assistant's plain-text content.
func (r Response) Text() string { return r.Message.Text() }

// ToolCalls returns the structured tool-call requests in order.
func (r Response) ToolCalls() []ToolCallData {
	var out []ToolCallData
	for _, p := range r.Message.Content {
		if p.Kind == ContentToolCall && p.ToolCall != nil {
			out = append(out, *p.ToolCall)
		}
	}
	return out
}
