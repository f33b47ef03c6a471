package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/davidzheglov/longevity-knowledge-base/internal/artifacts"
	"github.com/davidzheglov/longevity-knowledge-base/internal/llm"
)

// MaxIterationsMessage is returned to the user when the tool-round cap is hit.
const MaxIterationsMessage = "I apologize, but I've reached my maximum number of tool calls. Please try breaking your request into smaller parts or increase LLM_MAX_TOOL_ITERATIONS."

type ChatConfig struct {
	Model         string
	Provider      string
	SystemPrompt  string
	MaxIterations int

	// LoopDetectionWindow is the number of identical consecutive tool-call
	// rounds tolerated before a steering warning is injected.
	LoopDetectionWindow int

	RetryPolicy *llm.RetryPolicy
	Sleep       llm.SleepFunc
}

func (c *ChatConfig) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 30
	}
	if c.LoopDetectionWindow <= 0 {
		c.LoopDetectionWindow = 5
	}
}

// ChatSession is one conversation bound to one artifact session. Tool calls
// within a turn run sequentially; the session is the single writer to its
// artifact store.
type ChatSession struct {
	id     string
	cfg    ChatConfig
	client *llm.Client
	reg    *ToolRegistry
	sess   *artifacts.Session

	events     chan SessionEvent
	transcript *Transcript

	mu        sync.Mutex
	closed    bool
	history   []llm.Message
	toolsUsed []string
}

func NewChatSession(client *llm.Client, reg *ToolRegistry, sess *artifacts.Session, cfg ChatConfig) (*ChatSession, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	if sess == nil {
		return nil, fmt.Errorf("artifact session is nil")
	}
	cfg.applyDefaults()
	cs := &ChatSession{
		id:         ulid.Make().String(),
		cfg:        cfg,
		client:     client,
		reg:        reg,
		sess:       sess,
		events:     make(chan SessionEvent, 256),
		transcript: OpenTranscript(sess.Dir),
	}
	cs.emit(EventSessionStart, map[string]any{"model": cfg.Model, "session_dir": sess.Dir})
	return cs, nil
}

func (cs *ChatSession) ID() string                    { return cs.id }
func (cs *ChatSession) Events() <-chan SessionEvent   { return cs.events }
func (cs *ChatSession) Artifacts() *artifacts.Session { return cs.sess }

// ToolsUsed returns the de-duplicated, in-order tool names dispatched so far.
func (cs *ChatSession) ToolsUsed() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]string{}, cs.toolsUsed...)
}

func (cs *ChatSession) Close() {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return
	}
	cs.closed = true
	cs.mu.Unlock()
	cs.emit(EventSessionEnd, nil)
	close(cs.events)
	cs.transcript.Close()
}

// Chat runs one user message through the tool-call loop and returns the
// final plain-text answer. Terminates when the model answers without tool
// calls, or at the iteration cap with the fixed apology.
func (cs *ChatSession) Chat(ctx context.Context, userMessage string) (string, error) {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return "", fmt.Errorf("session is closed")
	}
	cs.history = append(cs.history, llm.User(userMessage))
	cs.mu.Unlock()

	cs.emit(EventUserInput, map[string]any{"text": userMessage})
	cs.transcript.Record(TurnUser, map[string]any{"text": userMessage})

	var lastFP string
	repeats := 0
	warned := false

	for iteration := 0; iteration < cs.cfg.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			cs.emit(EventError, map[string]any{"error": ctx.Err().Error()})
			return "", ctx.Err()
		default:
		}

		req := llm.Request{
			Model:    cs.cfg.Model,
			Provider: cs.cfg.Provider,
			Messages: cs.buildMessages(),
			Tools:    cs.reg.Definitions(),
		}

		policy := llm.DefaultRetryPolicy()
		if cs.cfg.RetryPolicy != nil {
			policy = *cs.cfg.RetryPolicy
		}
		resp, err := llm.Retry(ctx, policy, cs.cfg.Sleep, func() (llm.Response, error) {
			return cs.client.Complete(ctx, req)
		})
		if err != nil {
			cs.emit(EventError, map[string]any{"error": err.Error()})
			return "", err
		}

		cs.mu.Lock()
		cs.history = append(cs.history, resp.Message)
		cs.mu.Unlock()

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			txt := resp.Text()
			cs.emit(EventAssistantText, map[string]any{"text": txt})
			cs.transcript.Record(TurnAssistant, map[string]any{"text": txt})
			return txt, nil
		}

		// Loop detection: identical consecutive tool-call rounds suggest the
		// model is stuck; warn it once via a steering message.
		fp := fingerprint(calls)
		if fp != "" && fp == lastFP {
			repeats++
		} else {
			lastFP = fp
			repeats = 1
		}
		if !warned && repeats >= cs.cfg.LoopDetectionWindow {
			warned = true
			cs.emit(EventLoopDetection, map[string]any{"fingerprint": fp, "repeats": repeats})
			cs.mu.Lock()
			cs.history = append(cs.history, llm.User("You are repeating the same tool calls. Stop and change approach."))
			cs.mu.Unlock()
		}

		// Sequential execution: tool calls within a round never run in
		// parallel, so the artifact store sees a single writer.
		for _, call := range calls {
			res := cs.execTool(ctx, call)
			cs.mu.Lock()
			cs.history = append(cs.history, llm.ToolResultNamed(res.CallID, res.ToolName, res.ModelContent(), res.IsError))
			cs.mu.Unlock()
		}
	}

	cs.emit(EventWarning, map[string]any{"message": "max tool iterations reached"})
	return MaxIterationsMessage, nil
}

func (cs *ChatSession) buildMessages() []llm.Message {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	msgs := make([]llm.Message, 0, len(cs.history)+1)
	if strings.TrimSpace(cs.cfg.SystemPrompt) != "" {
		msgs = append(msgs, llm.System(cs.cfg.SystemPrompt))
	}
	return append(msgs, cs.history...)
}

func (cs *ChatSession) execTool(ctx context.Context, call llm.ToolCallData) ToolResult {
	cs.emit(EventToolCallStart, map[string]any{
		"tool_name":      call.Name,
		"call_id":        call.ID,
		"arguments_json": string(call.Arguments),
	})

	res := cs.reg.ExecuteCall(ctx, cs.sess, call)

	cs.mu.Lock()
	if !contains(cs.toolsUsed, res.ToolName) {
		cs.toolsUsed = append(cs.toolsUsed, res.ToolName)
	}
	cs.mu.Unlock()

	cs.emit(EventToolCallEnd, map[string]any{
		"tool_name": res.ToolName,
		"call_id":   res.CallID,
		"is_error":  res.IsError,
		"output":    res.Output,
		"artifacts": res.Artifacts,
	})
	cs.transcript.Record(TurnTool, map[string]any{
		"tool_name": res.ToolName,
		"call_id":   res.CallID,
		"is_error":  res.IsError,
		"output":    res.FullOutput,
	})
	return res
}

func (cs *ChatSession) emit(kind EventKind, data map[string]any) {
	if cs == nil || cs.events == nil {
		return
	}
	ev := SessionEvent{
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		SessionID: cs.id,
		Data:      data,
	}
	// Best-effort delivery: drop when the consumer is slow, and never panic
	// if Close raced with an in-flight emit.
	defer func() { _ = recover() }()
	select {
	case cs.events <- ev:
	default:
	}
}

func fingerprint(calls []llm.ToolCallData) string {
	if len(calls) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range calls {
		b.WriteString(strings.TrimSpace(c.Name))
		b.WriteByte(':')
		b.WriteString(shortHash(c.Arguments))
		b.WriteByte(';')
	}
	return b.String()
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
