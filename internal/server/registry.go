package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/davidzheglov/longevity-knowledge-base/internal/agent"
	"github.com/davidzheglov/longevity-knowledge-base/internal/artifacts"
	"github.com/davidzheglov/longevity-knowledge-base/internal/llm"
)

// SessionState tracks one chat session served over HTTP. The mutex
// serializes turns: concurrent POST /api/chat requests for the same session
// id queue up instead of interleaving tool calls in one artifact store.
type SessionState struct {
	ID          string
	Broadcaster *Broadcaster
	StartedAt   time.Time

	mu   sync.Mutex
	chat *agent.ChatSession
}

// RunTurn executes one user message under the session lock and returns the
// assistant's answer together with the tool names used so far.
func (ss *SessionState) RunTurn(ctx context.Context, message string) (string, []string, []artifacts.Artifact, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	answer, err := ss.chat.Chat(ctx, message)
	if err != nil {
		return "", nil, nil, err
	}
	return answer, ss.chat.ToolsUsed(), ss.chat.Artifacts().Store.List(""), nil
}

// Artifacts lists the session's registered artifacts, optionally filtered.
func (ss *SessionState) Artifacts(filterType string) []artifacts.Artifact {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.chat.Artifacts().Store.List(filterType)
}

// Close ends the chat session; the broadcaster closes once the event pump
// drains the remaining events.
func (ss *SessionState) Close() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.chat.Close()
}

// SessionDeps is everything the registry needs to build a chat session.
type SessionDeps struct {
	Client      *llm.Client
	Tools       *agent.ToolRegistry
	OutputsRoot string
	Policy      *artifacts.Policy
	Chat        agent.ChatConfig
}

// SessionRegistry maps session ids to live sessions. Each session owns its
// artifact store; nothing here goes through a process-global current-session
// pointer, so requests against different ids are safe to run concurrently.
type SessionRegistry struct {
	deps SessionDeps

	mu       sync.RWMutex
	sessions map[string]*SessionState
}

func NewSessionRegistry(deps SessionDeps) *SessionRegistry {
	return &SessionRegistry{
		deps:     deps,
		sessions: make(map[string]*SessionState),
	}
}

// Get returns a live session by id.
func (r *SessionRegistry) Get(id string) (*SessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ss, ok := r.sessions[id]
	return ss, ok
}

// GetOrCreate returns the live session for id, resuming the on-disk artifact
// index at <outputs-root>/<id> when the session directory already exists.
func (r *SessionRegistry) GetOrCreate(id string) (*SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ss, ok := r.sessions[id]; ok {
		return ss, nil
	}

	dir := filepath.Join(r.deps.OutputsRoot, id)
	st := artifacts.NewStore(dir, r.deps.OutputsRoot)
	st.SetPolicy(r.deps.Policy)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	st.Load()
	sess := &artifacts.Session{Dir: dir, Store: st}

	chat, err := agent.NewChatSession(r.deps.Client, r.deps.Tools, sess, r.deps.Chat)
	if err != nil {
		return nil, err
	}

	ss := &SessionState{
		ID:          id,
		Broadcaster: NewBroadcaster(),
		StartedAt:   time.Now().UTC(),
		chat:        chat,
	}
	// Pump chat events into the broadcaster until the session closes.
	go func() {
		for ev := range chat.Events() {
			ss.Broadcaster.Send(ev)
		}
		ss.Broadcaster.Close()
	}()

	r.sessions[id] = ss
	return ss, nil
}

// List returns all live session ids.
func (r *SessionRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll ends every live session. Used on server shutdown.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ss := range r.sessions {
		ss.Close()
		delete(r.sessions, id)
	}
}
