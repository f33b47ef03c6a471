package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OutputDirEnv overrides the configured outputs root when set.
const OutputDirEnv = "AGENT_OUTPUT_DIR"

// Session is one directory-scoped artifact collection, tied to a single
// conversation or web request. Each session carries its own Store; nothing
// here is process-global, so concurrent requests against different sessions
// do not contaminate one another.
type Session struct {
	Dir   string
	Store *Store
}

// Manager creates and resumes sessions under one outputs root.
type Manager struct {
	outputsRoot string
	policy      *Policy
	current     *Session
}

// NewManager builds a session manager. outputsRoot may be empty, in which
// case AGENT_OUTPUT_DIR or ./outputs is used.
func NewManager(outputsRoot string, policy *Policy) *Manager {
	if env := os.Getenv(OutputDirEnv); env != "" {
		outputsRoot = env
	}
	if outputsRoot == "" {
		outputsRoot = "outputs"
	}
	if abs, err := filepath.Abs(outputsRoot); err == nil {
		outputsRoot = abs
	}
	return &Manager{outputsRoot: outputsRoot, policy: policy}
}

// OutputsRoot returns the ancestor directory of all session directories. It
// is also the access-control boundary for Store.ReadText.
func (m *Manager) OutputsRoot() string { return m.outputsRoot }

func (m *Manager) newSession(dir string) *Session {
	st := NewStore(dir, m.outputsRoot)
	st.SetPolicy(m.policy)
	return &Session{Dir: dir, Store: st}
}

// StartSession creates (or reuses) dir as a fresh session. Destructive: the
// registry starts empty and an empty index is written, so any prior artifacts
// recorded under dir become unreachable from this process. dir may be empty,
// in which case session_[<label>_]<unix> is allocated under the outputs root.
func (m *Manager) StartSession(dir, label string) (*Session, error) {
	if dir == "" {
		name := fmt.Sprintf("session_%d", time.Now().Unix())
		if label != "" {
			name = fmt.Sprintf("session_%s_%d", label, time.Now().Unix())
		}
		dir = filepath.Join(m.outputsRoot, name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	s := m.newSession(dir)
	if err := s.Store.Save(); err != nil {
		return nil, fmt.Errorf("write empty index: %w", err)
	}
	m.current = s
	return s, nil
}

// SwitchSession resumes work in dir without discarding its history: an
// existing artifacts.json is loaded, so earlier outputs stay resolvable.
// Use this when the same conversation continues across requests.
func (m *Manager) SwitchSession(dir string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	s := m.newSession(dir)
	s.Store.Load()
	m.current = s
	return s, nil
}

// Current returns the active session, lazily starting a default one.
func (m *Manager) Current() (*Session, error) {
	if m.current != nil {
		return m.current, nil
	}
	return m.StartSession("", "")
}
