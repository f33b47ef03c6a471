// Package artifacts tracks the output files produced by tool calls within a
// session directory. Every produced file is registered with a short id and an
// optional label, and the registry is persisted to artifacts.json inside the
// session directory on every mutation.
package artifacts

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Artifact is one tracked output file. Entries are created once at
// registration time and never mutated or deleted; the underlying file may be
// removed externally, leaving a dangling entry.
type Artifact struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Path      string  `json:"path"`
	Type      string  `json:"type"`
	CreatedAt float64 `json:"created_at"`
}

// Sentinel result strings returned by ReadText. These deliberately are data,
// not errors: the model consumes them as tool output and can react.
const (
	ReadInvalidPath  = "Invalid path."
	ReadAccessDenied = "Access denied: path is outside outputs directory."
	ReadNotFound     = "File not found."
)

const maxReadBytes = 2_000_000

// Store is a session-scoped artifact registry. It is not safe for concurrent
// use; the conversation loop is the single writer per session.
type Store struct {
	dir         string // session directory holding artifacts.json
	outputsRoot string // access boundary for ReadText
	entries     []Artifact
	policy      *Policy
}

// NewStore creates an empty registry for the given session directory.
// outputsRoot is the ancestor directory reads are confined to.
func NewStore(dir, outputsRoot string) *Store {
	return &Store{dir: dir, outputsRoot: outputsRoot}
}

// SetPolicy installs a registration policy. A nil policy registers everything.
func (s *Store) SetPolicy(p *Policy) { s.policy = p }

// Dir returns the session directory the registry persists into.
func (s *Store) Dir() string { return s.dir }

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, "artifacts.json")
}

// Register records a produced file and persists the index. The path is
// resolved to absolute form. Duplicate paths are allowed: repeated analyses
// may overwrite the same file and register it again. Index write failures are
// swallowed; the in-memory registry remains authoritative.
//
// Returns the new artifact id, or "" when the path is suppressed by policy.
func (s *Store) Register(path, typ, label string) string {
	if s.policy != nil && s.policy.Excluded(path) {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	a := Artifact{
		ID:        newArtifactID(),
		Label:     label,
		Path:      abs,
		Type:      typ,
		CreatedAt: float64(time.Now().UnixNano()) / float64(time.Second),
	}
	s.entries = append(s.entries, a)
	_ = s.Save()
	return a.ID
}

// newArtifactID returns a short 8-hex-char identifier.
func newArtifactID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// List returns entries in insertion order, optionally filtered by type.
func (s *Store) List(filterType string) []Artifact {
	out := make([]Artifact, 0, len(s.entries))
	for _, a := range s.entries {
		if filterType != "" && a.Type != filterType {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Resolve looks up an artifact by exact id, then by label, returning the
// first match in insertion order.
func (s *Store) Resolve(idOrLabel string) (string, bool) {
	for _, a := range s.entries {
		if a.ID == idOrLabel {
			return a.Path, true
		}
	}
	for _, a := range s.entries {
		if a.Label != "" && a.Label == idOrLabel {
			return a.Path, true
		}
	}
	return "", false
}

// Search matches a case-insensitive substring against base names only.
func (s *Store) Search(substring string) []Artifact {
	sub := strings.ToLower(substring)
	var out []Artifact
	for _, a := range s.entries {
		if strings.Contains(strings.ToLower(filepath.Base(a.Path)), sub) {
			out = append(out, a)
		}
	}
	return out
}

// ReadText reads up to maxBytes of a text artifact for the model to quote.
// The argument is resolved through the registry first and treated as a
// literal path otherwise (relative paths against the session directory).
// Reads outside the outputs root are refused with a sentinel string.
func (s *Store) ReadText(idOrPath string, maxBytes int) string {
	p, ok := s.Resolve(idOrPath)
	if !ok {
		p = idOrPath
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.dir, p)
	}
	resolved, ok := resolveWithinRoot(p, s.outputsRoot)
	if !ok {
		return ReadAccessDenied
	}
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return ReadNotFound
	}

	if maxBytes < 1 {
		maxBytes = 1
	}
	if maxBytes > maxReadBytes {
		maxBytes = maxReadBytes
	}
	f, err := os.Open(resolved)
	if err != nil {
		return fmt.Sprintf("Could not read file: %v", err)
	}
	defer f.Close()
	// Read one byte past the limit so a file of exactly maxBytes is not
	// reported as truncated.
	buf := make([]byte, maxBytes+1)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Sprintf("Could not read file: %v", err)
	}
	if n > maxBytes {
		return fmt.Sprintf("(truncated to %d bytes)\n%s", maxBytes, decodeLossy(buf[:maxBytes]))
	}
	return decodeLossy(buf[:n])
}

// decodeLossy decodes bytes as UTF-8, replacing invalid sequences.
func decodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune('�')
		} else {
			sb.WriteRune(r)
		}
		b = b[size:]
	}
	return sb.String()
}

// resolveWithinRoot resolves p to absolute form (following symlinks where the
// target exists) and reports whether it falls under root.
func resolveWithinRoot(p, root string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	if r, err := filepath.EvalSymlinks(rootAbs); err == nil {
		rootAbs = r
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

// UniquePath ensures the requested path will not overwrite an existing file,
// probing name_1.ext, name_2.ext, ... until an unused path is found. Parent
// directories are created. No race-safety against concurrent writers; the
// conversation loop is single-threaded per session.
func (s *Store) UniquePath(requested string) (string, error) {
	if !filepath.IsAbs(requested) {
		requested = filepath.Join(s.dir, requested)
	}
	if err := os.MkdirAll(filepath.Dir(requested), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}
	if _, err := os.Stat(requested); err != nil {
		if os.IsNotExist(err) {
			return requested, nil
		}
		return "", fmt.Errorf("stat %s: %w", requested, err)
	}
	ext := filepath.Ext(requested)
	stem := strings.TrimSuffix(requested, ext)
	for i := 1; ; i++ {
		cand := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(cand); err != nil {
			if os.IsNotExist(err) {
				return cand, nil
			}
			return "", fmt.Errorf("stat %s: %w", cand, err)
		}
	}
}

// Save rewrites artifacts.json in full. Callers that can tolerate index loss
// ignore the error; in-memory state stays authoritative for the process.
func (s *Store) Save() error {
	entries := s.entries
	if entries == nil {
		entries = []Artifact{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(), data, 0o644)
}

// Load replaces the in-memory registry with the on-disk index, if present.
// A missing or unreadable index leaves the registry empty.
func (s *Store) Load() {
	s.entries = nil
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return
	}
	var entries []Artifact
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	s.entries = entries
}
