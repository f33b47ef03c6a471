package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestSession(t *testing.T) (*Manager, *Session) {
	t.Helper()
	root := t.TempDir()
	m := NewManager(root, nil)
	s, err := m.StartSession(filepath.Join(root, "sessionX"), "")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return m, s
}

func TestRegister_RoundTrip(t *testing.T) {
	_, s := newTestSession(t)
	p := filepath.Join(s.Dir, "TP53.fasta")
	if err := os.WriteFile(p, []byte(">sp|P04637|P53_HUMAN\nMEEPQSDPSV\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	id := s.Store.Register(p, "fasta", "TP53_fasta")
	if len(id) != 8 {
		t.Fatalf("id = %q, want 8 chars", id)
	}

	got, ok := s.Store.Resolve(id)
	if !ok || got != p {
		t.Fatalf("Resolve(id) = %q, %t; want %q", got, ok, p)
	}
	got, ok = s.Store.Resolve("TP53_fasta")
	if !ok || got != p {
		t.Fatalf("Resolve(label) = %q, %t; want %q", got, ok, p)
	}

	entries := s.Store.List("")
	if len(entries) != 1 {
		t.Fatalf("List: %d entries", len(entries))
	}
	a := entries[0]
	if a.ID != id || a.Type != "fasta" || a.Label != "TP53_fasta" || a.Path != p {
		t.Fatalf("entry mismatch: %+v", a)
	}
	if a.CreatedAt <= 0 {
		t.Fatalf("created_at not set")
	}
}

func TestRegister_PersistsIndex(t *testing.T) {
	_, s := newTestSession(t)
	s.Store.Register(filepath.Join(s.Dir, "a.txt"), "txt", "")
	s.Store.Register(filepath.Join(s.Dir, "b.png"), "png", "plot")

	data, err := os.ReadFile(filepath.Join(s.Dir, "artifacts.json"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	var entries []Artifact
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("index has %d entries, want 2", len(entries))
	}
	if entries[1].Label != "plot" || entries[1].Type != "png" {
		t.Fatalf("second entry: %+v", entries[1])
	}
}

func TestRegister_DuplicatePathsAllowed(t *testing.T) {
	_, s := newTestSession(t)
	p := filepath.Join(s.Dir, "same.txt")
	id1 := s.Store.Register(p, "txt", "")
	id2 := s.Store.Register(p, "txt", "")
	if id1 == id2 {
		t.Fatalf("ids collide: %q", id1)
	}
	if len(s.Store.List("")) != 2 {
		t.Fatalf("want 2 entries")
	}
}

func TestList_FilterByType(t *testing.T) {
	_, s := newTestSession(t)
	s.Store.Register(filepath.Join(s.Dir, "a.fasta"), "fasta", "")
	s.Store.Register(filepath.Join(s.Dir, "b.png"), "png", "")
	s.Store.Register(filepath.Join(s.Dir, "c.fasta"), "fasta", "")

	got := s.Store.List("fasta")
	if len(got) != 2 {
		t.Fatalf("List(fasta): %d entries", len(got))
	}
	for _, a := range got {
		if a.Type != "fasta" {
			t.Fatalf("wrong type in filtered list: %+v", a)
		}
	}
}

func TestResolve_NotFound(t *testing.T) {
	_, s := newTestSession(t)
	if _, ok := s.Store.Resolve("nope"); ok {
		t.Fatalf("expected not found")
	}
}

func TestResolve_IDWinsOverLabel(t *testing.T) {
	_, s := newTestSession(t)
	p1 := filepath.Join(s.Dir, "one.txt")
	p2 := filepath.Join(s.Dir, "two.txt")
	id1 := s.Store.Register(p1, "txt", "")
	s.Store.Register(p2, "txt", id1) // label colliding with an existing id

	got, ok := s.Store.Resolve(id1)
	if !ok || got != p1 {
		t.Fatalf("Resolve(%q) = %q; want id match %q", id1, got, p1)
	}
}

func TestSearch_BasenameCaseInsensitive(t *testing.T) {
	_, s := newTestSession(t)
	s.Store.Register(filepath.Join(s.Dir, "TP53_aligned.fasta"), "fasta", "")
	s.Store.Register(filepath.Join(s.Dir, "tree.png"), "png", "")
	// Substring present in the directory but not in the base name must not match.
	s.Store.Register(filepath.Join(s.Dir, "sub_sessionx", "plain.txt"), "txt", "")

	got := s.Store.Search("tp53")
	if len(got) != 1 || filepath.Base(got[0].Path) != "TP53_aligned.fasta" {
		t.Fatalf("Search(tp53): %+v", got)
	}
	if got := s.Store.Search("sessionx"); len(got) != 0 {
		t.Fatalf("Search matched full path, want basename only: %+v", got)
	}
}

func TestUniquePath_SuffixesBeforeExtension(t *testing.T) {
	_, s := newTestSession(t)
	want := filepath.Join(s.Dir, "alignment.txt")

	p1, err := s.Store.UniquePath(want)
	if err != nil {
		t.Fatalf("UniquePath: %v", err)
	}
	if p1 != want {
		t.Fatalf("first call = %q, want %q", p1, want)
	}
	if err := os.WriteFile(p1, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p2, err := s.Store.UniquePath(want)
	if err != nil {
		t.Fatalf("UniquePath: %v", err)
	}
	if p2 != filepath.Join(s.Dir, "alignment_1.txt") {
		t.Fatalf("second call = %q", p2)
	}
	if err := os.WriteFile(p2, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p3, err := s.Store.UniquePath(want)
	if err != nil {
		t.Fatalf("UniquePath: %v", err)
	}
	if p3 != filepath.Join(s.Dir, "alignment_2.txt") {
		t.Fatalf("third call = %q", p3)
	}
}

func TestUniquePath_RelativeResolvesAgainstSession(t *testing.T) {
	_, s := newTestSession(t)
	p, err := s.Store.UniquePath("sub/out.txt")
	if err != nil {
		t.Fatalf("UniquePath: %v", err)
	}
	if p != filepath.Join(s.Dir, "sub", "out.txt") {
		t.Fatalf("got %q", p)
	}
	if _, err := os.Stat(filepath.Dir(p)); err != nil {
		t.Fatalf("parent not created: %v", err)
	}
}

func TestUniquePath_StatErrorIsTerminal(t *testing.T) {
	_, s := newTestSession(t)
	// A basename past the filesystem limit makes os.Stat fail with
	// ENAMETOOLONG rather than ENOENT; that must surface as an error
	// instead of looping on candidate names.
	if _, err := s.Store.UniquePath(strings.Repeat("a", 300) + ".txt"); err == nil {
		t.Fatalf("expected stat error")
	}
}

func TestReadText_TraversalDenied(t *testing.T) {
	_, s := newTestSession(t)
	for _, in := range []string{
		"../../etc/passwd",
		"/etc/passwd",
		"../../../does-not-exist",
	} {
		got := s.Store.ReadText(in, 1024)
		if got != ReadAccessDenied {
			t.Fatalf("ReadText(%q) = %q, want access denied", in, got)
		}
	}
}

func TestReadText_ByIDAndTruncation(t *testing.T) {
	_, s := newTestSession(t)
	p := filepath.Join(s.Dir, "notes.txt")
	if err := os.WriteFile(p, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	id := s.Store.Register(p, "txt", "notes")

	if got := s.Store.ReadText(id, 1024); got != "hello world" {
		t.Fatalf("full read = %q", got)
	}
	got := s.Store.ReadText("notes", 5)
	if !strings.HasPrefix(got, "(truncated to 5 bytes)\n") || !strings.HasSuffix(got, "hello") {
		t.Fatalf("truncated read = %q", got)
	}
}

func TestReadText_ExactLimitNotTruncated(t *testing.T) {
	_, s := newTestSession(t)
	p := filepath.Join(s.Dir, "exact.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := s.Store.ReadText(p, 5); got != "hello" {
		t.Fatalf("got %q, want untruncated content", got)
	}
	if got := s.Store.ReadText(p, 4); !strings.HasPrefix(got, "(truncated to 4 bytes)\n") {
		t.Fatalf("got %q, want truncation marker", got)
	}
}

func TestReadText_MissingFile(t *testing.T) {
	_, s := newTestSession(t)
	if got := s.Store.ReadText("no_such_file.txt", 64); got != ReadNotFound {
		t.Fatalf("got %q", got)
	}
}

func TestReadText_LossyDecoding(t *testing.T) {
	_, s := newTestSession(t)
	p := filepath.Join(s.Dir, "mixed.bin")
	if err := os.WriteFile(p, []byte{'o', 'k', 0xff, 0xfe, '!'}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := s.Store.ReadText(p, 64)
	if !strings.Contains(got, "ok") || !strings.Contains(got, "�") {
		t.Fatalf("got %q", got)
	}
}

func TestPolicy_ExcludesScratchFiles(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, &Policy{ExcludeGlobs: []string{"**/*.tmp", "*.partial"}})
	s, err := m.StartSession(filepath.Join(root, "sess"), "")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if id := s.Store.Register(filepath.Join(s.Dir, "scratch.tmp"), "txt", ""); id != "" {
		t.Fatalf("tmp file registered: %q", id)
	}
	if id := s.Store.Register(filepath.Join(s.Dir, "download.partial"), "txt", ""); id != "" {
		t.Fatalf("partial file registered: %q", id)
	}
	if id := s.Store.Register(filepath.Join(s.Dir, "kept.txt"), "txt", ""); id == "" {
		t.Fatalf("regular file suppressed")
	}
	if n := len(s.Store.List("")); n != 1 {
		t.Fatalf("List: %d entries, want 1", n)
	}
}
