package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/davidzheglov/longevity-knowledge-base/internal/agent"
	"github.com/davidzheglov/longevity-knowledge-base/internal/artifacts"
	"github.com/davidzheglov/longevity-knowledge-base/internal/llm"
)

// scriptedAdapter replays canned responses and records the requests it saw.
type scriptedAdapter struct {
	mu        sync.Mutex
	responses []llm.Response
	calls     int
}

func (a *scriptedAdapter) Name() string { return "scripted" }

func (a *scriptedAdapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.calls
	a.calls++
	if i >= len(a.responses) {
		i = len(a.responses) - 1
	}
	return a.responses[i], nil
}

func assistantText(text string) llm.Response {
	return llm.Response{
		Message: llm.Assistant(text),
		Finish:  llm.FinishReason{Reason: "stop"},
	}
}

func assistantToolCall(id, name, argsJSON string) llm.Response {
	return llm.Response{
		Message: llm.Message{
			Role: llm.RoleAssistant,
			Content: []llm.ContentPart{{
				Kind: llm.ContentToolCall,
				ToolCall: &llm.ToolCallData{
					ID:        id,
					Name:      name,
					Arguments: json.RawMessage(argsJSON),
				},
			}},
		},
		Finish: llm.FinishReason{Reason: "tool_call"},
	}
}

func testServer(t *testing.T, responses ...llm.Response) *httptest.Server {
	t.Helper()
	client := llm.NewClient()
	client.Register(&scriptedAdapter{responses: responses})

	reg := agent.NewToolRegistry()
	if err := reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{Name: "save_note"},
		Spec:       agent.Spec(agent.P("text", agent.KindString, "")),
		Exec: func(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
			path, err := sess.Store.UniquePath("note.txt")
			if err != nil {
				return "", nil, err
			}
			if err := writeNote(path, agent.ArgString(args, "text")); err != nil {
				return "", nil, err
			}
			id := sess.Store.Register(path, "txt", "note")
			return "Saved note to: " + path, []agent.ArtifactRef{{ID: id, Path: path, Type: "txt", Label: "note"}}, nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	srv := New(Config{Addr: ":0"}, SessionDeps{
		Client:      client,
		Tools:       reg,
		OutputsRoot: t.TempDir(),
		Chat: agent.ChatConfig{
			Model:    "test-model",
			Provider: "scripted",
			Sleep:    func(ctx context.Context, _ time.Duration) error { return nil },
		},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.registry.CloseAll()
	})
	return ts
}

func writeNote(path, text string) error {
	return os.WriteFile(path, []byte(text), 0o644)
}

func postChat(t *testing.T, ts *httptest.Server, body string) (*http.Response, ChatResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST /api/chat: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var cr ChatResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, cr
}

func TestHealthz(t *testing.T) {
	ts := testServer(t, assistantText("ok"))
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestChat_PlainAnswer(t *testing.T) {
	ts := testServer(t, assistantText("TP53 is a tumor suppressor gene."))
	resp, cr := postChat(t, ts, `{"session_id": "s1", "message": "what is TP53?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cr.SessionID != "s1" {
		t.Fatalf("session_id = %q", cr.SessionID)
	}
	if cr.Response != "TP53 is a tumor suppressor gene." {
		t.Fatalf("response = %q", cr.Response)
	}
	if len(cr.ToolsUsed) != 0 {
		t.Fatalf("tools_used = %v", cr.ToolsUsed)
	}
}

func TestChat_ToolTurnReportsToolsAndArtifacts(t *testing.T) {
	ts := testServer(t,
		assistantToolCall("call_1", "save_note", `{"text": "hello"}`),
		assistantText("Saved."),
	)
	resp, cr := postChat(t, ts, `{"session_id": "s2", "message": "save a note"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(cr.ToolsUsed) != 1 || cr.ToolsUsed[0] != "save_note" {
		t.Fatalf("tools_used = %v", cr.ToolsUsed)
	}
	if len(cr.Artifacts) != 1 || cr.Artifacts[0].Type != "txt" {
		t.Fatalf("artifacts = %+v", cr.Artifacts)
	}
}

func TestChat_SessionIDGenerated(t *testing.T) {
	ts := testServer(t, assistantText("hi"))
	resp, cr := postChat(t, ts, `{"message": "hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cr.SessionID == "" || !validSessionID.MatchString(cr.SessionID) {
		t.Fatalf("session_id = %q", cr.SessionID)
	}
}

func TestChat_BadRequests(t *testing.T) {
	ts := testServer(t, assistantText("hi"))

	resp, _ := postChat(t, ts, `{"session_id": "s1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing message: status = %d", resp.StatusCode)
	}

	resp, _ = postChat(t, ts, `{"session_id": "../etc", "message": "hi"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad session id: status = %d", resp.StatusCode)
	}

	resp, _ = postChat(t, ts, `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad body: status = %d", resp.StatusCode)
	}
}

func TestChat_SessionResumedAcrossRequests(t *testing.T) {
	ts := testServer(t,
		assistantToolCall("call_1", "save_note", `{"text": "first"}`),
		assistantText("Saved."),
		assistantText("Done."),
	)
	if resp, _ := postChat(t, ts, `{"session_id": "s3", "message": "save"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("first turn: status = %d", resp.StatusCode)
	}
	resp, cr := postChat(t, ts, `{"session_id": "s3", "message": "anything else?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second turn: status = %d", resp.StatusCode)
	}
	// The artifact from the first turn is still listed.
	if len(cr.Artifacts) != 1 {
		t.Fatalf("artifacts = %+v", cr.Artifacts)
	}
}

func TestSessionArtifactsEndpoint(t *testing.T) {
	ts := testServer(t,
		assistantToolCall("call_1", "save_note", `{"text": "x"}`),
		assistantText("Saved."),
	)
	if resp, _ := postChat(t, ts, `{"session_id": "s4", "message": "save"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: status = %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/api/sessions/s4/artifacts")
	if err != nil {
		t.Fatalf("GET artifacts: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var ar ArtifactsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ar.SessionID != "s4" || len(ar.Artifacts) != 1 {
		t.Fatalf("response = %+v", ar)
	}

	resp2, err := http.Get(ts.URL + "/api/sessions/s4/artifacts?type=fasta")
	if err != nil {
		t.Fatalf("GET artifacts: %v", err)
	}
	defer resp2.Body.Close()
	var filtered ArtifactsResponse
	if err := json.NewDecoder(resp2.Body).Decode(&filtered); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(filtered.Artifacts) != 0 {
		t.Fatalf("filtered = %+v", filtered.Artifacts)
	}
}

func TestSessionArtifacts_NotFound(t *testing.T) {
	ts := testServer(t, assistantText("hi"))
	resp, err := http.Get(ts.URL + "/api/sessions/nope/artifacts")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSessionEvents_StreamsHistory(t *testing.T) {
	ts := testServer(t, assistantText("hello there"))
	if resp, _ := postChat(t, ts, `{"session_id": "s5", "message": "hi"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sessions/s5/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var kinds []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			kinds = append(kinds, strings.TrimPrefix(line, "event: "))
		}
		if len(kinds) >= 3 {
			break
		}
	}
	want := []string{string(agent.EventSessionStart), string(agent.EventUserInput), string(agent.EventAssistantText)}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
}

func TestCSRF_CrossOriginPostBlocked(t *testing.T) {
	ts := testServer(t, assistantText("hi"))
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/chat", strings.NewReader(`{"message": "hi"}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
