package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	treeModels "arbor/internal/domain/models/tree"
	"arbor/internal/palette"
	treeSvc "arbor/internal/service/tree"
)

// stubResponder returns a fixed reply without touching any provider.
type stubResponder struct {
	text string
}

func (s stubResponder) Respond(_ context.Context, _ []*treeModels.Turn) (string, error) {
	return s.text, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds a memory-only registry behind the real route table.
// The reveal tick is an hour so nothing streams unless a test drives it.
func newTestServer(t *testing.T) (*httptest.Server, *treeSvc.ConversationRegistry) {
	t.Helper()

	pal, err := palette.Load()
	if err != nil {
		t.Fatalf("load palette: %v", err)
	}
	registry := treeSvc.NewConversationRegistry(nil, pal, stubResponder{text: "reply"}, time.Hour, testLogger())
	t.Cleanup(registry.Close)

	logger := testLogger()
	conversationHandler := NewConversationHandler(registry, logger)
	turnHandler := NewTurnHandler(registry, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", conversationHandler.HealthCheck)
	mux.HandleFunc("POST /api/conversations", conversationHandler.CreateConversation)
	mux.HandleFunc("GET /api/conversations", conversationHandler.ListConversations)
	mux.HandleFunc("GET /api/conversations/{id}/path", conversationHandler.GetPath)
	mux.HandleFunc("GET /api/conversations/{id}/turns", conversationHandler.GetTree)
	mux.HandleFunc("POST /api/conversations/{id}/turns", conversationHandler.CreateTurn)
	mux.HandleFunc("POST /api/conversations/{id}/switch", conversationHandler.SwitchBranch)
	mux.HandleFunc("POST /api/turns/{id}/edit", turnHandler.EditTurn)
	mux.HandleFunc("GET /api/turns/{id}/siblings", turnHandler.GetSiblings)
	mux.HandleFunc("POST /api/turns/{id}/interrupt", turnHandler.InterruptTurn)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, registry
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createConversation(t *testing.T, baseURL string) *treeModels.Conversation {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/conversations", map[string]string{
		"title":     "test",
		"root_text": "Hello!",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create conversation status = %d, want 201", resp.StatusCode)
	}
	var conv treeModels.Conversation
	decodeJSON(t, resp, &conv)
	return &conv
}

func TestCreateConversationAndGetPath(t *testing.T) {
	srv, _ := newTestServer(t)

	conv := createConversation(t, srv.URL)
	if conv.ID == "" || conv.RootID == "" {
		t.Fatalf("conversation missing ids: %+v", conv)
	}

	resp, err := http.Get(srv.URL + "/api/conversations/" + conv.ID + "/path")
	if err != nil {
		t.Fatalf("GET path: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get path status = %d, want 200", resp.StatusCode)
	}

	var view treeModels.PathView
	decodeJSON(t, resp, &view)
	if len(view.Entries) != 1 {
		t.Fatalf("path length = %d, want 1", len(view.Entries))
	}
	if view.LeafID != conv.RootID {
		t.Errorf("leaf = %s, want root %s", view.LeafID, conv.RootID)
	}
}

func TestCreateConversationValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/conversations", map[string]string{"title": ""})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateTurnExtendsPath(t *testing.T) {
	srv, _ := newTestServer(t)
	conv := createConversation(t, srv.URL)

	resp := postJSON(t, srv.URL+"/api/conversations/"+conv.ID+"/turns", map[string]interface{}{
		"parent_id": conv.RootID,
		"sender":    "user",
		"text":      "What is a tree?",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create turn status = %d, want 201", resp.StatusCode)
	}

	var body struct {
		Turn *treeModels.Turn `json:"turn"`
	}
	decodeJSON(t, resp, &body)
	if body.Turn == nil || body.Turn.Sender != treeModels.SenderUser {
		t.Fatalf("unexpected turn: %+v", body.Turn)
	}
	if body.Turn.ParentID == nil || *body.Turn.ParentID != conv.RootID {
		t.Errorf("turn parent = %v, want %s", body.Turn.ParentID, conv.RootID)
	}
}

func TestCreateTurnUnknownParent(t *testing.T) {
	srv, _ := newTestServer(t)
	conv := createConversation(t, srv.URL)

	resp := postJSON(t, srv.URL+"/api/conversations/"+conv.ID+"/turns", map[string]interface{}{
		"parent_id": "7b339dd8-13c1-46aa-a09b-9e21b2d61d1b",
		"sender":    "user",
		"text":      "orphan",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestEditForksAndLabels(t *testing.T) {
	srv, registry := newTestServer(t)
	conv := createConversation(t, srv.URL)

	engine, err := registry.Get(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("get engine: %v", err)
	}
	prompt, err := engine.Append(context.Background(), conv.RootID, treeModels.SenderUser, "original prompt")
	if err != nil {
		t.Fatalf("append prompt: %v", err)
	}

	resp := postJSON(t, srv.URL+"/api/turns/"+prompt.ID+"/edit", map[string]interface{}{
		"text": "edited prompt",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("edit status = %d, want 201", resp.StatusCode)
	}

	var body struct {
		Turn *treeModels.Turn `json:"turn"`
	}
	decodeJSON(t, resp, &body)
	if body.Turn.ID == prompt.ID {
		t.Fatal("edit overwrote the original turn")
	}
	if body.Turn.BranchLabel == nil || *body.Turn.BranchLabel != "Branch 1" {
		t.Errorf("fork label = %v, want Branch 1", body.Turn.BranchLabel)
	}

	// The original keeps its text and gains the Original label.
	sibResp, err := http.Get(srv.URL + "/api/turns/" + prompt.ID + "/siblings")
	if err != nil {
		t.Fatalf("GET siblings: %v", err)
	}
	if sibResp.StatusCode != http.StatusOK {
		t.Fatalf("siblings status = %d, want 200", sibResp.StatusCode)
	}
	var sibBody struct {
		Siblings []*treeModels.Turn `json:"siblings"`
		Count    int                `json:"count"`
	}
	decodeJSON(t, sibResp, &sibBody)
	if sibBody.Count != 2 {
		t.Fatalf("sibling count = %d, want 2", sibBody.Count)
	}
	if sibBody.Siblings[0].Text != "original prompt" {
		t.Errorf("original text = %q, want unchanged", sibBody.Siblings[0].Text)
	}
	if sibBody.Siblings[0].BranchLabel == nil || *sibBody.Siblings[0].BranchLabel != "Original" {
		t.Errorf("original label = %v, want Original", sibBody.Siblings[0].BranchLabel)
	}
}

func TestSwitchBranchInvalidPosition(t *testing.T) {
	srv, _ := newTestServer(t)
	conv := createConversation(t, srv.URL)

	resp := postJSON(t, srv.URL+"/api/conversations/"+conv.ID+"/switch", map[string]interface{}{
		"position": 5,
		"turn_id":  conv.RootID,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestInterruptSettledTurnIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)
	conv := createConversation(t, srv.URL)

	resp := postJSON(t, srv.URL+"/api/turns/"+conv.RootID+"/interrupt", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPathParamValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/conversations/not-a-uuid/path")
	if err != nil {
		t.Fatalf("GET path: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProblemResponseFormat(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("%s/api/conversations/%s/path", srv.URL, "3017b383-8c35-4e88-8d3d-bbb1f60ed2b4"))
	if err != nil {
		t.Fatalf("GET path: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q, want application/problem+json", ct)
	}

	var problem struct {
		Status int    `json:"status"`
		Title  string `json:"title"`
	}
	decodeJSON(t, resp, &problem)
	if problem.Status != http.StatusNotFound {
		t.Errorf("problem status = %d, want 404", problem.Status)
	}
}
