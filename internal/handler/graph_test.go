package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"loom/internal/service/graph"
	"loom/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *graph.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := graph.NewStore(storage.NewMemoryBackend(), nil, logger)
	store.Load()

	graphHandler := NewGraphHandler(store, logger)
	previewHandler := NewPreviewHandler(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/graph", graphHandler.GetGraph)
	mux.HandleFunc("POST /api/cards", graphHandler.CreateCard)
	mux.HandleFunc("GET /api/cards/{id}", graphHandler.GetCard)
	mux.HandleFunc("POST /api/cards/{id}/branch", graphHandler.Branch)
	mux.HandleFunc("POST /api/cards/{id}/messages", graphHandler.AppendMessage)
	mux.HandleFunc("POST /api/merges", graphHandler.CreateMerge)
	mux.HandleFunc("POST /api/edges", graphHandler.CreateEdge)
	mux.HandleFunc("POST /api/preview/truncate", previewHandler.Truncate)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

func TestCardLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/cards", `{"title":"Root"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create card status = %d, want 201", resp.StatusCode)
	}
	card := decode(t, resp)
	id := card["id"].(string)

	resp = postJSON(t, srv.URL+"/api/cards/"+id+"/messages", `{"role":"user","content":"hello"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("append status = %d, want 201", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/cards/"+id+"/branch", `{"message_index":0}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("branch status = %d, want 201", resp.StatusCode)
	}

	graphResp, err := http.Get(srv.URL + "/api/graph")
	if err != nil {
		t.Fatalf("GET /api/graph: %v", err)
	}
	defer graphResp.Body.Close()
	proj := decode(t, graphResp)
	if nodes := proj["nodes"].([]interface{}); len(nodes) != 2 {
		t.Errorf("projection has %d nodes, want 2", len(nodes))
	}
}

func TestErrorMappingOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	// Missing card -> 404 problem response.
	resp := postJSON(t, srv.URL+"/api/cards/ghost/branch", `{"message_index":0}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("branch from ghost status = %d, want 404", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want problem+json", ct)
	}

	// Malformed body -> 400.
	resp = postJSON(t, srv.URL+"/api/cards", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}
}

func TestMergeLimitMapsTo422WithRemedy(t *testing.T) {
	srv, _ := newTestServer(t)

	ids := make([]string, 6)
	for i := range ids {
		resp := postJSON(t, srv.URL+"/api/cards", `{"title":"T"}`)
		ids[i] = decode(t, resp)["id"].(string)
	}

	body, _ := json.Marshal(map[string]interface{}{"source_card_ids": ids})
	resp := postJSON(t, srv.URL+"/api/merges", string(body))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("merge status = %d, want 422", resp.StatusCode)
	}
	problem := decode(t, resp)
	if problem["remedy"] == nil || problem["remedy"] == "" {
		t.Error("422 response carries no remedy field")
	}
	if problem["requested"].(float64) != 6 || problem["limit"].(float64) != 5 {
		t.Errorf("extras = requested %v limit %v, want 6 and 5", problem["requested"], problem["limit"])
	}
}

func TestCycleRejectionMapsTo409(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/cards", `{"title":"A"}`)
	a := decode(t, resp)["id"].(string)
	postJSON(t, srv.URL+"/api/cards/"+a+"/messages", `{"role":"user","content":"hi"}`)
	resp = postJSON(t, srv.URL+"/api/cards/"+a+"/branch", `{"message_index":0}`)
	b := decode(t, resp)["id"].(string)

	body, _ := json.Marshal(map[string]string{"source_id": b, "target_id": a})
	resp = postJSON(t, srv.URL+"/api/edges", string(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("cycle edge status = %d, want 409", resp.StatusCode)
	}
}

func TestTruncatePreview(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{
		"strategy": "recent",
		"max_messages": 2,
		"messages": [
			{"id": "1", "role": "user", "content": "aaaa"},
			{"id": "2", "role": "assistant", "content": "bbbb"},
			{"id": "3", "role": "user", "content": "cccc"}
		]
	}`
	resp := postJSON(t, srv.URL+"/api/preview/truncate", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("truncate status = %d, want 200", resp.StatusCode)
	}
	preview := decode(t, resp)
	if got := len(preview["messages"].([]interface{})); got != 2 {
		t.Errorf("preview kept %d messages, want 2", got)
	}
	// Two 4-char messages at 4 chars per token.
	if tokens := preview["estimated_tokens"].(float64); tokens != 2 {
		t.Errorf("estimated_tokens = %v, want 2", tokens)
	}

	resp = postJSON(t, srv.URL+"/api/preview/truncate", `{"strategy":"bogus","messages":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus strategy status = %d, want 400", resp.StatusCode)
	}
}
