package webui

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/perfect-catch/pricebook-bridge/bridge"
	"github.com/perfect-catch/pricebook-bridge/pricebook"
)

type backendCall struct {
	Method string
	Path   string
	Body   map[string]any
}

// newChatBackend stubs the pricebook backend, recording every call and
// answering each with response.
func newChatBackend(t *testing.T, response string) (*httptest.Server, *[]backendCall) {
	t.Helper()
	calls := &[]backendCall{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := backendCall{Method: r.Method, Path: r.URL.Path}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading backend request body: %v", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &call.Body); err != nil {
				t.Errorf("decoding backend request body: %v", err)
			}
		}
		*calls = append(*calls, call)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func newToolServer(t *testing.T, backendURL string) *Server {
	t.Helper()
	client, err := pricebook.NewClient(pricebook.Config{BaseURL: backendURL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	server, err := NewServer(Config{
		Client: client,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return server
}

func decodeToolResponse(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body toolResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, w.Body.String())
	}
	return body.Result
}

func TestToolServerSearch(t *testing.T) {
	backend, calls := newChatBackend(t, `{"success":true,"message":"Found 2 pool pumps."}`)
	srv := newToolServer(t, backend.URL)

	r := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"pool pump"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := decodeToolResponse(t, w); got != "Found 2 pool pumps." {
		t.Fatalf("result = %q, want the backend message", got)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("X-Request-Id header missing")
	}

	if len(*calls) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(*calls))
	}
	call := (*calls)[0]
	if call.Method != http.MethodPost || call.Path != "/chat/pricebook" {
		t.Fatalf("backend call = %s %s, want POST /chat/pricebook", call.Method, call.Path)
	}
	if call.Body["sessionId"] != DefaultSessionID {
		t.Errorf("sessionId = %v, want %q", call.Body["sessionId"], DefaultSessionID)
	}
	if call.Body["message"] != "pool pump" {
		t.Errorf("message = %v, want the query", call.Body["message"])
	}
}

func TestToolServerSearchCustomSession(t *testing.T) {
	backend, calls := newChatBackend(t, `{"success":true,"message":"ok"}`)
	client, err := pricebook.NewClient(pricebook.Config{BaseURL: backend.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	srv, err := NewServer(Config{
		Client:    client,
		SessionID: "kitchen-display",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"breaker"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if (*calls)[0].Body["sessionId"] != "kitchen-display" {
		t.Fatalf("sessionId = %v, want kitchen-display", (*calls)[0].Body["sessionId"])
	}
}

func TestToolServerSearchValidation(t *testing.T) {
	backend, calls := newChatBackend(t, `{"success":true}`)
	srv := newToolServer(t, backend.URL)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "blank query", body: `{"query":"   "}`, wantCode: "VALIDATION_ERROR"},
		{name: "missing query", body: `{}`, wantCode: "VALIDATION_ERROR"},
		{name: "malformed json", body: `{"query":`, wantCode: "PARSE_ERROR"},
		{name: "unknown field", body: `{"q":"pump"}`, wantCode: "PARSE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, r)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			var envelope apiError
			if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("unmarshal error envelope: %v", err)
			}
			if envelope.Error.Code != tt.wantCode {
				t.Fatalf("error code = %q, want %q", envelope.Error.Code, tt.wantCode)
			}
		})
	}
	if len(*calls) != 0 {
		t.Fatalf("backend calls = %d, want 0 for rejected requests", len(*calls))
	}
}

func TestToolServerSearchBodyLimit(t *testing.T) {
	backend, _ := newChatBackend(t, `{"success":true}`)
	client, err := pricebook.NewClient(pricebook.Config{BaseURL: backend.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	srv, err := NewServer(Config{
		Client:  client,
		MaxBody: 16,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	bigBody := `{"query":"` + strings.Repeat("x", 100) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(bigBody))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestToolServerCategories(t *testing.T) {
	backend, calls := newChatBackend(t, `{"success":true,"message":"Electrical, Plumbing, HVAC"}`)
	srv := newToolServer(t, backend.URL)

	r := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if got := decodeToolResponse(t, w); got != "Electrical, Plumbing, HVAC" {
		t.Fatalf("result = %q, want the category listing", got)
	}
	if len(*calls) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(*calls))
	}
	if (*calls)[0].Body["message"] != "show me all categories" {
		t.Fatalf("message = %v, want the categories prompt", (*calls)[0].Body["message"])
	}
}

func TestToolServerStatus(t *testing.T) {
	backend, calls := newChatBackend(t, `{"success":true,"stats":[{"entity_type":"materials","total_count":1250}]}`)
	srv := newToolServer(t, backend.URL)

	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	want := "**Pricebook Status:**\n\n• Materials: 1250 items\n"
	if got := decodeToolResponse(t, w); got != want {
		t.Fatalf("result = %q, want %q", got, want)
	}
	if len(*calls) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(*calls))
	}
	call := (*calls)[0]
	if call.Method != http.MethodGet || call.Path != "/api/sync/pricebook/status" {
		t.Fatalf("backend call = %s %s, want GET /api/sync/pricebook/status", call.Method, call.Path)
	}
}

func TestToolServerSearchConnectionError(t *testing.T) {
	backend, _ := newChatBackend(t, `{"success":true}`)
	srv := newToolServer(t, backend.URL)
	backend.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"pump"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	// Backend failures still answer 200: the text is the tool's output.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	want := "Error: Could not connect to Pricebook service. Make sure the service is running."
	if got := decodeToolResponse(t, w); got != want {
		t.Fatalf("result = %q, want %q", got, want)
	}
}

func TestToolServerStatusConnectionError(t *testing.T) {
	backend, _ := newChatBackend(t, `{"success":true}`)
	srv := newToolServer(t, backend.URL)
	backend.Close()

	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	got := decodeToolResponse(t, w)
	if !strings.HasPrefix(got, "Error getting status: ") {
		t.Fatalf("result = %q, want Error getting status: prefix", got)
	}
}

func TestToolServerHealth(t *testing.T) {
	backend, _ := newChatBackend(t, `{"success":true}`)
	srv := newToolServer(t, backend.URL)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status = %q, want ok", body["status"])
	}
}

func TestToolServerOpenAPIDocument(t *testing.T) {
	backend, _ := newChatBackend(t, `{"success":true}`)
	srv := newToolServer(t, backend.URL)

	r := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var doc struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]map[string]struct {
			OperationID string `json:"operationId"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if doc.OpenAPI != "3.0.3" {
		t.Errorf("openapi = %q, want 3.0.3", doc.OpenAPI)
	}
	if doc.Info.Title == "" {
		t.Error("info.title is empty")
	}

	wantOps := map[string]struct{ method, id string }{
		"/api/search":     {method: "post", id: "search_pricebook"},
		"/api/categories": {method: "get", id: "get_pricebook_categories"},
		"/api/status":     {method: "get", id: "get_pricebook_status"},
	}
	for path, want := range wantOps {
		item, ok := doc.Paths[path]
		if !ok {
			t.Errorf("document missing path %s", path)
			continue
		}
		if item[want.method].OperationID != want.id {
			t.Errorf("%s %s operationId = %q, want %q", want.method, path, item[want.method].OperationID, want.id)
		}
	}
}

func TestToolServerCORS(t *testing.T) {
	backend, _ := newChatBackend(t, `{"success":true}`)
	srv := newToolServer(t, backend.URL)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS origin = %q, want *", got)
	}
}

func TestToolServerCORSPreflight(t *testing.T) {
	backend, _ := newChatBackend(t, `{"success":true}`)
	srv := newToolServer(t, backend.URL)

	r := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS origin = %q, want *", got)
	}
}

func TestToolServerEchoesRequestID(t *testing.T) {
	backend, _ := newChatBackend(t, `{"success":true}`)
	srv := newToolServer(t, backend.URL)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("X-Request-Id = %q, want the caller's id echoed", got)
	}
}

type recordingObserver struct {
	mu         sync.Mutex
	dispatches []bridge.DispatchObservation
}

func (r *recordingObserver) ObserveDispatch(observation bridge.DispatchObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatches = append(r.dispatches, observation)
}

func (r *recordingObserver) ObserveResource(bridge.ResourceObservation) {}

func TestToolServerEmitsObservations(t *testing.T) {
	backend, _ := newChatBackend(t, `{"success":true,"message":"ok"}`)
	client, err := pricebook.NewClient(pricebook.Config{BaseURL: backend.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	observer := &recordingObserver{}
	srv, err := NewServer(Config{
		Client:   client,
		Observer: observer,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	search := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"pump"}`))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), search)
	status := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), status)

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if len(observer.dispatches) != 2 {
		t.Fatalf("observations = %d, want 2", len(observer.dispatches))
	}
	first, second := observer.dispatches[0], observer.dispatches[1]
	if first.Tool != "search_pricebook" || second.Tool != "get_pricebook_status" {
		t.Fatalf("tools = %q, %q; want search_pricebook, get_pricebook_status", first.Tool, second.Tool)
	}
	for _, observation := range observer.dispatches {
		if observation.Transport != bridge.TransportWebUI {
			t.Errorf("transport = %q, want %q", observation.Transport, bridge.TransportWebUI)
		}
		if !observation.Success {
			t.Errorf("observation for %s not marked successful", observation.Tool)
		}
	}
}

func TestNewServerRequiresClient(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatal("NewServer() error = nil, want client requirement")
	}
}
