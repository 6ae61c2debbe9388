// Package webui serves the pricebook tools over plain HTTP for chat
// UIs that register tool servers by OpenAPI URL. Every tool endpoint
// answers 200 with a {"result": "..."} body: backend failures are
// rendered into the result text so the calling model can read them,
// matching how the tools behave inside a chat. HTTP error statuses are
// reserved for requests the server itself cannot parse.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/perfect-catch/pricebook-bridge/bridge"
	"github.com/perfect-catch/pricebook-bridge/pricebook"
)

const (
	// DefaultSessionID scopes the conversational backend session for
	// searches issued through the tool server.
	DefaultSessionID = "openwebui"

	// DefaultStatusTimeout bounds the status endpoint's backend call.
	// Status polls should fail fast instead of holding the UI for the
	// full chat budget.
	DefaultStatusTimeout = 10 * time.Second

	defaultMaxBody = 1 << 20 // 1 MB

	syncStatusPath = "/api/sync/pricebook/status"
)

// Config configures a tool server.
type Config struct {
	// Client calls the backend for search and category lookups.
	// Required.
	Client *pricebook.Client

	// StatusClient calls the sync status endpoint. Defaults to a
	// client on the same base URL with DefaultStatusTimeout.
	StatusClient *pricebook.Client

	// SessionID scopes chat calls (default "openwebui").
	SessionID string

	// Observer receives a DispatchObservation per tool invocation.
	// Optional.
	Observer bridge.Observer

	// MaxBody bounds request bodies (default 1 MB).
	MaxBody int64

	Logger *slog.Logger
}

// Server is the HTTP tool server.
type Server struct {
	client       *pricebook.Client
	statusClient *pricebook.Client
	sessionID    string
	observer     bridge.Observer
	maxBody      int64
	logger       *slog.Logger
	openapiJSON  []byte
}

// NewServer validates cfg and returns a tool server with its OpenAPI
// document pre-rendered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("webui: Config.Client is required")
	}

	statusClient := cfg.StatusClient
	if statusClient == nil {
		built, err := pricebook.NewClient(pricebook.Config{
			BaseURL: cfg.Client.BaseURL(),
			Timeout: DefaultStatusTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("webui: building status client: %w", err)
		}
		statusClient = built
	}

	sessionID := strings.TrimSpace(cfg.SessionID)
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	openapiJSON, err := json.Marshal(buildOpenAPIDocument())
	if err != nil {
		return nil, fmt.Errorf("webui: marshaling OpenAPI document: %w", err)
	}

	return &Server{
		client:       cfg.Client,
		statusClient: statusClient,
		sessionID:    sessionID,
		observer:     cfg.Observer,
		maxBody:      maxBody,
		logger:       logger,
		openapiJSON:  openapiJSON,
	}, nil
}

// SessionID reports the chat session token in use.
func (s *Server) SessionID() string {
	return s.sessionID
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /openapi.json", s.handleOpenAPI)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	var handler http.Handler = mux
	handler = s.requestIDMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	// Chat UIs load the OpenAPI document and call tools from browser
	// origins the server cannot know in advance.
	return cors.AllowAll().Handler(handler)
}

// --- Middleware ---

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "requestId", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- Handlers ---

// toolResponse is the body every tool endpoint answers with.
type toolResponse struct {
	Result string `json:"result"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.openapiJSON)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSONBody(r, &req); err != nil {
		if isMaxBytesError(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "query is required")
		return
	}

	writeJSON(w, http.StatusOK, toolResponse{Result: s.search(r.Context(), "search_pricebook", req.Query)})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toolResponse{Result: s.search(r.Context(), "get_pricebook_categories", "show me all categories")})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toolResponse{Result: s.status(r.Context())})
}

// search runs query through the conversational backend and renders the
// outcome as tool text. tool names the invocation for observations.
func (s *Server) search(ctx context.Context, tool, query string) string {
	start := time.Now()
	payload, err := s.client.Chat(ctx, s.sessionID, query)
	s.observe(tool, start, err)
	if err != nil {
		s.logger.Warn("search failed", "tool", tool, "error", err)
		return transportErrorText(err)
	}
	return searchResultText(payload)
}

// status fetches sync status on the short-timeout client. Any failure
// is rendered into the result text.
func (s *Server) status(ctx context.Context) string {
	start := time.Now()
	payload, err := s.statusClient.Get(ctx, syncStatusPath, nil)
	s.observe("get_pricebook_status", start, err)
	if err != nil {
		s.logger.Warn("status fetch failed", "error", err)
		return "Error getting status: " + err.Error()
	}
	return statusText(payload, time.Now())
}

func (s *Server) observe(tool string, start time.Time, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveDispatch(bridge.DispatchObservation{
		Tool:       tool,
		Transport:  bridge.TransportWebUI,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    err == nil,
		ErrorCode:  bridge.ErrorCode(err),
	})
}

// --- JSON helpers ---

func decodeJSONBody(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func isMaxBytesError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the error envelope for requests the server rejects.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	body := apiError{
		Error: apiErrorBody{
			Code:    code,
			Message: message,
		},
	}
	if len(details) > 0 {
		body.Error.Details = details
	}
	writeJSON(w, status, body)
}
