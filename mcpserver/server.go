// Package mcpserver speaks MCP (JSON-RPC 2.0 over newline-delimited
// stdio) on behalf of a bridge dispatcher. Stdout carries the protocol;
// all logging goes to stderr.
package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/perfect-catch/pricebook-bridge/bridge"
	"github.com/perfect-catch/pricebook-bridge/pricebook"
)

// Config controls server construction.
type Config struct {
	// Dispatcher handles tools/call and resources/read. Required.
	Dispatcher *bridge.Dispatcher

	// Version is reported in serverInfo (default "dev").
	Version string

	// Logger receives protocol-level logs. Defaults to a text handler
	// on stderr; it must never write to stdout.
	Logger *slog.Logger
}

// Server is an MCP server exposing the pricebook tool catalog and
// resources over JSON-RPC 2.0 on newline-delimited stdio.
type Server struct {
	dispatcher  *bridge.Dispatcher
	version     string
	logger      *slog.Logger
	tools       []toolDescription
	resources   []resourceDescription
	initialized bool
}

// NewServer validates cfg and returns a server with the tool catalog
// and resource list pre-rendered for tools/list and resources/list.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("mcpserver: Config.Dispatcher is required")
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	tools := make([]toolDescription, 0, len(bridge.Catalog()))
	for _, tool := range bridge.Catalog() {
		description := toolDescription{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}
		if tool.ReadOnly {
			description.Annotations = &toolAnnotations{ReadOnlyHint: boolPtr(true)}
		}
		tools = append(tools, description)
	}

	resources := make([]resourceDescription, 0, len(bridge.Resources()))
	for _, resource := range bridge.Resources() {
		resources = append(resources, resourceDescription{
			URI:         resource.URI,
			Name:        resource.Name,
			Description: resource.Description,
			MIMEType:    resource.MIMEType,
		})
	}

	return &Server{
		dispatcher: cfg.Dispatcher,
		version:    version,
		logger:     logger,
		tools:      tools,
		resources:  resources,
	}, nil
}

// Serve runs the server on os.Stdin / os.Stdout until EOF.
func (s *Server) Serve(ctx context.Context) error {
	return s.Run(ctx, os.Stdin, os.Stdout)
}

// Run processes JSON-RPC 2.0 requests from input and writes responses
// to output until input reaches EOF. Each message occupies one line
// (newline-delimited JSON-RPC, not Content-Length framed).
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	// Tool results carrying whole pricebook pages can be large.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	encoder := json.NewEncoder(output)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("dropping unparseable request", "error", err)
			if writeErr := writeError(encoder, json.RawMessage("null"), codeParseError, "parse error: "+err.Error()); writeErr != nil {
				return fmt.Errorf("mcpserver: writing parse error response: %w", writeErr)
			}
			continue
		}

		if req.JSONRPC != "2.0" {
			if !req.isNotification() {
				if writeErr := writeError(encoder, req.ID, codeInvalidRequest, "unsupported JSON-RPC version"); writeErr != nil {
					return fmt.Errorf("mcpserver: writing version error response: %w", writeErr)
				}
			}
			continue
		}

		// Notifications have no ID and receive no response.
		if req.isNotification() {
			continue
		}

		if err := s.dispatch(ctx, encoder, &req); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, encoder *json.Encoder, req *request) error {
	s.logger.Debug("handling request", "method", req.Method)

	switch req.Method {
	case "initialize":
		return s.handleInitialize(encoder, req)
	case "ping":
		return writeResult(encoder, req.ID, map[string]any{})
	case "tools/list":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return writeResult(encoder, req.ID, toolsListResult{Tools: s.tools})
	case "tools/call":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsCall(ctx, encoder, req)
	case "resources/list":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return writeResult(encoder, req.ID, resourcesListResult{Resources: s.resources})
	case "resources/read":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleResourcesRead(ctx, encoder, req)
	default:
		return writeError(encoder, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleInitialize(encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for initialize")
	}

	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid initialize params: "+err.Error())
	}

	// The server answers with its own protocol version and lets the
	// client decide whether to proceed; versions are additive, so a
	// client requesting an older version simply ignores newer fields.
	s.initialized = true
	s.logger.Info("client initialized",
		"client", params.ClientInfo.Name,
		"clientVersion", params.ClientInfo.Version,
		"requestedProtocol", params.ProtocolVersion)

	return writeResult(encoder, req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: serverCapabilities{
			Tools:     &toolCapability{},
			Resources: &resourceCapability{},
		},
		ServerInfo: serverInfo{
			Name:    serverName,
			Version: s.version,
		},
	})
}

func (s *Server) handleToolsCall(ctx context.Context, encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for tools/call")
	}

	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
	}
	if params.Name == "" {
		return writeError(encoder, req.ID, codeInvalidParams, "tool name required")
	}

	text, dispatchErr := s.dispatcher.Dispatch(ctx, params.Name, params.Arguments)
	if dispatchErr != nil {
		s.logger.Debug("tool call failed", "tool", params.Name, "error", dispatchErr)
	}

	return writeResult(encoder, req.ID, buildToolResult(text, dispatchErr))
}

// buildToolResult renders a dispatch outcome as a tools/call result.
// Dispatch failures are tool results with isError set, never JSON-RPC
// errors: the host's model is expected to read the text and react.
func buildToolResult(text string, dispatchErr error) toolsCallResult {
	if dispatchErr != nil {
		return toolsCallResult{
			Content: []contentBlock{{Type: "text", Text: bridge.ErrorText(dispatchErr)}},
			IsError: true,
		}
	}
	// At least one content block is required even for empty output.
	return toolsCallResult{
		Content: []contentBlock{{Type: "text", Text: text}},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for resources/read")
	}

	var params resourcesReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid resources/read params: "+err.Error())
	}
	if params.URI == "" {
		return writeError(encoder, req.ID, codeInvalidParams, "resource uri required")
	}

	text, err := s.dispatcher.ReadResource(ctx, params.URI)
	if err != nil {
		var dispatchErr *bridge.DispatchError
		if errors.As(err, &dispatchErr) {
			return writeError(encoder, req.ID, codeInvalidParams, dispatchErr.Message)
		}
		var backendErr *pricebook.Error
		if errors.As(err, &backendErr) {
			return writeError(encoder, req.ID, codeInternalError, "reading resource: "+backendErr.Error())
		}
		return writeError(encoder, req.ID, codeInternalError, "reading resource: "+err.Error())
	}

	return writeResult(encoder, req.ID, resourcesReadResult{
		Contents: []resourceContent{{
			URI:      params.URI,
			MIMEType: "application/json",
			Text:     text,
		}},
	})
}

func boolPtr(value bool) *bool {
	return &value
}

// writeResult sends a JSON-RPC 2.0 success response.
func writeResult(encoder *json.Encoder, id json.RawMessage, result any) error {
	return encoder.Encode(response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

// writeError sends a JSON-RPC 2.0 error response.
func writeError(encoder *json.Encoder, id json.RawMessage, code int, message string) error {
	return encoder.Encode(response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
