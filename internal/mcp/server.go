// ABOUTME: MCP-compatible HTTP server exposing widget tools and ui:// resources.
// ABOUTME: Session-less Streamable HTTP transport in JSON response mode.

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/widget-gateway/internal/auth"
	"github.com/2389/widget-gateway/internal/limiter"
)

// Config holds configuration for the MCP server.
type Config struct {
	Dispatcher *Dispatcher
	Logger     *slog.Logger

	// TokenVerifier enables bearer auth when set. MetadataURL is advertised
	// in the WWW-Authenticate challenge.
	TokenVerifier auth.TokenVerifier
	MetadataURL   string

	Security TransportSecurity
	Limiter  *limiter.Limiter

	Name    string // serverInfo.name, defaults to "widget-gateway"
	Version string
}

// Server implements the MCP endpoint. It keeps no per-client state: every
// request is self-contained and no Mcp-Session-Id is issued.
type Server struct {
	dispatcher  *Dispatcher
	logger      *slog.Logger
	verifier    auth.TokenVerifier
	metadataURL string
	security    TransportSecurity
	limiter     *limiter.Limiter
	name        string
	version     string
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "widget-gateway"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return &Server{
		dispatcher:  cfg.Dispatcher,
		logger:      logger.With("component", "mcp"),
		verifier:    cfg.TokenVerifier,
		metadataURL: cfg.MetadataURL,
		security:    cfg.Security,
		limiter:     cfg.Limiter,
		name:        name,
		version:     version,
	}, nil
}

// Handler returns the /mcp endpoint wrapped in transport security and, when
// configured, bearer auth.
func (s *Server) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(s.handleMCP)
	if s.verifier != nil {
		h = auth.BearerMiddleware(s.verifier, s.metadataURL)(h)
	}
	return s.security.Middleware(h)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		// No server-initiated streams and no sessions to terminate.
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendJSONRPCError(w, nil, &JSONRPCError{Code: JSONRPCParseError, Message: "failed to read request body"})
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendJSONRPCError(w, nil, &JSONRPCError{Code: JSONRPCInvalidRequest, Message: "request body too large"})
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendJSONRPCError(w, nil, &JSONRPCError{Code: JSONRPCParseError, Message: "invalid JSON"})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.sendJSONRPCError(w, req.ID, &JSONRPCError{Code: JSONRPCInvalidRequest, Message: "invalid JSON-RPC request"})
		return
	}

	if pv := r.Header.Get("Mcp-Protocol-Version"); pv != "" && req.Method != "initialize" && !supportedProtocolVersions[pv] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}

	// Notifications get no response body.
	if len(req.ID) == 0 || string(req.ID) == "null" {
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
		} else {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	requestID := uuid.NewString()
	s.logger.Debug("MCP request", "method", req.Method, "request_id", requestID)

	switch req.Method {
	case "initialize":
		s.handleInitialize(w, req)
	case "ping":
		s.sendJSONRPCResult(w, req.ID, struct{}{})
	case "tools/list":
		s.sendJSONRPCResult(w, req.ID, ListToolsResult{Tools: s.dispatcher.ListTools()})
	case "tools/call":
		s.handleToolsCall(w, r, req, requestID)
	case "resources/list":
		s.sendJSONRPCResult(w, req.ID, ListResourcesResult{Resources: s.dispatcher.ListResources()})
	case "resources/templates/list":
		s.sendJSONRPCResult(w, req.ID, ListResourceTemplatesResult{ResourceTemplates: []any{}})
	case "resources/read":
		s.handleResourcesRead(w, r, req, requestID)
	default:
		s.sendJSONRPCError(w, req.ID, &JSONRPCError{Code: JSONRPCMethodNotFound, Message: "method not found"})
	}
}

func (s *Server) handleInitialize(w http.ResponseWriter, req JSONRPCRequest) {
	version := latestProtocolVersion
	var params InitializeParams
	if len(req.Params) > 0 && json.Unmarshal(req.Params, &params) == nil && supportedProtocolVersions[params.ProtocolVersion] {
		version = params.ProtocolVersion
	}

	result := map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	}
	s.sendJSONRPCResult(w, req.ID, result)
}

func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req JSONRPCRequest, requestID string) {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendJSONRPCError(w, req.ID, &JSONRPCError{Code: JSONRPCInvalidParams, Message: "invalid params"})
			return
		}
	}
	if params.Name == "" {
		s.sendJSONRPCError(w, req.ID, &JSONRPCError{Code: JSONRPCInvalidParams, Message: "tool name is required"})
		return
	}
	if rpcErr := s.checkRateLimit(r); rpcErr != nil {
		s.sendJSONRPCError(w, req.ID, rpcErr)
		return
	}

	s.logger.Debug("tools/call", "tool_name", params.Name, "request_id", requestID)

	result, err := s.dispatcher.CallTool(r.Context(), params.Name, params.Arguments)
	if err != nil {
		s.sendError(w, req.ID, err)
		return
	}

	s.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"request_id", requestID,
		"is_error", result.IsError,
	)
	s.sendJSONRPCResult(w, req.ID, result)
}

func (s *Server) handleResourcesRead(w http.ResponseWriter, r *http.Request, req JSONRPCRequest, requestID string) {
	var params ReadResourceParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendJSONRPCError(w, req.ID, &JSONRPCError{Code: JSONRPCInvalidParams, Message: "invalid params"})
			return
		}
	}
	if params.URI == "" {
		s.sendJSONRPCError(w, req.ID, &JSONRPCError{Code: JSONRPCInvalidParams, Message: "uri is required"})
		return
	}
	if rpcErr := s.checkRateLimit(r); rpcErr != nil {
		s.sendJSONRPCError(w, req.ID, rpcErr)
		return
	}

	s.logger.Debug("resources/read", "uri", params.URI, "request_id", requestID)

	result, err := s.dispatcher.ReadResource(r.Context(), params.URI)
	if err != nil {
		s.sendError(w, req.ID, err)
		return
	}
	s.sendJSONRPCResult(w, req.ID, result)
}

// checkRateLimit keys on the authenticated principal, falling back to the
// client address. Limiter backend failures let the request through.
func (s *Server) checkRateLimit(r *http.Request) *JSONRPCError {
	if s.limiter == nil || !s.limiter.Enabled() {
		return nil
	}
	err := s.limiter.Allow(r.Context(), clientKey(r))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiter.ErrRateLimited):
		return &JSONRPCError{Code: CodeRateLimited, Message: "rate limit exceeded",
			Data: &ErrorData{Kind: KindRateLimited}}
	default:
		s.logger.Warn("rate limiter unavailable", "error", err)
		return nil
	}
}

func clientKey(r *http.Request) string {
	if a := auth.FromContext(r.Context()); a != nil && a.PrincipalID != "" {
		return "principal:" + a.PrincipalID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

func (s *Server) sendError(w http.ResponseWriter, id json.RawMessage, err error) {
	var rpcErr *JSONRPCError
	if !errors.As(err, &rpcErr) {
		rpcErr = &JSONRPCError{Code: JSONRPCInternalError, Message: "internal error"}
	}
	s.sendJSONRPCError(w, id, rpcErr)
}

// sendJSONRPCResult sends a successful JSON-RPC response.
func (s *Server) sendJSONRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// sendJSONRPCError sends a JSON-RPC error response.
func (s *Server) sendJSONRPCError(w http.ResponseWriter, id json.RawMessage, rpcErr *JSONRPCError) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   rpcErr,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}
