package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
)

// Handler answers the calls a model agent serves.
type Handler interface {
	HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error)
	HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error)
	HandleCancelTask(ctx context.Context, req CancelTaskRequest) (*Task, error)
}

// Server exposes one agent over HTTP: its card under cardPath and JSON-RPC
// on every POST.
type Server struct {
	card    AgentCard
	handler Handler
	http    *http.Server
	addr    string
}

func NewServer(card AgentCard, handler Handler) *Server {
	return &Server{card: card, handler: handler}
}

// Start binds addr, registers routes, and begins serving in a background
// goroutine. Bind errors are returned to the caller.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("a2a: listen %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()

	s.http = &http.Server{
		Handler: s.Routes(),
	}

	go s.http.Serve(ln)

	return nil
}

// Addr returns the address the server is bound to, or "" before Start.
func (s *Server) Addr() string {
	return s.addr
}

// Routes returns the HTTP handler serving the agent card and JSON-RPC endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+cardPath, s.handleAgentCard)
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// handleAgentCard serves the agent card as JSON at the well-known endpoint.
func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleJSONRPC processes incoming JSON-RPC 2.0 requests and dispatches them
// to the appropriate handler method.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}
	if req.JSONRPC != JSONRPCVersion {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidRequest, fmt.Sprintf("Unsupported jsonrpc version %q", req.JSONRPC))
		return
	}

	ctx := r.Context()

	switch req.Method {
	case MethodSendMessage:
		var params SendMessageRequest
		if !decodeParams(w, &req, &params) {
			return
		}
		result, err := s.handler.HandleSendMessage(ctx, params)
		writeHandlerResult(w, req.ID, result, err)
	case MethodGetTask:
		var params GetTaskRequest
		if !decodeParams(w, &req, &params) {
			return
		}
		result, err := s.handler.HandleGetTask(ctx, params)
		writeHandlerResult(w, req.ID, result, err)
	case MethodCancelTask:
		var params CancelTaskRequest
		if !decodeParams(w, &req, &params) {
			return
		}
		result, err := s.handler.HandleCancelTask(ctx, params)
		writeHandlerResult(w, req.ID, result, err)
	default:
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// decodeParams unmarshals the request params into dst, writing an
// invalid-params error and returning false on failure.
func decodeParams(w http.ResponseWriter, req *JSONRPCRequest, dst any) bool {
	if err := json.Unmarshal(req.Params, dst); err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return false
	}
	return true
}

// writeHandlerResult maps a handler outcome onto a JSON-RPC response.
func writeHandlerResult(w http.ResponseWriter, id any, result *Task, err error) {
	if err != nil {
		writeJSONRPCError(w, id, errorCode(err), err.Error())
		return
	}
	writeJSONRPCResult(w, id, result)
}

// writeJSONRPCResult writes a successful JSON-RPC response.
func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}

	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	}

	json.NewEncoder(w).Encode(resp)
}

// writeJSONRPCError writes a JSON-RPC error response.
func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(resp)
}
