// Package mcptools exposes consortium operations as MCP tools.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewConsortiumMCPServer creates an MCP server with the four consortium
// tools registered.
func NewConsortiumMCPServer(svc *ConsortiumService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "consortium",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_consortium",
		Description: "Answer a prompt with a consortium of models. Voters answer in parallel, an arbiter synthesizes their answers, and rounds repeat until the arbiter's confidence meets the threshold or the iteration budget is spent.",
	}, svc.RunConsortium)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_consortiums",
		Description: "List saved consortium configurations with their models, arbiter, threshold and iteration bounds.",
	}, svc.ListConsortiums)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_consortium",
		Description: "Save a consortium configuration under a name so it can be run later by name.",
	}, svc.SaveConsortium)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_consortium",
		Description: "Delete a saved consortium configuration.",
	}, svc.RemoveConsortium)

	return server
}

// RunMCPServer starts an HTTP server exposing the consortium MCP tools. It
// returns when ctx is canceled.
func RunMCPServer(ctx context.Context, svc *ConsortiumService, addr string) error {
	server := NewConsortiumMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking until
// stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, svc *ConsortiumService) error {
	return NewConsortiumMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
}
