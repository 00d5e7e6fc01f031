// Package mcp exposes authoring and simulation of an Arbor library as
// Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/authoring"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
)

// Server wraps an Arbor engine and exposes it as an MCP server.
// Every mutating tool flushes its editor so edits are durable on return.
type Server struct {
	engine    *arbor.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer

	editors  *registry.Registry[*authoring.Editor]
	editorMu sync.Mutex
}

// NewServer creates a new MCP Server instance.
func NewServer(engine *arbor.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("arbor-mcp", arbor.Version),
		editors:   registry.NewRegistry[*authoring.Editor](),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it
// when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return s.Close(shutdownCtx)
	}
}

// Close flushes and closes every open editor.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	for _, unit := range s.editors.Names() {
		if ed, ok := s.editors.Remove(unit); ok {
			errs = append(errs, ed.Close(ctx))
		}
	}
	return errors.Join(errs...)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the full story graph of a unit: nodes, edges and variables."),
		mcp.WithString("unit_id", mcp.Required(), mcp.Description("Unit (episode) id")),
	), s.handleGetGraph)

	s.mcpServer.AddTool(mcp.NewTool("validate_graph",
		mcp.WithDescription("Report structural errors and warnings of a unit graph."),
		mcp.WithString("unit_id", mcp.Required(), mcp.Description("Unit (episode) id")),
	), s.handleValidate)

	s.mcpServer.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a node at a canvas position. A unit that does not exist yet is created."),
		mcp.WithString("unit_id", mcp.Required(), mcp.Description("Unit (episode) id")),
		mcp.WithString("type", mcp.Required(), mcp.Description("start, scene, choice, branch, ending, variable_modifier or comment"),
			mcp.Enum(nodeTypes()...)),
		mcp.WithNumber("x", mcp.Description("Canvas X coordinate")),
		mcp.WithNumber("y", mcp.Description("Canvas Y coordinate")),
		mcp.WithObject("data", mcp.Description("Type-specific payload, e.g. {\"sceneRef\": \"intro\"}")),
	), s.handleCreateNode)

	s.mcpServer.AddTool(mcp.NewTool("connect_nodes",
		mcp.WithDescription("Connect an output slot of a node to another node."),
		mcp.WithString("unit_id", mcp.Required(), mcp.Description("Unit (episode) id")),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithString("slot", mcp.Description("Output slot; empty for the default output, an option index for choices or a condition id for branches")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target node id")),
	), s.handleConnect)

	s.mcpServer.AddTool(mcp.NewTool("guided_placement",
		mcp.WithDescription("Place a new node next to a source node and wire it from the source's next free slot."),
		mcp.WithString("unit_id", mcp.Required(), mcp.Description("Unit (episode) id")),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Type of the new node"), mcp.Enum(nodeTypes()...)),
		mcp.WithObject("data", mcp.Description("Type-specific payload of the new node")),
		mcp.WithBoolean("preview", mcp.Description("Only return the proposed position")),
	), s.handlePlacement)

	s.mcpServer.AddTool(mcp.NewTool("remove_node",
		mcp.WithDescription("Remove a node and every edge touching it. The start node cannot be removed."),
		mcp.WithString("unit_id", mcp.Required(), mcp.Description("Unit (episode) id")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
	), s.handleRemoveNode)

	s.mcpServer.AddTool(mcp.NewTool("simulate",
		mcp.WithDescription("Read a story headlessly, taking the given option indexes in order. Nothing is persisted."),
		mcp.WithString("story_id", mcp.Description("Story id; empty plays unit_id on its own")),
		mcp.WithString("unit_id", mcp.Description("Opening unit id")),
		mcp.WithArray("choices", mcp.Description("Option indexes to take at each choice"),
			mcp.Items(map[string]any{"type": "integer"})),
		mcp.WithObject("variables", mcp.Description("Initial variable values")),
	), s.handleSimulate)
}

func nodeTypes() []string {
	return []string{
		string(domain.NodeTypeStart),
		string(domain.NodeTypeScene),
		string(domain.NodeTypeChoice),
		string(domain.NodeTypeBranch),
		string(domain.NodeTypeEnding),
		string(domain.NodeTypeVariableModifier),
		string(domain.NodeTypeComment),
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("arbor://units", "Stored units",
		mcp.WithResourceDescription("Ids of every unit in the library"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		units, err := s.engine.Units(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list units: %w", err)
		}
		b, err := json.Marshal(units)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "arbor://units",
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	})
}
