// Package mcp exposes batch processing as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"scrape-gate/pkg/pipeline"
	"scrape-gate/pkg/session"
	"scrape-gate/pkg/storage"
)

const (
	serverName    = "scrape-gate"
	serverVersion = "0.4.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger

	Store     *session.Store
	Manager   *session.Manager
	Processor *pipeline.Processor  // used to attach per-call output schemas
	Archive   storage.BatchArchive // optional

	// BaseCtx parents every batch started through a tool call.
	BaseCtx context.Context
}

// Server wraps the MCP server with batch tools
type Server struct {
	mcpServer *server.MCPServer
	sseServer *server.SSEServer
	cfg       *ServerConfig
	log       *logrus.Entry
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Manager == nil {
		return nil, errors.New("session store and manager are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.BaseCtx == nil {
		cfg.BaseCtx = context.Background()
	}

	s := &Server{
		mcpServer: server.NewMCPServer(serverName, serverVersion, server.WithLogging()),
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
	}
	s.registerTools()
	if cfg.Transport == "sse" {
		s.sseServer = server.NewSSEServer(s.mcpServer)
	}
	return s, nil
}

func (s *Server) registerTools() {
	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{
			mcp.NewTool("process_urls",
				mcp.WithDescription("Check each URL's copyright/permission status and, where allowed, produce simulated scraped content. Returns a batch ID."),
				mcp.WithString("urls",
					mcp.Required(),
					mcp.Description("Newline-separated list of URLs"),
				),
				mcp.WithString("mode",
					mcp.Description("Output mode"),
					mcp.Enum("text", "json"),
					mcp.DefaultString("text"),
				),
				mcp.WithString("extraction_prompt",
					mcp.Description("What to extract in json mode (e.g. 'Extract the article title, author, and publication date.')"),
				),
				mcp.WithString("schema",
					mcp.Description("Optional JSON Schema the json-mode output must satisfy"),
				),
				mcp.WithBoolean("wait",
					mcp.Description("Block until every URL has resolved and return the full batch"),
				),
			),
			s.handleProcessURLs,
		},
		{
			mcp.NewTool("get_batch",
				mcp.WithDescription("Get a batch's status and results (defaults to the current batch)"),
				mcp.WithString("batch_id", mcp.Description("Batch ID returned by process_urls")),
			),
			s.handleGetBatch,
		},
		{
			mcp.NewTool("get_result",
				mcp.WithDescription("Get one URL result with its display text and export filename"),
				mcp.WithString("batch_id", mcp.Required(), mcp.Description("Batch ID")),
				mcp.WithNumber("index", mcp.Required(), mcp.Min(0), mcp.Description("Zero-based position of the URL in the batch")),
			),
			s.handleGetResult,
		},
		{
			mcp.NewTool("cancel_batch",
				mcp.WithDescription("Cancel a running batch; unresolved URLs are marked failed"),
				mcp.WithString("batch_id", mcp.Required(), mcp.Description("Batch ID")),
			),
			s.handleCancelBatch,
		},
		{
			mcp.NewTool("list_batches",
				mcp.WithDescription("List batches, newest first"),
				mcp.WithBoolean("include_history", mcp.Description("Also list archived batches from earlier runs")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of batches to return (default: 20)")),
			),
			s.handleListBatches,
		},
	}
	for _, t := range tools {
		s.mcpServer.AddTool(t.tool, t.handler)
	}
	s.log.Infof("Registered %d MCP tools", len(tools))
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		return s.sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running batches and stops the SSE listener if any.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.cfg.Manager.CancelAll()
	if s.sseServer != nil {
		return s.sseServer.Shutdown(ctx)
	}
	return nil
}
