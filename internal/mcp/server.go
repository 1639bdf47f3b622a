// Package mcp serves the tool registry over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"io"
	"log"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/logging"
	"github.com/Dirstral/ragmcp/internal/protocol"
)

type Server struct {
	mcp    *server.MCPServer
	logger logrus.FieldLogger
}

// NewServer registers one MCP tool per registration. Tools are fixed for
// the lifetime of the server.
func NewServer(version string, tools []ToolRegistration, logger logrus.FieldLogger) *Server {
	logger = logging.OrDiscard(logger)
	s := server.NewMCPServer(protocol.ServerName, version, server.WithToolCapabilities(false))
	for _, reg := range tools {
		tool := mcpgo.NewTool(reg.ToolName,
			mcpgo.WithDescription(reg.Description),
			mcpgo.WithTitleAnnotation(reg.Title),
			mcpgo.WithString(protocol.PromptArgument,
				mcpgo.Required(),
				mcpgo.Description("Question to answer from the indexed documents."),
			),
		)
		s.AddTool(tool, newToolHandler(reg, logger.WithField("tool", reg.ToolName)))
	}
	return &Server{mcp: s, logger: logger}
}

// MCPServer exposes the underlying server, mainly for in-process dispatch.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves JSON-RPC over in and out until in is closed or ctx is
// done. Cancellation is a clean shutdown.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	if w, ok := s.logger.(interface {
		WriterLevel(logrus.Level) *io.PipeWriter
	}); ok {
		pw := w.WriterLevel(logrus.ErrorLevel)
		defer func() { _ = pw.Close() }()
		stdio.SetErrorLogger(log.New(pw, "", 0))
	}

	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func newToolHandler(reg ToolRegistration, logger logrus.FieldLogger) server.ToolHandlerFunc {
	logger = logging.OrDiscard(logger)
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		prompt, err := req.RequireString(protocol.PromptArgument)
		if err != nil {
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		answer, err := reg.Invoke(ctx, prompt)
		if err != nil {
			logger.WithError(err).Warn("Tool invocation failed")
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		return mcpgo.NewToolResultText(answer), nil
	}
}
