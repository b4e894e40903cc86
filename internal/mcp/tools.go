// Package mcp exposes the RAG service as Model Context Protocol tools.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with every tool registered.
func NewServer(svc Service, version string, log *slog.Logger) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer("ragchat", version, mcpserver.WithToolCapabilities(false))
	RegisterTools(server, svc, log)
	return server
}

// RegisterTools registers the RAG tools with server.
func RegisterTools(server *mcpserver.MCPServer, svc Service, log *slog.Logger) *Handlers {
	h := &Handlers{svc: svc, log: log}

	server.AddTool(mcp.Tool{
		Name:        "build_index",
		Description: "Index local documents (.txt, .md, .pdf files, directories or glob patterns) so questions can be answered from them. Replaces the current index.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Files, directories or glob patterns to index",
				},
			},
			Required: []string{"paths"},
		},
	}, h.BuildIndex)

	server.AddTool(mcp.Tool{
		Name:        "answer",
		Description: "Answer a question from the indexed documents. Returns the answer text, how it was produced and the source snippets used.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to answer",
				},
			},
			Required: []string{"question"},
		},
	}, h.Answer)

	server.AddTool(mcp.Tool{
		Name:        "compare_documents",
		Description: "Compare a CV against a job description and report a 1-10 fit rating with strengths, gaps and suggestions. Requires a configured language model.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"cv_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the CV file",
				},
				"job_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the job description file",
				},
			},
			Required: []string{"cv_path", "job_path"},
		},
	}, h.Compare)

	server.AddTool(mcp.Tool{
		Name:        "status",
		Description: "Report whether an index is built, what it contains and which language model is configured.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.Status)

	return h
}
