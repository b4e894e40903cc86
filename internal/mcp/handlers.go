package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"ragchat/internal/domain"
	"ragchat/internal/service"
)

// Service is the subset of the RAG service the tools call.
type Service interface {
	BuildIndex(ctx context.Context, paths []string) (service.BuildStats, error)
	Answer(ctx context.Context, question string) service.Answer
	Compare(ctx context.Context, cvPath, jobPath string) (string, error)
	Status() service.Status
}

// Handlers contains the handler functions for all MCP tools.
type Handlers struct {
	svc Service
	log *slog.Logger
}

type buildResult struct {
	FilesIndexed  int      `json:"files_indexed"`
	ChunksCreated int      `json:"chunks_created"`
	Skipped       []string `json:"skipped,omitempty"`
	Summary       string   `json:"summary,omitempty"`
}

type answerResult struct {
	Answer  string           `json:"answer"`
	Mode    string           `json:"mode"`
	Warning string           `json:"warning,omitempty"`
	Sources []service.Source `json:"sources"`
}

type statusResult struct {
	Built              bool     `json:"built"`
	Files              []string `json:"files"`
	Chunks             int      `json:"chunks"`
	Embedder           string   `json:"embedder"`
	Dimension          int      `json:"dimension"`
	Generator          string   `json:"generator"`
	GeneratorAvailable bool     `json:"generator_available"`
	Summary            string   `json:"summary,omitempty"`
	BuiltAt            string   `json:"built_at,omitempty"`
}

// BuildIndex handles the build_index tool.
func (h *Handlers) BuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := request.RequireStringSlice("paths")
	if err != nil || len(paths) == 0 {
		return mcp.NewToolResultError("paths argument is required and must be a non-empty array of strings"), nil
	}
	stats, err := h.svc.BuildIndex(ctx, paths)
	if err != nil {
		return h.toolError("build_index", err), nil
	}
	return jsonResult(buildResult{
		FilesIndexed:  stats.FilesIndexed,
		ChunksCreated: stats.ChunksCreated,
		Skipped:       stats.Skipped,
		Summary:       stats.Summary,
	})
}

// Answer handles the answer tool.
func (h *Handlers) Answer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}
	ans := h.svc.Answer(ctx, question)
	out := answerResult{Answer: ans.Text, Mode: string(ans.Mode), Sources: ans.Sources}
	if out.Sources == nil {
		out.Sources = []service.Source{}
	}
	if ans.Err != nil {
		h.log.Warn("answer degraded", "error", ans.Err)
		out.Warning = domain.UserMessage(ans.Err)
	}
	return jsonResult(out)
}

// Compare handles the compare_documents tool.
func (h *Handlers) Compare(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cv, err := request.RequireString("cv_path")
	if err != nil {
		return mcp.NewToolResultError("cv_path argument is required and must be a string"), nil
	}
	job, err := request.RequireString("job_path")
	if err != nil {
		return mcp.NewToolResultError("job_path argument is required and must be a string"), nil
	}
	report, err := h.svc.Compare(ctx, cv, job)
	if err != nil {
		return h.toolError("compare_documents", err), nil
	}
	return mcp.NewToolResultText(report), nil
}

// Status handles the status tool.
func (h *Handlers) Status(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := h.svc.Status()
	out := statusResult{
		Built:              st.Built,
		Files:              st.Files,
		Chunks:             st.Chunks,
		Embedder:           st.Embedder,
		Dimension:          st.Dimension,
		Generator:          st.Generator,
		GeneratorAvailable: st.GeneratorAvailable,
		Summary:            st.Summary,
	}
	if out.Files == nil {
		out.Files = []string{}
	}
	if !st.BuiltAt.IsZero() {
		out.BuiltAt = st.BuiltAt.Format(time.RFC3339)
	}
	return jsonResult(out)
}

// toolError logs the raw error and returns its user-facing message.
func (h *Handlers) toolError(tool string, err error) *mcp.CallToolResult {
	h.log.Error("tool failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(domain.UserMessage(err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
