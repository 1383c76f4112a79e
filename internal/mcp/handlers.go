package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/config"
	"github.com/mvickers/dossier/internal/distill"
	"github.com/mvickers/dossier/internal/errors"
	"github.com/mvickers/dossier/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db   *sql.DB
	cfg  *config.Config
	gate *distill.Gate
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, gate *distill.Gate) *Handlers {
	return &Handlers{db: db, cfg: cfg, gate: gate}
}

// Request types for each tool

// BuildRequest represents the arguments for bundle_build.
type BuildRequest struct {
	TicketPK     string `json:"ticket_pk,omitempty"`
	TicketID     string `json:"ticket_id,omitempty"`
	RepoFullName string `json:"repo_full_name,omitempty"`
	Role         string `json:"role"`

	SelectedArtifactIDs []string         `json:"selected_artifact_ids,omitempty"`
	SelectedSnippets    []bundle.Snippet `json:"selected_snippets,omitempty"`
	AgentRun            map[string]any   `json:"agent_run,omitempty"`
	Progress            map[string]any   `json:"progress,omitempty"`
	Events              []any            `json:"events,omitempty"`
	Content             bundle.Payload   `json:"content,omitempty"`

	GitRef    bundle.GitRef `json:"git_ref"`
	CreatedBy string        `json:"created_by,omitempty"`
}

// PreviewRequest represents the arguments for bundle_preview.
type PreviewRequest struct {
	TicketPK     string `json:"ticket_pk,omitempty"`
	TicketID     string `json:"ticket_id,omitempty"`
	RepoFullName string `json:"repo_full_name,omitempty"`
	Role         string `json:"role"`

	SelectedArtifactIDs []string         `json:"selected_artifact_ids,omitempty"`
	SelectedSnippets    []bundle.Snippet `json:"selected_snippets,omitempty"`
	AgentRun            map[string]any   `json:"agent_run,omitempty"`
	Progress            map[string]any   `json:"progress,omitempty"`
	Events              []any            `json:"events,omitempty"`
	Content             bundle.Payload   `json:"content,omitempty"`
}

// FetchRequest represents the arguments for bundle_fetch.
type FetchRequest struct {
	BundleID       string `json:"bundle_id,omitempty"`
	RepoFullName   string `json:"repo_full_name,omitempty"`
	TicketPK       string `json:"ticket_pk,omitempty"`
	Role           string `json:"role,omitempty"`
	Version        int    `json:"version,omitempty"`
	IncludePayload *bool  `json:"include_payload,omitempty"`
}

// ListRequest represents the arguments for bundle_list.
type ListRequest struct {
	TicketPK     string `json:"ticket_pk,omitempty"`
	TicketID     string `json:"ticket_id,omitempty"`
	RepoFullName string `json:"repo_full_name,omitempty"`
	Role         string `json:"role,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// LatestRequest represents the arguments for bundle_latest.
type LatestRequest struct {
	TicketPK       string `json:"ticket_pk,omitempty"`
	TicketID       string `json:"ticket_id,omitempty"`
	RepoFullName   string `json:"repo_full_name,omitempty"`
	Role           string `json:"role"`
	IncludePayload *bool  `json:"include_payload,omitempty"`
}

// ReceiptRequest represents the arguments for bundle_receipt.
type ReceiptRequest struct {
	BundleID     string `json:"bundle_id,omitempty"`
	RepoFullName string `json:"repo_full_name,omitempty"`
	TicketPK     string `json:"ticket_pk,omitempty"`
	Role         string `json:"role,omitempty"`
	Version      int    `json:"version,omitempty"`
}

// VerifyRequest represents the arguments for bundle_verify.
type VerifyRequest struct {
	BundleID     string `json:"bundle_id,omitempty"`
	RepoFullName string `json:"repo_full_name,omitempty"`
	TicketPK     string `json:"ticket_pk,omitempty"`
	Role         string `json:"role,omitempty"`
	Version      int    `json:"version,omitempty"`
}

// BudgetRequest represents the arguments for budget_get.
type BudgetRequest struct {
	Role string `json:"role,omitempty"`
}

// Handler implementations

// HandleBuild handles the bundle_build tool call.
func (h *Handlers) HandleBuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BuildRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Build(ctx, h.db, h.cfg, h.gate, ops.BuildInput{
		TicketPK:            input.TicketPK,
		TicketID:            input.TicketID,
		RepoFullName:        input.RepoFullName,
		Role:                input.Role,
		SelectedArtifactIDs: input.SelectedArtifactIDs,
		SelectedSnippets:    input.SelectedSnippets,
		AgentRun:            input.AgentRun,
		Progress:            input.Progress,
		Events:              input.Events,
		Content:             input.Content,
		GitRef:              input.GitRef,
		CreatedBy:           input.CreatedBy,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePreview handles the bundle_preview tool call.
func (h *Handlers) HandlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PreviewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Preview(ctx, h.db, h.gate, ops.PreviewInput{
		TicketPK:            input.TicketPK,
		TicketID:            input.TicketID,
		RepoFullName:        input.RepoFullName,
		Role:                input.Role,
		SelectedArtifactIDs: input.SelectedArtifactIDs,
		SelectedSnippets:    input.SelectedSnippets,
		AgentRun:            input.AgentRun,
		Progress:            input.Progress,
		Events:              input.Events,
		Content:             input.Content,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFetch handles the bundle_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.db, ops.FetchInput{
		BundleID:       input.BundleID,
		RepoFullName:   input.RepoFullName,
		TicketPK:       input.TicketPK,
		Role:           input.Role,
		Version:        input.Version,
		IncludePayload: input.IncludePayload,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the bundle_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, ops.ListInput{
		TicketPK:     input.TicketPK,
		TicketID:     input.TicketID,
		RepoFullName: input.RepoFullName,
		Role:         input.Role,
		Limit:        input.Limit,
		Offset:       input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLatest handles the bundle_latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LatestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Latest(ctx, h.db, ops.LatestInput{
		TicketPK:       input.TicketPK,
		TicketID:       input.TicketID,
		RepoFullName:   input.RepoFullName,
		Role:           input.Role,
		IncludePayload: input.IncludePayload,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReceipt handles the bundle_receipt tool call.
func (h *Handlers) HandleReceipt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReceiptRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetReceipt(ctx, h.db, ops.GetReceiptInput{
		BundleID:     input.BundleID,
		RepoFullName: input.RepoFullName,
		TicketPK:     input.TicketPK,
		Role:         input.Role,
		Version:      input.Version,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVerify handles the bundle_verify tool call.
func (h *Handlers) HandleVerify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VerifyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Verify(ctx, h.db, ops.VerifyInput{
		BundleID:     input.BundleID,
		RepoFullName: input.RepoFullName,
		TicketPK:     input.TicketPK,
		Role:         input.Role,
		Version:      input.Version,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBudget handles the budget_get tool call.
func (h *Handlers) HandleBudget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BudgetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.BudgetGet(ops.BudgetGetInput{Role: input.Role})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if dErr, ok := err.(*errors.DossierError); ok {
		errorObj := map[string]any{
			"code":    dErr.Code,
			"message": dErr.Message,
			"status":  dErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if dErr.Code != errors.ErrInternal && dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
