package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/karigar/internal/directory"
)

// NewMCPServer creates an MCP server exposing the review and search
// operations as tools and the journal as a resource.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"karigar",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("karigar: directory of local workers. Search workers and leave reviews."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("append_review",
			mcp.WithDescription("Append a review to the worker matched by an identifier."),
			mcp.WithString("identifier", mcp.Description(`JSON object of worker fields to match, e.g. {"PhoneNumber":"+91-1"}`), mcp.Required()),
			mcp.WithString("bin_id", mcp.Description("Directory bin id (defaults to the configured bin)")),
			mcp.WithString("user", mcp.Description("Reviewer name (default Anon)")),
			mcp.WithNumber("rating", mcp.Description("Rating 1-5 (default 5)")),
			mcp.WithString("comment", mcp.Description("Review text")),
			mcp.WithString("date", mcp.Description("Review date YYYY-MM-DD (default today)")),
		),
		mcpAppendReview(deps),
	)

	s.AddTool(
		mcp.NewTool("search_workers",
			mcp.WithDescription("List workers of a category near an address, with their average rating."),
			mcp.WithString("category", mcp.Description("Worker category, e.g. Plumber"), mcp.Required()),
			mcp.WithString("address", mcp.Description("Address or locality to search"), mcp.Required()),
			mcp.WithString("bin_id", mcp.Description("Directory bin id (defaults to the configured bin)")),
		),
		mcpSearchWorkers(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"journal://recent",
			"Recent Review Attempts",
			mcp.WithResourceDescription("Last 10 review update attempts"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceJournal(deps),
	)

	return s
}

func mcpAppendReview(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		idJSON, err := req.RequireString("identifier")
		if err != nil {
			return mcpError("identifier is required"), nil
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(idJSON), &fields); err != nil {
			return mcpError(fmt.Sprintf("invalid identifier JSON: %v", err)), nil
		}
		if len(fields) == 0 {
			return mcpError("identifier must have at least one field"), nil
		}

		binID := req.GetString("bin_id", deps.DefaultBinID)
		if binID == "" {
			return mcpError("bin_id is required"), nil
		}

		review := directory.Review{
			User:    req.GetString("user", ""),
			Rating:  req.GetFloat("rating", 0),
			Comment: req.GetString("comment", ""),
			Date:    req.GetString("date", ""),
		}.WithDefaults(time.Now())
		raw, err := json.Marshal(review)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode review: %v", err)), nil
		}

		res := appendReview(ctx, deps, "mcp", binID, directory.IdentifierFromJSON(fields), raw)
		if !res.OK {
			return mcpError(fmt.Sprintf("review not stored (%s): %s", res.Stage, res.Message)), nil
		}
		return mcpText(fmt.Sprintf("Review by %s stored in %s", review.User, binID)), nil
	}
}

func mcpSearchWorkers(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		category, err := req.RequireString("category")
		if err != nil {
			return mcpError("category is required"), nil
		}
		address, err := req.RequireString("address")
		if err != nil {
			return mcpError("address is required"), nil
		}
		binID := req.GetString("bin_id", deps.DefaultBinID)
		if binID == "" {
			return mcpError("bin_id is required"), nil
		}

		results, err := searchWorkers(ctx, deps.Store, binID, category, address)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceJournal(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Journal == nil {
			return nil, fmt.Errorf("journal not configured")
		}
		attempts, err := deps.Journal.ListAttempts("", 10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list journal: %w", err)
		}

		type attemptSummary struct {
			ID         string `json:"id"`
			CreatedAt  string `json:"created_at"`
			DocumentID string `json:"document_id"`
			OK         bool   `json:"ok"`
			Stage      string `json:"stage,omitempty"`
		}

		summaries := make([]attemptSummary, len(attempts))
		for i, a := range attempts {
			summaries[i] = attemptSummary{
				ID:         a.ID,
				CreatedAt:  a.CreatedAt.Format(time.RFC3339),
				DocumentID: a.DocumentID,
				OK:         a.OK,
				Stage:      a.Stage,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal journal: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
