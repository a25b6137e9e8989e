package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/apptrack/internal/assist"
	"github.com/kalambet/apptrack/internal/cvtext"
	"github.com/kalambet/apptrack/internal/extract"
	"github.com/kalambet/apptrack/internal/profile"
	"github.com/kalambet/apptrack/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. Every tool acts as UserID.
type MCPDeps struct {
	Store     *storage.Store
	Profiles  *profile.Manager
	Extractor *extract.Extractor
	Assistant *assist.Assistant
	UserID    int64
}

// NewMCPServer creates an MCP server with the tracker tools and the profile
// resource registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"apptrack",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("apptrack: job application tracker with a CV-derived candidate profile."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return the stored candidate profile as JSON."),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("import_cv_text",
			mcp.WithDescription("Extract a profile from plain CV text and fill the empty profile sections with it."),
			mcp.WithString("text", mcp.Description("Plain text of the CV"), mcp.Required()),
		),
		mcpImportCV(deps),
	)

	s.AddTool(
		mcp.NewTool("list_applications",
			mcp.WithDescription("List tracked job applications, newest first."),
			mcp.WithString("status", mcp.Description("Optional status filter: Applied, Interview, Rejected or Offer")),
		),
		mcpListApplications(deps),
	)

	s.AddTool(
		mcp.NewTool("add_application",
			mcp.WithDescription("Track a new job application."),
			mcp.WithString("company", mcp.Description("Company name"), mcp.Required()),
			mcp.WithString("role", mcp.Description("Role applied for"), mcp.Required()),
			mcp.WithString("location", mcp.Description("Job location")),
			mcp.WithString("job_link", mcp.Description("URL of the job posting")),
			mcp.WithString("applied_date", mcp.Description("YYYY-MM-DD, defaults to today")),
			mcp.WithString("notes", mcp.Description("Free-form notes")),
		),
		mcpAddApplication(deps),
	)

	s.AddTool(
		mcp.NewTool("match_job",
			mcp.WithDescription("Score how well the profile matches a job description (0-100)."),
			mcp.WithString("company", mcp.Description("Company name")),
			mcp.WithString("role", mcp.Description("Role title")),
			mcp.WithString("description", mcp.Description("Job description text")),
			mcp.WithString("link", mcp.Description("Job posting URL, fetched when no description is given")),
		),
		mcpMatchJob(deps),
	)

	s.AddTool(
		mcp.NewTool("draft_cover_letter",
			mcp.WithDescription("Draft a cover letter for a job from the stored profile."),
			mcp.WithString("company", mcp.Description("Company name"), mcp.Required()),
			mcp.WithString("role", mcp.Description("Role title"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Job description text")),
			mcp.WithString("link", mcp.Description("Job posting URL")),
		),
		mcpDraftCoverLetter(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"apptrack://profile",
			"Candidate Profile",
			mcp.WithResourceDescription("Current candidate profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rec, err := deps.Profiles.Get(deps.UserID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}
		return mcpJSON(rec), nil
	}
}

func mcpImportCV(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		text, err := cvtext.Prepare(raw)
		if errors.Is(err, cvtext.ErrTooShort) {
			return mcpJSON(extract.Result{Outcome: profile.EmptyInput}), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("invalid CV text: %v", err)), nil
		}

		res, err := deps.Extractor.Import(ctx, deps.UserID, text)
		if err != nil {
			return mcpError(fmt.Sprintf("import failed: %v", err)), nil
		}
		return mcpJSON(res), nil
	}
}

func mcpListApplications(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		apps, err := deps.Store.ListApplications(deps.UserID, req.GetString("status", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list applications: %v", err)), nil
		}
		return mcpJSON(nonNil(apps)), nil
	}
}

func mcpAddApplication(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company, err := req.RequireString("company")
		if err != nil {
			return mcpError("company is required"), nil
		}
		role, err := req.RequireString("role")
		if err != nil {
			return mcpError("role is required"), nil
		}

		a, err := deps.Store.CreateApplication(storage.Application{
			UserID:      deps.UserID,
			Company:     company,
			Role:        role,
			Location:    req.GetString("location", ""),
			JobLink:     req.GetString("job_link", ""),
			AppliedDate: req.GetString("applied_date", ""),
			Notes:       req.GetString("notes", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add application: %v", err)), nil
		}
		return mcpJSON(a), nil
	}
}

func mcpMatchJob(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Assistant.Match(ctx, deps.UserID, mcpJob(req))
		if err != nil {
			return mcpError(fmt.Sprintf("match failed: %v", err)), nil
		}
		return mcpJSON(res), nil
	}
}

func mcpDraftCoverLetter(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		job := mcpJob(req)
		if job.Company == "" || job.Role == "" {
			return mcpError("company and role are required"), nil
		}
		draft, err := deps.Assistant.CoverLetter(ctx, deps.UserID, job)
		if err != nil {
			return mcpError(fmt.Sprintf("draft failed: %v", err)), nil
		}
		return mcpText(draft.Text), nil
	}
}

func mcpJob(req mcp.CallToolRequest) assist.Job {
	return assist.Job{
		Company:     req.GetString("company", ""),
		Role:        req.GetString("role", ""),
		Description: req.GetString("description", ""),
		Link:        req.GetString("link", ""),
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		rec, err := deps.Profiles.Get(deps.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
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

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
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
