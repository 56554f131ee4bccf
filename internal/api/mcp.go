package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/maulik225/NotumAi/internal/export"
	"github.com/maulik225/NotumAi/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Exporter *export.Exporter
}

// NewMCPServer creates an MCP server exposing project listing, stats and
// export to agents.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"notum",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("notum: local image annotation projects and dataset export."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List annotation projects, newest first."),
		),
		mcpListProjects(deps),
	)

	s.AddTool(
		mcp.NewTool("project_stats",
			mcp.WithDescription("Image count, annotated image count and class distribution of a project."),
			mcp.WithNumber("project_id", mcp.Description("Project id"), mcp.Required()),
		),
		mcpProjectStats(deps),
	)

	formats := make([]string, len(export.Formats))
	for i, f := range export.Formats {
		formats[i] = string(f)
	}
	s.AddTool(
		mcp.NewTool("export_project",
			mcp.WithDescription("Export a project's annotations as a dataset and return the output directory."),
			mcp.WithNumber("project_id", mcp.Description("Project id"), mcp.Required()),
			mcp.WithString("format", mcp.Description("One of "+strings.Join(formats, ", ")), mcp.Required(), mcp.Enum(formats...)),
			mcp.WithString("output_dir", mcp.Description("Optional directory to export under instead of the configured one")),
		),
		mcpExportProject(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"projects://list",
			"Projects",
			mcp.WithResourceDescription("All annotation projects as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProjects(deps),
	)

	return s
}

func mcpListProjects(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := projectsJSON(ctx, deps.Store)
		if err != nil {
			return mcpError(fmt.Sprintf("listing projects failed: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpProjectStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetInt("project_id", 0)
		if id <= 0 {
			return mcpError("project_id is required"), nil
		}

		stats, err := deps.Store.Stats(ctx, int64(id))
		if err != nil {
			return mcpError(fmt.Sprintf("stats failed: %v", err)), nil
		}
		b, err := json.Marshal(stats)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpExportProject(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetInt("project_id", 0)
		if id <= 0 {
			return mcpError("project_id is required"), nil
		}
		format, err := req.RequireString("format")
		if err != nil {
			return mcpError("format is required"), nil
		}

		res, err := deps.Exporter.Export(ctx, export.Request{
			ProjectID: int64(id),
			Format:    format,
			OutputDir: req.GetString("output_dir", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("export failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Exported %d files to %s (%d annotations skipped)", res.Files, res.Path, res.Skipped)), nil
	}
}

func mcpResourceProjects(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := projectsJSON(ctx, deps.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
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

func projectsJSON(ctx context.Context, store *storage.Store) ([]byte, error) {
	projects, err := store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []storage.Project{}
	}
	return json.Marshal(projects)
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
