package api

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/export"
	"github.com/maulik225/NotumAi/internal/imageio"
	"github.com/maulik225/NotumAi/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, string) {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	root := filepath.Join(t.TempDir(), "exports")
	return MCPDeps{
		Store:    store,
		Exporter: export.NewExporter(store, root, imageio.NewSizer(time.Minute), nil, nil),
	}, root
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "no content in result")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPServerRegistersTools(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	s := NewMCPServer(deps)
	require.NotNil(t, s)

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"list_projects", "project_stats", "export_project"} {
		assert.Contains(t, string(b), `"name":"`+name+`"`)
	}
}

func TestMCPTool_ListProjects(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	ctx := context.Background()

	result, err := mcpListProjects(deps)(ctx, makeCallToolRequest("list_projects", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "[]", toolText(t, result))

	_, err = deps.Store.CreateProject(ctx, "birds", "/data/birds")
	require.NoError(t, err)

	result, err = mcpListProjects(deps)(ctx, makeCallToolRequest("list_projects", nil))
	require.NoError(t, err)
	var projects []storage.Project
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "birds", projects[0].Name)
}

func TestMCPTool_ProjectStats(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	ctx := context.Background()

	p, err := deps.Store.CreateProject(ctx, "p", "/tmp/p")
	require.NoError(t, err)
	require.NoError(t, deps.Store.SaveAnnotations(ctx, p.ID, "a.jpg", []annotation.Annotation{{ClassName: "cat"}}))

	result, err := mcpProjectStats(deps)(ctx, makeCallToolRequest("project_stats", map[string]any{"project_id": float64(p.ID)}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))
	assert.JSONEq(t, `{"total_images":0,"annotated_count":1,"class_distribution":{"cat":1}}`, toolText(t, result))

	result, err = mcpProjectStats(deps)(ctx, makeCallToolRequest("project_stats", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPTool_ExportProject(t *testing.T) {
	deps, root := newTestMCPDeps(t)
	ctx := context.Background()

	p, err := deps.Store.CreateProject(ctx, "p", "/tmp/p")
	require.NoError(t, err)

	result, err := mcpExportProject(deps)(ctx, makeCallToolRequest("export_project", map[string]any{
		"project_id": float64(p.ID),
		"format":     "coco",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))
	assert.Contains(t, toolText(t, result), "Exported 1 files to "+root)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = os.Stat(filepath.Join(root, entries[0].Name(), "annotations.json"))
	assert.NoError(t, err)

	result, err = mcpExportProject(deps)(ctx, makeCallToolRequest("export_project", map[string]any{
		"project_id": float64(p.ID),
		"format":     "pascal",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "unsupported format")
}

func TestMCPResource_Projects(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	ctx := context.Background()
	_, err := deps.Store.CreateProject(ctx, "p", "/tmp/p")
	require.NoError(t, err)

	contents, err := mcpResourceProjects(deps)(ctx, mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "projects://list"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)
	assert.Contains(t, text.Text, `"name":"p"`)
}
