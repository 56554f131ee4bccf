package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})
		ts.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

// execute runs the root command against ts and returns stdout.
func execute(t *testing.T, ts *testServer, args ...string) (string, error) {
	t.Helper()
	if ts != nil {
		old := newAPIClient
		newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
		t.Cleanup(func() { newAPIClient = old })
	}

	var out, msgs bytes.Buffer
	rootCmd.SetOut(&out)
	oldMessages := messages
	messages = &msgs
	t.Cleanup(func() { messages = oldMessages })
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestProjectsList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /projects": `[{"id":2,"name":"cars","path":"/data/cars","created_at":"2025-03-01T10:00:00Z"},
			{"id":1,"name":"birds","path":"/data/birds","created_at":"2025-02-01T10:00:00Z"}]`,
	})

	out, err := execute(t, ts, "projects", "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2 "), lines[0])
	assert.Contains(t, lines[0], "cars")
	assert.Contains(t, lines[1], "/data/birds")
}

func TestProjectsListEmpty(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /projects": `[]`})

	out, err := execute(t, ts, "projects", "list")
	require.NoError(t, err)
	assert.Equal(t, "No projects found.\n", out)
}

func TestProjectsCreate(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /projects": `{"id":5,"name":"birds","path":"/data/birds","created_at":"2025-02-01T10:00:00Z"}`,
	})

	_, err := execute(t, ts, "projects", "create", "birds", "/data/birds")
	require.NoError(t, err)

	require.Len(t, ts.requests, 1)
	assert.JSONEq(t, `{"name":"birds","path":"/data/birds"}`, ts.requests[0].Body)
}

func TestProjectsDelete(t *testing.T) {
	ts := newTestServer(t, map[string]string{"DELETE /projects/7": `{"status":"deleted"}`})

	_, err := execute(t, ts, "projects", "delete", "7")
	require.NoError(t, err)
	require.Len(t, ts.requests, 1)
	assert.Equal(t, http.MethodDelete, ts.requests[0].Method)

	_, err = execute(t, ts, "projects", "delete", "seven")
	assert.ErrorContains(t, err, "invalid project id")
	assert.Len(t, ts.requests, 1)
}

func TestExportCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /export": `{"status":"success","path":"/out/project_3_yolo","files":4,"skipped":1}`,
	})

	_, err := execute(t, ts, "export", "3", "yolo", "--output", "/out")
	require.NoError(t, err)

	require.Len(t, ts.requests, 1)
	assert.JSONEq(t, `{"project_id":3,"format":"yolo","output_dir":"/out"}`, ts.requests[0].Body)
}

func TestExportCommand_UnknownFormat(t *testing.T) {
	ts := newTestServer(t, nil)

	_, err := execute(t, ts, "export", "3", "pascal")
	assert.ErrorContains(t, err, "unsupported format")
	assert.Empty(t, ts.requests)
}

func TestExportCommand_StructuredError(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /export": `{"error":"loading categories: disk I/O error"}`,
	})

	_, err := execute(t, ts, "export", "3", "coco")
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestStatsCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /projects/4/stats": `{"total_images":10,"annotated_count":3,"class_distribution":{"dog":1,"cat":5,"bird":1}}`,
	})

	out, err := execute(t, ts, "stats", "4")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Annotated: 3 / 10", lines[0])
	assert.Contains(t, lines[1], "cat")
	assert.Contains(t, lines[2], "bird")
	assert.Contains(t, lines[3], "dog")
}

func TestDecodeJSON_ErrorStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(context.Background(), "/missing")
	require.NoError(t, err)

	var v map[string]any
	err = decodeJSON(resp, &v)
	assert.EqualError(t, err, "server returned 404: not found")
}

func TestClientServerNotReachable(t *testing.T) {
	c := &apiClient{baseURL: "http://127.0.0.1:1", httpClient: http.DefaultClient}
	_, err := c.get(context.Background(), "/health")
	assert.ErrorContains(t, err, "not reachable")
}

func TestNoColor(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	assert.Equal(t, "test message", colorize(colorGreen, "test message"))

	noColor = false
	assert.Contains(t, colorize(colorGreen, "test message"), "\033[")
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(t.TempDir())
	require.NoError(t, writePIDFile(path))

	pid, err := readPIDFile(path)
	require.NoError(t, err)
	assert.Positive(t, pid)

	removePIDFile(path)
	_, err = readPIDFile(path)
	assert.Error(t, err)
}

func TestWipeDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store, err := storage.Open(dir)
	require.NoError(t, err)
	ctx := context.Background()
	p, err := store.CreateProject(ctx, "p", "/tmp/p")
	require.NoError(t, err)
	require.NoError(t, store.SaveAnnotations(ctx, p.ID, "a.jpg", []annotation.Annotation{{ClassName: "cat"}}))
	require.NoError(t, store.Close())

	require.NoError(t, wipeDatabase(dir))

	store, err = storage.Open(dir)
	require.NoError(t, err)
	defer store.Close()
	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
	records, err := store.AnnotationRecords(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDBWipeRequiresConfirm(t *testing.T) {
	var msgs bytes.Buffer
	messages = &msgs
	defer func() { messages = os.Stderr }()

	rootCmd.SetArgs([]string{"--no-color", "db", "wipe"})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, msgs.String(), "Use --confirm to proceed")
}

func TestPrintHelpers(t *testing.T) {
	var msgs bytes.Buffer
	messages = &msgs
	defer func() { messages = os.Stderr }()
	noColor = true

	printSuccess("Exported %d files", 3)
	printStatus("Server", "running on %s", "127.0.0.1:8009")
	assert.Equal(t, "✓ Exported 3 files\n  Server: running on 127.0.0.1:8009\n", msgs.String())
}
