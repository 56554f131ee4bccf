package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/maulik225/NotumAi/internal/api"
	"github.com/maulik225/NotumAi/internal/config"
	"github.com/maulik225/NotumAi/internal/export"
	"github.com/maulik225/NotumAi/internal/imageio"
	"github.com/maulik225/NotumAi/internal/labeler"
	"github.com/maulik225/NotumAi/internal/metrics"
	"github.com/maulik225/NotumAi/internal/segment"
	"github.com/maulik225/NotumAi/internal/segment/tflite"
	"github.com/maulik225/NotumAi/internal/storage"
	"github.com/maulik225/NotumAi/internal/vision"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the notum server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running notum server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show notum system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "notum.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// loadSegmenter builds the segmentation service. Without configured model
// files, or when they fail to load, the service runs without a model and
// reports AI_UNAVAILABLE.
func loadSegmenter(cfg config.SegmentConfig, m *metrics.SegmentMetrics) (*segment.Service, func()) {
	opts := segment.Options{
		MaxImageSize: cfg.MaxImageSize,
		CacheSize:    cfg.CacheSize,
		Metrics:      m,
	}
	if !cfg.Enabled() {
		slog.Warn("segmentation model not configured, set segment.encoder_model and segment.decoder_model")
		return segment.NewService(nil, opts), func() {}
	}

	model, err := tflite.Load(tflite.Config{
		EncoderPath: cfg.EncoderModel,
		DecoderPath: cfg.DecoderModel,
		Threads:     cfg.Threads,
	})
	if err != nil {
		slog.Error("loading segmentation model", "error", err)
		return segment.NewService(nil, opts), func() {}
	}
	slog.Info("segmentation model loaded", "runtime", model.Name())
	return segment.NewService(model, opts), model.Close
}

// loadLabeler returns nil when label assist is disabled or Ollama is not
// usable.
func loadLabeler(ctx context.Context, cfg config.Config) *labeler.Client {
	if !cfg.Labeler.Enabled {
		return nil
	}
	client, err := labeler.New(cfg.Ollama.BaseURL, cfg.Ollama.VisionModel)
	if err != nil {
		slog.Error("label assist disabled", "error", err)
		return nil
	}
	if err := labeler.EnsureReady(ctx, client, os.Stderr); err != nil {
		slog.Warn("label assist disabled", "error", err)
		return nil
	}
	return client
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "notum version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get("http://" + cfg.Server.Addr() + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("notum is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("notum is already running on %s", cfg.Server.Addr())
		return fmt.Errorf("server already running on %s", cfg.Server.Addr())
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	segmenter, closeModel := loadSegmenter(cfg.Segment, m.Segment)
	defer closeModel()

	exporter := export.NewExporter(store, cfg.Export.Dir, imageio.NewSizer(10*time.Minute), vision.NewRasterizer(), m.Export)

	handler := api.NewHandler(api.Deps{
		Store:     store,
		Segmenter: segmenter,
		Exporter:  exporter,
		Labeler:   loadLabeler(ctx, cfg),
		Metrics:   m,
	})

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store, Exporter: exporter})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "notum listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("notum is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop notum (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to notum (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := "http://" + cfg.Server.Addr()
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on %s", cfg.Server.Addr())
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if err == nil && resp.StatusCode == http.StatusOK {
		c := &apiClient{baseURL: serverURL, httpClient: client}
		ctx := context.Background()
		if r, err := c.get(ctx, "/status"); err == nil {
			var st map[string]string
			if decodeJSON(r, &st) == nil {
				printStatus("Segmentation", "%s", st["status"])
			}
		}
		if r, err := c.get(ctx, "/projects"); err == nil {
			var projects []storage.Project
			if decodeJSON(r, &projects) == nil {
				printStatus("Projects", "%d", len(projects))
			}
		}
	}

	if cfg.Labeler.Enabled {
		ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s (%s)", cfg.Ollama.BaseURL, cfg.Ollama.VisionModel)
		}
	} else {
		printStatus("Label assist", "disabled")
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Export dir", "%s", cfg.Export.Dir)
	return nil
}
