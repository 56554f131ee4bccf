package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Export  ExportConfig
	Segment SegmentConfig
	Ollama  OllamaConfig
	Labeler LabelerConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// Addr is host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	DataDir string
}

type ExportConfig struct {
	Dir string
}

type SegmentConfig struct {
	MaxImageSize int
	CacheSize    int
	EncoderModel string
	DecoderModel string
	Threads      int
}

// Enabled reports whether both model files are configured.
func (s SegmentConfig) Enabled() bool {
	return s.EncoderModel != "" && s.DecoderModel != ""
}

type OllamaConfig struct {
	BaseURL     string
	VisionModel string
}

type LabelerConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level string
}

// SlogLevel maps Level onto slog; unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8009,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Export: ExportConfig{
			Dir: filepath.Join(dataDir, "exports"),
		},
		Segment: SegmentConfig{
			MaxImageSize: 1024,
			CacheSize:    10,
		},
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			VisionModel: "llava",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in increasing order of precedence: defaults, the
// YAML file at $XDG_CONFIG_HOME/notum/config.yaml, then environment
// variables (NOTUM_*). A .env file in the working directory is loaded into
// the environment first; variables already set are not overwritten.
func Load() (Config, error) {
	loadDotEnv(".env")
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	return cfg, nil
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not read %s: %v\n", path, err)
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "notum-data"
		}
	}
	return filepath.Join(dir, "notum")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "notum", "config.yaml")
}
