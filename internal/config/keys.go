package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "NOTUM_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "NOTUM_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "NOTUM_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "export.dir", typ: kString, env: "NOTUM_EXPORT_DIR",
		apply:   func(cfg *Config, v any) { cfg.Export.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Export.Dir },
	},
	{
		key: "segment.max_image_size", typ: kInt, env: "NOTUM_SEGMENT_MAX_IMAGE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Segment.MaxImageSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Segment.MaxImageSize },
	},
	{
		key: "segment.cache_size", typ: kInt, env: "NOTUM_SEGMENT_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Segment.CacheSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Segment.CacheSize },
	},
	{
		key: "segment.encoder_model", typ: kString, env: "NOTUM_SEGMENT_ENCODER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Segment.EncoderModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Segment.EncoderModel },
	},
	{
		key: "segment.decoder_model", typ: kString, env: "NOTUM_SEGMENT_DECODER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Segment.DecoderModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Segment.DecoderModel },
	},
	{
		key: "segment.threads", typ: kInt, env: "NOTUM_SEGMENT_THREADS",
		apply:   func(cfg *Config, v any) { cfg.Segment.Threads = v.(int) },
		extract: func(cfg Config) any { return cfg.Segment.Threads },
	},
	{
		key: "ollama.base_url", typ: kString, env: "NOTUM_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.vision_model", typ: kString, env: "NOTUM_OLLAMA_VISION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.VisionModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.VisionModel },
	},
	{
		key: "labeler.enabled", typ: kBool, env: "NOTUM_LABELER_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Labeler.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Labeler.Enabled },
	},
	{
		key: "log.level", typ: kString, env: "NOTUM_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
