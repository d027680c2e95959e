package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Environment string
	ServerPort  int
	DBPath      string

	// Storage paths
	StoragePath string
	BuildsPath  string
	SunoPath    string
	TempPath    string

	// LLM settings (C5 LLMCapability host implementation)
	LLMURL   string
	LLMModel string

	// Audio muxer (pkg/suno)
	FfmpegPath string

	// Pipeline defaults (spec.md C6/C7)
	MinGapMS   uint64
	MaxSceneMS uint64
}

// LoadConfig loads configuration based on STORYBOARD_ENV, then applies any
// STORYBOARD_* overrides present in the environment.
func LoadConfig() *Config {
	env := os.Getenv("STORYBOARD_ENV")
	if env == "" {
		env = "development"
	}

	var cfg Config
	cfg.Environment = env
	cfg.ServerPort = 8080

	if env == "production" {
		cfg.DBPath = "/var/lib/storyboard-studio/data/storyboard.db"
		cfg.StoragePath = "/var/lib/storyboard-studio/storage"
	} else {
		homeDir, _ := os.UserHomeDir()
		basePath := filepath.Join(homeDir, ".local", "share", "storyboard-studio")
		cfg.DBPath = filepath.Join(basePath, "data", "storyboard.db")
		cfg.StoragePath = filepath.Join(basePath, "storage")
	}

	cfg.BuildsPath = filepath.Join(cfg.StoragePath, "builds")
	cfg.SunoPath = filepath.Join(cfg.StoragePath, "suno")
	cfg.TempPath = filepath.Join(cfg.StoragePath, "temp")

	cfg.LLMURL = "http://localhost:11434"
	cfg.LLMModel = "qwen2.5:7b"
	cfg.FfmpegPath = "ffmpeg"

	cfg.MinGapMS = 1000
	cfg.MaxSceneMS = 8000

	applyStringOverride(&cfg.DBPath, "STORYBOARD_DB_PATH")
	applyStringOverride(&cfg.StoragePath, "STORYBOARD_STORAGE_PATH")
	applyStringOverride(&cfg.LLMURL, "STORYBOARD_LLM_URL")
	applyStringOverride(&cfg.LLMModel, "STORYBOARD_LLM_MODEL")
	applyStringOverride(&cfg.FfmpegPath, "STORYBOARD_FFMPEG_PATH")
	applyUintOverride(&cfg.MinGapMS, "STORYBOARD_MIN_GAP_MS")
	applyUintOverride(&cfg.MaxSceneMS, "STORYBOARD_MAX_SCENE_MS")

	fmt.Printf("Loaded configuration for environment: %s\n", env)
	return &cfg
}

func applyStringOverride(field *string, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		*field = v
	}
}

func applyUintOverride(field *uint64, envVar string) {
	v := os.Getenv(envVar)
	if v == "" {
		return
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		fmt.Printf("ignoring invalid %s=%q: %v\n", envVar, v, err)
		return
	}
	*field = n
}
