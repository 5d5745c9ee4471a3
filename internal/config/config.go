package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Library LibraryConfig
	Data    DataConfig
	Server  ServerConfig
	Log     LogConfig
	Engine  EngineConfig
}

type LibraryConfig struct {
	Roots       []string // directories scanned for albums (first-level subdirectories)
	ScanWorkers int      // parallel metadata readers during a scan (default 4)
}

type DataConfig struct {
	Dir string // base directory for the photo index and engine state (default ~/.photo-triage)
}

// IndexPath returns the location of the SQLite photo index.
func (c *DataConfig) IndexPath() string {
	return filepath.Join(c.Dir, "index.db")
}

// StatePath returns the directory holding the Badger state database
// (cooldowns, cleanup progress, checkpoints).
func (c *DataConfig) StatePath() string {
	return filepath.Join(c.Dir, "state")
}

type ServerConfig struct {
	Host string // bind address, empty means all interfaces
	Port int    // HTTP port (default 8080)
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	Level  string // zerolog level: trace, debug, info, warn, error (default info)
	Format string // console or json (default console)
}

type EngineConfig struct {
	Grouper  GrouperConfig  `yaml:"grouper"`
	Cooldown CooldownConfig `yaml:"cooldown"`
	Batch    BatchConfig    `yaml:"batch"`
}

type GrouperConfig struct {
	MinGroupSize      int     `yaml:"min_group_size"`
	MergeThreshold    int     `yaml:"merge_threshold"`
	TimeWindowSeconds int     `yaml:"time_window_seconds"`
	AspectTolerance   float64 `yaml:"aspect_tolerance"`
	SizeRatioLimit    float64 `yaml:"size_ratio_limit"`
}

// TimeWindow returns the capture time window as a duration.
func (c *GrouperConfig) TimeWindow() time.Duration {
	return time.Duration(c.TimeWindowSeconds) * time.Second
}

type CooldownConfig struct {
	PhotoDays []int `yaml:"photo_days"`
	GroupDays []int `yaml:"group_days"`
}

type BatchConfig struct {
	RecommendSize int `yaml:"recommend_size"`
	CleanupSize   int `yaml:"cleanup_size"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable into a slice,
// trimming whitespace and dropping empty items.
func envList(key string) []string {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".photo-triage"
	}
	return filepath.Join(home, ".photo-triage")
}

func Load() *Config {
	var engine EngineConfig
	if err := yaml.Unmarshal(defaultsYAML, &engine); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	// Batch sizes are the only engine knobs commonly tuned per deployment.
	engine.Batch.RecommendSize = envInt("BATCH_RECOMMEND_SIZE", engine.Batch.RecommendSize)
	engine.Batch.CleanupSize = envInt("BATCH_CLEANUP_SIZE", engine.Batch.CleanupSize)

	return &Config{
		Library: LibraryConfig{
			Roots:       envList("PHOTO_LIBRARY_ROOTS"),
			ScanWorkers: envInt("SCAN_WORKERS", 4),
		},
		Data: DataConfig{
			Dir: envString("PHOTO_TRIAGE_DATA_DIR", defaultDataDir()),
		},
		Server: ServerConfig{
			Host: os.Getenv("SERVER_HOST"),
			Port: envInt("SERVER_PORT", 8080),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
		Engine: engine,
	}
}
