package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"quick-capture/src/input"
	"quick-capture/src/store"
)

const (
	ConfigFileEnvVar = "QUICK_CAPTURE_CONFIG"
	EnvFileEnvVar    = "QUICK_CAPTURE_ENV"

	DefaultOutputDir      = "screenshot"
	DefaultFileExt        = "jpg"
	DefaultModifierKey    = "ctrl"
	DefaultCancelKey      = "esc"
	DefaultPollIntervalMs = 50
	DefaultPreviewWidth   = 320
	DefaultPreviewHeight  = 240
	DefaultLogLevel       = "info"
)

// LoadOptions carry command-line overrides; they take precedence over every
// other source. Empty strings and nil pointers mean "not set".
type LoadOptions struct {
	ConfigFile      string
	OutputDir       string
	FileExt         string
	ModifierKey     string
	CancelKey       string
	ShowPreview     *bool
	CopyToClipboard *bool
}

type Config struct {
	OutputDir         string `yaml:"output_dir"`
	FileExt           string `yaml:"file_ext"`
	ShowPreview       bool   `yaml:"show_preview"`
	ModifierKey       string `yaml:"modifier_key"`
	CancelKey         string `yaml:"cancel_key"`
	PollIntervalMs    int    `yaml:"poll_interval_ms"`
	JPEGQuality       int    `yaml:"jpeg_quality"`
	CopyToClipboard   bool   `yaml:"copy_to_clipboard"`
	PreviewMaxWidth   int    `yaml:"preview_max_width"`
	PreviewMaxHeight  int    `yaml:"preview_max_height"`
	EnableFileLogging bool   `yaml:"enable_file_logging"`
	LogLevel          string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		OutputDir:        DefaultOutputDir,
		FileExt:          DefaultFileExt,
		ShowPreview:      true,
		ModifierKey:      DefaultModifierKey,
		CancelKey:        DefaultCancelKey,
		PollIntervalMs:   DefaultPollIntervalMs,
		JPEGQuality:      store.DefaultQuality,
		PreviewMaxWidth:  DefaultPreviewWidth,
		PreviewMaxHeight: DefaultPreviewHeight,
		LogLevel:         DefaultLogLevel,
	}
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order, lowest first:
	// 1) built-in defaults
	// 2) YAML file from --config or QUICK_CAPTURE_CONFIG
	// 3) .env next to the executable, or the file named by QUICK_CAPTURE_ENV
	// 4) process environment
	// 5) command-line overrides
	cfg := Default()

	if path := resolveConfigFile(opts); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if envPath := resolveEnvPath(); envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			logrus.Warnf("Failed to load %s: %v", envPath, err)
		}
	}

	applyEnv(cfg)
	applyOverrides(cfg, opts)
	return cfg, nil
}

func resolveConfigFile(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.ConfigFile); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(ConfigFileEnvVar))
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	// Fields missing from the file keep their current values.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func applyEnv(cfg *Config) {
	cfg.OutputDir = getEnvWithDefault("OUTPUT_DIR", cfg.OutputDir)
	cfg.FileExt = getEnvWithDefault("FILE_EXT", cfg.FileExt)
	cfg.ModifierKey = getEnvWithDefault("MODIFIER_KEY", cfg.ModifierKey)
	cfg.CancelKey = getEnvWithDefault("CANCEL_KEY", cfg.CancelKey)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.ShowPreview = getEnvBool("SHOW_PREVIEW", cfg.ShowPreview)
	cfg.CopyToClipboard = getEnvBool("COPY_TO_CLIPBOARD", cfg.CopyToClipboard)
	cfg.EnableFileLogging = getEnvBool("ENABLE_FILE_LOGGING", cfg.EnableFileLogging)

	cfg.PollIntervalMs = getEnvPositiveInt("POLL_INTERVAL_MS", cfg.PollIntervalMs)
	cfg.JPEGQuality = getEnvPositiveInt("JPEG_QUALITY", cfg.JPEGQuality)
	cfg.PreviewMaxWidth = getEnvPositiveInt("PREVIEW_MAX_WIDTH", cfg.PreviewMaxWidth)
	cfg.PreviewMaxHeight = getEnvPositiveInt("PREVIEW_MAX_HEIGHT", cfg.PreviewMaxHeight)
}

func applyOverrides(cfg *Config, opts LoadOptions) {
	if v := strings.TrimSpace(opts.OutputDir); v != "" {
		cfg.OutputDir = v
	}
	if v := strings.TrimSpace(opts.FileExt); v != "" {
		cfg.FileExt = v
	}
	if v := strings.TrimSpace(opts.ModifierKey); v != "" {
		cfg.ModifierKey = v
	}
	if v := strings.TrimSpace(opts.CancelKey); v != "" {
		cfg.CancelKey = v
	}
	if opts.ShowPreview != nil {
		cfg.ShowPreview = *opts.ShowPreview
	}
	if opts.CopyToClipboard != nil {
		cfg.CopyToClipboard = *opts.CopyToClipboard
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvPositiveInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// PollInterval is the tick interval of the capture loop.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Format resolves FileExt to an encoder.
func (c *Config) Format() (store.Format, error) {
	return store.ResolveFormat(c.FileExt)
}

// Validate checks every field the capture session depends on.
func (c *Config) Validate() error {
	var result *multierror.Error
	if strings.TrimSpace(c.OutputDir) == "" {
		result = multierror.Append(result, errors.New("output directory is empty"))
	}
	if _, err := c.Format(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := input.ParseChord(c.ModifierKey); err != nil {
		result = multierror.Append(result, fmt.Errorf("modifier key: %w", err))
	}
	if _, err := input.ParseChord(c.CancelKey); err != nil {
		result = multierror.Append(result, fmt.Errorf("cancel key: %w", err))
	}
	if c.PollIntervalMs <= 0 {
		result = multierror.Append(result, fmt.Errorf("poll interval must be positive, got %dms", c.PollIntervalMs))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		result = multierror.Append(result, fmt.Errorf("jpeg quality must be within 1..100, got %d", c.JPEGQuality))
	}
	return result.ErrorOrNil()
}
