/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "RESPACK_"

// Registry backends
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
)

// Export sinks
const (
	SinkDir     = "dir"
	SinkArchive = "archive"
	SinkS3      = "s3"
)

// Config represents the respack configuration
type Config struct {
	ProjectRoot string   `yaml:"project_root"`
	Registry    Registry `yaml:"registry"`
	Cache       Cache    `yaml:"cache"`
	Export      Export   `yaml:"export"`
	S3          S3       `yaml:"s3"`
	Server      Server   `yaml:"server"`
	Logging     Logging  `yaml:"logging"`
}

// Registry selects where UID bindings live
type Registry struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// Cache sizes the resource instance cache
type Cache struct {
	Size int `yaml:"size"`
}

// Export configures where export packages go
type Export struct {
	Sink string `yaml:"sink"`
	Out  string `yaml:"out"`
}

// S3 contains the bucket settings of the s3 export sink
type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Server contains the inspection API listener
type Server struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Registry: Registry{
			Backend: BackendPebble,
			Dir:     ".respack/uids",
		},
		Cache: Cache{
			Size: 256,
		},
		Export: Export{
			Sink: SinkDir,
			Out:  "./export",
		},
		S3: S3{
			Region: "us-east-1",
			Bucket: "respack-exports",
			UseSSL: true,
		},
		Server: Server{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unset keys keep their defaults
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load builds the effective configuration: .env files, then the yaml file
// when present, then RESPACK_* environment overrides. Without envFiles a
// .env in the working directory is read if it exists.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	config := DefaultConfig()
	if configPath != "" && ConfigExists(configPath) {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PROJECT_ROOT":     &c.ProjectRoot,
		"REGISTRY_BACKEND": &c.Registry.Backend,
		"REGISTRY_DIR":     &c.Registry.Dir,
		"EXPORT_SINK":      &c.Export.Sink,
		"EXPORT_OUT":       &c.Export.Out,
		"S3_ENDPOINT":      &c.S3.Endpoint,
		"S3_REGION":        &c.S3.Region,
		"S3_ACCESS_KEY":    &c.S3.AccessKey,
		"S3_SECRET_KEY":    &c.S3.SecretKey,
		"S3_BUCKET":        &c.S3.Bucket,
		"BIND":             &c.Server.Bind,
		"LOG_LEVEL":        &c.Logging.Level,
		"LOG_FORMAT":       &c.Logging.Format,
	}
	for key, target := range strs {
		if v, ok := lookupEnv(key); ok {
			*target = v
		}
	}

	ints := map[string]*int{
		"CACHE_SIZE": &c.Cache.Size,
		"PORT":       &c.Server.Port,
	}
	for key, target := range ints {
		if v, ok := lookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*target = n
		}
	}

	if v, ok := lookupEnv("S3_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sS3_USE_SSL: %w", EnvPrefix, err)
		}
		c.S3.UseSSL = b
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Validate rejects settings no component can run with
func (c *Config) Validate() error {
	switch c.Registry.Backend {
	case BackendMemory:
	case BackendPebble:
		if c.Registry.Dir == "" {
			return fmt.Errorf("registry.dir is required for the %s backend", BackendPebble)
		}
	default:
		return fmt.Errorf("unknown registry backend %q", c.Registry.Backend)
	}

	switch c.Export.Sink {
	case SinkDir, SinkArchive:
		if c.Export.Out == "" {
			return fmt.Errorf("export.out is required for the %s sink", c.Export.Sink)
		}
	case SinkS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return fmt.Errorf("s3.endpoint and s3.bucket are required for the %s sink", SinkS3)
		}
	default:
		return fmt.Errorf("unknown export sink %q", c.Export.Sink)
	}

	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// RegistryDir resolves the registry directory against the project root
func (c *Config) RegistryDir() string {
	if filepath.IsAbs(c.Registry.Dir) {
		return c.Registry.Dir
	}
	return filepath.Join(c.ProjectRoot, c.Registry.Dir)
}

// SlogLevel parses the configured level, defaulting to info
func (l Logging) SlogLevel() slog.Level {
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

// NewLogger builds a logger writing to w in the configured format
func (l Logging) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600, the file may hold s3 credentials
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BootstrapConfig writes a default configuration rooted at projectRoot
func BootstrapConfig(configPath string, projectRoot string) (*Config, error) {
	config := DefaultConfig()
	if projectRoot != "" {
		config.ProjectRoot = projectRoot
	}

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./respack.yaml"
	}

	// For Linux/macOS, use ~/.config/respack/config.yaml
	configDir := filepath.Join(homeDir, ".config", "respack")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
