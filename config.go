package gobridge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agiangrant/gobridge/internal/ffi"
)

// DefaultConfigFile is read when no configuration path is given.
const DefaultConfigFile = "gobridge.toml"

// ModulePathEnv overrides the module path from configuration.
const ModulePathEnv = "GOBRIDGE_MODULE_PATH"

// Config represents the gobridge.toml configuration file
type Config struct {
	Module   ModuleConfig   `toml:"module"`
	Channels ChannelsConfig `toml:"channels"`
	Platform PlatformConfig `toml:"platform"`
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
}

type ModuleConfig struct {
	// Base name of the module; the platform prefix and suffix are added
	Name string `toml:"name"`
	// Explicit path, wins over the search
	Path string `toml:"path"`
	// Export that releases module-allocated strings. Empty uses C free.
	FreeExport string `toml:"free_export"`
	// Check every routed export at startup and warn about missing ones
	VerifyExports bool `toml:"verify_exports"`
}

type ChannelsConfig struct {
	Backend string `toml:"backend"`
	Audio   string `toml:"audio"`
}

// PlatformConfig overrides platform detection. Capability fields take
// "true", "false" or "" for the platform default.
type PlatformConfig struct {
	Name              string `toml:"name"`
	ForegroundService string `toml:"foreground_service"`
	AudioProcessor    string `toml:"audio_processor"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Module: ModuleConfig{
			Name:          "gobackend",
			VerifyExports: true,
		},
		Channels: ChannelsConfig{
			Backend: "com.zarz.spotiflac/backend",
			Audio:   "com.zarz.spotiflac/ffmpeg",
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:7878",
		},
	}
}

// LoadConfig loads the configuration at path. With an empty path
// gobridge.toml in the working directory is used, and defaults are returned
// if it doesn't exist.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	configPath := path
	if configPath == "" {
		configPath = DefaultConfigFile
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if path == "" && errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return config, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	// Apply defaults for empty values
	defaults := DefaultConfig()
	if config.Module.Name == "" {
		config.Module.Name = defaults.Module.Name
	}
	if config.Channels.Backend == "" {
		config.Channels.Backend = defaults.Channels.Backend
	}
	if config.Channels.Audio == "" {
		config.Channels.Audio = defaults.Channels.Audio
	}
	if config.Log.Level == "" {
		config.Log.Level = defaults.Log.Level
	}
	if config.Server.Listen == "" {
		config.Server.Listen = defaults.Server.Listen
	}

	return config, nil
}

// SaveConfig writes the configuration to path
func SaveConfig(path string, config Config) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// ResolvePath returns the module path: the configured path, then the
// GOBRIDGE_MODULE_PATH environment variable, then a search for the module's
// platform file name.
func (c ModuleConfig) ResolvePath() string {
	if c.Path != "" {
		return c.Path
	}
	if p := os.Getenv(ModulePathEnv); p != "" {
		return p
	}
	return ffi.Locate(c.Name)
}

// Resolve returns the effective platform and its capabilities.
func (c PlatformConfig) Resolve() (Platform, Capabilities, error) {
	p := CurrentPlatform()
	if c.Name != "" {
		parsed, err := ParsePlatform(c.Name)
		if err != nil {
			return p, p.Capabilities(), err
		}
		p = parsed
	}

	caps := p.Capabilities()
	if err := override(&caps.ForegroundService, "foreground_service", c.ForegroundService); err != nil {
		return p, caps, err
	}
	if err := override(&caps.AudioProcessor, "audio_processor", c.AudioProcessor); err != nil {
		return p, caps, err
	}
	return p, caps, nil
}

func override(dst *bool, name, value string) error {
	if value == "" {
		return nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("platform.%s: %w", name, err)
	}
	*dst = v
	return nil
}

// Build returns a zap logger for this configuration. Logs go to stderr.
func (c LogConfig) Build() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		l, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		level = l
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
