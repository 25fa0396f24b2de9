// Package config loads stencil's runtime configuration using Viper, from an
// optional .stencil.yml file, STENCIL_ environment variables and command-line
// flags bound by the CLI.
//
// The configuration covers the project layout (root, settings container,
// asset index database), the watcher, logging and scaffold generation
// defaults. Load applies defaults first and then validates the result.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = ".stencil"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STENCIL"
	// EnvConfigFile names an explicit config file.
	EnvConfigFile = "STENCIL_CONFIG_FILE"
)

type Config struct {
	Project  ProjectConfig  `mapstructure:"project" yaml:"project"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Scaffold ScaffoldConfig `mapstructure:"scaffold" yaml:"scaffold"`
}

type ProjectConfig struct {
	Root     string `mapstructure:"root" yaml:"root"`
	Settings string `mapstructure:"settings" yaml:"settings"`
	Database string `mapstructure:"database" yaml:"database"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Paths    []string      `mapstructure:"paths" yaml:"paths"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

type ScaffoldConfig struct {
	MaxAttempts int    `mapstructure:"max_attempts" yaml:"max_attempts"`
	Overwrite   string `mapstructure:"overwrite" yaml:"overwrite"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.root", ".")
	v.SetDefault("project.settings", "stencil.settings.yml")
	v.SetDefault("project.database", ".stencil/index.db")
	v.SetDefault("watch.debounce", 200*time.Millisecond)
	v.SetDefault("watch.paths", []string{"."})
	v.SetDefault("watch.ignore", []string{".git", ".stencil", "node_modules", "*.tmp", "*~", "*.swp"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.dir", "")
	v.SetDefault("scaffold.max_attempts", 5)
	v.SetDefault("scaffold.overwrite", "prompt")
}

// Init points v at its config source: cfgFile when set, then
// STENCIL_CONFIG_FILE, then .stencil.yml in the working directory. It
// returns the file used, or "" when none was found.
func Init(v *viper.Viper, cfgFile string, lookupEnv func(string) (string, bool)) (string, error) {
	SetDefaults(v)

	explicit := cfgFile
	if explicit == "" && lookupEnv != nil {
		if env, ok := lookupEnv(EnvConfigFile); ok && env != "" {
			explicit = env
		}
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && explicit == "" {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// slices set through env or flags arrive as a single string
	if v.IsSet("watch.ignore") && len(config.Watch.Ignore) <= 1 {
		config.Watch.Ignore = v.GetStringSlice("watch.ignore")
	}
	if v.IsSet("watch.paths") && len(config.Watch.Paths) <= 1 {
		config.Watch.Paths = v.GetStringSlice("watch.paths")
	}

	applyDefaults(&config)

	root, err := filepath.Abs(config.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid project root: %w", err)
	}
	config.Project.Root = root

	if result := Validate(&config); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", &result.Errors[0])
	}
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Project.Root == "" {
		config.Project.Root = "."
	}
	if config.Project.Settings == "" {
		config.Project.Settings = "stencil.settings.yml"
	}
	if config.Project.Database == "" {
		config.Project.Database = ".stencil/index.db"
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = 200 * time.Millisecond
	}
	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{"."}
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
	if config.Scaffold.MaxAttempts == 0 {
		config.Scaffold.MaxAttempts = 5
	}
	if config.Scaffold.Overwrite == "" {
		config.Scaffold.Overwrite = "prompt"
	}
}

// DatabasePath returns the absolute path of the asset index.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Project.Database) {
		return c.Project.Database
	}
	return filepath.Join(c.Project.Root, filepath.FromSlash(c.Project.Database))
}

// LogDir returns the absolute log directory, or "" when file logging is off.
func (c *Config) LogDir() string {
	if c.Log.Dir == "" || filepath.IsAbs(c.Log.Dir) {
		return c.Log.Dir
	}
	return filepath.Join(c.Project.Root, filepath.FromSlash(c.Log.Dir))
}
