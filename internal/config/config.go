package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/gpu/host"
)

// Config represents the application configuration
type Config struct {
	Device  DeviceConfig  `mapstructure:"device"`
	Host    HostConfig    `mapstructure:"host"`
	MatMul  MatMulConfig  `mapstructure:"matmul"`
	Rotate  RotateConfig  `mapstructure:"rotate"`
	Kernels KernelsConfig `mapstructure:"kernels"`
	CLI     CLIConfig     `mapstructure:"cli"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type DeviceConfig struct {
	Platform int    `mapstructure:"platform"`
	Class    string `mapstructure:"class"`
}

// HostConfig tunes the host backend. Zero values pick automatic settings.
type HostConfig struct {
	ComputeUnits  int `mapstructure:"compute_units"`
	MemoryLimitMB int `mapstructure:"memory_limit_mb"`
}

type MatMulConfig struct {
	Size  int   `mapstructure:"size"`
	Local []int `mapstructure:"local"`
}

type RotateConfig struct {
	Input  string  `mapstructure:"input"`
	Output string  `mapstructure:"output"`
	Theta  float64 `mapstructure:"theta"`
}

type KernelsConfig struct {
	// Dir overrides the bundled kernel sources when set.
	Dir string `mapstructure:"dir"`
}

type CLIConfig struct {
	Color           bool `mapstructure:"color"`
	SyntaxHighlight bool `mapstructure:"syntax_highlight"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	baseDir := filepath.Join(home, ".kernelrun")

	return &Config{
		Device: DeviceConfig{
			Platform: 0,
			Class:    "any",
		},
		Host: HostConfig{
			ComputeUnits:  0,
			MemoryLimitMB: 0,
		},
		MatMul: MatMulConfig{
			Size:  128,
			Local: []int{16, 16},
		},
		Rotate: RotateConfig{
			Input:  "input.bmp",
			Output: "output.bmp",
			Theta:  math.Pi / 6,
		},
		CLI: CLIConfig{
			Color:           true,
			SyntaxHighlight: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    filepath.Join(baseDir, "kernelrun.log"),
			Console: false,
		},
	}
}

// Load loads configuration from file, environment, and defaults
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("finding home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".kernelrun"))
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("KERNELRUN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ExpandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Device.Platform < 0 {
		return errors.New("device.platform must not be negative")
	}
	if _, err := gpu.ParseDeviceClass(c.Device.Class); err != nil {
		return fmt.Errorf("device.class: %w", err)
	}

	if c.Host.ComputeUnits < 0 {
		return errors.New("host.compute_units must not be negative")
	}
	if c.Host.MemoryLimitMB < 0 {
		return errors.New("host.memory_limit_mb must not be negative")
	}

	if c.MatMul.Size <= 0 {
		return errors.New("matmul.size must be positive")
	}
	if len(c.MatMul.Local) > 0 && len(c.MatMul.Local) != 2 {
		return errors.New("matmul.local must have two extents or none")
	}
	for _, l := range c.MatMul.Local {
		if l <= 0 {
			return errors.New("matmul.local extents must be positive")
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// Selection returns the device choice described by the device section.
func (c *Config) Selection() gpu.Selection {
	class, _ := gpu.ParseDeviceClass(c.Device.Class)
	return gpu.Selection{Platform: c.Device.Platform, Class: class}
}

// HostOptions returns the host backend settings.
func (c *Config) HostOptions() host.Options {
	return host.Options{
		ComputeUnits: c.Host.ComputeUnits,
		MemoryLimit:  int64(c.Host.MemoryLimitMB) << 20,
	}
}

// ExpandPaths expands ~ and environment variables in paths
func (c *Config) ExpandPaths() {
	c.Rotate.Input = expandPath(c.Rotate.Input)
	c.Rotate.Output = expandPath(c.Rotate.Output)
	c.Kernels.Dir = expandPath(c.Kernels.Dir)
	c.Logging.File = expandPath(c.Logging.File)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("device.platform", cfg.Device.Platform)
	v.SetDefault("device.class", cfg.Device.Class)

	v.SetDefault("host.compute_units", cfg.Host.ComputeUnits)
	v.SetDefault("host.memory_limit_mb", cfg.Host.MemoryLimitMB)

	v.SetDefault("matmul.size", cfg.MatMul.Size)
	v.SetDefault("matmul.local", cfg.MatMul.Local)

	v.SetDefault("rotate.input", cfg.Rotate.Input)
	v.SetDefault("rotate.output", cfg.Rotate.Output)
	v.SetDefault("rotate.theta", cfg.Rotate.Theta)

	v.SetDefault("kernels.dir", cfg.Kernels.Dir)

	v.SetDefault("cli.color", cfg.CLI.Color)
	v.SetDefault("cli.syntax_highlight", cfg.CLI.SyntaxHighlight)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
}
