package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
	Downscale int    `yaml:"downscale"`
	StatsFile string `yaml:"stats_file" env:"SCENECUT_STATS_FILE"`

	// Detection settings
	Detection DetectionConfig `yaml:"detection"`
}

type DetectionConfig struct {
	// Detector selects the default algorithm: content, adaptive or
	// threshold.
	Detector string `yaml:"detector"`

	MinSceneLenSeconds float64 `yaml:"min_scene_len_seconds"`
	DropShortScenes    bool    `yaml:"drop_short_scenes"`
	MergeLastScene     bool    `yaml:"merge_last_scene"`

	Content   ContentConfig   `yaml:"content"`
	Adaptive  AdaptiveConfig  `yaml:"adaptive"`
	Threshold ThresholdConfig `yaml:"threshold"`
}

type ContentConfig struct {
	Threshold   float64 `yaml:"threshold"`
	HueWeight   float64 `yaml:"hue_weight"`
	SatWeight   float64 `yaml:"sat_weight"`
	LumWeight   float64 `yaml:"lum_weight"`
	EdgesWeight float64 `yaml:"edges_weight"`
}

type AdaptiveConfig struct {
	AdaptiveThreshold float64 `yaml:"adaptive_threshold"`
	MinContentVal     float64 `yaml:"min_content_val"`
	FrameWindow       int     `yaml:"frame_window"`
}

type ThresholdConfig struct {
	Threshold    float64 `yaml:"threshold"`
	FadeBias     float64 `yaml:"fade_bias"`
	AddLastScene bool    `yaml:"add_last_scene"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("SCENECUT_STATS_FILE"); v != "" {
		cfg.StatsFile = v
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		Workers:   4,
		QueueSize: 8,
		Detection: DetectionConfig{
			Detector:           "content",
			MinSceneLenSeconds: 0.6,
			Content: ContentConfig{
				Threshold: 27,
				HueWeight: 1,
				SatWeight: 1,
				LumWeight: 1,
			},
			Adaptive: AdaptiveConfig{
				AdaptiveThreshold: 3.0,
				MinContentVal:     15.0,
				FrameWindow:       2,
			},
			Threshold: ThresholdConfig{
				Threshold:    12,
				AddLastScene: true,
			},
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./scenecut.yaml",
		"./scenecut.yml",
		filepath.Join(os.Getenv("HOME"), ".scenecut", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
