// Package config loads the pipeline tuning parameters. Fields are
// pointers so a partial JSON file overrides only what it names; the
// Get* accessors supply defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the canonical tuning defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig is the root tuning configuration for the scan pipeline.
type PipelineConfig struct {
	// Signal conditioning params
	MinSamples         *int     `json:"min_samples,omitempty"`
	SavgolWindow       *int     `json:"savgol_window,omitempty"`
	SavgolOrder        *int     `json:"savgol_order,omitempty"`
	WaveletLevels      *int     `json:"wavelet_levels,omitempty"`
	AutoCalibrateBelow *float64 `json:"auto_calibrate_below,omitempty"`
	AutoCalibrateScale *float64 `json:"auto_calibrate_scale,omitempty"`

	// Session params
	CollectionWindow  *string `json:"collection_window,omitempty"`  // duration string like "60s"
	ProcessingTimeout *string `json:"processing_timeout,omitempty"` // duration string like "30s"

	// Model artifact path
	ModelPath *string `json:"model_path,omitempty"`
}

// EmptyPipelineConfig returns a PipelineConfig with all fields nil.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. Fields
// omitted from the file fall back to defaults via the Get* accessors, so
// partial configs are safe.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *PipelineConfig) Validate() error {
	if c.MinSamples != nil && *c.MinSamples < 1 {
		return fmt.Errorf("min_samples must be positive, got %d", *c.MinSamples)
	}
	if c.SavgolWindow != nil && *c.SavgolWindow%2 == 0 {
		return fmt.Errorf("savgol_window must be odd, got %d", *c.SavgolWindow)
	}
	if c.SavgolWindow != nil && c.SavgolOrder != nil && *c.SavgolWindow < *c.SavgolOrder+2 {
		return fmt.Errorf("savgol_window %d too small for order %d", *c.SavgolWindow, *c.SavgolOrder)
	}
	if c.WaveletLevels != nil && *c.WaveletLevels < 1 {
		return fmt.Errorf("wavelet_levels must be at least 1, got %d", *c.WaveletLevels)
	}
	if c.CollectionWindow != nil && *c.CollectionWindow != "" {
		if _, err := time.ParseDuration(*c.CollectionWindow); err != nil {
			return fmt.Errorf("invalid collection_window %q: %w", *c.CollectionWindow, err)
		}
	}
	if c.ProcessingTimeout != nil && *c.ProcessingTimeout != "" {
		if _, err := time.ParseDuration(*c.ProcessingTimeout); err != nil {
			return fmt.Errorf("invalid processing_timeout %q: %w", *c.ProcessingTimeout, err)
		}
	}
	return nil
}

// GetMinSamples returns min_samples or the default.
func (c *PipelineConfig) GetMinSamples() int {
	if c.MinSamples == nil {
		return 32
	}
	return *c.MinSamples
}

// GetSavgolWindow returns savgol_window or the default.
func (c *PipelineConfig) GetSavgolWindow() int {
	if c.SavgolWindow == nil {
		return 11
	}
	return *c.SavgolWindow
}

// GetSavgolOrder returns savgol_order or the default.
func (c *PipelineConfig) GetSavgolOrder() int {
	if c.SavgolOrder == nil {
		return 3
	}
	return *c.SavgolOrder
}

// GetWaveletLevels returns wavelet_levels or the default.
func (c *PipelineConfig) GetWaveletLevels() int {
	if c.WaveletLevels == nil {
		return 2
	}
	return *c.WaveletLevels
}

// GetAutoCalibrateBelow returns auto_calibrate_below or the default.
func (c *PipelineConfig) GetAutoCalibrateBelow() float64 {
	if c.AutoCalibrateBelow == nil {
		return 10.0
	}
	return *c.AutoCalibrateBelow
}

// GetAutoCalibrateScale returns auto_calibrate_scale or the default.
func (c *PipelineConfig) GetAutoCalibrateScale() float64 {
	if c.AutoCalibrateScale == nil {
		return 660.0
	}
	return *c.AutoCalibrateScale
}

// GetCollectionWindow parses collection_window or returns the default.
func (c *PipelineConfig) GetCollectionWindow() time.Duration {
	if c.CollectionWindow == nil || *c.CollectionWindow == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(*c.CollectionWindow)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetProcessingTimeout parses processing_timeout or returns the default.
func (c *PipelineConfig) GetProcessingTimeout() time.Duration {
	if c.ProcessingTimeout == nil || *c.ProcessingTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.ProcessingTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetModelPath returns model_path or the default artifact location.
func (c *PipelineConfig) GetModelPath() string {
	if c.ModelPath == nil || *c.ModelPath == "" {
		return "model/glucose_linear_v5.json"
	}
	return *c.ModelPath
}
