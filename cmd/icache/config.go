package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// config holds CLI-level configuration, loadable from a commented HuJSON
// file so users can annotate their own setups.
type config struct {
	DataDir     string `json:"data_dir"`     //nolint:tagliatelle // snake_case for config file
	MaxKeySize  int    `json:"max_key_size"` //nolint:tagliatelle
	CatalogFile string `json:"catalog_file"` //nolint:tagliatelle
	SegmentsDir string `json:"segments_dir"` //nolint:tagliatelle
}

func defaultConfig() config {
	return config{
		DataDir:     "",
		MaxKeySize:  4096,
		CatalogFile: "catalog.db",
		SegmentsDir: "segments",
	}
}

// loadConfig reads a HuJSON config file at path, if it exists, and merges
// it over the defaults. A missing file is not an error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}

	if err != nil {
		return config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	return cfg, nil
}

func (c config) catalogPath() string {
	return filepath.Join(c.DataDir, c.CatalogFile)
}

func (c config) segmentsPath() string {
	return filepath.Join(c.DataDir, c.SegmentsDir)
}
