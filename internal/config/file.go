package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up in the data directory when --config is unset.
const ConfigFileName = "config.yaml"

// mergeFile overlays the YAML file at path onto cfg. With required false and
// an empty path, <DataDir>/config.yaml is used if it exists.
func mergeFile(cfg *Config, path string, required bool) error {
	if path == "" {
		path = filepath.Join(cfg.DataDir, ConfigFileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
