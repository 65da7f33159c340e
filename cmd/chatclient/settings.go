package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/korylprince/streamchat/client"
	"gopkg.in/yaml.v3"
)

const defaultServer = "http://localhost:3000/api"

// settings are read from a YAML file and overridden by flags
type settings struct {
	Server          string `yaml:"server"`
	client.Settings `yaml:",inline"`
}

// defaultSettingsPath returns the settings file used when --settings is not given
func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "streamchat", "chatclient.yaml")
}

// loadSettings reads the settings file at path. A missing file is only an error if required is set.
func loadSettings(path string, required bool) (*settings, error) {
	s := &settings{Server: defaultServer}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	if s.Server == "" {
		s.Server = defaultServer
	}
	return s, nil
}
