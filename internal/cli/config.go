package cli

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the persisted CLI configuration. Flags and the
// HARRIER_SERVER environment variable override it.
type Config struct {
	Server string `yaml:"server,omitempty"`
	Output string `yaml:"output,omitempty"`
	path   string
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hwatch", "config.yaml"), nil
}

// loadConfig reads cfgFile, or ~/.hwatch/config.yaml when empty. A
// missing file is not an error; defaults apply.
func loadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return &Config{}, nil
		}
		cfgFile = p
	}

	cfg := &Config{path: cfgFile}
	data, err := os.ReadFile(cfgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) save() error {
	if c.path == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return err
		}
		c.path = p
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0600)
}
