package bzlconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadTOMLConfig loads a configuration from a TOML file. Keys the file
// does not set keep their defaults.
func LoadTOMLConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing TOML config %s: %w", path, err)
	}
	return cfg, nil
}
