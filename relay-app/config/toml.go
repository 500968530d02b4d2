package config

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// configType picks the viper config type from the file extension. YAML is the default.
func configType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// checkTOMLKeys rejects TOML files carrying keys that map to no configuration field.
func checkTOMLKeys(path string) error {
	var probe Config
	meta, err := toml.DecodeFile(path, &probe)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		keys = append(keys, k.String())
	}
	return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
}

// DumpTOML writes the configuration as TOML.
func (c *Config) DumpTOML(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
