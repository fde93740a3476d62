package network

import (
	"fmt"

	"github.com/spf13/viper"
)

type fileConfig struct {
	// Replace drops the built-in table instead of merging into it.
	Replace  bool         `mapstructure:"replace"`
	Networks []Descriptor `mapstructure:"networks"`
}

// LoadFile reads extra network descriptors from a yaml/json/toml file and merges
// them into base. The file is read once; the resulting table does not change
// at runtime.
func LoadFile(path string, base *Table) (*Table, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read networks file: %w", err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode networks file: %w", err)
	}

	if fc.Replace || base == nil {
		return NewTable(fc.Networks)
	}
	return base.Merge(fc.Networks)
}
