// File: internal/config/config.go
// Package config holds XenStore-Go's runtime configuration, following
// the teacher's facade.Config/DefaultConfig struct-plus-constructor
// shape, loadable from YAML the way yanet2's coordinator/controlplane
// commands load theirs.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package config

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the XenStore-Go service.
type Config struct {
	RingSize     datasize.ByteSize `yaml:"ring_size"`
	AbsPathMax   int               `yaml:"abs_path_max"`
	DomMax       int               `yaml:"dom_max"`
	LogLevel     string            `yaml:"log_level"`
	ListenDomID  uint16            `yaml:"listen_domid"`
}

// Default returns the baseline configuration for most deployments.
func Default() *Config {
	return &Config{
		RingSize:    1 * datasize.KB,
		AbsPathMax:  3072,
		DomMax:      1024,
		LogLevel:    "info",
		ListenDomID: 0,
	}
}

// Load reads and parses a YAML configuration file over Default(): any
// field absent from the file keeps Default()'s value, while a field set
// explicitly in the file (even to zero) takes the file's value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
