package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/weberc2/qrfs/pkg/types"
)

const (
	envVarPrefix = "QRFS"
	appName      = "qrfs"
)

// Config drives the `serve` subcommand. Values come from an optional yaml
// file, overridden by QRFS_* environment variables.
type Config struct {
	Addr      string      `envconfig:"QRFS_ADDR"       default:"0.0.0.0:8080" yaml:"addr"`
	Blocks    types.Block `envconfig:"QRFS_BLOCKS"     default:"128"          yaml:"blocks"`
	BlockSize uint32      `envconfig:"QRFS_BLOCK_SIZE" default:"512"          yaml:"blockSize"`
}

func LoadConfig() (*Config, error) {
	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if configFile == "" {
		configFile = filepath.Join(
			os.Getenv("HOME"),
			".config",
			appName+".yaml",
		)
	}

	var c Config
	data, err := os.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling config file: %w", err)
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	return c.validate()
}

func (c *Config) validate() (*Config, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("config: missing `addr`/QRFS_ADDR")
	}
	if c.Blocks < 1 {
		return nil, fmt.Errorf("config: `blocks` must be positive")
	}
	switch c.BlockSize {
	case 128, 256, 512, 1024:
	default:
		return nil, fmt.Errorf(
			"config: `blockSize` must be 128, 256, 512, or 1024; found `%d`",
			c.BlockSize,
		)
	}
	return c, nil
}
