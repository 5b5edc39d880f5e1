// Package config loads validator and client configuration from TOML files,
// in the same vein as geth's node configuration loader: a lenient decoder
// that ignores unknown fields so older config files keep working as new
// options are added.
package config

import (
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return nil
	},
}

// ValidatorConfig is the on-disk shape of a validator node's settings.
type ValidatorConfig struct {
	// SecretKeyHex is the validator's BLS12-381 secret key, 32 bytes hex
	// encoded (with or without 0x prefix).
	SecretKeyHex string `toml:"secret_key"`
	// RequestAddr is the request/reply bind address, e.g. "0.0.0.0:9000".
	RequestAddr string `toml:"request_addr"`
	// PublisherAddr is the publisher bind address. Empty defaults to
	// RequestAddr's port + 1.
	PublisherAddr string `toml:"publisher_addr,omitempty"`
	// StoreCapacity is the per-namespace record limit. Zero uses the
	// store package default.
	StoreCapacity int `toml:"store_capacity,omitempty"`
}

// ClientConfig is the on-disk shape of a client coordinator's settings.
type ClientConfig struct {
	// RegistryPath points at the flat-file validator registry.
	RegistryPath string `toml:"registry_path"`
	// APIPort is the port the client's own HTTP API listens on.
	APIPort int `toml:"api_port"`
	// WriteTimeoutMillis and ReadTimeoutMillis override the coordinator's
	// per-validator deadlines. Zero uses the client package defaults.
	WriteTimeoutMillis int `toml:"write_timeout_ms,omitempty"`
	ReadTimeoutMillis  int `toml:"read_timeout_ms,omitempty"`
}

// LoadValidator reads and decodes a ValidatorConfig from path.
func LoadValidator(path string) (*ValidatorConfig, error) {
	var cfg ValidatorConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient reads and decodes a ClientConfig from path.
func LoadClient(path string) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func load(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(f).Decode(out); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}
