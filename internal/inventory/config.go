package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelsos/weave-sweep/internal/models"
)

var ErrGasStationMissing = errors.New("gas station section missing")

// ConfigError is a fatal failure to load operator configuration
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NamedKey is a system key together with its name
type NamedKey struct {
	Name string
	models.SystemKey
}

// SystemKeys keeps system_keys entries in file order
type SystemKeys []NamedKey

func (s *SystemKeys) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("system_keys must be an object")
	}

	keys := SystemKeys{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)

		var key models.SystemKey
		if err := dec.Decode(&key); err != nil {
			return fmt.Errorf("system key %q: %w", name, err)
		}
		keys = append(keys, NamedKey{Name: name, SystemKey: key})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = keys
	return nil
}

// MinitiaConfig is the subset of minitia.config.json needed to sweep
type MinitiaConfig struct {
	SystemKeys      *SystemKeys             `json:"system_keys"`
	GenesisAccounts []models.GenesisAccount `json:"genesis_accounts"`
}

func (c *MinitiaConfig) validate() error {
	if c.SystemKeys == nil {
		return errors.New("system_keys section missing")
	}
	for i, acc := range c.GenesisAccounts {
		if acc.Address == "" {
			return fmt.Errorf("genesis account %d has no address", i)
		}
	}
	return nil
}

// LoadMinitiaConfig reads and validates the operator config file
func LoadMinitiaConfig(path string) (*MinitiaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var cfg MinitiaConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	if err := cfg.validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return &cfg, nil
}

// GasStationPaths lists the candidate gas station config files in lookup order
func GasStationPaths(weaveHome string) []string {
	return []string{
		filepath.Join(weaveHome, ".weave", "config.json"),
		filepath.Join(weaveHome, "config.json"),
	}
}

// LoadGasStation reads the gas station section from the weave home directory
func LoadGasStation(weaveHome string) (*models.GasStationConfig, error) {
	paths := GasStationPaths(weaveHome)

	var path string
	var data []byte
	var err error
	for _, candidate := range paths {
		data, err = os.ReadFile(candidate)
		if err == nil {
			path = candidate
			break
		}
	}
	if path == "" {
		return nil, &ConfigError{Path: paths[0], Err: fmt.Errorf("no gas station config found: %w", err)}
	}

	var global models.WeaveGlobalConfig
	if err := json.Unmarshal(data, &global); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("malformed JSON: %w", err)}
	}

	gs := global.Common.GasStation
	if gs == nil {
		return nil, &ConfigError{Path: path, Err: ErrGasStationMissing}
	}
	if gs.InitiaAddress == "" || gs.CelestiaAddress == "" {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("%w: initia_address and celestia_address are required", ErrGasStationMissing)}
	}
	return gs, nil
}
