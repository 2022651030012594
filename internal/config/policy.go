package config

import (
	"fmt"
	"os"

	sdkmath "cosmossdk.io/math"
	"github.com/BurntSushi/toml"

	"github.com/kelsos/weave-sweep/internal/models"
)

const DefaultGasLimit = 200000

// ChainPolicy describes how one chain family is swept.
type ChainPolicy struct {
	Denom     string
	TokenName string
	Prefix    string
	Reserve   sdkmath.Int
	GasPrice  string
	GasLimit  int64
	Memo      string
}

func DefaultInitiaPolicy() ChainPolicy {
	return ChainPolicy{
		Denom:     "uinit",
		TokenName: "INIT",
		Prefix:    "init",
		Reserve:   sdkmath.NewInt(200000),
		GasPrice:  "0.1",
		GasLimit:  DefaultGasLimit,
		Memo:      "Return to gas station",
	}
}

func DefaultCelestiaPolicy() ChainPolicy {
	return ChainPolicy{
		Denom:     "utia",
		TokenName: "TIA",
		Prefix:    "celestia",
		Reserve:   sdkmath.NewInt(200000),
		GasPrice:  "0.1",
		GasLimit:  DefaultGasLimit,
		Memo:      "Return to gas station",
	}
}

// Validate checks the policy values
func (p ChainPolicy) Validate() error {
	if p.Denom == "" {
		return fmt.Errorf("denom cannot be empty")
	}
	if p.Prefix == "" {
		return fmt.Errorf("bech32 prefix cannot be empty")
	}
	if p.Reserve.IsNil() || p.Reserve.IsNegative() {
		return fmt.Errorf("reserve must be a non-negative integer")
	}
	if p.GasLimit <= 0 {
		return fmt.Errorf("gas limit must be positive, got: %d", p.GasLimit)
	}
	gasPrice, err := sdkmath.LegacyNewDecFromStr(p.GasPrice)
	if err != nil {
		return fmt.Errorf("invalid gas price %q: %w", p.GasPrice, err)
	}
	if gasPrice.IsNegative() {
		return fmt.Errorf("gas price must be non-negative, got: %s", p.GasPrice)
	}
	return nil
}

type policyEntry struct {
	Denom     string `toml:"denom"`
	TokenName string `toml:"token_name"`
	Prefix    string `toml:"prefix"`
	Reserve   string `toml:"reserve"`
	GasPrice  string `toml:"gas_price"`
	GasLimit  int64  `toml:"gas_limit"`
	Memo      string `toml:"memo"`
}

type policyFile struct {
	Initia   *policyEntry `toml:"initia"`
	Celestia *policyEntry `toml:"celestia"`
}

// LoadPolicy reads a TOML policy file and overlays its values on the given
// defaults. Keys absent from the file keep their default.
func LoadPolicy(path string, initia, celestia ChainPolicy) (ChainPolicy, ChainPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return initia, celestia, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	return ParsePolicy(string(data), initia, celestia)
}

// ParsePolicy is LoadPolicy on an in-memory document.
func ParsePolicy(doc string, initia, celestia ChainPolicy) (ChainPolicy, ChainPolicy, error) {
	var file policyFile
	meta, err := toml.Decode(doc, &file)
	if err != nil {
		return initia, celestia, fmt.Errorf("failed to parse policy: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return initia, celestia, fmt.Errorf("unknown policy keys: %v", undecoded)
	}

	if initia, err = file.Initia.apply(initia); err != nil {
		return initia, celestia, fmt.Errorf("initia: %w", err)
	}
	if celestia, err = file.Celestia.apply(celestia); err != nil {
		return initia, celestia, fmt.Errorf("celestia: %w", err)
	}
	return initia, celestia, nil
}

func (e *policyEntry) apply(p ChainPolicy) (ChainPolicy, error) {
	if e == nil {
		return p, nil
	}
	if e.Denom != "" {
		p.Denom = e.Denom
	}
	if e.TokenName != "" {
		p.TokenName = e.TokenName
	}
	if e.Prefix != "" {
		p.Prefix = e.Prefix
	}
	if e.Reserve != "" {
		reserve, ok := sdkmath.NewIntFromString(e.Reserve)
		if !ok {
			return p, fmt.Errorf("invalid reserve %q", e.Reserve)
		}
		p.Reserve = reserve
	}
	if e.GasPrice != "" {
		p.GasPrice = e.GasPrice
	}
	if e.GasLimit != 0 {
		p.GasLimit = e.GasLimit
	}
	if e.Memo != "" {
		p.Memo = e.Memo
	}
	return p, nil
}

// PolicyFor returns the sweep policy of a chain family
func (c *Config) PolicyFor(family models.ChainFamily) ChainPolicy {
	if family == models.FamilyCelestia {
		return c.Celestia
	}
	return c.Initia
}

// RPCFor returns the CometBFT RPC endpoint of a chain family
func (c *Config) RPCFor(family models.ChainFamily) string {
	if family == models.FamilyCelestia {
		return c.CelestiaRPC
	}
	return c.InitiaRPC
}
