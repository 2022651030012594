package models

// AccountRecord is one operator-controlled address. Records without a
// mnemonic are read-only and cannot be swept.
type AccountRecord struct {
	Name     string
	Address  string
	Mnemonic string
}

func (a AccountRecord) CanSign() bool {
	return a.Mnemonic != ""
}

// GasStationConfig is the consolidation target per chain family
type GasStationConfig struct {
	InitiaAddress   string `json:"initia_address"`
	CelestiaAddress string `json:"celestia_address"`
	Mnemonic        string `json:"mnemonic"`
}

// AddressFor returns the gas station address for the given family
func (g GasStationConfig) AddressFor(family ChainFamily) string {
	switch family {
	case FamilyInitia:
		return g.InitiaAddress
	case FamilyCelestia:
		return g.CelestiaAddress
	default:
		return ""
	}
}

// SystemKey is an entry of system_keys in minitia.config.json
type SystemKey struct {
	L1Address string `json:"l1_address,omitempty"`
	DAAddress string `json:"da_address,omitempty"`
	Mnemonic  string `json:"mnemonic,omitempty"`
}

type GenesisAccount struct {
	Address string `json:"address"`
	Coins   string `json:"coins,omitempty"`
}

// WeaveGlobalConfig is the operator-level config holding the gas station
type WeaveGlobalConfig struct {
	Common struct {
		GasStation *GasStationConfig `json:"gas_station"`
	} `json:"common"`
}
