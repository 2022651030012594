package chain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kelsos/weave-sweep/internal/models"
)

var ErrUnknownNetwork = errors.New("unknown network")

var restEndpoints = map[models.ChainFamily]map[string]string{
	models.FamilyInitia: {
		"testnet": "https://rest.testnet.initia.xyz",
		"mainnet": "https://rest.mainnet.initia.xyz",
	},
	models.FamilyCelestia: {
		"mocha-4":    "https://api-mocha-4.celenium.io",
		"mainnet":    "https://api-mainnet.celenium.io",
		"arabica-11": "https://api-arabica-11.celenium.io",
	},
}

// Networks lists the known network names for a family, sorted
func Networks(family models.ChainFamily) []string {
	names := make([]string, 0, len(restEndpoints[family]))
	for name := range restEndpoints[family] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveEndpoint returns the REST base URL for a family's network. The network
// must be known even when a non-empty override replaces its URL.
func ResolveEndpoint(family models.ChainFamily, network, override string) (string, error) {
	table, ok := restEndpoints[family]
	if !ok {
		return "", fmt.Errorf("%w: no networks for chain family %s", ErrUnknownNetwork, family)
	}
	endpoint, ok := table[network]
	if !ok {
		return "", fmt.Errorf("%w: %q for %s (known: %v)", ErrUnknownNetwork, network, family, Networks(family))
	}
	if override != "" {
		return override, nil
	}
	return endpoint, nil
}
