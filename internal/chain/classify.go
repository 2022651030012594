package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kelsos/weave-sweep/internal/models"
)

var ErrInvalidAddress = errors.New("invalid address")

var familyPrefixes = []struct {
	prefix string
	family models.ChainFamily
}{
	{"init", models.FamilyInitia},
	{"celestia", models.FamilyCelestia},
}

// Classify determines the chain family of an address from its prefix alone.
func Classify(address string) models.ChainFamily {
	for _, p := range familyPrefixes {
		if strings.HasPrefix(address, p.prefix) {
			return p.family
		}
	}
	return models.FamilyUnknown
}

// Require classifies address and fails with ErrInvalidAddress for unknown prefixes.
func Require(address string) (models.ChainFamily, error) {
	family := Classify(address)
	if family == models.FamilyUnknown {
		return family, fmt.Errorf("%w: %q has no known chain prefix", ErrInvalidAddress, address)
	}
	return family, nil
}
