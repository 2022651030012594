package models

// ChainFamily identifies which chain an address belongs to
type ChainFamily string

const (
	FamilyInitia   ChainFamily = "initia"
	FamilyCelestia ChainFamily = "celestia"
	FamilyUnknown  ChainFamily = "unknown"
)

// Families lists the sweepable families in processing order
var Families = []ChainFamily{FamilyInitia, FamilyCelestia}

func (f ChainFamily) String() string {
	return string(f)
}
