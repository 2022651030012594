package inventory

import (
	"fmt"

	"github.com/kelsos/weave-sweep/internal/logger"
	"github.com/kelsos/weave-sweep/internal/models"
	"github.com/kelsos/weave-sweep/internal/utils"
)

// Inventory lists the addresses to sweep per chain family in insertion order.
// Each address appears at most once per family.
type Inventory struct {
	byFamily map[models.ChainFamily][]models.AccountRecord
	seen     map[models.ChainFamily]map[string]bool
}

func New() *Inventory {
	return &Inventory{
		byFamily: make(map[models.ChainFamily][]models.AccountRecord),
		seen:     make(map[models.ChainFamily]map[string]bool),
	}
}

// Add appends a record unless its address is already known for the family.
// It reports whether the record was added.
func (inv *Inventory) Add(family models.ChainFamily, rec models.AccountRecord) bool {
	if inv.seen[family] == nil {
		inv.seen[family] = make(map[string]bool)
	}
	if inv.seen[family][rec.Address] {
		return false
	}
	inv.seen[family][rec.Address] = true
	inv.byFamily[family] = append(inv.byFamily[family], rec)
	return true
}

func (inv *Inventory) Accounts(family models.ChainFamily) []models.AccountRecord {
	return inv.byFamily[family]
}

func (inv *Inventory) Len() int {
	n := 0
	for _, recs := range inv.byFamily {
		n += len(recs)
	}
	return n
}

// Build derives the inventory from the operator config. System keys come
// first in file order, with l1 addresses going to Initia and da addresses to
// Celestia. Genesis accounts are appended to Initia afterwards as read-only
// entries. Missing mnemonics are looked up as <NAME>_MNEMONIC.
func Build(cfg *MinitiaConfig, lookup utils.LookupFunc) *Inventory {
	inv := New()

	mnemonic := func(name, configured string) string {
		if configured != "" {
			return configured
		}
		if lookup != nil {
			if v, ok := lookup(utils.MnemonicEnvVar(name)); ok {
				return v
			}
		}
		return ""
	}

	if cfg.SystemKeys != nil {
		for _, key := range *cfg.SystemKeys {
			if key.L1Address == "" && key.DAAddress == "" {
				logger.Debug("System key %s has no l1 or da address, nothing to sweep", key.Name)
				continue
			}
			secret := mnemonic(key.Name, key.Mnemonic)
			if key.L1Address != "" {
				inv.Add(models.FamilyInitia, models.AccountRecord{Name: key.Name, Address: key.L1Address, Mnemonic: secret})
			}
			if key.DAAddress != "" {
				inv.Add(models.FamilyCelestia, models.AccountRecord{Name: key.Name, Address: key.DAAddress, Mnemonic: secret})
			}
		}
	}

	for i, acc := range cfg.GenesisAccounts {
		name := fmt.Sprintf("genesis_account_%d", i)
		inv.Add(models.FamilyInitia, models.AccountRecord{Name: name, Address: acc.Address, Mnemonic: mnemonic(name, "")})
	}

	return inv
}
