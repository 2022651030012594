package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kelsos/weave-sweep/internal/models"
	"github.com/kelsos/weave-sweep/internal/utils"
)

const minitiaJSON = `{
  "l1_config": {"chain_id": "initiation-2"},
  "system_keys": {
    "validator": {"l1_address": "init1validator", "l2_address": "init1val2", "mnemonic": "validator words"},
    "bridge_executor": {"l1_address": "init1executor", "mnemonic": "executor words"},
    "batch_submitter": {"da_address": "celestia1batch", "mnemonic": "batch words"},
    "challenger": {"l1_address": "init1challenger"},
    "output_submitter": {"l1_address": "init1executor", "mnemonic": "dup words"}
  },
  "genesis_accounts": [
    {"address": "init1genesis", "coins": "100umin"},
    {"address": "init1validator", "coins": "5umin"}
  ]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestBuildOrderAndDedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minitia.config.json")
	writeFile(t, path, minitiaJSON)

	cfg, err := LoadMinitiaConfig(path)
	require.NoError(t, err)

	inv := Build(cfg, utils.MapLookup(map[string]string{"CHALLENGER_MNEMONIC": "env words"}))

	initia := inv.Accounts(models.FamilyInitia)
	names := make([]string, 0, len(initia))
	for _, rec := range initia {
		names = append(names, rec.Name)
	}
	// file order, duplicates dropped, genesis appended
	require.Equal(t, []string{"validator", "bridge_executor", "challenger", "genesis_account_0"}, names)

	require.Equal(t, "executor words", initia[1].Mnemonic, "first writer wins")
	require.Equal(t, "env words", initia[2].Mnemonic)
	require.False(t, initia[3].CanSign())

	celestia := inv.Accounts(models.FamilyCelestia)
	require.Len(t, celestia, 1)
	require.Equal(t, models.AccountRecord{Name: "batch_submitter", Address: "celestia1batch", Mnemonic: "batch words"}, celestia[0])

	require.Equal(t, 5, inv.Len())
}

func TestBuildIsDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minitia.config.json")
	writeFile(t, path, minitiaJSON)

	first, err := LoadMinitiaConfig(path)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := LoadMinitiaConfig(path)
		require.NoError(t, err)
		require.Equal(t, Build(first, nil).Accounts(models.FamilyInitia), Build(again, nil).Accounts(models.FamilyInitia))
	}
}

func TestLoadMinitiaConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadMinitiaConfig(filepath.Join(dir, "missing.json"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"system_keys": [`)
	_, err = LoadMinitiaConfig(bad)
	require.ErrorAs(t, err, &cfgErr)

	noKeys := filepath.Join(dir, "nokeys.json")
	writeFile(t, noKeys, `{"genesis_accounts": []}`)
	_, err = LoadMinitiaConfig(noKeys)
	require.ErrorAs(t, err, &cfgErr)
}

func TestBuildIgnoresL2OnlyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minitia.config.json")
	writeFile(t, path, `{"system_keys": {
  "operator": {"l2_address": "init1l2only", "mnemonic": "operator words"},
  "validator": {"l1_address": "init1validator"}
}}`)

	cfg, err := LoadMinitiaConfig(path)
	require.NoError(t, err)

	inv := Build(cfg, nil)
	require.Equal(t, 1, inv.Len())
	require.Equal(t, "validator", inv.Accounts(models.FamilyInitia)[0].Name)
	require.Empty(t, inv.Accounts(models.FamilyCelestia))
}

func TestLoadGasStation(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, "config.json"), `{"common":{"gas_station":{"initia_address":"init1fallback","celestia_address":"celestia1fallback","mnemonic":"m"}}}`)

	gs, err := LoadGasStation(home)
	require.NoError(t, err)
	require.Equal(t, "init1fallback", gs.InitiaAddress)

	writeFile(t, filepath.Join(home, ".weave", "config.json"), `{"common":{"gas_station":{"initia_address":"init1gs","celestia_address":"celestia1gs","mnemonic":"m"}}}`)
	gs, err = LoadGasStation(home)
	require.NoError(t, err)
	require.Equal(t, "init1gs", gs.AddressFor(models.FamilyInitia))
	require.Equal(t, "celestia1gs", gs.AddressFor(models.FamilyCelestia))
}

func TestLoadGasStationMissing(t *testing.T) {
	home := t.TempDir()
	_, err := LoadGasStation(home)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	writeFile(t, filepath.Join(home, ".weave", "config.json"), `{"common":{}}`)
	_, err = LoadGasStation(home)
	require.ErrorIs(t, err, ErrGasStationMissing)

	writeFile(t, filepath.Join(home, ".weave", "config.json"), `{"common":{"gas_station":{"initia_address":"init1gs"}}}`)
	_, err = LoadGasStation(home)
	require.ErrorIs(t, err, ErrGasStationMissing)
}
