package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelsos/weave-sweep/internal/utils"
)

const (
	DefaultInitiaNetwork   = "testnet"
	DefaultCelestiaNetwork = "mocha-4"

	DefaultInitiaRPC   = "https://initia-testnet-rpc.polkachu.com:443"
	DefaultCelestiaRPC = "https://celestia-mocha-rpc.publicnode.com:443"
	DefaultEVMNodeURL  = "http://localhost:8545"

	minitiaConfigRel = ".weave/data/minitia.config.json"
)

// Config holds all application configuration
type Config struct {
	// Operator config
	ConfigFile string
	WeaveHome  string

	// REST balance endpoints
	InitiaNetwork       string
	CelestiaNetwork     string
	InitiaAPIEndpoint   string
	CelestiaAPIEndpoint string

	// Broadcast endpoints
	InitiaRPC   string
	CelestiaRPC string
	EVMNodeURL  string

	// Chain policy
	PolicyFile string
	Initia     ChainPolicy
	Celestia   ChainPolicy

	// Run settings
	DryRun        bool
	HTTPTimeout   time.Duration
	InclusionWait time.Duration
	PollInterval  time.Duration

	// Reporting
	ReportDir   string
	HistoryDB   string
	MetricsFile string
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		InitiaNetwork:   DefaultInitiaNetwork,
		CelestiaNetwork: DefaultCelestiaNetwork,
		InitiaRPC:       DefaultInitiaRPC,
		CelestiaRPC:     DefaultCelestiaRPC,
		EVMNodeURL:      DefaultEVMNodeURL,
		Initia:          DefaultInitiaPolicy(),
		Celestia:        DefaultCelestiaPolicy(),
		HTTPTimeout:     30 * time.Second,
		InclusionWait:   60 * time.Second,
		PollInterval:    3 * time.Second,
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	c.LoadFrom(os.LookupEnv)
}

// LoadFrom applies every recognised variable found through lookup.
func (c *Config) LoadFrom(lookup utils.LookupFunc) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("WEAVE_SWEEP_CONFIG", &c.ConfigFile)
	set("WEAVE_HOME", &c.WeaveHome)
	set("INITIA_NETWORK", &c.InitiaNetwork)
	set("CELESTIA_NETWORK", &c.CelestiaNetwork)
	set("INITIA_API_ENDPOINT", &c.InitiaAPIEndpoint)
	set("CELESTIA_API_ENDPOINT", &c.CelestiaAPIEndpoint)
	set("INITIA_RPC_ENDPOINT", &c.InitiaRPC)
	set("CELESTIA_RPC_ENDPOINT", &c.CelestiaRPC)
	set("EVM_NODE_URL", &c.EVMNodeURL)
	set("WEAVE_SWEEP_POLICY", &c.PolicyFile)
	set("WEAVE_SWEEP_REPORT_DIR", &c.ReportDir)
	set("WEAVE_SWEEP_HISTORY_DB", &c.HistoryDB)
	set("WEAVE_SWEEP_METRICS_FILE", &c.MetricsFile)
}

// ResolvePaths fills in the operator config location and the weave home
// directory. A directory given as the config file points at the minitia
// config inside it.
func (c *Config) ResolvePaths() error {
	if c.ConfigFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		c.ConfigFile = filepath.Join(home, minitiaConfigRel)
	} else {
		path, err := ExpandHome(c.ConfigFile)
		if err != nil {
			return err
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, minitiaConfigRel)
		}
		c.ConfigFile = path
	}

	if c.WeaveHome == "" {
		// <home>/.weave/data/minitia.config.json
		c.WeaveHome = filepath.Dir(filepath.Dir(filepath.Dir(c.ConfigFile)))
	} else {
		home, err := ExpandHome(c.WeaveHome)
		if err != nil {
			return err
		}
		c.WeaveHome = home
	}

	return nil
}

// ApplyPolicyFile merges the TOML policy file, if one is configured.
func (c *Config) ApplyPolicyFile() error {
	if c.PolicyFile == "" {
		return nil
	}
	path, err := ExpandHome(c.PolicyFile)
	if err != nil {
		return err
	}
	initia, celestia, err := LoadPolicy(path, c.Initia, c.Celestia)
	if err != nil {
		return err
	}
	c.Initia = initia
	c.Celestia = celestia
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ConfigFile == "" {
		return fmt.Errorf("config file path cannot be empty")
	}

	if c.InitiaRPC == "" || c.CelestiaRPC == "" {
		return fmt.Errorf("rpc endpoints cannot be empty")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive, got: %s", c.HTTPTimeout)
	}

	if c.PollInterval <= 0 || c.InclusionWait < c.PollInterval {
		return fmt.Errorf("inclusion wait %s must be at least the poll interval %s", c.InclusionWait, c.PollInterval)
	}

	if err := c.Initia.Validate(); err != nil {
		return fmt.Errorf("initia policy: %w", err)
	}

	if err := c.Celestia.Validate(); err != nil {
		return fmt.Errorf("celestia policy: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
