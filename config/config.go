package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"mintgate/crypto"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	DataDir         string `toml:"DataDir"`
	Env             string `toml:"Env"`
	AuthToken       string `toml:"AuthToken"`
	PlatformAddress string `toml:"PlatformAddress"`
	RelayAddress    string `toml:"RelayAddress"`
	AffiliateSigner string `toml:"AffiliateSigner"`
	VaultAddress    string `toml:"VaultAddress"`
	RateLimitPerMin int    `toml:"RateLimitPerMin"`
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./mintgate-data"
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 120
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every configured address parses. The platform address,
// affiliate signer and vault are required for settlement to function.
func (c *Config) Validate() error {
	required := map[string]string{
		"PlatformAddress": c.PlatformAddress,
		"AffiliateSigner": c.AffiliateSigner,
		"VaultAddress":    c.VaultAddress,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: %s is required", field)
		}
		if _, err := crypto.DecodeAddress(value); err != nil {
			return fmt.Errorf("config: invalid %s: %w", field, err)
		}
	}
	if strings.TrimSpace(c.RelayAddress) != "" {
		if _, err := crypto.DecodeAddress(c.RelayAddress); err != nil {
			return fmt.Errorf("config: invalid RelayAddress: %w", err)
		}
	}
	return nil
}

// Address decodes one of the configured address fields; empty input yields
// the zero address.
func Address(value string) ([20]byte, error) {
	var out [20]byte
	if strings.TrimSpace(value) == "" {
		return out, nil
	}
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return out, err
	}
	return addr.Raw(), nil
}
