/*
Package factory converts JSON portal configuration into ledger construction
options.

PURPOSE:
  The back office tunes the material catalog, the elevated role set, and the
  owner-resolution policy without code changes - admins edit a JSON file,
  the factory turns it into ledger.Option values.

JSON SCHEMA:
  {
    "catalog": ["Cement OPC-53", "GI Strip", "Cable-95mm"],
    "elevated_roles": ["admin", "director"],
    "resolution_policy": "role_preferred"
  }

  All keys are optional. An absent catalog keeps the built-in default; an
  absent role set keeps admin+director; resolution_policy is one of
  "role_preferred" (default) or "exact_team".

USAGE:
  cfg, err := factory.LoadFile("./portal.json")
  ...
  led, err := ledger.Open(ctx, store, cfg.LedgerOptions()...)
  catalog := cfg.BuildCatalog()
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fieldstone/inventory-engine/ledger"
)

// Resolution policy names accepted in config.
const (
	PolicyRolePreferred = "role_preferred"
	PolicyExactTeam     = "exact_team"
)

// Config is the JSON representation of portal configuration.
type Config struct {
	Catalog          []string `json:"catalog,omitempty"`
	ElevatedRoles    []string `json:"elevated_roles,omitempty"`
	ResolutionPolicy string   `json:"resolution_policy,omitempty"`
}

// Parse decodes and validates a config document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}
	switch cfg.ResolutionPolicy {
	case "", PolicyRolePreferred, PolicyExactTeam:
	default:
		return nil, fmt.Errorf("unknown resolution_policy %q", cfg.ResolutionPolicy)
	}
	for _, n := range cfg.Catalog {
		if n == "" {
			return nil, fmt.Errorf("catalog entries must be non-empty")
		}
	}
	return &cfg, nil
}

// LoadFile reads and parses a config file. A missing path yields defaults.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// BuildCatalog returns the configured catalog, or the default when the
// config names none.
func (c *Config) BuildCatalog() *ledger.Catalog {
	if len(c.Catalog) == 0 {
		return ledger.DefaultCatalog()
	}
	return ledger.NewCatalog(c.Catalog...)
}

// LedgerOptions converts the config into ledger construction options.
func (c *Config) LedgerOptions() []ledger.Option {
	var opts []ledger.Option
	if len(c.ElevatedRoles) > 0 {
		roles := make([]ledger.Role, len(c.ElevatedRoles))
		for i, r := range c.ElevatedRoles {
			roles[i] = ledger.Role(r)
		}
		opts = append(opts, ledger.WithElevatedRoles(roles))
	}
	if c.ResolutionPolicy == PolicyExactTeam {
		opts = append(opts, ledger.WithResolver(ledger.ExactTeam))
	}
	return opts
}
