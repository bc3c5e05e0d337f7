// Package config loads the tenant roster used to reach each account's
// roles API and resolves per-tenant credentials.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	// DefaultPath is the tenant config consulted when --config is not given.
	DefaultPath = "tenants.json"

	// KeyringService identifies this tool's entries in the OS keyring.
	// Keys are stored per tenant under the tenant's friendly name.
	KeyringService = "roleclone"

	envKeyPrefix = "ROLECLONE_API_KEY_"

	defaultBaseURLFormat = "https://%s-api.example.cloud/api"
)

// KeySource reports where a tenant's API key was resolved from.
type KeySource string

const (
	KeyFromConfig  KeySource = "config"
	KeyFromEnv     KeySource = "environment"
	KeyFromKeyring KeySource = "keyring"
	KeyMissing     KeySource = "none"
)

// Tenant describes one account and how to authenticate against it.
type Tenant struct {
	// Name is the friendly name used on the command line, filled from
	// the config map key.
	Name string `json:"-" mapstructure:"-"`

	TenantName   string `json:"tenant_name" mapstructure:"tenant_name"`
	EnterpriseID string `json:"enterprise_id" mapstructure:"enterprise_id"`
	APIKey       string `json:"api_key" mapstructure:"api_key"`

	// BaseURL overrides the derived API root, for staging or
	// self-hosted endpoints.
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`

	KeySource KeySource `json:"-" mapstructure:"-"`
}

// APIBaseURL returns the root URL for the tenant's API.
func (t Tenant) APIBaseURL() string {
	if t.BaseURL != "" {
		return strings.TrimRight(t.BaseURL, "/")
	}
	return fmt.Sprintf(defaultBaseURLFormat, t.TenantName)
}

// Validate reports whether the tenant can be used for API calls.
func (t Tenant) Validate() error {
	if t.TenantName == "" {
		return fmt.Errorf("tenant %q has no tenant_name", t.Name)
	}
	if t.APIKey == "" {
		return fmt.Errorf("tenant %q has no API key: set api_key in the config, export %s, or run 'roleclone auth set %s'",
			t.Name, EnvKey(t.Name), t.Name)
	}
	return nil
}

// Config holds the full tenant roster.
type Config struct {
	Tenants map[string]Tenant `json:"tenants" mapstructure:"tenants"`
}

// Load reads the tenant roster from path. JSON is the native format; a
// .yaml/.yml extension switches the parser. API keys absent from the
// file are resolved from the environment, then the OS keyring.
//
// Tenant names are normalized to lower case by the loader, so lookups
// through Get and Targets are case-insensitive.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s (run 'roleclone --sample-config' to generate one)", path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Tenants) == 0 {
		return nil, fmt.Errorf("no tenants configured in %s", path)
	}

	for name, t := range cfg.Tenants {
		t.Name = name
		if t.TenantName == "" {
			return nil, fmt.Errorf("tenant %q missing tenant_name", name)
		}
		t.APIKey, t.KeySource = resolveAPIKey(name, t.APIKey)
		cfg.Tenants[name] = t
	}

	return &cfg, nil
}

// resolveAPIKey applies the credential lookup order: config file value,
// then environment, then OS keyring.
func resolveAPIKey(name, configured string) (string, KeySource) {
	if configured != "" {
		return configured, KeyFromConfig
	}
	if key := os.Getenv(EnvKey(name)); key != "" {
		return key, KeyFromEnv
	}
	if key, err := keyring.Get(KeyringService, name); err == nil && key != "" {
		return key, KeyFromKeyring
	}
	return "", KeyMissing
}

// EnvKey returns the environment variable consulted for a tenant's API
// key, e.g. ROLECLONE_API_KEY_ACME_PROD for tenant "acme-prod".
func EnvKey(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return unicode.ToUpper(r)
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return envKeyPrefix + mapped
}

// Get returns the named tenant.
func (c *Config) Get(name string) (Tenant, error) {
	t, ok := c.Tenants[normalize(name)]
	if !ok {
		return Tenant{}, fmt.Errorf("tenant %q not found in config (available: %s)",
			name, strings.Join(c.Names(), ", "))
	}
	return t, nil
}

// Names returns the configured tenant names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Tenants))
	for name := range c.Tenants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Targets resolves the tenants to clone to. With all set it returns
// every tenant except the source. Otherwise the explicit names are
// used; duplicates collapse, and unknown names and the source itself
// are skipped with a warning message in the second return value.
func (c *Config) Targets(source string, explicit []string, all bool) ([]Tenant, []string, error) {
	src := normalize(source)

	if all {
		targets := make([]Tenant, 0, len(c.Tenants))
		for _, name := range c.Names() {
			if name == src {
				continue
			}
			targets = append(targets, c.Tenants[name])
		}
		if len(targets) == 0 {
			return nil, nil, fmt.Errorf("config has no target tenants besides the source")
		}
		return targets, nil, nil
	}

	var targets []Tenant
	var skipped []string
	seen := make(map[string]bool)
	for _, raw := range explicit {
		name := normalize(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if name == src {
			skipped = append(skipped, fmt.Sprintf("skipping source tenant %q as a target", strings.TrimSpace(raw)))
			continue
		}
		t, ok := c.Tenants[name]
		if !ok {
			skipped = append(skipped, fmt.Sprintf("target tenant %q not found in config, skipping", strings.TrimSpace(raw)))
			continue
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return nil, skipped, fmt.Errorf("no valid target tenants to clone to")
	}
	return targets, skipped, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Sample returns a starter tenants.json.
func Sample() string {
	return `{
  "tenants": {
    "acme-master": {
      "tenant_name": "acme-master",
      "enterprise_id": "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx",
      "api_key": "your-api-key-for-this-tenant"
    },
    "acme-region-east": {
      "tenant_name": "acme-east",
      "enterprise_id": "yyyyyyyy-yyyy-yyyy-yyyy-yyyyyyyyyyyy",
      "api_key": "your-api-key-for-this-tenant"
    },
    "acme-region-west": {
      "tenant_name": "acme-west",
      "enterprise_id": "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz",
      "api_key": "your-api-key-for-this-tenant"
    }
  }
}`
}
