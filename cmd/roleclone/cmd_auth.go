package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"roleclone/internal/config"
)

// authCmd manages tenant API keys in the OS keyring
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored tenant API keys",
	Long: `Store, remove, and inspect per-tenant API keys.

Keys set here live in the OS keyring. They are used when a tenant in the
config file has no api_key and no ROLECLONE_API_KEY_* variable is set.

Available subcommands:
  set    - Store a tenant's API key in the OS keyring
  remove - Delete a tenant's stored API key
  status - Show where each configured tenant's key resolves from`,
}

var authSetCmd = &cobra.Command{
	Use:   "set <tenant>",
	Short: "Store a tenant's API key in the OS keyring",
	Long: `Prompts for an API key on stdin and stores it in the OS keyring
under the given tenant name.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove <tenant>",
	Short: "Delete a tenant's stored API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where each configured tenant's key resolves from",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authRemoveCmd)
	authCmd.AddCommand(authStatusCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	tenant := normalizeTenantArg(args[0])

	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("Enter API key for tenant %q: ", tenant)
	key, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("the API key could not be read: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("the API key cannot be empty")
	}

	if err := keyring.Set(config.KeyringService, tenant, key); err != nil {
		return fmt.Errorf("failed to store the key in the OS keyring: %w", err)
	}

	fmt.Printf("✓ API key for %q stored in the OS keyring\n", tenant)
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	tenant := normalizeTenantArg(args[0])

	if err := keyring.Delete(config.KeyringService, tenant); err != nil {
		if err == keyring.ErrNotFound {
			fmt.Printf("No stored API key for tenant %q\n", tenant)
			return nil
		}
		return fmt.Errorf("failed to remove the key from the OS keyring: %w", err)
	}

	fmt.Printf("✓ Removed stored API key for %q\n", tenant)
	return nil
}

// runAuthStatus reports each configured tenant's key source
func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	for _, name := range cfg.Names() {
		t := cfg.Tenants[name]
		switch t.KeySource {
		case config.KeyMissing:
			fmt.Printf("❌ %s: no API key (set %s or run 'roleclone auth set %s')\n", name, config.EnvKey(name), name)
		default:
			fmt.Printf("✓ %s: key from %s\n", name, t.KeySource)
		}
	}
	return nil
}

// normalizeTenantArg lowercases the tenant name so keyring entries line
// up with the loader's key normalization.
func normalizeTenantArg(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
