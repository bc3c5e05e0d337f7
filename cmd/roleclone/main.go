package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"roleclone/internal/api"
	"roleclone/internal/audit"
	"roleclone/internal/clone"
	"roleclone/internal/config"
	"roleclone/internal/ui"
)

var (
	// Global flags
	sourceTenant  string
	roleName      string
	targetTenants []string
	allTargets    bool
	configPath    string
	listRoles     bool
	exportPath    string
	dryRun        bool
	verbose       bool
	sampleConfig  bool
	auditLogPath  string

	// Logger
	logger *zap.Logger

	printer = ui.NewPrinter(os.Stdout, ui.NewStyles(ui.DetectTheme()))
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "roleclone",
	Short: "Clone a custom role and its permission scopes across tenants",
	Long: `roleclone replicates a custom role from one tenant to sibling tenants
of the same organization.

It looks the role up by name on the source tenant, captures its permission
scopes, then recreates the role on each target. A role that already exists
on a target keeps its identity; only its scopes are replaced.

Tenants and API keys come from a local config file (see --sample-config).

Examples:
  roleclone --source-tenant acme-master --role-name "Field Tech" --all-targets
  roleclone --source-tenant acme-master --role-name "Field Tech" --target-tenants acme-east,acme-west --dry-run
  roleclone --source-tenant acme-master --list-roles
  roleclone --source-tenant acme-master --role-name "Field Tech" --export-role role.json`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logCfg := zap.NewProductionConfig()
		if verbose {
			logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = logCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runClone,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the tenant config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Clone flags
	rootCmd.Flags().StringVar(&sourceTenant, "source-tenant", "", "Tenant to copy the role from (required)")
	rootCmd.Flags().StringVar(&roleName, "role-name", "", "Name of the role to clone (matched case-insensitively)")
	rootCmd.Flags().StringSliceVar(&targetTenants, "target-tenants", nil, "Comma-separated tenants to clone to")
	rootCmd.Flags().BoolVar(&allTargets, "all-targets", false, "Clone to every configured tenant except the source")
	rootCmd.Flags().BoolVar(&listRoles, "list-roles", false, "List the source tenant's roles and exit")
	rootCmd.Flags().StringVar(&exportPath, "export-role", "", "Write the role definition to a file (.json or .yaml) and exit")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would happen without making any changes")
	rootCmd.Flags().BoolVar(&sampleConfig, "sample-config", false, "Print a sample config file and exit")
	rootCmd.Flags().StringVar(&auditLogPath, "audit-log", "", "Append a JSON-lines audit trail of this run to the given file")

	rootCmd.AddCommand(authCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runClone drives the default command: fetch the role from the source
// tenant and replicate it to each target, or service one of the
// short-circuit flags (--sample-config, --list-roles, --export-role).
func runClone(cmd *cobra.Command, args []string) error {
	if sampleConfig {
		fmt.Println(config.Sample())
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			printer.Warnf("interrupted, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if sourceTenant == "" {
		return fmt.Errorf("--source-tenant is required")
	}
	source, err := cfg.Get(sourceTenant)
	if err != nil {
		return err
	}
	if err := source.Validate(); err != nil {
		return err
	}
	src := clone.Target{Name: source.Name, Client: newTenantClient(source)}

	if listRoles {
		return runListRoles(ctx, src)
	}

	if roleName == "" {
		return fmt.Errorf("--role-name is required (use --list-roles to see what is available)")
	}
	if exportPath == "" && !allTargets && len(targetTenants) == 0 {
		return fmt.Errorf("specify --target-tenants or --all-targets (or use --list-roles / --export-role)")
	}

	recorder, err := audit.Open(auditLogPath)
	if err != nil {
		return err
	}
	defer func() { _ = recorder.Close() }()

	cloner := clone.New(printer, logger)
	cloner.DryRun = dryRun
	cloner.Verbose = verbose

	def, err := cloner.FetchDefinition(ctx, src, roleName)
	if err != nil {
		return err
	}
	recorder.RoleFetched(source.Name, def.Name, len(def.Scopes))

	if exportPath != "" {
		if err := clone.WriteDefinition(def, exportPath); err != nil {
			return fmt.Errorf("failed to export role: %w", err)
		}
		recorder.RoleExported(def.Name, exportPath)
		printer.Successf("Exported role %q to %s", def.Name, exportPath)
		return nil
	}

	tenants, skipped, err := cfg.Targets(sourceTenant, targetTenants, allTargets)
	for _, warning := range skipped {
		printer.Warnf("%s", warning)
	}
	if err != nil {
		return err
	}

	targets := make([]clone.Target, 0, len(tenants))
	names := make([]string, 0, len(tenants))
	for _, t := range tenants {
		if t.KeySource == config.KeyMissing {
			printer.Warnf("tenant %q has no API key configured, its requests will be rejected", t.Name)
		}
		targets = append(targets, clone.Target{Name: t.Name, Client: newTenantClient(t)})
		names = append(names, t.Name)
	}

	div := strings.Repeat("═", 60)
	printer.Printf("\n%s\n", div)
	printer.Printf("  Role:    %s\n", def.Name)
	printer.Printf("  Scopes:  %d\n", len(def.Scopes))
	printer.Printf("  Source:  %s\n", source.Name)
	printer.Printf("  Targets: %s\n", strings.Join(names, ", "))
	printer.Printf("%s\n", div)
	if dryRun {
		printer.Infof("DRY RUN: no changes will be made")
	}
	recorder.RunStart(source.Name, def.Name, names, dryRun)

	results := cloner.Run(ctx, targets, def)
	for _, res := range results {
		recorder.TargetResult(res.Tenant, def.Name, string(res.Action), dryRun, res.Err)
	}

	failed := cloner.Summarize(results)
	recorder.RunEnd(len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d target(s) failed", failed, len(results))
	}
	return nil
}

// runListRoles prints the roles visible on the source tenant.
func runListRoles(ctx context.Context, source clone.Target) error {
	roles, err := source.Client.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roles on %q: %w", source.Name, err)
	}
	if len(roles) == 0 {
		printer.Println("No roles found.")
		return nil
	}

	table := ui.NewTable(fmt.Sprintf("Roles in %s", source.Name), []string{"NAME", "ID", "DESCRIPTION"})
	for _, r := range roles {
		table.AddRow(r.Name, r.ID, r.Description)
	}
	printer.Table(table)
	printer.Printf("\nTotal: %d role(s)\n", len(roles))
	return nil
}

// newTenantClient builds an API client for one tenant.
func newTenantClient(t config.Tenant) *api.Client {
	return api.NewClient(t.APIBaseURL(), t.APIKey, api.WithLogger(logger))
}
