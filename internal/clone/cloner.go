// Package clone implements the role replication workflow: fetch a role
// definition from a source tenant, then apply it to target tenants one
// at a time. A failure in one target never aborts the rest.
package clone

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"roleclone/internal/api"
	"roleclone/internal/ui"
)

// RoleDefinition is the portable form of a role: its metadata plus the
// scope identifiers to apply. RawScopes preserves the source payload
// verbatim for export and auditing.
type RoleDefinition struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Scopes      []string          `json:"scopes"`
	RawScopes   []json.RawMessage `json:"raw_scopes"`
}

// Action describes what a clone run did, or would do, in a target.
type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionWouldCreate Action = "would create"
	ActionWouldUpdate Action = "would update"
	ActionFailed      Action = "failed"
)

// Result records the outcome for one target tenant.
type Result struct {
	Tenant string
	Action Action
	Err    error
}

// OK reports whether the target was processed without error.
func (r Result) OK() bool { return r.Err == nil }

// Target pairs a tenant name with the client reaching its API.
type Target struct {
	Name   string
	Client *api.Client
}

// Cloner drives the fetch-and-apply workflow. DryRun suppresses every
// mutating call while still performing the lookups needed to report
// what would happen.
type Cloner struct {
	DryRun  bool
	Verbose bool

	printer *ui.Printer
	log     *zap.Logger
}

// New creates a Cloner reporting through printer.
func New(printer *ui.Printer, log *zap.Logger) *Cloner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cloner{printer: printer, log: log}
}

// FetchDefinition pulls the role and its scopes from the source tenant.
// A missing role is an error whose message lists the roles that exist.
func (c *Cloner) FetchDefinition(ctx context.Context, source Target, roleName string) (*RoleDefinition, error) {
	c.printer.Printf("\nFetching role %q from source tenant %s\n", roleName, source.Name)

	role, err := source.Client.GetRoleByName(ctx, roleName)
	if err != nil {
		return nil, describeErr(fmt.Sprintf("failed to fetch roles from %s", source.Name), err)
	}
	if role == nil {
		names := c.availableRoleNames(ctx, source)
		if len(names) == 0 {
			return nil, fmt.Errorf("role %q not found in tenant %s", roleName, source.Name)
		}
		return nil, fmt.Errorf("role %q not found in tenant %s (available: %s)",
			roleName, source.Name, strings.Join(names, ", "))
	}
	if role.ID == "" {
		return nil, fmt.Errorf("role %q in tenant %s has no identifier", roleName, source.Name)
	}
	c.printer.Successf("Found role: %s (ID: %s)", role.Name, role.ID)

	rawScopes, err := source.Client.GetRoleScopes(ctx, role.ID)
	if err != nil {
		return nil, describeErr(fmt.Sprintf("failed to fetch scopes for role %q", role.Name), err)
	}
	names, skipped := api.ExtractScopeNames(rawScopes)
	if len(skipped) > 0 {
		c.log.Warn("scope entries without a recognizable identifier were kept raw only",
			zap.Int("skipped", len(skipped)))
	}
	if names == nil {
		names = []string{}
	}
	if rawScopes == nil {
		rawScopes = []json.RawMessage{}
	}
	c.printer.Successf("Captured %d permission scopes", len(names))
	if c.Verbose {
		for _, name := range names {
			c.printer.Mutedf("   • %s", name)
		}
	}

	return &RoleDefinition{
		Name:        role.Name,
		Description: role.Description,
		Scopes:      names,
		RawScopes:   rawScopes,
	}, nil
}

func (c *Cloner) availableRoleNames(ctx context.Context, source Target) []string {
	roles, err := source.Client.ListRoles(ctx)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}

// CloneTo applies the definition to one target: replace the scope set
// when a role of that name already exists, otherwise create the role
// and then apply the scopes.
func (c *Cloner) CloneTo(ctx context.Context, target Target, def *RoleDefinition) Result {
	c.printer.Printf("\nCloning %q → %s\n", def.Name, target.Name)

	existing, err := target.Client.GetRoleByName(ctx, def.Name)
	if err != nil {
		return c.failed(target, describeErr("failed to look up role", err))
	}

	if existing != nil {
		c.printer.Warnf("role %q already exists in %s (ID: %s), replacing its scopes",
			def.Name, target.Name, existing.ID)
		if c.DryRun {
			c.printer.Infof("[dry-run] would update %d scopes on the existing role", len(def.Scopes))
			return Result{Tenant: target.Name, Action: ActionWouldUpdate}
		}
		if err := target.Client.UpdateRoleScopes(ctx, existing.ID, def.Scopes); err != nil {
			return c.failed(target, describeErr("failed to update scopes", err))
		}
		c.printer.Successf("Updated scopes on existing role")
		return Result{Tenant: target.Name, Action: ActionUpdated}
	}

	if c.DryRun {
		c.printer.Infof("[dry-run] would create role %q with %d scopes", def.Name, len(def.Scopes))
		return Result{Tenant: target.Name, Action: ActionWouldCreate}
	}

	created, err := target.Client.CreateRole(ctx, def.Name, def.Description)
	if err != nil {
		return c.failed(target, describeErr("failed to create role", err))
	}
	if created.ID == "" {
		return c.failed(target, fmt.Errorf("created role came back without an identifier"))
	}
	c.printer.Successf("Created role (ID: %s)", created.ID)

	if err := target.Client.UpdateRoleScopes(ctx, created.ID, def.Scopes); err != nil {
		c.printer.Warnf("role was created but applying scopes failed, an empty role remains in %s", target.Name)
		return c.failed(target, describeErr("failed to apply scopes to new role", err))
	}
	c.printer.Successf("Applied %d permission scopes", len(def.Scopes))
	return Result{Tenant: target.Name, Action: ActionCreated}
}

func (c *Cloner) failed(target Target, err error) Result {
	return Result{Tenant: target.Name, Action: ActionFailed, Err: err}
}

// Run clones the definition to every target in order.
func (c *Cloner) Run(ctx context.Context, targets []Target, def *RoleDefinition) []Result {
	results := make([]Result, 0, len(targets))
	for _, target := range targets {
		result := c.CloneTo(ctx, target, def)
		if result.Err != nil {
			c.printer.Errorf("%s: %v", target.Name, result.Err)
			c.log.Error("clone failed",
				zap.String("tenant", target.Name),
				zap.Error(result.Err))
		}
		results = append(results, result)
	}
	return results
}

// Summarize renders the per-target outcome block and returns the
// number of failed targets.
func (c *Cloner) Summarize(results []Result) int {
	banner := strings.Repeat("═", 60)
	c.printer.Println()
	c.printer.Mutedf("%s", banner)
	c.printer.Titlef("  RESULTS SUMMARY")
	c.printer.Mutedf("%s", banner)

	succeeded, failed := 0, 0
	for _, r := range results {
		if r.OK() {
			succeeded++
			c.printer.Successf("%s: %s", r.Tenant, r.Action)
		} else {
			failed++
			c.printer.Errorf("%s: %v", r.Tenant, r.Err)
		}
	}
	c.printer.Printf("\n  %d succeeded, %d failed out of %d target(s)\n", succeeded, failed, len(results))
	return failed
}

// describeErr prefixes err with its HTTP classification so per-target
// messages read as actionable failures.
func describeErr(msg string, err error) error {
	switch {
	case api.IsAuth(err):
		return fmt.Errorf("%s: authentication rejected: %w", msg, err)
	case api.IsNotFound(err):
		return fmt.Errorf("%s: not found: %w", msg, err)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
