// Package audit appends a JSON-lines trail of the runs and mutations
// the tool performs against tenant APIs. Each process run gets a run ID
// so the events of one invocation can be correlated later.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType labels one audit record.
type EventType string

const (
	// Run lifecycle
	EventRunStart EventType = "run_start"
	EventRunEnd   EventType = "run_end"

	// Source reads
	EventRoleFetched  EventType = "role_fetched"
	EventRoleExported EventType = "role_exported"

	// Target mutations, one per target whether it succeeded or not
	EventTargetResult EventType = "target_result"
)

// Event is one line in the audit log.
type Event struct {
	Timestamp int64     `json:"ts"` // Unix milliseconds
	RunID     string    `json:"run"`
	Type      EventType `json:"event"`
	Tenant    string    `json:"tenant,omitempty"`
	Role      string    `json:"role,omitempty"`
	Action    string    `json:"action,omitempty"`
	Path      string    `json:"path,omitempty"`
	Targets   []string  `json:"targets,omitempty"`
	Scopes    int       `json:"scopes,omitempty"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	DryRun    bool      `json:"dry_run"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Recorder appends events to a log file. A nil Recorder and a Recorder
// opened with an empty path are both silent no-ops, so callers never
// need to branch on whether auditing is enabled.
type Recorder struct {
	mu    sync.Mutex
	file  *os.File
	runID string
}

// Open creates or appends to the audit log at path. An empty path
// returns a disabled recorder.
func Open(path string) (*Recorder, error) {
	if path == "" {
		return &Recorder{}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Recorder{file: file, runID: uuid.NewString()}, nil
}

// RunID identifies this process run in every recorded event.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Enabled reports whether events are being written.
func (r *Recorder) Enabled() bool {
	return r != nil && r.file != nil
}

// Record writes one event. Disabled recorders drop it.
func (r *Recorder) Record(e Event) {
	if !r.Enabled() {
		return
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	e.RunID = r.runID

	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.file.Write(append(data, '\n'))
}

// Close closes the underlying file. Safe on disabled recorders.
func (r *Recorder) Close() error {
	if !r.Enabled() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.file.Close()
	r.file = nil
	return err
}

// =============================================================================
// CONVENIENCE METHODS - one per event the tool emits
// =============================================================================

// RunStart records the parameters a clone run was invoked with.
func (r *Recorder) RunStart(source, role string, targets []string, dryRun bool) {
	r.Record(Event{
		Type:    EventRunStart,
		Tenant:  source,
		Role:    role,
		Targets: targets,
		DryRun:  dryRun,
		Success: true,
	})
}

// RoleFetched records a successful read of the role from the source.
func (r *Recorder) RoleFetched(source, role string, scopes int) {
	r.Record(Event{
		Type:    EventRoleFetched,
		Tenant:  source,
		Role:    role,
		Scopes:  scopes,
		Success: true,
	})
}

// RoleExported records that the definition was written to a file.
func (r *Recorder) RoleExported(role, path string) {
	r.Record(Event{
		Type:    EventRoleExported,
		Role:    role,
		Path:    path,
		Success: true,
	})
}

// TargetResult records the outcome for one target tenant.
func (r *Recorder) TargetResult(tenant, role, action string, dryRun bool, err error) {
	e := Event{
		Type:    EventTargetResult,
		Tenant:  tenant,
		Role:    role,
		Action:  action,
		DryRun:  dryRun,
		Success: err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	r.Record(e)
}

// RunEnd records the final tally of a clone run.
func (r *Recorder) RunEnd(succeeded, failed int) {
	r.Record(Event{
		Type:      EventRunEnd,
		Succeeded: succeeded,
		Failed:    failed,
		Success:   failed == 0,
	})
}
