package clone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"roleclone/internal/api"
	"roleclone/internal/ui"
)

// fakeTenant is an in-memory roles API for one tenant.
type fakeTenant struct {
	mu     sync.Mutex
	nextID int
	roles  []fakeRole
	scopes map[string][]any

	gets  int
	posts int
	puts  int

	failStatus int // non-zero: every request fails with this status
	failPut    int // non-zero: PUT requests fail with this status
	failPost   int // non-zero: POST requests fail with this status
}

type fakeRole struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (f *fakeTenant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failStatus != 0 {
		http.Error(w, `{"message": "induced failure"}`, f.failStatus)
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/authz2/v1/roles/":
		f.gets++
		writeJSON(w, map[string]any{"count": len(f.roles), "roles": f.roles})

	case r.Method == http.MethodPost && path == "/authz2/v1/roles/":
		if f.failPost != 0 {
			http.Error(w, `{"message": "create rejected"}`, f.failPost)
			return
		}
		f.posts++
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.nextID++
		role := fakeRole{ID: fmt.Sprintf("r-%d", f.nextID), Name: body.Name, Description: body.Description}
		f.roles = append(f.roles, role)
		writeJSON(w, role)

	case r.Method == http.MethodGet && strings.HasSuffix(path, "/scopes"):
		f.gets++
		writeJSON(w, map[string]any{"scopes": f.scopes[scopePathID(path)]})

	case r.Method == http.MethodPut && strings.HasSuffix(path, "/scopes"):
		if f.failPut != 0 {
			http.Error(w, `{"message": "scope update rejected"}`, f.failPut)
			return
		}
		f.puts++
		var body struct {
			ScopeNames []string `json:"scope_names"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		entries := make([]any, len(body.ScopeNames))
		for i, s := range body.ScopeNames {
			entries[i] = s
		}
		if f.scopes == nil {
			f.scopes = make(map[string][]any)
		}
		f.scopes[scopePathID(path)] = entries
		writeJSON(w, map[string]any{"scopes": entries})

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeTenant) counts() (gets, posts, puts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, f.posts, f.puts
}

func (f *fakeTenant) scopesFor(id string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scopes[id]
}

func scopePathID(path string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, "/authz2/v1/roles/"), "/scopes")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestTarget(t *testing.T, name string, f *fakeTenant) Target {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return Target{Name: name, Client: api.NewClient(srv.URL, "test-key")}
}

func newTestCloner() (*Cloner, *bytes.Buffer) {
	var buf bytes.Buffer
	printer := ui.NewPrinter(&buf, ui.NewStyles(ui.LightTheme()))
	return New(printer, zap.NewNop()), &buf
}

func TestFetchDefinition(t *testing.T) {
	source := &fakeTenant{
		roles: []fakeRole{{ID: "r-1", Name: "Field Tech", Description: "Handles devices"}},
		scopes: map[string][]any{
			"r-1": {
				"device:read",
				map[string]any{"scope": "device:write"},
				map[string]any{"weird": true},
			},
		},
	}
	cloner, _ := newTestCloner()

	def, err := cloner.FetchDefinition(context.Background(), newTestTarget(t, "src", source), "field tech")
	if err != nil {
		t.Fatalf("FetchDefinition: %v", err)
	}
	if def.Name != "Field Tech" {
		t.Errorf("Name=%q", def.Name)
	}
	if def.Description != "Handles devices" {
		t.Errorf("Description=%q", def.Description)
	}
	if diff := cmp.Diff([]string{"device:read", "device:write"}, def.Scopes); diff != "" {
		t.Errorf("scopes mismatch (-want +got):\n%s", diff)
	}
	if len(def.RawScopes) != 3 {
		t.Errorf("RawScopes len=%d, want 3 (unrecognized entries kept raw)", len(def.RawScopes))
	}
}

func TestFetchDefinition_MissingRole(t *testing.T) {
	source := &fakeTenant{roles: []fakeRole{{ID: "r-1", Name: "Admin"}}}
	cloner, _ := newTestCloner()

	_, err := cloner.FetchDefinition(context.Background(), newTestTarget(t, "src", source), "Ghost")
	if err == nil {
		t.Fatal("expected error for missing role")
	}
	if !strings.Contains(err.Error(), "Admin") {
		t.Errorf("error should list available roles, got: %v", err)
	}
}

func TestCloneTo_CreatesAndApplies(t *testing.T) {
	target := &fakeTenant{}
	cloner, _ := newTestCloner()
	def := &RoleDefinition{Name: "Field Tech", Description: "d", Scopes: []string{"a", "b"}}

	res := cloner.CloneTo(context.Background(), newTestTarget(t, "acme-east", target), def)
	if res.Err != nil {
		t.Fatalf("CloneTo: %v", res.Err)
	}
	if res.Action != ActionCreated {
		t.Errorf("Action=%q, want %q", res.Action, ActionCreated)
	}
	if _, posts, puts := target.counts(); posts != 1 || puts != 1 {
		t.Errorf("posts=%d puts=%d, want 1 and 1", posts, puts)
	}
	if got := target.scopesFor("r-1"); len(got) != 2 {
		t.Errorf("applied scopes=%v, want 2 entries", got)
	}
}

func TestCloneTo_UpdatesExisting(t *testing.T) {
	// Same role name in a different case must hit the update path.
	target := &fakeTenant{roles: []fakeRole{{ID: "r-9", Name: "FIELD TECH"}}}
	cloner, _ := newTestCloner()
	def := &RoleDefinition{Name: "Field Tech", Scopes: []string{"a", "b"}}

	res := cloner.CloneTo(context.Background(), newTestTarget(t, "acme-east", target), def)
	if res.Err != nil {
		t.Fatalf("CloneTo: %v", res.Err)
	}
	if res.Action != ActionUpdated {
		t.Errorf("Action=%q, want %q", res.Action, ActionUpdated)
	}
	if _, posts, _ := target.counts(); posts != 0 {
		t.Errorf("posts=%d, want 0 for an existing role", posts)
	}
	if got := target.scopesFor("r-9"); len(got) != 2 {
		t.Errorf("applied scopes=%v, want 2 entries", got)
	}
}

func TestCloneTo_DryRun(t *testing.T) {
	def := &RoleDefinition{Name: "Field Tech", Scopes: []string{"a"}}

	empty := &fakeTenant{}
	cloner, _ := newTestCloner()
	cloner.DryRun = true

	res := cloner.CloneTo(context.Background(), newTestTarget(t, "fresh", empty), def)
	if res.Action != ActionWouldCreate {
		t.Errorf("Action=%q, want %q", res.Action, ActionWouldCreate)
	}

	occupied := &fakeTenant{roles: []fakeRole{{ID: "r-1", Name: "Field Tech"}}}
	res = cloner.CloneTo(context.Background(), newTestTarget(t, "taken", occupied), def)
	if res.Action != ActionWouldUpdate {
		t.Errorf("Action=%q, want %q", res.Action, ActionWouldUpdate)
	}

	for _, f := range []*fakeTenant{empty, occupied} {
		gets, posts, puts := f.counts()
		if posts != 0 || puts != 0 {
			t.Errorf("dry run made mutating calls: posts=%d puts=%d", posts, puts)
		}
		if gets == 0 {
			t.Error("dry run should still perform lookups")
		}
	}
}

func TestCloneTo_ScopeApplyFailure(t *testing.T) {
	target := &fakeTenant{failPut: http.StatusInternalServerError}
	cloner, _ := newTestCloner()
	def := &RoleDefinition{Name: "Field Tech", Scopes: []string{"a"}}

	res := cloner.CloneTo(context.Background(), newTestTarget(t, "acme-east", target), def)
	if res.Err == nil {
		t.Fatal("expected scope apply failure")
	}
	if res.Action != ActionFailed {
		t.Errorf("Action=%q, want %q", res.Action, ActionFailed)
	}
	if !strings.Contains(res.Err.Error(), "apply scopes") {
		t.Errorf("error should mention the apply step, got: %v", res.Err)
	}
	if _, posts, _ := target.counts(); posts != 1 {
		t.Errorf("posts=%d, the role should have been created before the failure", posts)
	}
}

func TestCloneTo_AuthFailure(t *testing.T) {
	target := &fakeTenant{failStatus: http.StatusUnauthorized}
	cloner, _ := newTestCloner()
	def := &RoleDefinition{Name: "Field Tech"}

	res := cloner.CloneTo(context.Background(), newTestTarget(t, "locked", target), def)
	if res.Err == nil {
		t.Fatal("expected auth failure")
	}
	if !strings.Contains(res.Err.Error(), "authentication") {
		t.Errorf("error should be classified as an auth failure, got: %v", res.Err)
	}
}

func TestRun_ContinuesPastFailures(t *testing.T) {
	okA := &fakeTenant{}
	bad := &fakeTenant{failStatus: http.StatusForbidden}
	okB := &fakeTenant{}
	targets := []Target{
		newTestTarget(t, "a", okA),
		newTestTarget(t, "b", bad),
		newTestTarget(t, "c", okB),
	}
	cloner, buf := newTestCloner()
	def := &RoleDefinition{Name: "Field Tech", Scopes: []string{"x"}}

	results := cloner.Run(context.Background(), targets, def)
	if len(results) != 3 {
		t.Fatalf("results=%d, want 3", len(results))
	}
	if !results[0].OK() || results[1].OK() || !results[2].OK() {
		t.Errorf("unexpected outcomes: %+v", results)
	}
	if _, posts, _ := okB.counts(); posts != 1 {
		t.Error("target after the failure was not processed")
	}

	if failed := cloner.Summarize(results); failed != 1 {
		t.Errorf("Summarize=%d, want 1", failed)
	}
	out := buf.String()
	if !strings.Contains(out, "RESULTS SUMMARY") {
		t.Error("summary banner missing")
	}
	if !strings.Contains(out, "2 succeeded, 1 failed out of 3 target(s)") {
		t.Errorf("summary counts missing:\n%s", out)
	}
}
