package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/LuisFaxas/faxas-property-sub000/internal/audit"
	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/ratelimit"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
	"github.com/LuisFaxas/faxas-property-sub000/internal/store/memory"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testIssuer   = "faxas-property"
	testAudience = "faxas-property-api"
)

type testEnv struct {
	api     *API
	handler http.Handler
	store   *memory.Store
	cols    map[string]*memory.Collection
	sink    *audit.MemorySink
	logger  *audit.Logger

	adminID      string
	staffID      string
	contractorID string
	viewerID     string
	projectA     string
	projectB     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	env := &testEnv{store: store, cols: make(map[string]*memory.Collection)}

	env.projectA = store.AddProject(auth.Project{ID: "p1", Name: "Miami Duplex"})
	env.projectB = store.AddProject(auth.Project{ID: "p2", Name: "Harbor House"})

	env.adminID = store.AddPrincipal(auth.Principal{ID: "u1", Subject: "sub-admin", Email: "owner@faxas.example", Role: auth.RoleAdmin, Active: true})
	env.staffID = store.AddPrincipal(auth.Principal{ID: "u2", Subject: "sub-staff", Email: "pm@faxas.example", Role: auth.RoleStaff, Active: true})
	env.contractorID = store.AddPrincipal(auth.Principal{ID: "u3", Subject: "sub-contractor", Email: "gc@faxas.example", Role: auth.RoleContractor, Active: true})
	env.viewerID = store.AddPrincipal(auth.Principal{ID: "u4", Subject: "sub-viewer", Email: "guest@faxas.example", Role: auth.RoleViewer, Active: true})

	store.AddMembership(auth.Membership{PrincipalID: env.adminID, ProjectID: env.projectA, Role: auth.RoleAdmin})
	store.AddMembership(auth.Membership{PrincipalID: env.staffID, ProjectID: env.projectA, Role: auth.RoleStaff})
	store.AddMembership(auth.Membership{PrincipalID: env.contractorID, ProjectID: env.projectA, Role: auth.RoleContractor})
	store.AddMembership(auth.Membership{PrincipalID: env.viewerID, ProjectID: env.projectA, Role: auth.RoleViewer})
	store.AddMembership(auth.Membership{PrincipalID: env.adminID, ProjectID: env.projectB, Role: auth.RoleAdmin})

	env.sink = audit.NewMemorySink()
	logger, err := audit.NewLogger(env.sink, 1024)
	if err != nil {
		t.Fatal(err)
	}
	env.logger = logger
	t.Cleanup(func() { _ = logger.Close() })

	verifier, err := auth.NewJWTVerifier([]byte(testSecret), testIssuer, testAudience)
	if err != nil {
		t.Fatal(err)
	}
	resolver, err := auth.NewResolver(store, auth.WithResolverSink(logger))
	if err != nil {
		t.Fatal(err)
	}
	builder, err := auth.NewContextBuilder(resolver)
	if err != nil {
		t.Fatal(err)
	}
	perms, err := auth.NewPermissionResolver(store, logger)
	if err != nil {
		t.Fatal(err)
	}
	limiter, err := ratelimit.New(ratelimit.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}

	var cols []scoped.Collection
	for _, kind := range memory.ResourceKinds {
		col := memory.NewCollection(kind)
		env.cols[kind] = col
		cols = append(cols, col)
	}
	data, err := scoped.NewData(cols...)
	if err != nil {
		t.Fatal(err)
	}

	api, err := New(Deps{
		Verifier: verifier,
		Resolver: resolver,
		Builder:  builder,
		Perms:    perms,
		Store:    store,
		Data:     data,
		Limiter:  limiter,
		Audit:    logger,
		Version:  "test",
		// Keep the edge throttle out of the way so the per-principal
		// limiter is what the 429 tests exercise.
		ThrottleRPS:   100000,
		ThrottleBurst: 100000,
	})
	if err != nil {
		t.Fatal(err)
	}
	env.api = api
	env.handler = api.Handler()
	return env
}

func (e *testEnv) seed(t *testing.T, kind, projectID string, fields scoped.Record) string {
	t.Helper()
	rec := scoped.Record{scoped.TenantField: projectID}
	for k, v := range fields {
		rec[k] = v
	}
	created, err := e.cols[kind].Create(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := created["id"].(string)
	return id
}

func mintToken(t *testing.T, subject string, mutate func(jwt.MapClaims)) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iss": testIssuer,
		"aud": testAudience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHealthEndpointsArePublic(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rec := env.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
}

func TestMissingCredentialIsGeneric401(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/tasks", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Success || resp.Error != "Authentication failed" {
		t.Fatalf("envelope = %+v", resp)
	}
}

func TestVerificationFailuresCollapseToOne401(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]string{
		"garbage": "not-a-token",
		"expired": mintToken(t, "sub-staff", func(c jwt.MapClaims) {
			c["iat"] = time.Now().Add(-2 * time.Hour).Unix()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
		}),
		"wrong audience": mintToken(t, "sub-staff", func(c jwt.MapClaims) {
			c["aud"] = "another-api"
		}),
		"wrong issuer": mintToken(t, "sub-staff", func(c jwt.MapClaims) {
			c["iss"] = "someone-else"
		}),
		"no subject": mintToken(t, "", nil),
	}
	for name, token := range cases {
		rec := env.do(t, http.MethodGet, "/v1/tasks", token, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, rec.Code)
		}
		resp := decodeEnvelope(t, rec)
		if resp.Error != "Authentication failed" {
			t.Fatalf("%s: error = %q, leaks failure detail", name, resp.Error)
		}
	}
}

func TestUnknownSubjectIs401(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/tasks", mintToken(t, "sub-ghost", nil), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestContractorBudgetListIsRedacted(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "budget_items", env.projectA, scoped.Record{
		"name":            "Foundation",
		"estimated_total": 42000.0,
		"variance":        -1500.0,
	})

	rec := env.do(t, http.MethodGet, "/v1/budget", mintToken(t, "sub-contractor", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Foundation") {
		t.Fatalf("item missing from %s", body)
	}
	for _, field := range []string{"estimated_total", "variance"} {
		if strings.Contains(body, field) {
			t.Fatalf("%s leaked to contractor: %s", field, body)
		}
	}

	// Staff sees the full record.
	rec = env.do(t, http.MethodGet, "/v1/budget", mintToken(t, "sub-staff", nil), "")
	if !strings.Contains(rec.Body.String(), "estimated_total") {
		t.Fatalf("staff response missing cost fields: %s", rec.Body.String())
	}
}

func TestCrossProjectRecordFetchIsDenied(t *testing.T) {
	env := newTestEnv(t)
	foreign := env.seed(t, "tasks", env.projectB, scoped.Record{"title": "Other project task"})

	rec := env.do(t, http.MethodGet, "/v1/tasks/"+foreign, mintToken(t, "sub-contractor", nil), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error != "Access to this record is denied" {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestContractorCannotWriteProcurement(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/procurement", mintToken(t, "sub-contractor", nil),
		`{"name":"Rebar order","vendor":"ACME Steel"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error != "Insufficient role privileges" {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestAllFalseGrantDeniesModuleEntirely(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddGrant(auth.ModuleGrant{
		PrincipalID: env.contractorID,
		ProjectID:   env.projectA,
		Module:      auth.ModuleTasks,
	})

	rec := env.do(t, http.MethodGet, "/v1/tasks", mintToken(t, "sub-contractor", nil), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error != "No access to this module" {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestViewerCannotSeeProposals(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/proposals", mintToken(t, "sub-viewer", nil), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestNonMemberProjectIs403(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/tasks?projectId="+env.projectB, mintToken(t, "sub-contractor", nil), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error != "Not a member of this project" {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestStaleProjectIDFallsBackToFirstMembership(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "tasks", env.projectA, scoped.Record{"title": "Pour slab"})

	rec := env.do(t, http.MethodGet, "/v1/tasks?projectId=deleted-project", mintToken(t, "sub-contractor", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Pour slab") {
		t.Fatalf("fallback project data missing: %s", rec.Body.String())
	}
}

func TestCreateOverridesBodyProjectID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/tasks", mintToken(t, "sub-staff", nil),
		`{"title":"Frame walls","project_id":"`+env.projectB+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	data, _ := resp.Data.(map[string]any)
	if data["project_id"] != env.projectA {
		t.Fatalf("created record project = %v, want %s", data["project_id"], env.projectA)
	}
}

func TestCreateIgnoresBodyRecordID(t *testing.T) {
	env := newTestEnv(t)
	foreign := env.seed(t, "tasks", env.projectB, scoped.Record{"title": "Other project task"})

	rec := env.do(t, http.MethodPost, "/v1/tasks", mintToken(t, "sub-staff", nil),
		`{"title":"Frame walls","id":"`+foreign+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	data, _ := resp.Data.(map[string]any)
	if data["id"] == foreign {
		t.Fatal("create reused the caller-supplied record id")
	}

	kept, err := env.cols["tasks"].FindUnique(context.Background(), foreign)
	if err != nil {
		t.Fatalf("foreign record gone: %v", err)
	}
	if kept["title"] != "Other project task" || kept[scoped.TenantField] != env.projectB {
		t.Fatalf("foreign record rewritten: %+v", kept)
	}
}

func TestViewerRateLimit429WithRetryAfter(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, "sub-viewer", nil)
	limit := ratelimit.TierFor(auth.RoleViewer).Limit

	for i := int64(0); i < limit; i++ {
		if rec := env.do(t, http.MethodGet, "/v1/tasks", token, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d: %s", i+1, rec.Code, rec.Body.String())
		}
	}
	rec := env.do(t, http.MethodGet, "/v1/tasks", token, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("429 without Retry-After header")
	}
	resp := decodeEnvelope(t, rec)
	if !strings.Contains(resp.Error, "Rate limit exceeded") {
		t.Fatalf("error = %q", resp.Error)
	}

	// Another principal keeps an independent counter.
	if other := env.do(t, http.MethodGet, "/v1/tasks", mintToken(t, "sub-staff", nil), ""); other.Code != http.StatusOK {
		t.Fatalf("staff status = %d after viewer hit the limit", other.Code)
	}
}

func TestListProjects(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/projects", mintToken(t, "sub-admin", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Miami Duplex", "Harbor House"} {
		if !strings.Contains(body, want) {
			t.Fatalf("%q missing from %s", want, body)
		}
	}
}

func TestAuditTrailRecordsDecisions(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/v1/tasks", mintToken(t, "sub-contractor", nil), "")
	env.do(t, http.MethodPost, "/v1/procurement", mintToken(t, "sub-contractor", nil), `{"name":"x"}`)
	env.do(t, http.MethodGet, "/v1/tasks", "bad-token", "")

	if err := env.logger.Close(); err != nil {
		t.Fatal(err)
	}
	recs := env.sink.Records()

	var allowed, denied, credential bool
	for _, r := range recs {
		switch {
		case r.Allowed != nil && *r.Allowed && r.Module == "TASKS":
			allowed = true
		case r.Allowed != nil && !*r.Allowed && r.Module == "PROCUREMENT":
			denied = true
		case r.Allowed != nil && !*r.Allowed && strings.Contains(r.Reason, "credential rejected"):
			credential = true
		}
	}
	if !allowed || !denied || !credential {
		t.Fatalf("audit trail incomplete: allowed=%t denied=%t credential=%t (%d records)",
			allowed, denied, credential, len(recs))
	}
}

func TestMutationsEmitAuditEvents(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, "sub-staff", nil)

	created := env.do(t, http.MethodPost, "/v1/tasks", token, `{"title":"Pour slab"}`)
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d", created.Code)
	}
	resp := decodeEnvelope(t, created)
	data, _ := resp.Data.(map[string]any)
	id, _ := data["id"].(string)

	if rec := env.do(t, http.MethodPatch, "/v1/tasks/"+id, token, `{"status":"done"}`); rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodDelete, "/v1/tasks/"+id, token, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}

	if err := env.logger.Close(); err != nil {
		t.Fatal(err)
	}
	var actions []string
	for _, r := range env.sink.Records() {
		if r.Action != "" {
			actions = append(actions, r.Action)
		}
	}
	for _, want := range []string{"Task created successfully", "Task updated successfully", "Task deleted successfully"} {
		found := false
		for _, a := range actions {
			if a == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("action %q missing from %v", want, actions)
		}
	}
}

func TestUnknownRouteIs404Envelope(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/invoices", mintToken(t, "sub-staff", nil), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Success {
		t.Fatal("404 with success=true")
	}
}
