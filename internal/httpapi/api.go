// Package httpapi is the HTTP boundary of the authorization engine. Every
// request passes identity verification, principal resolution, rate limiting,
// security context construction and module permission checks before any data
// access runs, and all data access goes through project-scoped repositories.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/obs"
	"github.com/LuisFaxas/faxas-property-sub000/internal/ratelimit"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
)

// ReadyProbe checks readiness (for example pinging the database).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// AuditTrail is what the HTTP layer needs from the audit logger: decision
// records plus free-form action events.
type AuditTrail interface {
	auth.DecisionSink
	Event(ctx context.Context, principalID, projectID, action string, detail map[string]any)
}

// moduleRoute binds a URL segment to a permission module and a storage kind.
type moduleRoute struct {
	segment string
	module  auth.Module
	kind    string
	label   string
}

var moduleRoutes = []moduleRoute{
	{"tasks", auth.ModuleTasks, "tasks", "Task"},
	{"schedule", auth.ModuleSchedule, "schedule_events", "Schedule event"},
	{"budget", auth.ModuleBudget, "budget_items", "Budget item"},
	{"procurement", auth.ModuleProcurement, "procurement_items", "Procurement item"},
	{"contacts", auth.ModuleContacts, "contacts", "Contact"},
	{"proposals", auth.ModuleProposals, "proposals", "Proposal"},
	{"change-orders", auth.ModuleChangeOrders, "change_orders", "Change order"},
}

// Deps carries everything the API needs; New validates the required ones.
type Deps struct {
	Verifier   auth.Verifier
	Resolver   *auth.Resolver
	Builder    *auth.ContextBuilder
	Perms      *auth.PermissionResolver
	Store      auth.Store
	Data       *scoped.Data
	Limiter    *ratelimit.Limiter
	Audit      AuditTrail
	ReadyProbe ReadyProbe
	Version    string

	// ThrottleRPS and ThrottleBurst bound the per-IP edge throttle. Zero
	// values fall back to defaults suitable for development.
	ThrottleRPS   float64
	ThrottleBurst int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	verifier  auth.Verifier
	resolver  *auth.Resolver
	builder   *auth.ContextBuilder
	perms     *auth.PermissionResolver
	authStore auth.Store
	data      *scoped.Data
	limiter   *ratelimit.Limiter
	decisions AuditTrail

	throttleRPS   float64
	throttleBurst int
}

func New(deps Deps) (*API, error) {
	switch {
	case deps.Verifier == nil:
		return nil, errors.New("httpapi: verifier is required")
	case deps.Resolver == nil:
		return nil, errors.New("httpapi: resolver is required")
	case deps.Builder == nil:
		return nil, errors.New("httpapi: context builder is required")
	case deps.Perms == nil:
		return nil, errors.New("httpapi: permission resolver is required")
	case deps.Store == nil:
		return nil, errors.New("httpapi: auth store is required")
	case deps.Data == nil:
		return nil, errors.New("httpapi: data collections are required")
	case deps.Limiter == nil:
		return nil, errors.New("httpapi: rate limiter is required")
	}

	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: deps.ReadyProbe,
		version:    deps.Version,
		verifier:   deps.Verifier,
		resolver:   deps.Resolver,
		builder:    deps.Builder,
		perms:      deps.Perms,
		authStore:  deps.Store,
		data:       deps.Data,
		limiter:    deps.Limiter,
		decisions:  deps.Audit,

		throttleRPS:   deps.ThrottleRPS,
		throttleBurst: deps.ThrottleBurst,
	}
	if a.throttleRPS <= 0 {
		a.throttleRPS = 50
	}
	if a.throttleBurst <= 0 {
		a.throttleBurst = 100
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// projects visible to the caller
	a.mux.HandleFunc("GET /v1/projects", a.ListProjects)

	// scoped resource modules
	for _, route := range moduleRoutes {
		base := "/v1/" + route.segment
		a.mux.HandleFunc("GET "+base, a.handleList(route))
		a.mux.HandleFunc("POST "+base, a.handleCreate(route))
		a.mux.HandleFunc("GET "+base+"/{id}", a.handleGet(route))
		a.mux.HandleFunc("PATCH "+base+"/{id}", a.handlePatch(route))
		a.mux.HandleFunc("DELETE "+base+"/{id}", a.handleDelete(route))
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	return a, nil
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.Authenticate(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = Throttle(h, a.throttleRPS, a.throttleBurst)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "faxas-property-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"name":    "faxas-property-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
