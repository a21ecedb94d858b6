package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/obs"
	"github.com/LuisFaxas/faxas-property-sub000/internal/redact"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
)

// requestCtx is everything a module handler resolves before touching data.
// ctx carries the principal and the built security scope for downstream
// consumers.
type requestCtx struct {
	ctx       context.Context
	principal *auth.Principal
	role      auth.Role
}

// authorize runs the full pre-data pipeline: principal from context, active
// project resolution, security context construction and the module
// permission check. One decision record is emitted per call, and the built
// scope is attached to the returned context.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, module auth.Module, intent auth.Intent) (requestCtx, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication failed")
		return requestCtx{}, false
	}

	scope, role, err := a.builder.Build(r.Context(), principal, requestedProject(r))
	if err != nil {
		translateError(w, err)
		return requestCtx{}, false
	}

	_, err = a.perms.Authorize(r.Context(), principal.ID, scope.ActiveProjectID, role, module, intent)
	obs.ObserveDecision(string(module), string(intent), err == nil)
	if err != nil {
		translateError(w, err)
		return requestCtx{}, false
	}

	return requestCtx{
		ctx:       auth.ContextWithScope(r.Context(), scope),
		principal: principal,
		role:      role,
	}, true
}

// requestedProject reads the client's project selection. Either source is
// advisory: membership resolution decides what the request actually gets.
func requestedProject(r *http.Request) string {
	if id := r.URL.Query().Get("projectId"); id != "" {
		return id
	}
	return r.Header.Get("X-Project-ID")
}

// repo binds the route's collection to the scope carried by the request
// context. The scope travels through context.Context so the repository can
// only ever see what authorize attached.
func (a *API) repo(rc requestCtx, route moduleRoute) (*scoped.Repository, error) {
	scope, ok := auth.ScopeFromContext(rc.ctx)
	if !ok {
		return nil, errors.New("httpapi: security scope missing from request context")
	}
	return a.data.Repo(route.kind, scope)
}

func (a *API) handleList(route moduleRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ok := a.authorize(w, r, route.module, auth.IntentRead)
		if !ok {
			return
		}
		repo, err := a.repo(rc, route)
		if err != nil {
			translateError(w, err)
			return
		}
		recs, err := repo.FindMany(rc.ctx, nil)
		if err != nil {
			translateError(w, err)
			return
		}
		recs = redact.ApplyAll(route.module, rc.role, recs)
		if recs == nil {
			recs = []scoped.Record{}
		}
		writeSuccess(w, http.StatusOK, map[string]any{
			"items": recs,
			"count": len(recs),
		})
	}
}

func (a *API) handleCreate(route moduleRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ok := a.authorize(w, r, route.module, auth.IntentWrite)
		if !ok {
			return
		}
		var payload map[string]any
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if len(payload) == 0 {
			writeError(w, http.StatusBadRequest, "Empty request body")
			return
		}
		repo, err := a.repo(rc, route)
		if err != nil {
			translateError(w, err)
			return
		}
		rec, err := repo.Create(rc.ctx, scoped.Record(payload))
		if err != nil {
			translateError(w, err)
			return
		}
		a.auditEvent(rc, route.label+" created successfully", rec)
		// Create responses echo the caller's own input and are never redacted.
		writeSuccess(w, http.StatusCreated, rec)
	}
}

func (a *API) handleGet(route moduleRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ok := a.authorize(w, r, route.module, auth.IntentRead)
		if !ok {
			return
		}
		repo, err := a.repo(rc, route)
		if err != nil {
			translateError(w, err)
			return
		}
		rec, err := repo.FindUnique(rc.ctx, r.PathValue("id"))
		if err != nil {
			translateError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, redact.Apply(route.module, rc.role, rec))
	}
}

func (a *API) handlePatch(route moduleRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ok := a.authorize(w, r, route.module, auth.IntentWrite)
		if !ok {
			return
		}
		var payload map[string]any
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if len(payload) == 0 {
			writeError(w, http.StatusBadRequest, "Empty request body")
			return
		}
		repo, err := a.repo(rc, route)
		if err != nil {
			translateError(w, err)
			return
		}
		rec, err := repo.Update(rc.ctx, r.PathValue("id"), scoped.Record(payload))
		if err != nil {
			translateError(w, err)
			return
		}
		a.auditEvent(rc, route.label+" updated successfully", rec)
		writeSuccess(w, http.StatusOK, rec)
	}
}

func (a *API) handleDelete(route moduleRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ok := a.authorize(w, r, route.module, auth.IntentWrite)
		if !ok {
			return
		}
		repo, err := a.repo(rc, route)
		if err != nil {
			translateError(w, err)
			return
		}
		id := r.PathValue("id")
		if err := repo.Delete(rc.ctx, id); err != nil {
			translateError(w, err)
			return
		}
		a.auditEvent(rc, route.label+" deleted successfully", scoped.Record{"id": id})
		writeSuccess(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
	}
}

func (a *API) auditEvent(rc requestCtx, action string, rec scoped.Record) {
	if a.decisions == nil {
		return
	}
	scope, _ := auth.ScopeFromContext(rc.ctx)
	detail := map[string]any{"request_id": requestIDFrom(rc.ctx)}
	if id, ok := rec["id"].(string); ok {
		detail["record_id"] = id
	}
	a.decisions.Event(rc.ctx, rc.principal.ID, scope.ActiveProjectID, action, detail)
}

// ListProjects returns the caller's project memberships with names attached.
func (a *API) ListProjects(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	memberships, err := a.resolver.Memberships(r.Context(), principal.ID)
	if err != nil {
		translateError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(memberships))
	for _, m := range memberships {
		item := map[string]any{
			"project_id": m.ProjectID,
			"role":       m.Role,
		}
		project, err := a.authStore.FindProject(r.Context(), m.ProjectID)
		if err == nil {
			item["name"] = project.Name
			item["status"] = project.Status
		} else if !errors.Is(err, auth.ErrNotFound) {
			translateError(w, err)
			return
		}
		items = append(items, item)
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}
