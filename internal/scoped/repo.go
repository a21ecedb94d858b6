// Package scoped funnels every data access through a tenant-scoping layer.
// Callers never hand the repository a project filter; the repository injects
// the active project id from the security context on every operation, so an
// attacker-supplied id in a request body or query can never widen a query.
package scoped

import (
	"context"
	"errors"
	"fmt"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
)

// TenantField is the column that carries the owning project id on every
// scoped resource.
const TenantField = "project_id"

var (
	// ErrNotFound reports a record that does not exist in any project.
	ErrNotFound = errors.New("scoped: record not found")
	// ErrOwnershipViolation reports a record that exists but belongs to a
	// project outside the caller's scope.
	ErrOwnershipViolation = errors.New("scoped: record belongs to another project")
	// ErrStorage wraps backend failures so callers can distinguish them
	// from access denials.
	ErrStorage = errors.New("scoped: storage failure")
)

// Filter selects records by equality on named fields.
type Filter map[string]any

// Record is one stored row keyed by field name.
type Record map[string]any

// Collection is the unscoped storage contract for one resource kind. The
// repository is the only caller; handlers never see a Collection.
type Collection interface {
	Kind() string
	FindMany(ctx context.Context, filter Filter) ([]Record, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Create(ctx context.Context, rec Record) (Record, error)
	FindUnique(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, id string, changes Record) (Record, error)
	Delete(ctx context.Context, id string) error
}

// Repository applies one security context's project scope to a Collection.
type Repository struct {
	col   Collection
	scope auth.SecurityContext
}

// ForScope binds a collection to the caller's scope.
func ForScope(col Collection, scope auth.SecurityContext) *Repository {
	return &Repository{col: col, scope: scope}
}

// Kind names the underlying resource kind.
func (r *Repository) Kind() string { return r.col.Kind() }

// FindMany lists records in the active project. Any project filter supplied
// by the caller is overwritten with the scope's project id.
func (r *Repository) FindMany(ctx context.Context, filter Filter) ([]Record, error) {
	recs, err := r.col.FindMany(ctx, r.scoped(filter))
	if err != nil {
		return nil, fmt.Errorf("%w: %s find: %w", ErrStorage, r.col.Kind(), err)
	}
	return recs, nil
}

// Count counts records in the active project.
func (r *Repository) Count(ctx context.Context, filter Filter) (int64, error) {
	n, err := r.col.Count(ctx, r.scoped(filter))
	if err != nil {
		return 0, fmt.Errorf("%w: %s count: %w", ErrStorage, r.col.Kind(), err)
	}
	return n, nil
}

// Create inserts a record into the active project. A project id present in
// the input is silently replaced with the scope's project id, and a record
// id is discarded so a create can never address an existing row.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	stamped := make(Record, len(rec)+1)
	for k, v := range rec {
		if k == "id" {
			continue
		}
		stamped[k] = v
	}
	stamped[TenantField] = r.scope.ActiveProjectID
	out, err := r.col.Create(ctx, stamped)
	if err != nil {
		return nil, fmt.Errorf("%w: %s create: %w", ErrStorage, r.col.Kind(), err)
	}
	return out, nil
}

// FindUnique fetches one record by id and verifies it belongs to the active
// project before returning it.
func (r *Repository) FindUnique(ctx context.Context, id string) (Record, error) {
	rec, err := r.col.FindUnique(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s get: %w", ErrStorage, r.col.Kind(), err)
	}
	if err := r.verifyOwnership(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update verifies ownership, then applies changes. The project id can never
// be changed through an update.
func (r *Repository) Update(ctx context.Context, id string, changes Record) (Record, error) {
	if _, err := r.FindUnique(ctx, id); err != nil {
		return nil, err
	}
	clean := make(Record, len(changes))
	for k, v := range changes {
		if k == TenantField || k == "id" {
			continue
		}
		clean[k] = v
	}
	out, err := r.col.Update(ctx, id, clean)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s update: %w", ErrStorage, r.col.Kind(), err)
	}
	return out, nil
}

// Delete verifies ownership, then removes the record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.FindUnique(ctx, id); err != nil {
		return err
	}
	if err := r.col.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %s delete: %w", ErrStorage, r.col.Kind(), err)
	}
	return nil
}

func (r *Repository) scoped(filter Filter) Filter {
	out := make(Filter, len(filter)+1)
	for k, v := range filter {
		out[k] = v
	}
	out[TenantField] = r.scope.ActiveProjectID
	return out
}

func (r *Repository) verifyOwnership(rec Record) error {
	owner, _ := rec[TenantField].(string)
	if owner == "" || owner != r.scope.ActiveProjectID {
		return ErrOwnershipViolation
	}
	return nil
}

// Data is the set of collections behind the scoping layer. Handlers obtain
// repositories from it and never touch raw collections.
type Data struct {
	collections map[string]Collection
}

// NewData registers collections by kind.
func NewData(cols ...Collection) (*Data, error) {
	d := &Data{collections: make(map[string]Collection, len(cols))}
	for _, col := range cols {
		if col == nil || col.Kind() == "" {
			return nil, errors.New("scoped: collection without a kind")
		}
		if _, dup := d.collections[col.Kind()]; dup {
			return nil, fmt.Errorf("scoped: duplicate collection kind %q", col.Kind())
		}
		d.collections[col.Kind()] = col
	}
	return d, nil
}

// Repo returns a repository for kind bound to the given scope. A scope that
// does not cover its own active project (the zero value included) never
// reaches a collection.
func (d *Data) Repo(kind string, scope auth.SecurityContext) (*Repository, error) {
	col, ok := d.collections[kind]
	if !ok {
		return nil, fmt.Errorf("scoped: unknown collection kind %q", kind)
	}
	if !scope.CanAccess(scope.ActiveProjectID) {
		return nil, errors.New("scoped: security context not resolved")
	}
	return ForScope(col, scope), nil
}
