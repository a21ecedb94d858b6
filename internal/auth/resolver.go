package auth

import (
	"context"
	"errors"
	"strings"
)

// Resolver maps verified subjects to principals and principals to project
// memberships. It is read-only: resolution never provisions accounts or
// mutates membership state.
type Resolver struct {
	store       Store
	sink        DecisionSink
	adminBypass bool
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver)

// WithAdminBypass lets a principal whose global role is ADMIN act on a
// project without a membership row. Off by default; every bypass emits its
// own audit record so the rule stays explicit and observable.
func WithAdminBypass(enabled bool) ResolverOption {
	return func(r *Resolver) { r.adminBypass = enabled }
}

// WithResolverSink wires the audit sink used for bypass records.
func WithResolverSink(sink DecisionSink) ResolverOption {
	return func(r *Resolver) { r.sink = sink }
}

func NewResolver(store Store, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("auth: resolver requires a store")
	}
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolvePrincipal looks up the internal principal for a verified subject.
// A verified credential without a local account fails with
// ErrPrincipalNotFound; accounts are never auto-provisioned here.
func (r *Resolver) ResolvePrincipal(ctx context.Context, subject string) (*Principal, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrPrincipalNotFound
	}
	principal, err := r.store.FindPrincipalBySubject(ctx, subject)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}
	if !principal.Active {
		return nil, ErrPrincipalDeactivated
	}
	return principal, nil
}

// ResolveMembership determines the active project and the principal's role
// within it.
//
//   - requested id with a membership row: that project and role.
//   - requested id naming an existing project the principal is not a member
//     of: ErrNotAMember (unless the explicit admin bypass is enabled).
//   - requested id naming no project at all: graceful fallback to the
//     principal's first membership, so clients holding stale ids keep
//     working.
//   - no requested id: first membership.
func (r *Resolver) ResolveMembership(ctx context.Context, principal *Principal, requestedProjectID string) (string, Role, error) {
	if principal == nil {
		return "", "", ErrPrincipalNotFound
	}
	requestedProjectID = strings.TrimSpace(requestedProjectID)

	if requestedProjectID != "" {
		m, err := r.store.FindMembership(ctx, principal.ID, requestedProjectID)
		if err == nil {
			return m.ProjectID, m.Role, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", "", err
		}

		_, err = r.store.FindProject(ctx, requestedProjectID)
		switch {
		case err == nil:
			if r.adminBypass && principal.Role == RoleAdmin {
				r.recordBypass(ctx, principal.ID, requestedProjectID)
				return requestedProjectID, RoleAdmin, nil
			}
			return "", "", ErrNotAMember
		case errors.Is(err, ErrNotFound):
			// Unknown/stale project id: fall through to the fallback.
		default:
			return "", "", err
		}
	}

	memberships, err := r.store.ListMemberships(ctx, principal.ID)
	if err != nil {
		return "", "", err
	}
	if len(memberships) == 0 {
		return "", "", ErrNotAMember
	}
	first := memberships[0]
	return first.ProjectID, first.Role, nil
}

// Memberships returns the principal's full membership set for list-style
// endpoints. The result never contains a project without a membership row.
func (r *Resolver) Memberships(ctx context.Context, principalID string) ([]Membership, error) {
	return r.store.ListMemberships(ctx, principalID)
}

func (r *Resolver) recordBypass(ctx context.Context, principalID, projectID string) {
	if r.sink == nil {
		return
	}
	r.sink.Decision(ctx, principalID, projectID, "", "", true, "admin membership bypass")
}
