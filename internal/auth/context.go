package auth

import (
	"context"
	"errors"
)

// SecurityContext is the immutable, request-scoped bundle of resolved
// identity, active project and accessible-project set. It is rebuilt on
// every request, never persisted, and safe to share by reference once built.
type SecurityContext struct {
	PrincipalID     string
	ActiveProjectID string
	ActiveRole      Role
	projectIDs      map[string]struct{}
}

// NewSecurityContext assembles a context directly from its parts. Request
// handling goes through ContextBuilder.Build; this constructor serves tests
// and background jobs that already hold a resolved membership.
func NewSecurityContext(principalID, activeProjectID string, activeRole Role, projectIDs []string) SecurityContext {
	ids := make(map[string]struct{}, len(projectIDs)+1)
	for _, id := range projectIDs {
		ids[id] = struct{}{}
	}
	ids[activeProjectID] = struct{}{}
	return SecurityContext{
		PrincipalID:     principalID,
		ActiveProjectID: activeProjectID,
		ActiveRole:      activeRole,
		projectIDs:      ids,
	}
}

// CanAccess reports whether the context may act within the given project.
func (s SecurityContext) CanAccess(projectID string) bool {
	_, ok := s.projectIDs[projectID]
	return ok
}

// ContextBuilder composes principal and membership resolution into a
// SecurityContext. Building never denies module access: permission checks
// belong to the handler invoking the permission resolver for the specific
// module and intent in play.
type ContextBuilder struct {
	resolver *Resolver
}

func NewContextBuilder(resolver *Resolver) (*ContextBuilder, error) {
	if resolver == nil {
		return nil, errors.New("auth: context builder requires a resolver")
	}
	return &ContextBuilder{resolver: resolver}, nil
}

// Build resolves the active project for the request and collects the full
// accessible-project set. Must run after identity and principal resolution
// succeed and before any scoped repository call.
func (b *ContextBuilder) Build(ctx context.Context, principal *Principal, requestedProjectID string) (SecurityContext, Role, error) {
	activeID, role, err := b.resolver.ResolveMembership(ctx, principal, requestedProjectID)
	if err != nil {
		return SecurityContext{}, "", err
	}
	memberships, err := b.resolver.Memberships(ctx, principal.ID)
	if err != nil {
		return SecurityContext{}, "", err
	}
	ids := make(map[string]struct{}, len(memberships)+1)
	for _, m := range memberships {
		ids[m.ProjectID] = struct{}{}
	}
	// Present when the admin bypass admitted a non-member project.
	ids[activeID] = struct{}{}

	return SecurityContext{
		PrincipalID:     principal.ID,
		ActiveProjectID: activeID,
		ActiveRole:      role,
		projectIDs:      ids,
	}, role, nil
}

type principalContextKey struct{}
type scopeContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the authenticated principal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithScope attaches the request's security context.
func ContextWithScope(ctx context.Context, sc SecurityContext) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, &sc)
}

// ScopeFromContext extracts the security context if one was attached.
func ScopeFromContext(ctx context.Context) (SecurityContext, bool) {
	if ctx == nil {
		return SecurityContext{}, false
	}
	v, ok := ctx.Value(scopeContextKey{}).(*SecurityContext)
	if !ok || v == nil {
		return SecurityContext{}, false
	}
	return *v, true
}
