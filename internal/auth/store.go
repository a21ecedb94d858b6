package auth

import "context"

// Store describes the persistence operations the resolvers need. Absence is
// always reported as ErrNotFound so "no row" stays distinguishable from a
// storage failure.
type Store interface {
	// FindPrincipalBySubject maps a verified external subject id to the
	// internal principal record.
	FindPrincipalBySubject(ctx context.Context, subject string) (*Principal, error)
	// FindPrincipal looks up a principal by internal id.
	FindPrincipal(ctx context.Context, id string) (*Principal, error)
	// FindProject looks up a project by id.
	FindProject(ctx context.Context, id string) (*Project, error)
	// FindMembership returns the membership row for (principal, project).
	FindMembership(ctx context.Context, principalID, projectID string) (*Membership, error)
	// ListMemberships returns every membership for the principal, ordered
	// by project id.
	ListMemberships(ctx context.Context, principalID string) ([]Membership, error)
	// FindGrant returns the explicit module grant for (principal, project,
	// module). ErrNotFound means "use role defaults"; a returned grant with
	// every flag false means "no access".
	FindGrant(ctx context.Context, principalID, projectID string, module Module) (*ModuleGrant, error)
}

// DecisionSink receives one record per authorization decision. Implemented
// by the audit logger; declared here so the resolvers do not depend on it.
type DecisionSink interface {
	Decision(ctx context.Context, principalID, projectID, module, intent string, allowed bool, reason string)
}
