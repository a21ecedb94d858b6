package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
)

var _ auth.Store = (*Store)(nil)

func (s *Store) FindPrincipalBySubject(ctx context.Context, subject string) (*auth.Principal, error) {
	return s.scanPrincipal(s.db.QueryRowContext(ctx, `
		select id, subject, email, role, active, created_at, updated_at
		from principals
		where subject = $1
	`, subject))
}

func (s *Store) FindPrincipal(ctx context.Context, id string) (*auth.Principal, error) {
	return s.scanPrincipal(s.db.QueryRowContext(ctx, `
		select id, subject, email, role, active, created_at, updated_at
		from principals
		where id = $1
	`, id))
}

func (s *Store) scanPrincipal(row *sql.Row) (*auth.Principal, error) {
	var p auth.Principal
	err := row.Scan(&p.ID, &p.Subject, &p.Email, &p.Role, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindProject(ctx context.Context, id string) (*auth.Project, error) {
	var p auth.Project
	err := s.db.QueryRowContext(ctx, `
		select id, name, status, created_at, updated_at
		from projects
		where id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindMembership(ctx context.Context, principalID, projectID string) (*auth.Membership, error) {
	var m auth.Membership
	err := s.db.QueryRowContext(ctx, `
		select principal_id, project_id, role, created_at
		from memberships
		where principal_id = $1 and project_id = $2
	`, principalID, projectID).Scan(&m.PrincipalID, &m.ProjectID, &m.Role, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMemberships(ctx context.Context, principalID string) ([]auth.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		select principal_id, project_id, role, created_at
		from memberships
		where principal_id = $1
		order by project_id
	`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Membership
	for rows.Next() {
		var m auth.Membership
		if err := rows.Scan(&m.PrincipalID, &m.ProjectID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) FindGrant(ctx context.Context, principalID, projectID string, module auth.Module) (*auth.ModuleGrant, error) {
	var g auth.ModuleGrant
	err := s.db.QueryRowContext(ctx, `
		select principal_id, project_id, module, can_view, can_edit, can_upload, can_request, created_at, updated_at
		from module_grants
		where principal_id = $1 and project_id = $2 and module = $3
	`, principalID, projectID, string(module)).Scan(
		&g.PrincipalID, &g.ProjectID, &g.Module,
		&g.Capability.CanView, &g.Capability.CanEdit, &g.Capability.CanUpload, &g.Capability.CanRequest,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}
