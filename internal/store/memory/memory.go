// Package memory holds in-process implementations of the persistence
// contracts. The API server uses them when no database DSN is configured,
// and the HTTP tests exercise full request flows against them.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/ids"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
)

// ResourceKinds lists the scoped resource kinds the service stores, in the
// same order as the module enumeration.
var ResourceKinds = []string{
	"tasks",
	"schedule_events",
	"budget_items",
	"procurement_items",
	"contacts",
	"proposals",
	"change_orders",
}

type grantKey struct {
	principalID string
	projectID   string
	module      auth.Module
}

// Store implements auth.Store over maps.
type Store struct {
	mu          sync.RWMutex
	principals  map[string]auth.Principal
	bySubject   map[string]string
	projects    map[string]auth.Project
	memberships map[string]map[string]auth.Membership
	grants      map[grantKey]auth.ModuleGrant
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		principals:  make(map[string]auth.Principal),
		bySubject:   make(map[string]string),
		projects:    make(map[string]auth.Project),
		memberships: make(map[string]map[string]auth.Membership),
		grants:      make(map[grantKey]auth.ModuleGrant),
		now:         time.Now,
	}
}

// AddPrincipal seeds a principal. A zero ID is replaced with a generated one;
// the assigned ID is returned.
func (s *Store) AddPrincipal(p auth.Principal) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p.UpdatedAt = s.now().UTC()
	s.principals[p.ID] = p
	s.bySubject[p.Subject] = p.ID
	return p.ID
}

// AddProject seeds a project, returning its ID.
func (s *Store) AddProject(p auth.Project) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p.UpdatedAt = s.now().UTC()
	s.projects[p.ID] = p
	return p.ID
}

// AddMembership seeds a membership row.
func (s *Store) AddMembership(m auth.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	byProject, ok := s.memberships[m.PrincipalID]
	if !ok {
		byProject = make(map[string]auth.Membership)
		s.memberships[m.PrincipalID] = byProject
	}
	byProject[m.ProjectID] = m
}

// AddGrant seeds an explicit module grant.
func (s *Store) AddGrant(g auth.ModuleGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now().UTC()
	}
	g.UpdatedAt = s.now().UTC()
	s.grants[grantKey{g.PrincipalID, g.ProjectID, g.Module}] = g
}

func (s *Store) FindPrincipalBySubject(_ context.Context, subject string) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySubject[subject]
	if !ok {
		return nil, auth.ErrNotFound
	}
	p := s.principals[id]
	return &p, nil
}

func (s *Store) FindPrincipal(_ context.Context, id string) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &p, nil
}

func (s *Store) FindProject(_ context.Context, id string) (*auth.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &p, nil
}

func (s *Store) FindMembership(_ context.Context, principalID, projectID string) (*auth.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[principalID][projectID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMemberships(_ context.Context, principalID string) ([]auth.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byProject := s.memberships[principalID]
	out := make([]auth.Membership, 0, len(byProject))
	for _, m := range byProject {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

func (s *Store) FindGrant(_ context.Context, principalID, projectID string, module auth.Module) (*auth.ModuleGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantKey{principalID, projectID, module}]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &g, nil
}

// Collection is an in-memory scoped.Collection for one resource kind.
type Collection struct {
	kind string
	mu   sync.RWMutex
	rows map[string]scoped.Record
}

func NewCollection(kind string) *Collection {
	return &Collection{kind: kind, rows: make(map[string]scoped.Record)}
}

// Collections returns one collection per resource kind.
func Collections() []scoped.Collection {
	out := make([]scoped.Collection, len(ResourceKinds))
	for i, kind := range ResourceKinds {
		out[i] = NewCollection(kind)
	}
	return out
}

func (c *Collection) Kind() string { return c.kind }

func (c *Collection) FindMany(_ context.Context, filter scoped.Filter) ([]scoped.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []scoped.Record
	for _, rec := range c.rows {
		if matches(rec, filter) {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i]["id"].(string)
		b, _ := out[j]["id"].(string)
		return a < b
	})
	return out, nil
}

func (c *Collection) Count(_ context.Context, filter scoped.Filter) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, rec := range c.rows {
		if matches(rec, filter) {
			n++
		}
	}
	return n, nil
}

func (c *Collection) Create(_ context.Context, rec scoped.Record) (scoped.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := clone(rec)
	id, _ := stored["id"].(string)
	if id == "" {
		id = ids.New()
		stored["id"] = id
	} else if _, exists := c.rows[id]; exists {
		// Create never replaces an existing row, whatever project owns it.
		return nil, auth.ErrConflict
	}
	now := time.Now().UTC()
	stored["created_at"] = now
	stored["updated_at"] = now
	c.rows[id] = stored
	return clone(stored), nil
}

func (c *Collection) FindUnique(_ context.Context, id string) (scoped.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.rows[id]
	if !ok {
		return nil, scoped.ErrNotFound
	}
	return clone(rec), nil
}

func (c *Collection) Update(_ context.Context, id string, changes scoped.Record) (scoped.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.rows[id]
	if !ok {
		return nil, scoped.ErrNotFound
	}
	for k, v := range changes {
		rec[k] = v
	}
	rec["updated_at"] = time.Now().UTC()
	return clone(rec), nil
}

func (c *Collection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rows[id]; !ok {
		return scoped.ErrNotFound
	}
	delete(c.rows, id)
	return nil
}

func matches(rec scoped.Record, filter scoped.Filter) bool {
	for k, want := range filter {
		if rec[k] != want {
			return false
		}
	}
	return true
}

func clone(rec scoped.Record) scoped.Record {
	out := make(scoped.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
