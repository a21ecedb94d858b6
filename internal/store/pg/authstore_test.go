package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return OpenDB(db), mock
}

func TestFindPrincipalBySubject(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`select id, subject, email, role, active, created_at, updated_at\s+from principals`).
		WithArgs("sub-u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject", "email", "role", "active", "created_at", "updated_at"}).
			AddRow("u1", "sub-u1", "owner@faxas.example", "ADMIN", true, now, now))

	p, err := store.FindPrincipalBySubject(context.Background(), "sub-u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "u1" || p.Role != auth.RoleAdmin || !p.Active {
		t.Fatalf("principal = %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindPrincipalNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`from principals`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject", "email", "role", "active", "created_at", "updated_at"}))

	if _, err := store.FindPrincipal(context.Background(), "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListMembershipsOrderedByProject(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`from memberships\s+where principal_id = \$1\s+order by project_id`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"principal_id", "project_id", "role", "created_at"}).
			AddRow("u1", "p1", "ADMIN", now).
			AddRow("u1", "p2", "STAFF", now))

	ms, err := store.ListMemberships(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 2 || ms[0].ProjectID != "p1" || ms[1].Role != auth.RoleStaff {
		t.Fatalf("memberships = %+v", ms)
	}
}

func TestFindGrantScansCapabilityFlags(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`from module_grants`).
		WithArgs("u2", "p1", "BUDGET").
		WillReturnRows(sqlmock.NewRows([]string{
			"principal_id", "project_id", "module",
			"can_view", "can_edit", "can_upload", "can_request",
			"created_at", "updated_at",
		}).AddRow("u2", "p1", "BUDGET", true, false, false, true, now, now))

	g, err := store.FindGrant(context.Background(), "u2", "p1", auth.ModuleBudget)
	if err != nil {
		t.Fatal(err)
	}
	want := auth.Capability{CanView: true, CanRequest: true}
	if g.Capability != want {
		t.Fatalf("capability = %+v, want %+v", g.Capability, want)
	}
}

func TestFindGrantAbsentMeansDefaults(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`from module_grants`).
		WithArgs("u2", "p1", "TASKS").
		WillReturnRows(sqlmock.NewRows([]string{
			"principal_id", "project_id", "module",
			"can_view", "can_edit", "can_upload", "can_request",
			"created_at", "updated_at",
		}))

	if _, err := store.FindGrant(context.Background(), "u2", "p1", auth.ModuleTasks); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
