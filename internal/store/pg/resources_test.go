package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
)

func taskCollection(t *testing.T) (*Collection, sqlmock.Sqlmock) {
	t.Helper()
	store, mock := newMockStore(t)
	col, err := store.Collection("tasks")
	if err != nil {
		t.Fatal(err)
	}
	return col, mock
}

func TestFindManyBuildsDeterministicWhere(t *testing.T) {
	col, mock := taskCollection(t)

	mock.ExpectQuery(`select \* from tasks where project_id = \$1 and status = \$2 order by id`).
		WithArgs("p1", "open").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "title", "status"}).
			AddRow("t1", "p1", "Pour slab", "open"))

	recs, err := col.FindMany(context.Background(), scoped.Filter{"status": "open", "project_id": "p1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0]["title"] != "Pour slab" {
		t.Fatalf("records = %+v", recs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindManyRejectsUnknownFilterColumn(t *testing.T) {
	col, _ := taskCollection(t)

	_, err := col.FindMany(context.Background(), scoped.Filter{"password": "x"})
	if !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateInsertsWhitelistedColumnsOnly(t *testing.T) {
	col, mock := taskCollection(t)

	mock.ExpectQuery(`insert into tasks \(id, project_id, title, status\)`).
		WithArgs(sqlmock.AnyArg(), "p1", "Pour slab", "open").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "title", "status"}).
			AddRow("t1", "p1", "Pour slab", "open"))

	rec, err := col.Create(context.Background(), scoped.Record{
		"project_id": "p1",
		"title":      "Pour slab",
		"status":     "open",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec["id"] != "t1" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestCreateRejectsUnknownField(t *testing.T) {
	col, _ := taskCollection(t)

	_, err := col.Create(context.Background(), scoped.Record{
		"project_id": "p1",
		"title":      "x",
		"is_admin":   true,
	})
	if !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdateRejectsTenantColumn(t *testing.T) {
	col, _ := taskCollection(t)

	_, err := col.Update(context.Background(), "t1", scoped.Record{"project_id": "p2"})
	if !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestFindUniqueMissingRow(t *testing.T) {
	col, mock := taskCollection(t)

	mock.ExpectQuery(`select \* from tasks where id = \$1`).
		WithArgs("t404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "title"}))

	if _, err := col.FindUnique(context.Background(), "t404"); !errors.Is(err, scoped.ErrNotFound) {
		t.Fatalf("err = %v, want scoped.ErrNotFound", err)
	}
}

func TestDeleteReportsMissingRow(t *testing.T) {
	col, mock := taskCollection(t)

	mock.ExpectExec(`delete from tasks where id = \$1`).
		WithArgs("t404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := col.Delete(context.Background(), "t404"); !errors.Is(err, scoped.ErrNotFound) {
		t.Fatalf("err = %v, want scoped.ErrNotFound", err)
	}
}

func TestUnknownCollectionKind(t *testing.T) {
	store, _ := newMockStore(t)
	if _, err := store.Collection("invoices"); err == nil {
		t.Fatal("unknown kind accepted")
	}
}
