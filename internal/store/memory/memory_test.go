package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
)

func TestCollectionCreateAssignsID(t *testing.T) {
	col := NewCollection("tasks")
	rec, err := col.Create(context.Background(), scoped.Record{"title": "Pour slab", "project_id": "p1"})
	if err != nil {
		t.Fatal(err)
	}
	id, _ := rec["id"].(string)
	if id == "" {
		t.Fatalf("no id assigned: %+v", rec)
	}
	if rec["created_at"] == nil || rec["updated_at"] == nil {
		t.Fatalf("timestamps missing: %+v", rec)
	}
}

func TestCollectionCreateRefusesExistingID(t *testing.T) {
	col := NewCollection("tasks")
	orig, err := col.Create(context.Background(), scoped.Record{"title": "Theirs", "project_id": "p2"})
	if err != nil {
		t.Fatal(err)
	}
	id, _ := orig["id"].(string)

	_, err = col.Create(context.Background(), scoped.Record{"id": id, "title": "Clobber attempt", "project_id": "p1"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	kept, err := col.FindUnique(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if kept["title"] != "Theirs" || kept["project_id"] != "p2" {
		t.Fatalf("existing record rewritten: %+v", kept)
	}
}
