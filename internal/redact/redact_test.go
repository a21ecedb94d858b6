package redact

import (
	"testing"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
)

func budgetItem() scoped.Record {
	return scoped.Record{
		"id":              "b1",
		"project_id":      "p1",
		"name":            "Foundation",
		"estimated_total": 42000.0,
		"committed_total": 39500.0,
		"paid_to_date":    20000.0,
		"variance":        -2500.0,
	}
}

func TestApplyRemovesSensitiveFieldsForRestrictedRoles(t *testing.T) {
	for _, role := range []auth.Role{auth.RoleContractor, auth.RoleViewer} {
		out := Apply(auth.ModuleBudget, role, budgetItem())
		for _, f := range []string{"estimated_total", "committed_total", "paid_to_date", "variance"} {
			if _, present := out[f]; present {
				t.Fatalf("role %s: field %s survived redaction", role, f)
			}
		}
		if out["name"] != "Foundation" || out["id"] != "b1" {
			t.Fatalf("role %s: non-sensitive fields altered: %+v", role, out)
		}
	}
}

func TestApplyLeavesPrivilegedRolesUntouched(t *testing.T) {
	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleStaff} {
		out := Apply(auth.ModuleBudget, role, budgetItem())
		if out["estimated_total"] != 42000.0 {
			t.Fatalf("role %s: fields removed", role)
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	rec := budgetItem()
	Apply(auth.ModuleBudget, auth.RoleViewer, rec)
	if rec["variance"] != -2500.0 {
		t.Fatal("input record mutated")
	}
}

func TestApplyModuleWithoutSensitiveFields(t *testing.T) {
	rec := scoped.Record{"id": "t1", "title": "Pour slab", "estimated_total": 1.0}
	out := Apply(auth.ModuleTasks, auth.RoleViewer, rec)
	if _, present := out["estimated_total"]; !present {
		t.Fatal("field removed in a module with no redaction set")
	}
}

func TestApplyAll(t *testing.T) {
	recs := []scoped.Record{budgetItem(), budgetItem()}
	out := ApplyAll(auth.ModuleBudget, auth.RoleContractor, recs)
	if len(out) != 2 {
		t.Fatalf("records = %d, want 2", len(out))
	}
	for i, rec := range out {
		if _, present := rec["po_value"]; present {
			t.Fatalf("record %d retained cost field", i)
		}
		if _, present := rec["estimated_total"]; present {
			t.Fatalf("record %d retained estimated_total", i)
		}
	}

	same := ApplyAll(auth.ModuleBudget, auth.RoleAdmin, recs)
	if &same[0] != &recs[0] {
		t.Fatal("unrestricted role should get the original slice back")
	}
}

func TestApplyNilRecord(t *testing.T) {
	if Apply(auth.ModuleBudget, auth.RoleViewer, nil) != nil {
		t.Fatal("nil record should stay nil")
	}
}
