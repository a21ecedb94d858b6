// Package redact strips cost and margin fields from read responses served
// to restricted roles. Redaction removes keys outright rather than nulling
// them, so a restricted client cannot tell a redacted field from an absent
// one.
package redact

import (
	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
)

// fieldsByModule lists the sensitive fields per module. Modules absent from
// the map carry no redactable fields.
var fieldsByModule = map[auth.Module][]string{
	auth.ModuleBudget:       {"estimated_total", "committed_total", "paid_to_date", "variance"},
	auth.ModuleProcurement:  {"po_value", "total_cost", "unit_cost"},
	auth.ModuleProposals:    {"amount", "margin"},
	auth.ModuleChangeOrders: {"amount", "margin"},
}

// Restricted reports whether the role's read responses are redacted.
func Restricted(role auth.Role) bool {
	return role == auth.RoleContractor || role == auth.RoleViewer
}

// Apply returns rec with the module's sensitive fields removed when the role
// is restricted. The input record is never mutated. Applies to read paths
// only: create and update responses echo the caller's own input back.
func Apply(module auth.Module, role auth.Role, rec scoped.Record) scoped.Record {
	if rec == nil || !Restricted(role) {
		return rec
	}
	fields := fieldsByModule[module]
	if len(fields) == 0 {
		return rec
	}
	out := make(scoped.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// ApplyAll redacts every record in a list result.
func ApplyAll(module auth.Module, role auth.Role, recs []scoped.Record) []scoped.Record {
	if !Restricted(role) || len(fieldsByModule[module]) == 0 {
		return recs
	}
	out := make([]scoped.Record, len(recs))
	for i, rec := range recs {
		out[i] = Apply(module, role, rec)
	}
	return out
}
