package auth

import "time"

// Role is the privilege level a principal holds, globally and within a
// project. The same enumeration serves both because a membership narrows a
// principal to a project, it does not change the vocabulary of privilege.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleStaff      Role = "STAFF"
	RoleContractor Role = "CONTRACTOR"
	RoleViewer     Role = "VIEWER"
)

// Module is a named functional area with its own permission grants.
type Module string

const (
	ModuleTasks        Module = "TASKS"
	ModuleSchedule     Module = "SCHEDULE"
	ModuleBudget       Module = "BUDGET"
	ModuleProcurement  Module = "PROCUREMENT"
	ModuleContacts     Module = "CONTACTS"
	ModuleProposals    Module = "PROPOSALS"
	ModuleChangeOrders Module = "CHANGE_ORDERS"
)

// Modules lists every module in a stable order.
var Modules = []Module{
	ModuleTasks,
	ModuleSchedule,
	ModuleBudget,
	ModuleProcurement,
	ModuleContacts,
	ModuleProposals,
	ModuleChangeOrders,
}

// Intent classifies an operation for permission resolution.
type Intent string

const (
	IntentRead  Intent = "read"
	IntentWrite Intent = "write"
)

// Capability is the flag set resolved for a (principal, project, module).
type Capability struct {
	CanView    bool `json:"can_view"`
	CanEdit    bool `json:"can_edit"`
	CanUpload  bool `json:"can_upload"`
	CanRequest bool `json:"can_request"`
}

// None reports whether every flag is false.
func (c Capability) None() bool {
	return !c.CanView && !c.CanEdit && !c.CanUpload && !c.CanRequest
}

// Principal is an internal identity derived from a verified external subject.
// Principals are never hard-deleted, only deactivated.
type Principal struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project is the isolation boundary every scoped resource belongs to.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership establishes a principal's role within one project. At most one
// row exists per (principal, project); absence means "not a member".
type Membership struct {
	PrincipalID string    `json:"principal_id"`
	ProjectID   string    `json:"project_id"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// ModuleGrant overrides the role-default capability set for one module. An
// explicit grant with every flag false means "no access" and is distinct
// from the absence of a grant.
type ModuleGrant struct {
	PrincipalID string    `json:"principal_id"`
	ProjectID   string    `json:"project_id"`
	Module      Module    `json:"module"`
	Capability  Capability `json:"capability"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
