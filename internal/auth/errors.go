package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: resource conflict")
	ErrInvalidInput = errors.New("auth: invalid input")

	// Principal resolution failures. Both surface as 401 at the boundary:
	// a verified credential without a usable local account is still an
	// authentication failure, never an auto-provision.
	ErrPrincipalNotFound    = errors.New("auth: principal not found")
	ErrPrincipalDeactivated = errors.New("auth: principal deactivated")

	// Membership resolution failures, surfaced as 403.
	ErrNotAMember      = errors.New("auth: not a member of this project")
	ErrProjectNotFound = errors.New("auth: project not found")

	// Module permission denials. Each carries a distinct message so the
	// caller and the audit log can tell them apart.
	ErrNoModuleAccess            = errors.New("auth: no access to this module")
	ErrInsufficientPermission    = errors.New("auth: insufficient module permission")
	ErrInsufficientRolePrivilege = errors.New("auth: insufficient role privileges")
)
