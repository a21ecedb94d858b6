package auth

import (
	"context"
	"errors"
	"fmt"
)

// DefaultCapabilities resolves the role-default capability set for a module.
// The matrix is a fixed pure function: no dynamic lookups, no unchecked
// keys. Unknown roles and modules resolve to no access.
func DefaultCapabilities(role Role, module Module) Capability {
	switch role {
	case RoleAdmin:
		return Capability{CanView: true, CanEdit: true, CanUpload: true, CanRequest: true}
	case RoleStaff:
		switch module {
		case ModuleChangeOrders:
			// Change order approval is an admin act.
			return Capability{CanView: true, CanRequest: true}
		default:
			return Capability{CanView: true, CanEdit: true, CanUpload: true, CanRequest: true}
		}
	case RoleContractor:
		switch module {
		case ModuleTasks, ModuleSchedule:
			return Capability{CanView: true, CanUpload: true, CanRequest: true}
		case ModuleBudget, ModuleProcurement:
			// Monetary modules: view and request only, editing is barred
			// at the role level.
			return Capability{CanView: true, CanRequest: true}
		case ModuleContacts:
			return Capability{CanView: true}
		default:
			return Capability{}
		}
	case RoleViewer:
		switch module {
		case ModuleProposals, ModuleChangeOrders:
			return Capability{}
		default:
			return Capability{CanView: true}
		}
	default:
		return Capability{}
	}
}

// PermissionResolver resolves (principal, project, module, intent) into a
// capability set, consulting explicit grants before role defaults. Every
// call, allowed or denied, emits exactly one decision record.
type PermissionResolver struct {
	grants Store
	sink   DecisionSink
}

func NewPermissionResolver(store Store, sink DecisionSink) (*PermissionResolver, error) {
	if store == nil {
		return nil, errors.New("auth: permission resolver requires a store")
	}
	return &PermissionResolver{grants: store, sink: sink}, nil
}

// Authorize returns the resolved capability when the intent is permitted and
// a typed denial otherwise:
//
//   - ErrNoModuleAccess: an explicit all-false grant, or a module entirely
//     outside the role's default matrix
//   - ErrInsufficientRolePrivilege: role defaults grant some access to the
//     module but not the flag the intent needs
//   - ErrInsufficientPermission: an explicit grant allows some access but
//     not the flag the intent needs
func (p *PermissionResolver) Authorize(ctx context.Context, principalID, projectID string, role Role, module Module, intent Intent) (Capability, error) {
	caps, fromGrant, err := p.resolve(ctx, principalID, projectID, role, module)
	if err != nil {
		p.record(ctx, principalID, projectID, module, intent, false, "grant lookup failed")
		return Capability{}, err
	}

	var denied error
	switch {
	case caps.None():
		denied = ErrNoModuleAccess
	case intent == IntentRead && !caps.CanView,
		intent == IntentWrite && !caps.CanEdit:
		if fromGrant {
			denied = ErrInsufficientPermission
		} else {
			denied = ErrInsufficientRolePrivilege
		}
	}
	if denied != nil {
		p.record(ctx, principalID, projectID, module, intent, false, denied.Error())
		return Capability{}, denied
	}

	p.record(ctx, principalID, projectID, module, intent, true, fmt.Sprintf("%s access granted", intent))
	return caps, nil
}

func (p *PermissionResolver) resolve(ctx context.Context, principalID, projectID string, role Role, module Module) (Capability, bool, error) {
	grant, err := p.grants.FindGrant(ctx, principalID, projectID, module)
	switch {
	case err == nil:
		return grant.Capability, true, nil
	case errors.Is(err, ErrNotFound):
		return DefaultCapabilities(role, module), false, nil
	default:
		return Capability{}, false, err
	}
}

func (p *PermissionResolver) record(ctx context.Context, principalID, projectID string, module Module, intent Intent, allowed bool, reason string) {
	if p.sink == nil {
		return
	}
	p.sink.Decision(ctx, principalID, projectID, string(module), string(intent), allowed, reason)
}
