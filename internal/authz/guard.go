// Package authz is the decision layer consulted before every mutating
// or sensitive read operation. Company-scope and machine-scope grants
// are expressed as pure predicates over the closed role enums; the
// Guard composes them with access-matrix lookups.
package authz

import (
	"context"

	"smartfiller-backend/internal/model"
	"smartfiller-backend/internal/store"
)

// CanCreateMachine: only company admins create machines.
func CanCreateMachine(companyRole model.Role) bool {
	return companyRole == model.RoleAdmin
}

// CanManageUsers: creating and listing company users is admin-only.
func CanManageUsers(companyRole model.Role) bool {
	return companyRole == model.RoleAdmin
}

// CanUpdateStatus: requires the admin machine role. The company role is
// irrelevant here.
func CanUpdateStatus(machineRole model.Role) bool {
	return machineRole == model.RoleAdmin
}

// CanAssignRoles: only machine admins assign or reassign machine roles.
func CanAssignRoles(machineRole model.Role) bool {
	return machineRole == model.RoleAdmin
}

// CanUploadFiles: machine admins and controllers upload; viewers do not.
func CanUploadFiles(machineRole model.Role) bool {
	return machineRole == model.RoleAdmin || machineRole == model.RoleController
}

// CanDeleteFile: the uploader, or any company admin.
func CanDeleteFile(callerID int64, companyRole model.Role, uploaderID int64) bool {
	return callerID == uploaderID || companyRole == model.RoleAdmin
}

// CanLogRun: any machine role may log a run.
func CanLogRun(machineRole model.Role) bool {
	return machineRole.Valid()
}

// Guard resolves a caller's machine role through the access matrix and
// applies the predicates above.
type Guard struct {
	store store.Store
}

// NewGuard creates a Guard backed by the given store.
func NewGuard(s store.Store) *Guard {
	return &Guard{store: s}
}

// HasMachineAccess reports whether any access row exists for the pair.
func (g *Guard) HasMachineAccess(ctx context.Context, userID, machineID int64) (bool, error) {
	_, ok, err := g.store.MachineRole(ctx, userID, machineID)
	return ok, err
}

// IsMachineAdmin reports whether the user holds the admin machine role.
func (g *Guard) IsMachineAdmin(ctx context.Context, userID, machineID int64) (bool, error) {
	role, ok, err := g.store.MachineRole(ctx, userID, machineID)
	if err != nil || !ok {
		return false, err
	}
	return CanUpdateStatus(role), nil
}

// MayUploadFiles reports whether the user's machine role permits file
// uploads.
func (g *Guard) MayUploadFiles(ctx context.Context, userID, machineID int64) (bool, error) {
	role, ok, err := g.store.MachineRole(ctx, userID, machineID)
	if err != nil || !ok {
		return false, err
	}
	return CanUploadFiles(role), nil
}

// MayLogRun reports whether the user may log a run against the machine.
func (g *Guard) MayLogRun(ctx context.Context, userID, machineID int64) (bool, error) {
	role, ok, err := g.store.MachineRole(ctx, userID, machineID)
	if err != nil || !ok {
		return false, err
	}
	return CanLogRun(role), nil
}
