// Package authz maps an authenticated actor onto the operations it may trigger.
package authz

import (
	"github.com/bitfantasy/railtrace/internal/railtrace/apperr"
)

// Role 角色
type Role string

const (
	RoleManufacturer     Role = "MANUFACTURER"
	RoleQualityInspector Role = "QUALITY_INSPECTOR"
	RoleWarehouseManager Role = "WAREHOUSE_MANAGER"
	RoleInstallationTeam Role = "INSTALLATION_TEAM"
	RoleFieldInspector   Role = "FIELD_INSPECTOR"
	RoleAdmin            Role = "ADMIN"
)

// AllRoles lists every known role.
var AllRoles = []Role{
	RoleManufacturer,
	RoleQualityInspector,
	RoleWarehouseManager,
	RoleInstallationTeam,
	RoleFieldInspector,
	RoleAdmin,
}

// ParseRole rejects role strings outside the closed set.
func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Operation 操作
type Operation string

const (
	OpAllocate     Operation = "allocate"
	OpRegenerateQR Operation = "regenerate_qr"
	OpListOwn      Operation = "list_own"
	OpExportOwn    Operation = "export_own"
	OpViewProfile  Operation = "view_profile"
	OpInstall      Operation = "install"
	OpInspect      Operation = "inspect"
	OpMaintain     Operation = "maintain"
	OpView         Operation = "view"
	OpListAll      Operation = "list_all"
)

var policy = map[Operation][]Role{
	OpAllocate:     {RoleManufacturer},
	OpRegenerateQR: {RoleManufacturer},
	OpListOwn:      {RoleManufacturer},
	OpExportOwn:    {RoleManufacturer},
	OpViewProfile:  {RoleManufacturer},
	OpInstall:      {RoleInstallationTeam, RoleWarehouseManager, RoleAdmin},
	OpInspect:      {RoleQualityInspector, RoleFieldInspector, RoleAdmin},
	OpMaintain:     {RoleInstallationTeam, RoleFieldInspector, RoleAdmin},
	OpView:         AllRoles,
	OpListAll:      {RoleQualityInspector, RoleWarehouseManager, RoleInstallationTeam, RoleFieldInspector, RoleAdmin},
}

// ownerScoped operations additionally require the target to belong to the actor.
var ownerScoped = map[Operation]bool{
	OpRegenerateQR: true,
	OpListOwn:      true,
	OpExportOwn:    true,
}

// Actor is the verified identity behind a request.
type Actor struct {
	ID       string
	Username string
	Role     Role
	// ManufacturerID is resolved by the service for manufacturer actors.
	ManufacturerID string
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool {
	return a.ID != "" && a.Role != ""
}

// Target describes what an operation acts on. A zero Target means "no specific record".
type Target struct {
	ManufacturerID string
}

// Gate decides whether an actor may run an operation.
type Gate interface {
	Authorize(actor Actor, op Operation, target Target) error
}

// TableGate is the default role table policy.
type TableGate struct{}

func NewTableGate() *TableGate {
	return &TableGate{}
}

// Allowed reports whether role appears in the table for op.
func Allowed(role Role, op Operation) bool {
	for _, r := range policy[op] {
		if r == role {
			return true
		}
	}
	return false
}

func (g *TableGate) Authorize(actor Actor, op Operation, target Target) error {
	if !actor.Authenticated() {
		return apperr.New(apperr.Unauthorized, "authentication required")
	}
	if !Allowed(actor.Role, op) {
		return apperr.New(apperr.Forbidden, "role %s may not %s", actor.Role, op)
	}
	if ownerScoped[op] && target.ManufacturerID != "" {
		return CheckOwnership(actor, target)
	}
	return nil
}

// CheckOwnership enforces that a manufacturer only touches its own components.
// Non-manufacturer actors are not scoped by ownership.
func CheckOwnership(actor Actor, target Target) error {
	if actor.Role != RoleManufacturer {
		return nil
	}
	if actor.ManufacturerID == "" || actor.ManufacturerID != target.ManufacturerID {
		return apperr.New(apperr.Forbidden, "component belongs to another manufacturer")
	}
	return nil
}
