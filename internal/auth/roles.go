package auth

import (
	"fmt"
	"slices"
	"strings"
)

type Role string

const (
	RoleUser        Role = "user"
	RoleGuest       Role = "guest"
	RoleAdmin       Role = "admin"
	RoleSystemAdmin Role = "systemAdmin"

	DefaultRole = RoleGuest
)

// AllRoles lists the roles in the order they are reported to clients.
var AllRoles = []Role{RoleUser, RoleAdmin, RoleGuest, RoleSystemAdmin}

func (r Role) Valid() bool {
	return slices.Contains(AllRoles, r)
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts the exact role names only. An empty value yields DefaultRole.
func ParseRole(value string) (Role, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultRole, nil
	}
	role := Role(value)
	if !role.Valid() {
		return "", NewValidationError(fmt.Sprintf("Invalid role. Must be one of: %s", joinRoles(AllRoles)))
	}
	return role, nil
}

type Capability string

const (
	CapChangeOwnPassword Capability = "password:change-own"
	// CapManageAccounts covers account administration and changing other
	// accounts' passwords.
	CapManageAccounts Capability = "accounts:manage"
	// CapManagePrivileged lifts the privileged-target restrictions below.
	CapManagePrivileged Capability = "accounts:manage-privileged"
)

var capabilities = map[Role][]Capability{
	RoleGuest:       {CapChangeOwnPassword},
	RoleUser:        {CapChangeOwnPassword},
	RoleAdmin:       {CapChangeOwnPassword, CapManageAccounts},
	RoleSystemAdmin: {CapChangeOwnPassword, CapManageAccounts, CapManagePrivileged},
}

func (r Role) Can(c Capability) bool {
	return slices.Contains(capabilities[r], c)
}

// RolesWith returns every role granted c, in AllRoles order.
func RolesWith(c Capability) []Role {
	out := make([]Role, 0, len(AllRoles))
	for _, role := range AllRoles {
		if role.Can(c) {
			out = append(out, role)
		}
	}
	return out
}

type Action string

const (
	ActionChangePassword Action = "change-password"
	ActionCreateAccount  Action = "create-account"
	ActionAssignRole     Action = "assign-role"
	ActionModifyAccount  Action = "modify-account"
	ActionDeleteAccount  Action = "delete-account"
)

// privilegedTargets lists, per action, the target roles that require
// CapManagePrivileged on top of CapManageAccounts.
var privilegedTargets = map[Action][]Role{
	ActionChangePassword: {RoleSystemAdmin},
	ActionCreateAccount:  {RoleAdmin, RoleSystemAdmin},
	ActionAssignRole:     {RoleAdmin, RoleSystemAdmin},
	ActionModifyAccount:  {RoleSystemAdmin},
	ActionDeleteAccount:  {RoleSystemAdmin},
}

var privilegedMessages = map[Action]string{
	ActionChangePassword: "Admins cannot change the password of a system admin",
	ActionCreateAccount:  "Only system admin can create admin or system admin users",
	ActionAssignRole:     "Only system admin can assign admin or system admin roles",
	ActionModifyAccount:  "Only system admin can modify system admin accounts",
	ActionDeleteAccount:  "Only system admin can delete system admin accounts",
}

// Authorize decides whether actor may perform action on an account whose
// role is target. It is the single authority check for account management.
func Authorize(actor Role, action Action, target Role) error {
	if _, known := privilegedTargets[action]; !known {
		return fmt.Errorf("unknown action %q", action)
	}
	if !actor.Can(CapManageAccounts) {
		return &ForbiddenError{Message: "Only admin and system admin can perform this action"}
	}
	if slices.Contains(privilegedTargets[action], target) && !actor.Can(CapManagePrivileged) {
		return &ForbiddenError{Message: privilegedMessages[action]}
	}
	return nil
}

func joinRoles(roles []Role) string {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return strings.Join(names, ", ")
}
