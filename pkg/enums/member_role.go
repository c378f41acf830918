package enums

import (
	"fmt"
	"strings"
)

// MemberRole is the warehouse role carried in access tokens.
type MemberRole string

const (
	MemberRoleWorker     MemberRole = "worker"
	MemberRoleSupervisor MemberRole = "supervisor"
	MemberRoleAdmin      MemberRole = "admin"
)

func (m MemberRole) rank() int {
	switch m {
	case MemberRoleWorker:
		return 1
	case MemberRoleSupervisor:
		return 2
	case MemberRoleAdmin:
		return 3
	}
	return 0
}

func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	return m.rank() > 0
}

// AtLeast reports whether m grants everything min does. Unknown roles grant
// nothing.
func (m MemberRole) AtLeast(min MemberRole) bool {
	return m.IsValid() && m.rank() >= min.rank()
}

// CanResolveShrinkage reports whether the role may approve or reject reports.
// Resolution belongs to the warehouse supervisor alone; admins reverse
// approved reports instead.
func (m MemberRole) CanResolveShrinkage() bool {
	return m == MemberRoleSupervisor
}

// ParseMemberRole accepts the role name in any case, surrounding space ignored.
func ParseMemberRole(value string) (MemberRole, error) {
	role := MemberRole(strings.ToLower(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", fmt.Errorf("invalid member role %q", value)
	}
	return role, nil
}
