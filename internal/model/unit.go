package model

import (
	"github.com/google/uuid"
)

// UnitMembershipRole is the role a user holds inside a unit. Roles form a
// total order used to compute validator eligibility: a member may only ask
// validation from roles strictly above their own.
type UnitMembershipRole string

const (
	UnitRoleMember     UnitMembershipRole = "MEMBER"
	UnitRoleOwner      UnitMembershipRole = "OWNER"
	UnitRoleAdmin      UnitMembershipRole = "ADMIN"
	UnitRoleSuperAdmin UnitMembershipRole = "SUPERADMIN"
)

// orderedUnitRoles lists every role from least to most privileged.
var orderedUnitRoles = []UnitMembershipRole{
	UnitRoleMember,
	UnitRoleOwner,
	UnitRoleAdmin,
	UnitRoleSuperAdmin,
}

// Rank returns the position of the role in the privilege order. Unknown roles
// rank below MEMBER.
func (r UnitMembershipRole) Rank() int {
	for i, role := range orderedUnitRoles {
		if role == r {
			return i
		}
	}
	return -1
}

// RolesAbove returns the roles strictly above r, least privileged first.
func (r UnitMembershipRole) RolesAbove() []UnitMembershipRole {
	rank := r.Rank()
	if rank < 0 || rank >= len(orderedUnitRoles)-1 {
		return nil
	}
	above := make([]UnitMembershipRole, len(orderedUnitRoles)-rank-1)
	copy(above, orderedUnitRoles[rank+1:])
	return above
}

// CanValidate reports whether the role may validate or request changes on
// report versions and appendixes.
func (r UnitMembershipRole) CanValidate() bool {
	return r == UnitRoleOwner || r == UnitRoleAdmin || r == UnitRoleSuperAdmin
}

// Unit is an expert group referrals are routed to.
type Unit struct {
	Base
	Name string `db:"name" json:"name"`
}

// UnitMembership links a user to a unit with a role and a validator flag.
type UnitMembership struct {
	Base
	UserID      uuid.UUID          `db:"user_id" json:"user_id"`
	UnitID      uuid.UUID          `db:"unit_id" json:"unit_id"`
	Role        UnitMembershipRole `db:"role" json:"role"`
	IsValidator bool               `db:"is_validator" json:"is_validator"`

	// Joined columns, populated by list queries.
	UnitName     string `db:"unit_name" json:"unit_name,omitempty"`
	UserFullName string `db:"user_full_name" json:"user_full_name,omitempty"`
}

// Topic is a hierarchical category bound to the unit competent for it.
type Topic struct {
	Base
	Name     string     `db:"name" json:"name"`
	UnitID   uuid.UUID  `db:"unit_id" json:"unit_id"`
	ParentID *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	IsActive bool       `db:"is_active" json:"is_active"`
}
