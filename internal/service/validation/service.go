package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/service/permission"
)

// Tree maps an eligible validator role to unit names to member display names.
type Tree map[model.UnitMembershipRole]map[string][]string

// Service builds the hierarchy of validators a unit member may ask to
// validate their work: every membership holding a role strictly above the
// requester's own, across all units linked to the referral.
type Service struct {
	units repository.UnitRepository
	perms *permission.Service
}

func NewService(units repository.UnitRepository, perms *permission.Service) *Service {
	return &Service{
		units: units,
		perms: perms,
	}
}

// BuildTree returns role -> unit name -> deduplicated full names. The tree is
// empty when the requester already holds the top role.
func (s *Service) BuildTree(ctx context.Context, userID uuid.UUID, referral *model.Referral) (Tree, error) {
	membership, err := s.perms.RequireMembership(ctx, userID, referral)
	if err != nil {
		return nil, err
	}

	tree := make(Tree)
	eligible := membership.Role.RolesAbove()
	if len(eligible) == 0 {
		return tree, nil
	}

	unitIDs := make([]uuid.UUID, 0, len(referral.Units))
	for _, unit := range referral.Units {
		unitIDs = append(unitIDs, unit.ID)
	}

	memberships, err := s.units.ListMembershipsByRoles(ctx, unitIDs, eligible)
	if err != nil {
		return nil, fmt.Errorf("failed to list validator memberships: %w", err)
	}

	for _, m := range memberships {
		byUnit, ok := tree[m.Role]
		if !ok {
			byUnit = make(map[string][]string)
			tree[m.Role] = byUnit
		}
		if containsName(byUnit[m.UnitName], m.UserFullName) {
			continue
		}
		byUnit[m.UnitName] = append(byUnit[m.UnitName], m.UserFullName)
	}

	return tree, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
