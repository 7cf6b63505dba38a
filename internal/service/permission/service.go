package permission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	apperrors "github.com/partaj/referral-api/pkg/errors"
)

// Ambiguous-role policies. A user holding two distinct roles across the units
// linked to one referral is an anomaly: "highest" picks the most privileged
// role and logs a warning, "reject" refuses the request.
const (
	PolicyHighest = "highest"
	PolicyReject  = "reject"
)

// Service resolves the unit-membership role a user holds on a referral and
// exposes the permission predicates built on top of it. Resolutions are
// cached briefly since one request can consult the same role several times.
type Service struct {
	units  repository.UnitRepository
	cache  *cache.Cache
	policy string
	logger zerolog.Logger
}

func NewService(units repository.UnitRepository, policy string, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	if policy == "" {
		policy = PolicyHighest
	}
	return &Service{
		units:  units,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		policy: policy,
		logger: logger,
	}
}

// ResolveMembership returns the membership whose role governs the user's
// access to the referral, or nil when the user belongs to none of the linked
// units. The user may still be a requester or observer, a separate axis.
func (s *Service) ResolveMembership(ctx context.Context, userID uuid.UUID, referral *model.Referral) (*model.UnitMembership, error) {
	if len(referral.Units) == 0 {
		return nil, nil
	}

	key := cacheKey(userID, referral.ID)
	if cached, found := s.cache.Get(key); found {
		return cached.(*model.UnitMembership), nil
	}

	unitIDs := make([]uuid.UUID, 0, len(referral.Units))
	for _, unit := range referral.Units {
		unitIDs = append(unitIDs, unit.ID)
	}

	memberships, err := s.units.ListUserMemberships(ctx, userID, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list user memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	winner := memberships[0]
	distinct := false
	for _, m := range memberships[1:] {
		if m.Role != winner.Role {
			distinct = true
		}
		if m.Role.Rank() > winner.Role.Rank() {
			winner = m
		}
	}

	if distinct {
		if s.policy == PolicyReject {
			return nil, apperrors.Forbidden("user holds conflicting roles on this referral")
		}
		s.logger.Warn().
			Str("user_id", userID.String()).
			Str("referral_id", referral.ID.String()).
			Str("resolved_role", string(winner.Role)).
			Msg("user holds distinct roles across linked units, picking highest")
	}

	s.cache.SetDefault(key, winner)
	return winner, nil
}

// ResolveRole is ResolveMembership reduced to the role itself.
func (s *Service) ResolveRole(ctx context.Context, userID uuid.UUID, referral *model.Referral) (model.UnitMembershipRole, bool, error) {
	membership, err := s.ResolveMembership(ctx, userID, referral)
	if err != nil {
		return "", false, err
	}
	if membership == nil {
		return "", false, nil
	}
	return membership.Role, true, nil
}

// RequireMembership fails with a forbidden error when the user is not a
// member of any unit linked to the referral.
func (s *Service) RequireMembership(ctx context.Context, userID uuid.UUID, referral *model.Referral) (*model.UnitMembership, error) {
	membership, err := s.ResolveMembership(ctx, userID, referral)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, apperrors.Forbidden("user is not a member of a unit linked to this referral")
	}
	return membership, nil
}

/// CanRequestValidation gates validation requests: unit membership and a
// referral that has not been answered yet.
func (s *Service) CanRequestValidation(ctx context.Context, userID uuid.UUID, referral *model.Referral) (*model.UnitMembership, error) {
	if referral.State == model.ReferralStateAnswered {
		return nil, apperrors.Forbidden("referral has already been answered")
	}
	return s.RequireMembership(ctx, userID, referral)
}

/// CanValidate gates validate and request-change actions: membership with a
// role of OWNER or above.
func (s *Service) CanValidate(ctx context.Context, userID uuid.UUID, referral *model.Referral) (*model.UnitMembership, error) {
	membership, err := s.RequireMembership(ctx, userID, referral)
	if err != nil {
		return nil, err
	}
	if !membership.Role.CanValidate() {
		return nil, apperrors.Forbidden("role is not allowed to validate")
	}
	return membership, nil
}

// CanManage gates assignment and lifecycle actions reserved to unit
// management. The eligible set matches CanValidate.
func (s *Service) CanManage(ctx context.Context, userID uuid.UUID, referral *model.Referral) (*model.UnitMembership, error) {
	membership, err := s.RequireMembership(ctx, userID, referral)
	if err != nil {
		return nil, err
	}
	if !membership.Role.CanValidate() {
		return nil, apperrors.Forbidden("role is not allowed to manage this referral")
	}
	return membership, nil
}

// CanUpdateAppendix allows only the author to update an appendix, only while
// it is the most recent one and the referral is not answered.
func (s *Service) CanUpdateAppendix(userID uuid.UUID, referral *model.Referral, appendix, latest *model.ReportAppendix) error {
	if appendix.AuthorID != userID {
		return apperrors.Forbidden("only the author may update this appendix")
	}
	if latest == nil || appendix.ID != latest.ID {
		return apperrors.Forbidden("only the latest appendix may be updated")
	}
	if referral.State == model.ReferralStateAnswered {
		return apperrors.Forbidden("referral has already been answered")
	}
	return nil
}

// IsRequester reports whether the user is linked to the referral as a
// requester.
func IsRequester(referral *model.Referral, userID uuid.UUID) bool {
	return hasLinkRole(referral, userID, model.ReferralRoleRequester)
}

// IsObserver reports whether the user is linked to the referral as an
// observer.
func IsObserver(referral *model.Referral, userID uuid.UUID) bool {
	return hasLinkRole(referral, userID, model.ReferralRoleObserver)
}

// IsLinked reports whether the user is linked to the referral in any
// request-side role.
func IsLinked(referral *model.Referral, userID uuid.UUID) bool {
	for _, link := range referral.UserLinks {
		if link.UserID == userID {
			return true
		}
	}
	return false
}

func hasLinkRole(referral *model.Referral, userID uuid.UUID, role model.ReferralUserLinkRole) bool {
	for _, link := range referral.UserLinks {
		if link.UserID == userID && link.Role == role {
			return true
		}
	}
	return false
}

// InvalidateReferral drops cached resolutions for a referral after its linked
// units or memberships change.
func (s *Service) InvalidateReferral(referralID uuid.UUID) {
	suffix := ":" + referralID.String()
	for key := range s.cache.Items() {
		if strings.HasSuffix(key, suffix) {
			s.cache.Delete(key)
		}
	}
}

func cacheKey(userID, referralID uuid.UUID) string {
	return userID.String() + ":" + referralID.String()
}
