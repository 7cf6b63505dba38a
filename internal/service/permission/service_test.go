package permission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/repository/memory"
	apperrors "github.com/partaj/referral-api/pkg/errors"
)

type permFixture struct {
	repos    repository.Repos
	referral *model.Referral
	unitA    *model.Unit
	unitB    *model.Unit
	user     *model.User
}

func newPermFixture(t *testing.T) *permFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()

	unitA := &model.Unit{Name: "DAJ"}
	unitB := &model.Unit{Name: "SG"}
	require.NoError(t, repos.Units.CreateUnit(ctx, unitA))
	require.NoError(t, repos.Units.CreateUnit(ctx, unitB))

	user := &model.User{FirstName: "Jeanne", LastName: "Durand", Email: "jeanne@example.com"}
	require.NoError(t, repos.Users.Create(ctx, user))

	referral := &model.Referral{State: model.ReferralStateReceived}
	require.NoError(t, repos.Referrals.Create(ctx, referral))
	require.NoError(t, repos.Referrals.AddUnitLink(ctx, &model.ReferralUnitLink{ReferralID: referral.ID, UnitID: unitA.ID}))
	require.NoError(t, repos.Referrals.AddUnitLink(ctx, &model.ReferralUnitLink{ReferralID: referral.ID, UnitID: unitB.ID}))

	loaded, err := repos.Referrals.Get(ctx, referral.ID)
	require.NoError(t, err)

	return &permFixture{repos: repos, referral: loaded, unitA: unitA, unitB: unitB, user: user}
}

func (f *permFixture) addMembership(t *testing.T, unitID uuid.UUID, role model.UnitMembershipRole) {
	t.Helper()
	err := f.repos.Units.CreateMembership(context.Background(), &model.UnitMembership{
		UserID: f.user.ID,
		UnitID: unitID,
		Role:   role,
	})
	require.NoError(t, err)
}

func TestResolveMembershipSingleRole(t *testing.T) {
	f := newPermFixture(t)
	f.addMembership(t, f.unitA.ID, model.UnitRoleOwner)

	svc := NewService(f.repos.Units, PolicyHighest, time.Minute, zerolog.Nop())
	membership, err := svc.ResolveMembership(context.Background(), f.user.ID, f.referral)

	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, model.UnitRoleOwner, membership.Role)
	assert.Equal(t, "DAJ", membership.UnitName)
}

func TestResolveMembershipNoMembership(t *testing.T) {
	f := newPermFixture(t)
	svc := NewService(f.repos.Units, PolicyHighest, time.Minute, zerolog.Nop())

	membership, err := svc.ResolveMembership(context.Background(), f.user.ID, f.referral)
	require.NoError(t, err)
	assert.Nil(t, membership)

	_, err = svc.RequireMembership(context.Background(), f.user.ID, f.referral)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestResolveMembershipAmbiguousHighest(t *testing.T) {
	f := newPermFixture(t)
	f.addMembership(t, f.unitA.ID, model.UnitRoleMember)
	f.addMembership(t, f.unitB.ID, model.UnitRoleAdmin)

	svc := NewService(f.repos.Units, PolicyHighest, time.Minute, zerolog.Nop())
	membership, err := svc.ResolveMembership(context.Background(), f.user.ID, f.referral)

	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, model.UnitRoleAdmin, membership.Role)
}

func TestResolveMembershipAmbiguousReject(t *testing.T) {
	f := newPermFixture(t)
	f.addMembership(t, f.unitA.ID, model.UnitRoleMember)
	f.addMembership(t, f.unitB.ID, model.UnitRoleAdmin)

	svc := NewService(f.repos.Units, PolicyReject, time.Minute, zerolog.Nop())
	_, err := svc.ResolveMembership(context.Background(), f.user.ID, f.referral)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestResolveMembershipCacheInvalidation(t *testing.T) {
	f := newPermFixture(t)
	f.addMembership(t, f.unitA.ID, model.UnitRoleMember)

	svc := NewService(f.repos.Units, PolicyHighest, time.Minute, zerolog.Nop())
	ctx := context.Background()

	membership, err := svc.ResolveMembership(ctx, f.user.ID, f.referral)
	require.NoError(t, err)
	assert.Equal(t, model.UnitRoleMember, membership.Role)

	// A promotion is not visible until the cache entry is dropped.
	f.addMembership(t, f.unitB.ID, model.UnitRoleAdmin)
	membership, err = svc.ResolveMembership(ctx, f.user.ID, f.referral)
	require.NoError(t, err)
	assert.Equal(t, model.UnitRoleMember, membership.Role)

	svc.InvalidateReferral(f.referral.ID)
	membership, err = svc.ResolveMembership(ctx, f.user.ID, f.referral)
	require.NoError(t, err)
	assert.Equal(t, model.UnitRoleAdmin, membership.Role)
}

func TestCanValidateRequiresManagementRole(t *testing.T) {
	f := newPermFixture(t)
	f.addMembership(t, f.unitA.ID, model.UnitRoleMember)

	svc := NewService(f.repos.Units, PolicyHighest, time.Minute, zerolog.Nop())
	_, err := svc.CanValidate(context.Background(), f.user.ID, f.referral)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestCanRequestValidationAnsweredReferral(t *testing.T) {
	f := newPermFixture(t)
	f.addMembership(t, f.unitA.ID, model.UnitRoleMember)
	f.referral.State = model.ReferralStateAnswered

	svc := NewService(f.repos.Units, PolicyHighest, time.Minute, zerolog.Nop())
	_, err := svc.CanRequestValidation(context.Background(), f.user.ID, f.referral)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestLinkPredicates(t *testing.T) {
	requesterID := uuid.New()
	observerID := uuid.New()
	strangerID := uuid.New()

	referral := &model.Referral{
		UserLinks: []*model.ReferralUserLink{
			{UserID: requesterID, Role: model.ReferralRoleRequester},
			{UserID: observerID, Role: model.ReferralRoleObserver},
		},
	}

	assert.True(t, IsRequester(referral, requesterID))
	assert.False(t, IsRequester(referral, observerID))
	assert.True(t, IsObserver(referral, observerID))
	assert.True(t, IsLinked(referral, requesterID))
	assert.True(t, IsLinked(referral, observerID))
	assert.False(t, IsLinked(referral, strangerID))
}
