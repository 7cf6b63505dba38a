package referral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partaj/referral-api/internal/model"
	apperrors "github.com/partaj/referral-api/pkg/errors"
)

func TestAddObserver(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)
	observer := f.newUser("Jeanne", "Bernard")

	got, err := f.svc.AddObserver(f.ctx, f.requester.ID, referral.ID, observer.ID, model.NotificationsRestricted)
	require.NoError(t, err)

	require.Len(t, got.UserLinks, 2)
	var link *model.ReferralUserLink
	for _, l := range got.UserLinks {
		if l.UserID == observer.ID {
			link = l
		}
	}
	require.NotNil(t, link)
	assert.Equal(t, model.ReferralRoleObserver, link.Role)
	assert.Equal(t, model.NotificationsRestricted, link.Notifications)
	assert.Equal(t, 1, f.activityCount(referral.ID))
}

func TestAddRequesterDefaultsNotifications(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)
	second := f.newUser("Jeanne", "Bernard")

	got, err := f.svc.AddRequester(f.ctx, f.requester.ID, referral.ID, second.ID, "")
	require.NoError(t, err)

	for _, link := range got.UserLinks {
		if link.UserID == second.ID {
			assert.Equal(t, model.NotificationsAll, link.Notifications)
		}
	}
}

func TestAddLinkDuplicate(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	_, err := f.svc.AddRequester(f.ctx, f.requester.ID, referral.ID, f.requester.ID, model.NotificationsAll)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)

	// The same user may still be linked on the other axis.
	_, err = f.svc.AddObserver(f.ctx, f.requester.ID, referral.ID, f.requester.ID, model.NotificationsAll)
	require.NoError(t, err)
}

func TestAddLinkRequiresAccess(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)
	stranger := f.newUser("Luc", "Henry")

	_, err := f.svc.AddObserver(f.ctx, stranger.ID, referral.ID, stranger.ID, model.NotificationsAll)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)

	// Members of a linked unit manage links too.
	_, err = f.svc.AddObserver(f.ctx, f.member.ID, referral.ID, stranger.ID, model.NotificationsAll)
	require.NoError(t, err)
}

func TestRemoveLastRequester(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	_, err := f.svc.RemoveRequester(f.ctx, f.requester.ID, referral.ID, f.requester.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "the last requester cannot be removed from a sent referral", appErr.Message)

	second := f.newUser("Jeanne", "Bernard")
	_, err = f.svc.AddRequester(f.ctx, f.requester.ID, referral.ID, second.ID, model.NotificationsAll)
	require.NoError(t, err)

	got, err := f.svc.RemoveRequester(f.ctx, f.requester.ID, referral.ID, f.requester.ID)
	require.NoError(t, err)
	require.Len(t, got.UserLinks, 1)
	assert.Equal(t, second.ID, got.UserLinks[0].UserID)
}

func TestRemoveObserver(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)
	observer := f.newUser("Jeanne", "Bernard")

	_, err := f.svc.RemoveObserver(f.ctx, f.requester.ID, referral.ID, observer.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)

	_, err = f.svc.AddObserver(f.ctx, f.requester.ID, referral.ID, observer.ID, model.NotificationsAll)
	require.NoError(t, err)

	got, err := f.svc.RemoveObserver(f.ctx, f.requester.ID, referral.ID, observer.ID)
	require.NoError(t, err)
	assert.Len(t, got.UserLinks, 1)
}
