package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/partaj/referral-api/internal/repository/memory"
	"github.com/partaj/referral-api/pkg/auth"
	apperrors "github.com/partaj/referral-api/pkg/errors"
	"github.com/partaj/referral-api/pkg/security"
)

func newService(t *testing.T) *Service {
	t.Helper()
	store := memory.NewStore()
	jwt := auth.NewJWTService("test-secret", "test-refresh-secret", time.Hour, time.Hour)
	return NewService(store.Repos().Users, jwt, security.NewBcryptHasher(bcrypt.MinCost))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Rose", "Fontaine", "rose@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	pair, loggedIn, err := svc.Login(ctx, "rose@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Rose", "Fontaine", "rose@example.com", "correct horse")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "rose@example.com", "wrong horse")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrUnauthorized, appErr.Code)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newService(t)

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrUnauthorized, appErr.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Rose", "Fontaine", "rose@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other", "Person", "rose@example.com", "another pass")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
	assert.Equal(t, "email is already registered", appErr.Message)
}

func TestRegisterShortPassword(t *testing.T) {
	svc := newService(t)

	_, err := svc.Register(context.Background(), "Rose", "Fontaine", "rose@example.com", "short")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestValidateToken(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Rose", "Fontaine", "rose@example.com", "correct horse")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "rose@example.com", "correct horse")
	require.NoError(t, err)

	resolved, err := svc.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, "rose@example.com", resolved.Email)

	_, err = svc.Validate(ctx, "not-a-token")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrUnauthorized, appErr.Code)
}

func TestRefresh(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Rose", "Fontaine", "rose@example.com", "correct horse")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "rose@example.com", "correct horse")
	require.NoError(t, err)

	fresh, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)

	resolved, err := svc.Validate(ctx, fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	// An access token is signed with a different secret and is not a valid
	// refresh token.
	_, err = svc.Refresh(ctx, pair.AccessToken)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrUnauthorized, appErr.Code)
}
