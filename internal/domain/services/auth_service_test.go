package services

import (
	"testing"

	"apex-http-service/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (InterfaceAuthService, InterfaceJWTService, *models.User) {
	db := newTestDB(t)
	user := seedUser(t, db, "ops@apex.test", models.RoleDispatcher, models.UserStatusActive)
	seedUser(t, db, "locked@apex.test", models.RoleGuard, models.UserStatusLocked)
	jwtService := NewJWTService(testConfig(), nil)
	return NewAuthService(db, jwtService, NewAuditService(db, testConfig())), jwtService, user
}

func TestLogin(t *testing.T) {
	svc, jwtService, user := newAuthService(t)

	result, err := svc.Login(bg, Actor{IP: "10.0.0.1"}, LoginInput{Email: "OPS@apex.test", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotNil(t, result.User.LastLoginAt)

	claims, err := jwtService.ValidateToken(bg, result.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDispatcher, claims.Role)

	_, err = svc.Login(bg, Actor{}, LoginInput{Username: "ops@apex.test", Password: "correct-horse"})
	assert.NoError(t, err)
}

func TestLoginFailures(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, err := svc.Login(bg, Actor{}, LoginInput{Email: "ops@apex.test", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(bg, Actor{}, LoginInput{Email: "nobody@apex.test", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(bg, Actor{}, LoginInput{Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(bg, Actor{}, LoginInput{Email: "locked@apex.test", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestLoginWritesAudit(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "ops@apex.test", models.RoleDispatcher, models.UserStatusActive)
	audit := NewAuditService(db, testConfig())
	svc := NewAuthService(db, NewJWTService(testConfig(), nil), audit)

	_, _ = svc.Login(bg, Actor{IP: "10.0.0.9"}, LoginInput{Email: "ops@apex.test", Password: "nope"})
	_, err := svc.Login(bg, Actor{IP: "10.0.0.9"}, LoginInput{Email: "ops@apex.test", Password: "correct-horse"})
	require.NoError(t, err)

	logs, total, err := audit.List(bg, AuditQuery{Resource: "auth"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	actions := []string{logs[0].Action, logs[1].Action}
	assert.ElementsMatch(t, []string{AuditLogin, AuditLoginFailed}, actions)
	for _, l := range logs {
		assert.Equal(t, "10.0.0.9", l.IPAddress)
		assert.Equal(t, l.Action == AuditLogin, l.Success)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	svc, jwtService, _ := newAuthService(t)

	login, err := svc.Login(bg, Actor{}, LoginInput{Email: "ops@apex.test", Password: "correct-horse"})
	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(bg, login.Token)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(bg, Actor{}, claims)
	require.NoError(t, err)
	assert.NotEqual(t, login.Token, refreshed.Token)

	_, err = jwtService.ValidateToken(bg, login.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	newClaims, err := jwtService.ValidateToken(bg, refreshed.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(bg, Actor{UserID: newClaims.UserID}, newClaims))
	_, err = jwtService.ValidateToken(bg, refreshed.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestMe(t *testing.T) {
	svc, _, user := newAuthService(t)

	me, err := svc.Me(bg, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ops@apex.test", me.Email)

	_, err = svc.Me(bg, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
