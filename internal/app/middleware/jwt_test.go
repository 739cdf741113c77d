package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/error/code"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRouter(jwtService services.InterfaceJWTService) *gin.Engine {
	r := gin.New()
	whoami := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": CurrentUserID(c),
			"role":    CurrentRole(c),
			"jti":     CurrentClaims(c).ID,
		})
	}
	r.GET("/protected", Authenticate(jwtService), whoami)
	r.GET("/ws", AuthenticateWebSocket(jwtService), whoami)
	r.GET("/admin", Authenticate(jwtService), RequireRoles(models.RoleAdmin), whoami)
	r.GET("/dispatch", Authenticate(jwtService), RequireRoles(models.RoleDispatcher, models.RoleManager), whoami)
	return r
}

func TestAuthenticateTokenStatuses(t *testing.T) {
	jwtService := services.NewJWTService(testConfig(), nil)
	r := authRouter(jwtService)

	expiredCfg := testConfig()
	expiredCfg.JWTExpiresIn = -time.Minute
	expired := issueToken(t, services.NewJWTService(expiredCfg, nil), models.RoleDispatcher)

	otherCfg := testConfig()
	otherCfg.JWTSecretKey = "a-completely-different-secret-of-32-bytes"
	forged := issueToken(t, services.NewJWTService(otherCfg, nil), models.RoleDispatcher)

	valid := issueToken(t, jwtService, models.RoleDispatcher)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, code.ErrNoToken},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, code.ErrTokenInvalid},
		{"bearer without token", "Bearer ", http.StatusUnauthorized, code.ErrTokenInvalid},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, code.ErrTokenInvalid},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized, code.ErrTokenInvalid},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, code.ErrTokenExpired},
		{"valid", "Bearer " + valid, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := perform(r, http.MethodGet, "/protected", nil, headers)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				resp := decode(t, w)
				assert.False(t, resp.Success)
				assert.Equal(t, tt.wantCode, resp.Code)
			}
		})
	}
}

func TestAuthenticateSetsContext(t *testing.T) {
	jwtService := services.NewJWTService(testConfig(), nil)
	r := authRouter(jwtService)

	w := perform(r, http.MethodGet, "/protected", nil, map[string]string{
		"Authorization": "Bearer " + issueToken(t, jwtService, models.RoleManager),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
	assert.Contains(t, w.Body.String(), `"role":"manager"`)
	assert.NotContains(t, w.Body.String(), `"jti":""`)
}

func TestAuthenticateRejectsRevokedToken(t *testing.T) {
	jwtService := services.NewJWTService(testConfig(), nil)
	r := authRouter(jwtService)

	token := issueToken(t, jwtService, models.RoleManager)
	claims, err := jwtService.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, jwtService.Revoke(context.Background(), claims))

	w := perform(r, http.MethodGet, "/protected", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, code.ErrTokenInvalid, decode(t, w).Code)
}

func TestAuthenticateWebSocketQueryToken(t *testing.T) {
	jwtService := services.NewJWTService(testConfig(), nil)
	r := authRouter(jwtService)
	token := issueToken(t, jwtService, models.RoleGuard)

	w := perform(r, http.MethodGet, "/ws?token="+token, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 普通路由不接受查询参数令牌
	w = perform(r, http.MethodGet, "/protected?token="+token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, code.ErrNoToken, decode(t, w).Code)

	w = perform(r, http.MethodGet, "/ws", nil, nil)
	assert.Equal(t, code.ErrNoToken, decode(t, w).Code)
}

func TestRequireRoles(t *testing.T) {
	jwtService := services.NewJWTService(testConfig(), nil)
	r := authRouter(jwtService)

	tests := []struct {
		path string
		role string
		want int
	}{
		{"/admin", models.RoleAdmin, http.StatusOK},
		{"/admin", models.RoleAdminOps, http.StatusOK},
		{"/admin", models.RoleAdminSuper, http.StatusOK},
		{"/admin", models.RoleDispatcher, http.StatusForbidden},
		{"/dispatch", models.RoleDispatcher, http.StatusOK},
		{"/dispatch", models.RoleAdminSuper, http.StatusOK},
		{"/dispatch", models.RoleAdminOps, http.StatusForbidden},
		{"/dispatch", models.RoleClient, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.role, func(t *testing.T) {
			w := perform(r, http.MethodGet, tt.path, nil, map[string]string{
				"Authorization": "Bearer " + issueToken(t, jwtService, tt.role),
			})
			require.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, code.ErrForbidden, decode(t, w).Code)
			}
		})
	}
}
