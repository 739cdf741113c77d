package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/error/response"
	"apex-http-service/internal/infrastructure/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecretKey: "middleware-secret-with-at-least-32-bytes",
		JWTIssuer:    "apex-test",
		JWTExpiresIn: time.Hour,
	}
}

func testUser(role string) *models.User {
	u := &models.User{Email: role + "@apex.test", Username: role, Role: role, Status: models.UserStatusActive}
	u.ID = 42
	return u
}

func issueToken(t *testing.T, svc services.InterfaceJWTService, role string) string {
	t.Helper()
	token, _, err := svc.GenerateToken(testUser(role))
	require.NoError(t, err)
	return token
}

func perform(r http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
