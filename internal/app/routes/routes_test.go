package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"apex-http-service/internal/app/middleware"
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/infrastructure/config"
	"apex-http-service/internal/infrastructure/database"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@apex.test"
	adminPassword = "Sup3rSecret!"
	jwtSecret     = "routes-secret-with-at-least-32-bytes!!"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t          *testing.T
	router     *gin.Engine
	container  *container.ServiceContainer
	adminToken string
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecretKey:         jwtSecret,
		JWTIssuer:            "apex-test",
		JWTExpiresIn:         time.Hour,
		CORSAllowedOrigins:   []string{"*"},
		DefaultAdminEmail:    adminEmail,
		DefaultAdminPassword: adminPassword,
		MQTTTopicPrefix:      "apex",
	}
}

// newTestServer 使用内存数据库和内存限流存储构建完整路由
func newTestServer(t *testing.T, policies map[string]middleware.RateLimitPolicy) *testServer {
	t.Helper()

	pool, err := database.OpenInMemory("routes_" + uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, database.Migrate(pool.DB, database.MigrateAuto))

	c := container.NewServiceContainer(pool, testConfig())
	t.Cleanup(c.Close)

	created, err := c.GetService("user").(services.InterfaceUserService).EnsureAdminExists(context.Background())
	require.NoError(t, err)
	require.True(t, created)

	store := middleware.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	middleware.PurgeCache()

	s := &testServer{t: t, router: SetupRouter(c, middleware.NewRateLimiter(store, policies)), container: c}
	s.adminToken = s.login(adminEmail, adminPassword)
	return s
}

// relaxedPolicies 放宽通用和写入限制，流程测试会发出较多请求
func relaxedPolicies() map[string]middleware.RateLimitPolicy {
	policies := middleware.DefaultPolicies()
	for _, name := range []string{middleware.PolicyGeneral, middleware.PolicyWrite, middleware.PolicyDispatch} {
		p := policies[name]
		p.Limit = 10000
		policies[name] = p
	}
	return policies
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, APIPrefix+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Token string `json:"token"`
	}
	decodeData(s.t, w, &result)
	require.NotEmpty(s.t, result.Token)
	return result.Token
}

// createUser 管理员创建账户并返回该账户的令牌
func (s *testServer) createUser(role string) string {
	s.t.Helper()
	email := role + "@apex.test"
	w := s.do(http.MethodPost, "/users", s.adminToken, gin.H{
		"email": email, "username": role, "password": "Passw0rd!", "role": role,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(email, "Passw0rd!")
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func requireCode(t *testing.T, w *httptest.ResponseRecorder, status int, errCode string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, errCode, decodeEnvelope(t, w).Code)
}

type idOnly struct {
	ID uint `json:"id"`
}

func TestHealthAndSwagger(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/health/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status struct {
		Status   string                 `json:"status"`
		Database map[string]interface{} `json:"database"`
		Redis    map[string]string      `json:"redis"`
		MQTT     map[string]string      `json:"mqtt"`
	}
	decodeData(t, w, &status)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "up", status.Database["status"])
	assert.Equal(t, "disabled", status.Redis["status"])
	assert.Equal(t, "disabled", status.MQTT["status"])

	req = httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Apex HTTP Service API")
}

func TestAuthLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	requireCode(t, s.do(http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized, "NO_TOKEN")
	requireCode(t, s.do(http.MethodGet, "/auth/me", "not-a-jwt", nil), http.StatusUnauthorized, "INVALID_TOKEN")
	requireCode(t, s.do(http.MethodPost, "/auth/login", "", gin.H{"email": adminEmail, "password": "wrong"}),
		http.StatusUnauthorized, "INVALID_CREDENTIALS")

	w := s.do(http.MethodGet, "/auth/me", s.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me map[string]interface{}
	decodeData(t, w, &me)
	assert.Equal(t, adminEmail, me["email"])
	assert.NotContains(t, me, "password")

	// 用户名也可以登录
	w = s.do(http.MethodPost, "/auth/login", "", gin.H{"username": "admin", "password": adminPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/auth/refresh", s.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var refreshed struct {
		Token string `json:"token"`
	}
	decodeData(t, w, &refreshed)
	require.NotEqual(t, s.adminToken, refreshed.Token)

	// 刷新后旧令牌失效
	requireCode(t, s.do(http.MethodGet, "/auth/me", s.adminToken, nil), http.StatusUnauthorized, "INVALID_TOKEN")

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/auth/logout", refreshed.Token, nil).Code)
	requireCode(t, s.do(http.MethodGet, "/auth/me", refreshed.Token, nil), http.StatusUnauthorized, "INVALID_TOKEN")
}

func TestExpiredToken(t *testing.T) {
	s := newTestServer(t, nil)

	claims := services.JWTClaims{
		UserID: 1,
		Role:   "admin_super",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    "apex-test",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)

	requireCode(t, s.do(http.MethodGet, "/auth/me", token, nil), http.StatusUnauthorized, "TOKEN_EXPIRED")
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, nil)

	// 成功登录不计入次数
	for i := 0; i < 5; i++ {
		requireCode(t, s.do(http.MethodPost, "/auth/login", "", gin.H{"email": adminEmail, "password": "wrong"}),
			http.StatusUnauthorized, "INVALID_CREDENTIALS")
	}

	w := s.do(http.MethodPost, "/auth/login", "", gin.H{"email": adminEmail, "password": adminPassword})
	require.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "5", w.Header().Get("RateLimit-Limit"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t, relaxedPolicies())
	dispatcher := s.createUser("dispatcher")
	client := s.createUser("client")
	guard := s.createUser("guard")

	requireCode(t, s.do(http.MethodGet, "/users", dispatcher, nil), http.StatusForbidden, "FORBIDDEN")
	requireCode(t, s.do(http.MethodGet, "/incidents", client, nil), http.StatusForbidden, "FORBIDDEN")
	requireCode(t, s.do(http.MethodGet, "/reports/incidents/summary", guard, nil), http.StatusForbidden, "FORBIDDEN")
	requireCode(t, s.do(http.MethodPost, "/properties", dispatcher, gin.H{"name": "HQ", "code": "HQ"}),
		http.StatusForbidden, "FORBIDDEN")
	requireCode(t, s.do(http.MethodGet, "/audit-logs", dispatcher, nil), http.StatusForbidden, "FORBIDDEN")

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/users", s.adminToken, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/incidents", guard, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/reports/incidents/summary", client, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/audit-logs", s.adminToken, nil).Code)

	w := s.do(http.MethodGet, "/navigation", client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var nav struct {
		Role  string `json:"role"`
		Pages []struct {
			Key string `json:"key"`
		} `json:"pages"`
	}
	decodeData(t, w, &nav)
	assert.Equal(t, "client", nav.Role)
	keys := make([]string, 0, len(nav.Pages))
	for _, p := range nav.Pages {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"dashboard", "reports"}, keys)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t, relaxedPolicies())

	requireCode(t, s.do(http.MethodPost, "/properties", s.adminToken, "{not json"), http.StatusBadRequest, "BIND_ERROR")
	requireCode(t, s.do(http.MethodGet, "/properties/abc", s.adminToken, nil), http.StatusBadRequest, "VALIDATION_ERROR")
	requireCode(t, s.do(http.MethodGet, "/properties/999", s.adminToken, nil), http.StatusNotFound, "NOT_FOUND")
	requireCode(t, s.do(http.MethodPost, "/properties", s.adminToken, gin.H{"name": "No code"}),
		http.StatusBadRequest, "VALIDATION_ERROR")

	// 请求体中的 HTML 被清理
	w := s.do(http.MethodPost, "/properties", s.adminToken, gin.H{"name": "<b>HQ</b><script>alert(1)</script>", "code": "HQ"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var property struct {
		Name string `json:"name"`
	}
	decodeData(t, w, &property)
	assert.Equal(t, "HQ", property.Name)

	requireCode(t, s.do(http.MethodPost, "/properties", s.adminToken, gin.H{"name": "Dup", "code": "HQ"}),
		http.StatusConflict, "CONFLICT")

	// 不能删除自己
	var me idOnly
	decodeData(t, s.do(http.MethodGet, "/auth/me", s.adminToken, nil), &me)
	requireCode(t, s.do(http.MethodDelete, fmt.Sprintf("/users/%d", me.ID), s.adminToken, nil),
		http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestIncidentDispatchFlow(t *testing.T) {
	s := newTestServer(t, relaxedPolicies())
	dispatcher := s.createUser("dispatcher")

	var property idOnly
	w := s.do(http.MethodPost, "/properties", s.adminToken, gin.H{"name": "Tower One", "code": "T1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeData(t, w, &property)

	var guard idOnly
	w = s.do(http.MethodPost, "/guards", dispatcher, gin.H{"employee_id": "G-100", "first_name": "Sam", "last_name": "Lee"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeData(t, w, &guard)

	w = s.do(http.MethodPatch, fmt.Sprintf("/guards/%d/status", guard.ID), dispatcher,
		gin.H{"status": "on_duty", "property_id": property.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, fmt.Sprintf("/guards/available?property_id=%d", property.ID), dispatcher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var available []idOnly
	decodeData(t, w, &available)
	require.Len(t, available, 1)
	assert.Equal(t, guard.ID, available[0].ID)

	w = s.do(http.MethodPost, "/incidents", dispatcher, gin.H{
		"title": "Forced entry", "incident_type": "intrusion", "severity": "critical", "property_id": property.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var incident struct {
		ID             uint   `json:"id"`
		IncidentNumber string `json:"incident_number"`
		Tier           int    `json:"tier"`
		Status         string `json:"status"`
	}
	decodeData(t, w, &incident)
	assert.True(t, strings.HasPrefix(incident.IncidentNumber, "INC-"), incident.IncidentNumber)
	assert.Equal(t, 1, incident.Tier)
	assert.Equal(t, "reported", incident.Status)

	w = s.do(http.MethodGet, fmt.Sprintf("/incidents/%d/sops", incident.ID), dispatcher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/dispatch", dispatcher, gin.H{"incident_id": incident.ID, "guard_id": guard.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dispatch struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, w, &dispatch)
	assert.Equal(t, "assigned", dispatch.Status)

	// 警卫已被占用
	requireCode(t, s.do(http.MethodPost, "/dispatch", dispatcher, gin.H{"incident_id": incident.ID, "guard_id": guard.ID}),
		http.StatusConflict, "GUARD_UNAVAILABLE")

	incidentStatus := func() string {
		w := s.do(http.MethodGet, fmt.Sprintf("/incidents/%d", incident.ID), dispatcher, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got struct {
			Status string `json:"status"`
		}
		decodeData(t, w, &got)
		return got.Status
	}
	assert.Equal(t, "dispatched", incidentStatus())

	path := fmt.Sprintf("/dispatch/%d/status", dispatch.ID)
	require.Equal(t, http.StatusOK, s.do(http.MethodPatch, path, dispatcher, gin.H{"status": "on_scene"}).Code)
	assert.Equal(t, "in_progress", incidentStatus())

	requireCode(t, s.do(http.MethodPatch, path, dispatcher, gin.H{"status": "assigned"}),
		http.StatusUnprocessableEntity, "INVALID_TRANSITION")

	require.Equal(t, http.StatusOK, s.do(http.MethodPatch, path, dispatcher, gin.H{"status": "completed"}).Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/guards/%d", guard.ID), dispatcher, nil)
	var guardState struct {
		Status string `json:"status"`
	}
	decodeData(t, w, &guardState)
	assert.Equal(t, "on_duty", guardState.Status)

	w = s.do(http.MethodGet, fmt.Sprintf("/dispatch?incident_id=%d", incident.ID), dispatcher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Total int64 `json:"total"`
	}
	decodeData(t, w, &page)
	assert.Equal(t, int64(1), page.Total)
}

func TestSOPAndContactLists(t *testing.T) {
	s := newTestServer(t, relaxedPolicies())

	requireCode(t, s.do(http.MethodPost, "/contact-lists", s.adminToken, gin.H{
		"name": "Escalation", "contacts": []gin.H{{"name": "Ops desk"}},
	}), http.StatusBadRequest, "VALIDATION_ERROR")

	var list idOnly
	w := s.do(http.MethodPost, "/contact-lists", s.adminToken, gin.H{
		"name": "Escalation", "contacts": []gin.H{{"name": "Ops desk", "phone": "+1-555-0100", "priority": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeData(t, w, &list)

	requireCode(t, s.do(http.MethodPost, "/sops", s.adminToken, gin.H{"title": "Empty"}),
		http.StatusBadRequest, "VALIDATION_ERROR")

	w = s.do(http.MethodPost, "/sops", s.adminToken, gin.H{
		"title":           "Intrusion response",
		"incident_type":   "intrusion",
		"status":          "active",
		"contact_list_id": list.ID,
		"steps":           []gin.H{{"order": 1, "instruction": "Verify alarm", "required": true}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sop struct {
		ID      uint   `json:"id"`
		Version string `json:"version"`
	}
	decodeData(t, w, &sop)
	assert.Equal(t, "1.0", sop.Version)

	w = s.do(http.MethodPut, fmt.Sprintf("/sops/%d", sop.ID), s.adminToken, gin.H{
		"steps": []gin.H{
			{"order": 1, "instruction": "Verify alarm", "required": true},
			{"order": 2, "instruction": "Call police", "required": false},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &sop)
	assert.Equal(t, "1.1", sop.Version)
}

func TestReportSummaryCacheAndExport(t *testing.T) {
	s := newTestServer(t, relaxedPolicies())

	var property idOnly
	decodeData(t, s.do(http.MethodPost, "/properties", s.adminToken, gin.H{"name": "Mall", "code": "MALL"}), &property)

	summary := func() (string, int64) {
		w := s.do(http.MethodGet, "/reports/incidents/summary", s.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got struct {
			Total int64 `json:"total"`
		}
		decodeData(t, w, &got)
		return w.Header().Get("X-Cache"), got.Total
	}

	cacheState, total := summary()
	assert.Equal(t, "MISS", cacheState)
	assert.Equal(t, int64(0), total)
	cacheState, _ = summary()
	assert.Equal(t, "HIT", cacheState)

	w := s.do(http.MethodPost, "/incidents", s.adminToken, gin.H{
		"title": "Shoplifting", "incident_type": "theft", "severity": "medium", "property_id": property.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// 写入事件后缓存被清除
	cacheState, total = summary()
	assert.Equal(t, "MISS", cacheState)
	assert.Equal(t, int64(1), total)

	req := httptest.NewRequest(http.MethodGet, APIPrefix+"/reports/incidents/export", nil)
	req.Header.Set("Authorization", "Bearer "+s.adminToken)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"incidents-")
	// XLSX 是 zip 格式
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestLiveFeed(t *testing.T) {
	s := newTestServer(t, relaxedPolicies())

	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		_ = s.container.LiveHub().Run(ctx)
		close(hubDone)
	}()
	t.Cleanup(func() {
		cancel()
		<-hubDone
	})

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + APIPrefix + "/live"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+s.adminToken, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.container.LiveHub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	var property idOnly
	decodeData(t, s.do(http.MethodPost, "/properties", s.adminToken, gin.H{"name": "Depot", "code": "DEP"}), &property)
	w := s.do(http.MethodPost, "/incidents", s.adminToken, gin.H{
		"title": "Gate alarm", "incident_type": "alarm", "severity": "low", "property_id": property.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev services.LiveEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, services.EventIncidentCreated, ev.Type)
}
