package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	"apex-http-service/internal/infrastructure/database"
	"apex-http-service/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	pool, err := database.OpenInMemory("svc_" + uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, database.Migrate(pool.DB, database.MigrateAuto))
	return pool.DB
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecretKey:         "test-secret-key-with-at-least-32-bytes!!",
		JWTIssuer:            "apex-test",
		JWTExpiresIn:         time.Hour,
		DefaultAdminEmail:    "admin@apex.test",
		DefaultAdminPassword: "Sup3rSecret!",
		MQTTTopicPrefix:      "apex",
		MQTTQoS:              1,
	}
}

func seedUser(t *testing.T, db *gorm.DB, email, role, status string) *models.User {
	t.Helper()
	hashed, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)
	u := &models.User{
		Email:    email,
		Username: email,
		Password: hashed,
		Role:     role,
		Status:   status,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedProperty(t *testing.T, db *gorm.DB, code string) *models.Property {
	t.Helper()
	p := &models.Property{Name: "Property " + code, Code: code, Status: "active", Timezone: "UTC"}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedGuard(t *testing.T, db *gorm.DB, employeeID, status string, propertyID *uint) *models.Guard {
	t.Helper()
	g := &models.Guard{EmployeeID: employeeID, FirstName: "Guard", LastName: employeeID, Status: status, CurrentPropertyID: propertyID}
	require.NoError(t, db.Create(g).Error)
	return g
}

func strPtr(s string) *string { return &s }
func uintPtr(v uint) *uint    { return &v }

// recordingPublisher 记录广播的事件类型和数据
type recordingPublisher struct {
	mu       sync.Mutex
	events   []string
	payloads []interface{}
}

func (p *recordingPublisher) Publish(eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	p.payloads = append(p.payloads, data)
}

// Last 返回指定类型最近一次广播的数据
func (p *recordingPublisher) Last(eventType string) interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i] == eventType {
			return p.payloads[i]
		}
	}
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// fakeMQTT 记录派遣通知
type fakeMQTT struct {
	mu         sync.Mutex
	dispatches []uint
	incidents  []string
}

func (f *fakeMQTT) Connect() error    { return nil }
func (f *fakeMQTT) Disconnect()       {}
func (f *fakeMQTT) IsConnected() bool { return true }

func (f *fakeMQTT) PublishDispatch(d *models.Dispatch, _ *models.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches = append(f.dispatches, d.GuardID)
	return nil
}

func (f *fakeMQTT) PublishIncident(eventType string, _ *models.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents = append(f.incidents, eventType)
	return nil
}

var bg = context.Background()
