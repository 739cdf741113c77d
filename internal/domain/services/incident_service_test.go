package services

import (
	"encoding/json"
	"testing"
	"time"

	"apex-http-service/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type incidentFixture struct {
	db       *gorm.DB
	svc      InterfaceIncidentService
	events   *recordingPublisher
	mqtt     *fakeMQTT
	property *models.Property
	actor    Actor
}

func newIncidentFixture(t *testing.T) *incidentFixture {
	db := newTestDB(t)
	user := seedUser(t, db, "dispatch@apex.test", models.RoleDispatcher, models.UserStatusActive)
	events := &recordingPublisher{}
	mq := &fakeMQTT{}
	return &incidentFixture{
		db:       db,
		svc:      NewIncidentService(db, testConfig(), NewAuditService(db, testConfig()), events, mq),
		events:   events,
		mqtt:     mq,
		property: seedProperty(t, db, "INC"),
		actor:    Actor{UserID: user.ID, Role: user.Role},
	}
}

func (f *incidentFixture) create(t *testing.T, in IncidentInput) *models.Incident {
	t.Helper()
	if in.PropertyID == nil {
		in.PropertyID = uintPtr(f.property.ID)
	}
	if in.Title == nil {
		in.Title = strPtr("Suspicious person")
	}
	if in.IncidentType == nil {
		in.IncidentType = strPtr("trespass")
	}
	inc, err := f.svc.CreateIncident(bg, f.actor, in)
	require.NoError(t, err)
	return inc
}

func TestCreateIncident(t *testing.T) {
	f := newIncidentFixture(t)

	inc := f.create(t, IncidentInput{
		Title:        strPtr("Armed subject <script>x</script>"),
		IncidentType: strPtr("Weapon"),
		Severity:     strPtr(models.SeverityHigh),
		Tags:         []string{"Lobby", ""},
		Metadata:     map[string]interface{}{"camera_url": "javascript:alert(1)", "note": "<i>ok</i>"},
	})
	assert.Regexp(t, `^INC-`, inc.IncidentNumber)
	assert.Equal(t, models.IncidentReported, inc.Status)
	assert.Equal(t, "weapon", inc.IncidentType)
	assert.Equal(t, 1, inc.Tier)
	assert.Equal(t, "Armed subject", inc.Title)
	require.NotNil(t, inc.ReportedByUserID)
	assert.Equal(t, f.actor.UserID, *inc.ReportedByUserID)
	assert.JSONEq(t, `["lobby"]`, string(inc.Tags))

	var meta map[string]string
	require.NoError(t, json.Unmarshal(inc.Metadata, &meta))
	assert.Equal(t, "", meta["camera_url"])
	assert.Equal(t, "ok", meta["note"])

	assert.Equal(t, []string{EventIncidentCreated}, f.events.Types())
	assert.Equal(t, []string{EventIncidentCreated}, f.mqtt.incidents)

	low := f.create(t, IncidentInput{Severity: strPtr(models.SeverityLow)})
	assert.Equal(t, 3, low.Tier)
	assert.NotEqual(t, inc.IncidentNumber, low.IncidentNumber)
}

func TestCreateIncidentValidation(t *testing.T) {
	f := newIncidentFixture(t)
	other := seedProperty(t, f.db, "OTHER")
	zone := models.Zone{PropertyID: other.ID, Name: "Dock", RiskLevel: "low", Status: "active"}
	require.NoError(t, f.db.Create(&zone).Error)

	cases := map[string]IncidentInput{
		"missing property": {Title: strPtr("x"), IncidentType: strPtr("t")},
		"unknown property": {Title: strPtr("x"), IncidentType: strPtr("t"), PropertyID: uintPtr(4040)},
		"foreign zone":     {Title: strPtr("x"), IncidentType: strPtr("t"), PropertyID: uintPtr(f.property.ID), ZoneID: uintPtr(zone.ID)},
		"bad severity":     {Title: strPtr("x"), IncidentType: strPtr("t"), PropertyID: uintPtr(f.property.ID), Severity: strPtr("apocalyptic")},
		"bad confidence":   {Title: strPtr("x"), IncidentType: strPtr("t"), PropertyID: uintPtr(f.property.ID), AIConfidence: floatPtr(1.5)},
		"bad photo url":    {Title: strPtr("x"), IncidentType: strPtr("t"), PropertyID: uintPtr(f.property.ID), Photos: []string{"ftp://x/y.png"}},
		"missing title":    {IncidentType: strPtr("t"), PropertyID: uintPtr(f.property.ID)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateIncident(bg, f.actor, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateIncidentRecomputesTier(t *testing.T) {
	f := newIncidentFixture(t)
	inc := f.create(t, IncidentInput{})
	assert.Equal(t, 3, inc.Tier)

	updated, err := f.svc.UpdateIncident(bg, f.actor, inc.ID, IncidentInput{Priority: strPtr(models.PriorityUrgent)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Tier)
	assert.Equal(t, "Suspicious person", updated.Title)
	require.NotNil(t, updated.Property)

	updated, err = f.svc.UpdateIncident(bg, f.actor, inc.ID, IncidentInput{Severity: strPtr(models.SeverityCritical)})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Tier)

	_, err = f.svc.UpdateIncident(bg, f.actor, 999, IncidentInput{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncidentStatusFlow(t *testing.T) {
	f := newIncidentFixture(t)
	inc := f.create(t, IncidentInput{})

	acked, err := f.svc.UpdateStatus(bg, f.actor, inc.ID, IncidentStatusInput{Status: models.IncidentAcknowledged, Notes: "on it"})
	require.NoError(t, err)
	assert.NotNil(t, acked.AcknowledgedAt)
	require.NotNil(t, acked.ResponseTimeSeconds)
	assert.Contains(t, acked.Notes, "on it")

	_, err = f.svc.UpdateStatus(bg, f.actor, inc.ID, IncidentStatusInput{Status: models.IncidentClosed})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	resolved, err := f.svc.UpdateStatus(bg, f.actor, inc.ID, IncidentStatusInput{Status: models.IncidentResolved, ResolutionNotes: "Subject left"})
	require.NoError(t, err)
	assert.Equal(t, "Subject left", resolved.ResolutionNotes)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.NotNil(t, resolved.ResolutionTimeSeconds)

	closed, err := f.svc.UpdateStatus(bg, f.actor, inc.ID, IncidentStatusInput{Status: models.IncidentClosed})
	require.NoError(t, err)
	assert.NotNil(t, closed.ClosedAt)

	_, err = f.svc.UpdateIncident(bg, f.actor, inc.ID, IncidentInput{Title: strPtr("late edit")})
	assert.ErrorIs(t, err, ErrIncidentClosed)

	stored, err := f.svc.GetIncident(bg, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentClosed, stored.Status)
	assert.Contains(t, f.mqtt.incidents, EventIncidentStatus)
}

func TestAddEvidence(t *testing.T) {
	f := newIncidentFixture(t)
	inc := f.create(t, IncidentInput{})

	_, err := f.svc.AddEvidence(bg, f.actor, inc.ID, EvidenceInput{Type: "Photo", URL: "https://cdn.apex.test/a.jpg", Description: "front door"})
	require.NoError(t, err)
	updated, err := f.svc.AddEvidence(bg, f.actor, inc.ID, EvidenceInput{Type: "video", URL: "https://cdn.apex.test/b.mp4"})
	require.NoError(t, err)

	var items []models.EvidenceItem
	require.NoError(t, json.Unmarshal(updated.Evidence, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "photo", items[0].Type)
	assert.Equal(t, f.actor.UserID, items[0].UploadedBy)

	_, err = f.svc.AddEvidence(bg, f.actor, inc.ID, EvidenceInput{Type: "hologram", URL: "https://x.test/a"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.AddEvidence(bg, f.actor, inc.ID, EvidenceInput{Type: "photo", URL: "file:///etc/passwd"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.AddEvidence(bg, f.actor, 555, EvidenceInput{Type: "photo", URL: "https://x.test/a"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIncidents(t *testing.T) {
	f := newIncidentFixture(t)
	f.create(t, IncidentInput{Severity: strPtr(models.SeverityLow), Title: strPtr("Loitering")})
	f.create(t, IncidentInput{Severity: strPtr(models.SeverityHigh), Title: strPtr("Break in")})
	critical := f.create(t, IncidentInput{Severity: strPtr(models.SeverityCritical), Title: strPtr("Fire alarm")})
	_, err := f.svc.UpdateStatus(bg, f.actor, critical.ID, IncidentStatusInput{Status: models.IncidentFalseAlarm})
	require.NoError(t, err)

	list, total, err := f.svc.ListIncidents(bg, IncidentQuery{Severity: "high,critical"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	list, total, err = f.svc.ListIncidents(bg, IncidentQuery{Status: models.IncidentReported})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	tier := 1
	_, total, err = f.svc.ListIncidents(bg, IncidentQuery{Tier: &tier})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = f.svc.ListIncidents(bg, IncidentQuery{Search: "Break"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	future := time.Now().UTC().Add(time.Hour)
	_, total, err = f.svc.ListIncidents(bg, IncidentQuery{From: &future})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	list, total, err = f.svc.ListIncidents(bg, IncidentQuery{PaginationQuery: models.PaginationQuery{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 1)
}

func TestDeleteIncident(t *testing.T) {
	f := newIncidentFixture(t)
	inc := f.create(t, IncidentInput{})

	require.NoError(t, f.svc.DeleteIncident(bg, f.actor, inc.ID))
	assert.ErrorIs(t, f.svc.DeleteIncident(bg, f.actor, inc.ID), ErrNotFound)
	_, err := f.svc.GetIncident(bg, inc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func floatPtr(v float64) *float64 { return &v }
