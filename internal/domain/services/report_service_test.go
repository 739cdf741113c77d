package services

import (
	"bytes"
	"testing"

	"apex-http-service/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seedReportData(t *testing.T) (*incidentFixture, InterfaceReportService) {
	f := newIncidentFixture(t)
	second := seedProperty(t, f.db, "SECOND")

	a := f.create(t, IncidentInput{Severity: strPtr(models.SeverityCritical), IncidentType: strPtr("fire")})
	f.create(t, IncidentInput{Severity: strPtr(models.SeverityLow)})
	f.create(t, IncidentInput{Severity: strPtr(models.SeverityLow), PropertyID: uintPtr(second.ID)})

	_, err := f.svc.UpdateStatus(bg, f.actor, a.ID, IncidentStatusInput{Status: models.IncidentAcknowledged})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(bg, f.actor, a.ID, IncidentStatusInput{Status: models.IncidentResolved})
	require.NoError(t, err)

	return f, NewReportService(f.db, testConfig())
}

func TestIncidentSummary(t *testing.T) {
	f, svc := seedReportData(t)

	summary, err := svc.IncidentSummary(bg, ReportQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.Total)
	assert.EqualValues(t, 2, summary.Open)
	assert.Equal(t, map[string]int64{models.IncidentResolved: 1, models.IncidentReported: 2}, summary.ByStatus)
	assert.Equal(t, map[string]int64{models.SeverityCritical: 1, models.SeverityLow: 2}, summary.BySeverity)
	assert.Equal(t, map[string]int64{"1": 1, "3": 2}, summary.ByTier)
	assert.Equal(t, map[string]int64{"fire": 1, "trespass": 2}, summary.ByType)
	require.Len(t, summary.ByProperty, 2)
	assert.Equal(t, f.property.ID, summary.ByProperty[0].PropertyID)
	assert.Equal(t, "Property INC", summary.ByProperty[0].PropertyName)
	assert.EqualValues(t, 2, summary.ByProperty[0].Count)
	require.NotNil(t, summary.AvgResponseTimeSeconds)
	require.NotNil(t, summary.AvgResolutionTimeSeconds)

	scoped, err := svc.IncidentSummary(bg, ReportQuery{PropertyID: uintPtr(f.property.ID)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, scoped.Total)
}

func TestIncidentSummaryEmpty(t *testing.T) {
	db := newTestDB(t)
	summary, err := NewReportService(db, testConfig()).IncidentSummary(bg, ReportQuery{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Empty(t, summary.ByProperty)
	assert.Nil(t, summary.AvgResponseTimeSeconds)
}

func TestExportIncidents(t *testing.T) {
	_, svc := seedReportData(t)

	data, filename, err := svc.ExportIncidents(bg, ReportQuery{})
	require.NoError(t, err)
	assert.Regexp(t, `^incidents-\d{8}-\d{6}\.xlsx$`, filename)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Incidents")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Regexp(t, `^INC-`, rows[1][0])
}
