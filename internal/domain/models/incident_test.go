package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTier(t *testing.T) {
	cases := []struct {
		name                         string
		incidentType, severity, prio string
		want                         int
	}{
		{"critical always tier 1", "trespass", SeverityCritical, PriorityLow, 1},
		{"high risk type with high severity", "weapon", SeverityHigh, PriorityNormal, 1},
		{"high risk type with medium severity", "fire", SeverityMedium, PriorityNormal, 3},
		{"high severity", "theft", SeverityHigh, PriorityNormal, 2},
		{"urgent priority", "theft", SeverityLow, PriorityUrgent, 2},
		{"otherwise", "noise", SeverityMedium, PriorityHigh, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyTier(tc.incidentType, tc.severity, tc.prio))
		})
	}
}

func TestIncidentTransitionTimestamps(t *testing.T) {
	reported := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	inc := &Incident{Status: IncidentReported, ReportedAt: reported}

	require.NoError(t, inc.TransitionTo(IncidentAcknowledged, reported.Add(30*time.Second)))
	require.NotNil(t, inc.ResponseTimeSeconds)
	assert.Equal(t, 30, *inc.ResponseTimeSeconds)

	require.NoError(t, inc.TransitionTo(IncidentDispatched, reported.Add(time.Minute)))
	assert.Equal(t, 30, *inc.ResponseTimeSeconds, "response time keeps the first response")
	assert.NotNil(t, inc.DispatchedAt)

	require.NoError(t, inc.TransitionTo(IncidentInProgress, reported.Add(2*time.Minute)))
	assert.NotNil(t, inc.ArrivedAt)

	require.NoError(t, inc.TransitionTo(IncidentResolved, reported.Add(10*time.Minute)))
	require.NotNil(t, inc.ResolutionTimeSeconds)
	assert.Equal(t, 600, *inc.ResolutionTimeSeconds)

	// reopen
	require.NoError(t, inc.TransitionTo(IncidentInProgress, reported.Add(11*time.Minute)))
	assert.Nil(t, inc.ResolvedAt)
	assert.Nil(t, inc.ResolutionTimeSeconds)

	require.NoError(t, inc.TransitionTo(IncidentResolved, reported.Add(12*time.Minute)))
	require.NoError(t, inc.TransitionTo(IncidentClosed, reported.Add(13*time.Minute)))
	assert.NotNil(t, inc.ClosedAt)

	assert.ErrorIs(t, inc.TransitionTo(IncidentInProgress, reported.Add(14*time.Minute)), ErrInvalidTransition)
}

func TestIncidentTransitionTable(t *testing.T) {
	assert.True(t, CanTransitionIncident(IncidentReported, IncidentFalseAlarm))
	assert.True(t, CanTransitionIncident(IncidentFalseAlarm, IncidentClosed))
	assert.False(t, CanTransitionIncident(IncidentReported, IncidentResolved))
	assert.False(t, CanTransitionIncident(IncidentInProgress, IncidentCancelled))
	assert.False(t, CanTransitionIncident(IncidentCancelled, IncidentReported))
	assert.False(t, CanTransitionIncident("unknown", IncidentClosed))

	assert.True(t, IsOpenIncidentStatus(IncidentDispatched))
	assert.False(t, IsOpenIncidentStatus(IncidentFalseAlarm))
	assert.False(t, IsOpenIncidentStatus("bogus"))
}

func TestDispatchTransitions(t *testing.T) {
	now := time.Now()
	d := &Dispatch{Status: DispatchAssigned}

	require.NoError(t, d.TransitionTo(DispatchEnRoute, now))
	assert.NotNil(t, d.EnRouteAt)
	assert.ErrorIs(t, d.TransitionTo(DispatchAcknowledged, now), ErrInvalidTransition)
	require.NoError(t, d.TransitionTo(DispatchOnScene, now))
	require.NoError(t, d.TransitionTo(DispatchCompleted, now))
	assert.ErrorIs(t, d.TransitionTo(DispatchCancelled, now), ErrInvalidTransition)

	d2 := &Dispatch{Status: DispatchOnScene}
	require.NoError(t, d2.TransitionTo(DispatchCancelled, now))
	assert.NotNil(t, d2.CancelledAt)
}

func TestRoleHelpers(t *testing.T) {
	assert.True(t, IsAdminRole(RoleAdmin))
	assert.True(t, IsAdminRole(RoleAdminOps))
	assert.False(t, IsAdminRole("administrator"))
	assert.False(t, IsAdminRole(RoleManager))
	assert.True(t, IsValidRole(RoleClient))
	assert.False(t, IsValidRole("root"))
}

func TestPaginationNormalize(t *testing.T) {
	q := PaginationQuery{Page: 0, PageSize: 500}
	q.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxPageSize, q.PageSize)
	assert.Equal(t, 0, q.Offset())

	q = PaginationQuery{Page: 3}
	q.Normalize()
	assert.Equal(t, DefaultPageSize, q.PageSize)
	assert.Equal(t, 40, q.Offset())
}
