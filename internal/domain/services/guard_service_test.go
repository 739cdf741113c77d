package services

import (
	"encoding/json"
	"testing"

	"apex-http-service/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardCRUD(t *testing.T) {
	db := newTestDB(t)
	svc := NewGuardService(db, testConfig(), NewAuditService(db, testConfig()), nil)
	p := seedProperty(t, db, "GD")

	guard, err := svc.CreateGuard(bg, Actor{}, GuardInput{
		EmployeeID:        strPtr("emp-001"),
		FirstName:         strPtr("Sam"),
		LastName:          strPtr("Reyes"),
		CurrentPropertyID: uintPtr(p.ID),
		Certifications:    []string{"First Aid", " ", "CPR"},
	})
	require.NoError(t, err)
	assert.Equal(t, "EMP-001", guard.EmployeeID)
	assert.Equal(t, models.GuardStatusOffDuty, guard.Status)

	var certs []string
	require.NoError(t, json.Unmarshal(guard.Certifications, &certs))
	assert.Equal(t, []string{"First Aid", "CPR"}, certs)

	_, err = svc.CreateGuard(bg, Actor{}, GuardInput{EmployeeID: strPtr("EMP-001"), FirstName: strPtr("Dup")})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateGuard(bg, Actor{}, GuardInput{EmployeeID: strPtr("EMP-002")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateGuard(bg, Actor{}, GuardInput{EmployeeID: strPtr("EMP-003"), FirstName: strPtr("X"), Status: strPtr("asleep")})
	assert.ErrorIs(t, err, ErrValidation)

	updated, err := svc.UpdateGuard(bg, Actor{}, guard.ID, GuardInput{Phone: strPtr("555-0100")})
	require.NoError(t, err)
	assert.Equal(t, "555-0100", updated.Phone)
	assert.Equal(t, "Sam", updated.FirstName)
	require.NotNil(t, updated.CurrentProperty)
	assert.Equal(t, p.ID, updated.CurrentProperty.ID)

	guards, total, err := svc.ListGuards(bg, GuardQuery{PropertyID: uintPtr(p.ID)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, guards, 1)

	require.NoError(t, svc.DeleteGuard(bg, Actor{}, guard.ID))
	_, err = svc.GetGuard(bg, guard.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGuardStatusUpdate(t *testing.T) {
	db := newTestDB(t)
	events := &recordingPublisher{}
	svc := NewGuardService(db, testConfig(), NewAuditService(db, testConfig()), events)
	p := seedProperty(t, db, "ST")
	g := seedGuard(t, db, "G-1", models.GuardStatusOffDuty, nil)

	lat, lng := 45.5, -122.6
	updated, err := svc.UpdateStatus(bg, Actor{}, g.ID, GuardStatusInput{
		Status: models.GuardStatusOnDuty, PropertyID: uintPtr(p.ID), Latitude: &lat, Longitude: &lng,
	})
	require.NoError(t, err)
	assert.Equal(t, models.GuardStatusOnDuty, updated.Status)
	require.NotNil(t, updated.CurrentPropertyID)
	assert.Equal(t, p.ID, *updated.CurrentPropertyID)
	assert.InDelta(t, 45.5, *updated.LastLatitude, 1e-9)
	assert.NotNil(t, updated.LastSeenAt)
	assert.Equal(t, []string{EventGuardStatus}, events.Types())

	_, err = svc.UpdateStatus(bg, Actor{}, g.ID, GuardStatusInput{Status: "napping"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateStatus(bg, Actor{}, 777, GuardStatusInput{Status: models.GuardStatusOnDuty})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAvailableGuards(t *testing.T) {
	db := newTestDB(t)
	svc := NewGuardService(db, testConfig(), NewAuditService(db, testConfig()), nil)
	p := seedProperty(t, db, "AV")
	seedGuard(t, db, "G-1", models.GuardStatusOnDuty, uintPtr(p.ID))
	seedGuard(t, db, "G-2", models.GuardStatusOnDuty, nil)
	seedGuard(t, db, "G-3", models.GuardStatusDispatched, uintPtr(p.ID))
	seedGuard(t, db, "G-4", models.GuardStatusOnBreak, uintPtr(p.ID))

	all, err := svc.ListAvailable(bg, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	atProperty, err := svc.ListAvailable(bg, uintPtr(p.ID))
	require.NoError(t, err)
	require.Len(t, atProperty, 1)
	assert.Equal(t, "G-1", atProperty[0].EmployeeID)
}

func TestDeleteDispatchedGuard(t *testing.T) {
	db := newTestDB(t)
	svc := NewGuardService(db, testConfig(), NewAuditService(db, testConfig()), nil)
	g := seedGuard(t, db, "G-9", models.GuardStatusDispatched, nil)

	assert.ErrorIs(t, svc.DeleteGuard(bg, Actor{}, g.ID), ErrConflict)
}

func TestGuardReportsOnlyOwnStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewGuardService(db, testConfig(), NewAuditService(db, testConfig()), nil)
	own := seedUser(t, db, "own@apex.test", models.RoleGuard, models.UserStatusActive)
	other := seedUser(t, db, "other@apex.test", models.RoleGuard, models.UserStatusActive)
	g := seedGuard(t, db, "G-1", models.GuardStatusOffDuty, nil)
	require.NoError(t, db.Model(g).Update("user_id", own.ID).Error)
	unlinked := seedGuard(t, db, "G-2", models.GuardStatusOffDuty, nil)

	_, err := svc.UpdateStatus(bg, Actor{UserID: other.ID, Role: models.RoleGuard}, g.ID, GuardStatusInput{Status: models.GuardStatusOnDuty})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.UpdateStatus(bg, Actor{UserID: other.ID, Role: models.RoleGuard}, unlinked.ID, GuardStatusInput{Status: models.GuardStatusOnDuty})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateStatus(bg, Actor{UserID: own.ID, Role: models.RoleGuard}, g.ID, GuardStatusInput{Status: models.GuardStatusOnDuty})
	require.NoError(t, err)
	assert.Equal(t, models.GuardStatusOnDuty, updated.Status)

	// 调度员可以修改任何警卫
	_, err = svc.UpdateStatus(bg, Actor{UserID: 1, Role: models.RoleDispatcher}, unlinked.ID, GuardStatusInput{Status: models.GuardStatusOnDuty})
	assert.NoError(t, err)
}

func TestDispatchedStatusIsOwnedByDispatch(t *testing.T) {
	f := newDispatchFixture(t)
	svc := NewGuardService(f.db, testConfig(), NewAuditService(f.db, testConfig()), nil)
	inc := f.create(t, IncidentInput{})
	g := seedGuard(t, f.db, "G-1", models.GuardStatusOnDuty, nil)
	idle := seedGuard(t, f.db, "G-2", models.GuardStatusOnDuty, nil)

	_, err := svc.UpdateStatus(bg, f.actor, idle.ID, GuardStatusInput{Status: models.GuardStatusDispatched})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.UpdateGuard(bg, f.actor, idle.ID, GuardInput{Status: strPtr(models.GuardStatusDispatched)})
	assert.ErrorIs(t, err, ErrConflict)

	d, err := f.dispatches.CreateDispatch(bg, f.actor, DispatchInput{IncidentID: inc.ID, GuardID: g.ID})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(bg, f.actor, g.ID, GuardStatusInput{Status: models.GuardStatusOnDuty})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.UpdateGuard(bg, f.actor, g.ID, GuardInput{Status: strPtr(models.GuardStatusOffDuty)})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, models.GuardStatusDispatched, f.guardStatus(t, g.ID))

	// 派遣中仍可上报位置
	lat, lng := 1.5, 2.5
	_, err = svc.UpdateStatus(bg, f.actor, g.ID, GuardStatusInput{Status: models.GuardStatusDispatched, Latitude: &lat, Longitude: &lng})
	assert.NoError(t, err)

	_, err = f.dispatches.UpdateStatus(bg, f.actor, d.ID, DispatchStatusInput{Status: models.DispatchCompleted})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(bg, f.actor, g.ID, GuardStatusInput{Status: models.GuardStatusOnBreak})
	assert.NoError(t, err)

	// 没有进行中派遣的遗留状态可以手工解除
	stale := seedGuard(t, f.db, "G-3", models.GuardStatusDispatched, nil)
	_, err = svc.UpdateStatus(bg, f.actor, stale.ID, GuardStatusInput{Status: models.GuardStatusOnDuty})
	assert.NoError(t, err)
}
