package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-vision/internal/models"
)

func setupMockAlarmEventsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlarmEventsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewAlarmEventsRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestCreateAlarmEvent_Success(t *testing.T) {
	db, mock, repo := setupMockAlarmEventsDB(t)
	defer db.Close()

	ctx := context.Background()
	tenantID := uuid.New().String()
	eventID := uuid.New().String()
	deviceID := uuid.New().String()
	now := time.Now()

	event := &models.AlarmEvent{
		EventID:       eventID,
		TenantID:      tenantID,
		DeviceID:      deviceID,
		EventType:     models.EventTypeFall,
		Category:      models.CategorySafety,
		AlarmLevel:    models.AlarmLevelAlert,
		AlarmStatus:   models.AlarmStatusActive,
		TriggeredAt:   now,
		TriggerData:   `{"fall_score": 81.2}`,
		NotifiedUsers: `[]`,
		Metadata:      `{}`,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectExec(`INSERT INTO alarm_events`).
		WithArgs(
			eventID, tenantID, deviceID, "Fall", "safety",
			"ALERT", "active", now,
			`{"fall_score": 81.2}`, `[]`, `{}`, now, now,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateAlarmEvent(ctx, tenantID, event)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlarmEvent_InvalidTenantID(t *testing.T) {
	db, mock, repo := setupMockAlarmEventsDB(t)
	defer db.Close()

	err := repo.CreateAlarmEvent(context.Background(), "", &models.AlarmEvent{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id is required")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlarmEvent_TenantMismatch(t *testing.T) {
	db, mock, repo := setupMockAlarmEventsDB(t)
	defer db.Close()

	err := repo.CreateAlarmEvent(context.Background(), "tenant-a", &models.AlarmEvent{TenantID: "tenant-b"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must match")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlarmEvent_DBError(t *testing.T) {
	db, mock, repo := setupMockAlarmEventsDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO alarm_events`).
		WillReturnError(errors.New("connection reset"))

	err := repo.CreateAlarmEvent(context.Background(), "tenant-a", &models.AlarmEvent{TenantID: "tenant-a"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create alarm event")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentAlarmEvent_Found(t *testing.T) {
	db, mock, repo := setupMockAlarmEventsDB(t)
	defer db.Close()

	tenantID := uuid.New().String()
	deviceID := uuid.New().String()
	eventID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"event_id", "tenant_id", "device_id", "event_type", "category",
		"alarm_level", "alarm_status", "triggered_at", "trigger_data",
		"notified_users", "metadata", "created_at", "updated_at",
	}).AddRow(
		eventID, tenantID, deviceID, "Fall", "safety",
		"ALERT", "active", now, nil,
		`[]`, `{"trigger_source":"vision"}`, now, now,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(tenantID, deviceID, "Fall", sqlmock.AnyArg()).
		WillReturnRows(rows)

	event, err := repo.GetRecentAlarmEvent(context.Background(), tenantID, deviceID, "Fall", 5*time.Minute)

	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, eventID, event.EventID)
	assert.Equal(t, "{}", event.TriggerData)
	assert.Equal(t, "[]", event.NotifiedUsers)
	assert.Equal(t, `{"trigger_source":"vision"}`, event.Metadata)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentAlarmEvent_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlarmEventsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("tenant-a", "device-a", "Fall", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	event, err := repo.GetRecentAlarmEvent(context.Background(), "tenant-a", "device-a", "Fall", time.Minute)

	require.NoError(t, err)
	assert.Nil(t, event)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentAlarmEvent_MissingArgs(t *testing.T) {
	db, mock, repo := setupMockAlarmEventsDB(t)
	defer db.Close()

	_, err := repo.GetRecentAlarmEvent(context.Background(), "tenant-a", "", "Fall", time.Minute)
	assert.ErrorContains(t, err, "device_id is required")

	_, err = repo.GetRecentAlarmEvent(context.Background(), "tenant-a", "device-a", "", time.Minute)
	assert.ErrorContains(t, err, "event_type is required")

	require.NoError(t, mock.ExpectationsWereMet())
}
