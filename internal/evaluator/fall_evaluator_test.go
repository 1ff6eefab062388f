package evaluator

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	rediscommon "wisefido-vision/internal/common/redis"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/consumer"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/pose"
	"wisefido-vision/internal/repository"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []*models.AlarmEvent
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, event *models.AlarmEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type testEnv struct {
	evaluator   *FallEvaluator
	mock        sqlmock.Sqlmock
	db          *sql.DB
	redisClient *redis.Client
	state       *consumer.StateManager
	cache       *consumer.CacheManager
	notifier    *fakeNotifier
}

func setupEvaluator(t *testing.T) *testEnv {
	cfg := &config.Config{TenantID: "tenant-1"}
	cfg.Vision.WindowSize = 3
	cfg.Vision.FPS = 10
	cfg.Vision.Cache.KeyPrefix = "vision:device:"
	cfg.Vision.Cache.WindowSuffix = ":skeleton"
	cfg.Vision.Cache.ResultSuffix = ":fall"
	cfg.Vision.Cache.ResultTTL = 30 * time.Second
	cfg.Vision.Cache.StateKeyPrefix = "vision:state:"
	cfg.Vision.ResultStream = "vision:fall:stream"
	cfg.Vision.ResultStreamMax = 100
	cfg.Vision.Alarm.Cooldown = 5 * time.Minute

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	cache := consumer.NewCacheManager(cfg, redisClient, logger)
	state := consumer.NewStateManager(cfg, redisClient, logger)
	notifier := &fakeNotifier{}

	e := NewFallEvaluator(
		cfg,
		pose.NewDetector(),
		cache,
		state,
		repository.NewAlarmEventsRepository(db, logger),
		notifier,
		redisClient,
		logger,
	)
	return &testEnv{
		evaluator:   e,
		mock:        mock,
		db:          db,
		redisClient: redisClient,
		state:       state,
		cache:       cache,
		notifier:    notifier,
	}
}

func testDevice() *models.Device {
	room := "Room 101"
	return &models.Device{DeviceID: "device-1", TenantID: "tenant-1", DeviceName: "Bedroom Cam", RoomName: &room}
}

var alarmColumns = []string{
	"event_id", "tenant_id", "device_id", "event_type", "category", "alarm_level", "alarm_status",
	"triggered_at", "trigger_data", "notified_users", "metadata", "created_at", "updated_at",
}

// 直立 -> 蜷缩 -> 直立，置信度约 87.9
func fallWindow() *consumer.Window {
	return &consumer.Window{
		Frames: pose.Cache{standingFrame(), collapsedFrame(), standingFrame()},
		Start:  1000,
		End:    3000,
	}
}

func TestFallEvaluator_NoFall(t *testing.T) {
	env := setupEvaluator(t)
	ctx := context.Background()
	window := &consumer.Window{Frames: pose.Cache{standingFrame(), standingFrame(), standingFrame()}, Start: 1, End: 2}

	result, err := env.evaluator.Evaluate(ctx, testDevice(), window)

	require.NoError(t, err)
	assert.False(t, result.IsFall)
	assert.Equal(t, 50.0, result.FallScore)
	assert.Empty(t, result.AlarmID)
	assert.Empty(t, env.notifier.events)
	require.NoError(t, env.mock.ExpectationsWereMet())

	cached, err := env.cache.GetLatestResult(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, 3, cached.Frames)

	msgs, err := rediscommon.ReadRange(ctx, env.redisClient, "vision:fall:stream", "-", "+")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestFallEvaluator_RaisesAlarm(t *testing.T) {
	env := setupEvaluator(t)
	ctx := context.Background()

	env.mock.ExpectQuery(`SELECT .* FROM alarm_events`).
		WillReturnRows(sqlmock.NewRows(alarmColumns))
	env.mock.ExpectExec(`INSERT INTO alarm_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := env.evaluator.Evaluate(ctx, testDevice(), fallWindow())

	require.NoError(t, err)
	assert.True(t, result.IsFall)
	assert.InDelta(t, 87.9, result.FallScore, 0.05)
	assert.NotEmpty(t, result.AlarmID)
	assert.Equal(t, int64(1000), result.WindowStart)
	require.NoError(t, env.mock.ExpectationsWereMet())

	require.Len(t, env.notifier.events, 1)
	event := env.notifier.events[0]
	assert.Equal(t, result.AlarmID, event.EventID)
	assert.Equal(t, "Fall", event.EventType)
	assert.Contains(t, event.Metadata, "Room 101")

	var state consumer.FallAlarmState
	require.NoError(t, env.state.GetState(ctx, env.state.GetStateKey("device-1", "fall_alarm"), &state))
	assert.Equal(t, result.AlarmID, state.EventID)

	cached, err := env.cache.GetLatestResult(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, result.AlarmID, cached.AlarmID)
}

func TestFallEvaluator_CooldownSuppressesAlarm(t *testing.T) {
	env := setupEvaluator(t)
	ctx := context.Background()

	env.mock.ExpectQuery(`SELECT .* FROM alarm_events`).
		WillReturnRows(sqlmock.NewRows(alarmColumns))
	env.mock.ExpectExec(`INSERT INTO alarm_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	first, err := env.evaluator.Evaluate(ctx, testDevice(), fallWindow())
	require.NoError(t, err)
	require.NotEmpty(t, first.AlarmID)

	second, err := env.evaluator.Evaluate(ctx, testDevice(), fallWindow())

	require.NoError(t, err)
	assert.True(t, second.IsFall)
	assert.Empty(t, second.AlarmID)
	assert.Len(t, env.notifier.events, 1)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestFallEvaluator_RecentAlarmInDatabase(t *testing.T) {
	env := setupEvaluator(t)
	ctx := context.Background()
	triggeredAt := time.Now().Add(-time.Minute)

	env.mock.ExpectQuery(`SELECT .* FROM alarm_events`).
		WillReturnRows(sqlmock.NewRows(alarmColumns).AddRow(
			"event-old", "tenant-1", "device-1", "Fall", "safety", "ALERT", "active",
			triggeredAt, []byte(`{}`), []byte(`[]`), []byte(`{}`), triggeredAt, triggeredAt,
		))

	result, err := env.evaluator.Evaluate(ctx, testDevice(), fallWindow())

	require.NoError(t, err)
	assert.True(t, result.IsFall)
	assert.Empty(t, result.AlarmID)
	assert.Empty(t, env.notifier.events)
	require.NoError(t, env.mock.ExpectationsWereMet())

	var state consumer.FallAlarmState
	require.NoError(t, env.state.GetState(ctx, env.state.GetStateKey("device-1", "fall_alarm"), &state))
	assert.Equal(t, "event-old", state.EventID)
}

func TestFallEvaluator_InsertFailureKeepsResult(t *testing.T) {
	env := setupEvaluator(t)
	ctx := context.Background()

	env.mock.ExpectQuery(`SELECT .* FROM alarm_events`).
		WillReturnRows(sqlmock.NewRows(alarmColumns))
	env.mock.ExpectExec(`INSERT INTO alarm_events`).
		WillReturnError(errors.New("connection refused"))

	result, err := env.evaluator.Evaluate(ctx, testDevice(), fallWindow())

	require.NoError(t, err)
	assert.True(t, result.IsFall)
	assert.Empty(t, result.AlarmID)
	assert.Empty(t, env.notifier.events)

	exists, err := env.state.ExistsState(ctx, env.state.GetStateKey("device-1", "fall_alarm"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFallEvaluator_NotifierErrorIgnored(t *testing.T) {
	env := setupEvaluator(t)
	env.notifier.err = errors.New("webhook down")

	env.mock.ExpectQuery(`SELECT .* FROM alarm_events`).
		WillReturnRows(sqlmock.NewRows(alarmColumns))
	env.mock.ExpectExec(`INSERT INTO alarm_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := env.evaluator.Evaluate(context.Background(), testDevice(), fallWindow())

	require.NoError(t, err)
	assert.NotEmpty(t, result.AlarmID)
}

func TestFallEvaluator_MissingTenantSkipsAlarm(t *testing.T) {
	env := setupEvaluator(t)
	ctx := context.Background()
	env.evaluator.config.TenantID = ""
	core, logs := observer.New(zap.WarnLevel)
	env.evaluator.logger = zap.New(core)

	device := testDevice()
	device.TenantID = ""

	for i := 0; i < 3; i++ {
		result, err := env.evaluator.Evaluate(ctx, device, fallWindow())
		require.NoError(t, err)
		assert.True(t, result.IsFall)
		assert.Empty(t, result.TenantID)
		assert.Empty(t, result.AlarmID)
	}

	assert.Empty(t, env.notifier.events)
	require.NoError(t, env.mock.ExpectationsWereMet())
	assert.Equal(t, 1, logs.FilterMessageSnippet("no tenant").Len())
	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())

	cached, err := env.cache.GetLatestResult(ctx, "device-1")
	require.NoError(t, err)
	assert.True(t, cached.IsFall)
}

func TestFallEvaluator_InvalidWindow(t *testing.T) {
	env := setupEvaluator(t)

	_, err := env.evaluator.Evaluate(context.Background(), testDevice(), &consumer.Window{})

	require.Error(t, err)
	assert.True(t, pose.IsInvalidInput(err))
}

func standingFrame() pose.Frame {
	var f pose.Frame
	f[pose.Nose] = pose.Keypoint{X: 0, Y: 0}
	f[pose.LeftShoulder] = pose.Keypoint{X: -2, Y: 2}
	f[pose.RightShoulder] = pose.Keypoint{X: 2, Y: 2}
	f[pose.LeftElbow] = pose.Keypoint{X: -2, Y: 5}
	f[pose.RightElbow] = pose.Keypoint{X: 2, Y: 5}
	f[pose.LeftHip] = pose.Keypoint{X: -1, Y: 6}
	f[pose.RightHip] = pose.Keypoint{X: 1, Y: 6}
	f[pose.LeftKnee] = pose.Keypoint{X: -1, Y: 9}
	f[pose.RightKnee] = pose.Keypoint{X: 1, Y: 9}
	f[pose.LeftAnkle] = pose.Keypoint{X: -1, Y: 12}
	f[pose.RightAnkle] = pose.Keypoint{X: 1, Y: 12}
	return f
}

func collapsedFrame() pose.Frame {
	f := standingFrame()
	f[pose.Nose] = pose.Keypoint{X: 4, Y: 5}
	f[pose.LeftElbow] = pose.Keypoint{X: -4, Y: 0}
	f[pose.RightElbow] = pose.Keypoint{X: 4, Y: 0}
	f[pose.LeftKnee] = pose.Keypoint{X: -4, Y: 7}
	f[pose.RightKnee] = pose.Keypoint{X: 4, Y: 7}
	f[pose.LeftAnkle] = pose.Keypoint{X: -1, Y: 8}
	f[pose.RightAnkle] = pose.Keypoint{X: 1, Y: 8}
	return f
}
