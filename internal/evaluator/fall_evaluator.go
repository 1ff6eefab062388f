package evaluator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "wisefido-vision/internal/common/redis"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/consumer"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/pose"
	"wisefido-vision/internal/repository"
)

// fallStateType 冷却状态类型（StateManager 键后缀）
const fallStateType = "fall_alarm"

// Notifier 报警通知接口
type Notifier interface {
	Notify(ctx context.Context, event *models.AlarmEvent) error
}

// FallEvaluator 跌倒评估器（实现 consumer.Evaluator 接口）
type FallEvaluator struct {
	config          *config.Config
	detector        *pose.Detector
	cacheManager    *consumer.CacheManager
	stateManager    *consumer.StateManager
	alarmEventsRepo *repository.AlarmEventsRepository
	notifier        Notifier // 可为 nil
	redisClient     *redis.Client
	logger          *zap.Logger

	// 缺少租户的设备只告警一次
	missingTenant sync.Map
}

// NewFallEvaluator 创建跌倒评估器
func NewFallEvaluator(
	cfg *config.Config,
	detector *pose.Detector,
	cacheManager *consumer.CacheManager,
	stateManager *consumer.StateManager,
	alarmEventsRepo *repository.AlarmEventsRepository,
	notifier Notifier,
	redisClient *redis.Client,
	logger *zap.Logger,
) *FallEvaluator {
	return &FallEvaluator{
		config:          cfg,
		detector:        detector,
		cacheManager:    cacheManager,
		stateManager:    stateManager,
		alarmEventsRepo: alarmEventsRepo,
		notifier:        notifier,
		redisClient:     redisClient,
		logger:          logger,
	}
}

// Evaluate 对设备窗口执行跌倒检测
// 报警、缓存、Stream 写入失败只记录日志，不影响检测结果返回
func (e *FallEvaluator) Evaluate(ctx context.Context, device *models.Device, window *consumer.Window) (*models.FallResult, error) {
	res, err := e.detector.Evaluate(window.Frames)
	if err != nil {
		return nil, fmt.Errorf("failed to detect fall: %w", err)
	}

	tenantID := device.TenantID
	if tenantID == "" {
		tenantID = e.config.TenantID
	}

	result := &models.FallResult{
		DeviceID:    device.DeviceID,
		TenantID:    tenantID,
		IsFall:      res.IsFall,
		FallScore:   res.Score,
		MotionIndex: res.Motion,
		Frames:      res.Frames,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		EvaluatedAt: time.Now().Unix(),
	}

	if result.IsFall {
		alarmID, err := e.raiseAlarm(ctx, device, result)
		if err != nil {
			e.logger.Error("Failed to raise fall alarm",
				zap.String("device_id", device.DeviceID),
				zap.Float64("fall_score", result.FallScore),
				zap.Error(err),
			)
		}
		result.AlarmID = alarmID
	}

	if err := e.cacheManager.SetLatestResult(ctx, result); err != nil {
		e.logger.Error("Failed to cache fall result",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}

	if e.config.Vision.ResultStream != "" {
		if _, err := rediscommon.PublishJSONToStream(ctx, e.redisClient, e.config.Vision.ResultStream, e.config.Vision.ResultStreamMax, result); err != nil {
			e.logger.Error("Failed to publish fall result",
				zap.String("device_id", device.DeviceID),
				zap.String("stream", e.config.Vision.ResultStream),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// raiseAlarm 生成并写入跌倒报警，冷却期内返回空 ID
func (e *FallEvaluator) raiseAlarm(ctx context.Context, device *models.Device, result *models.FallResult) (string, error) {
	if result.TenantID == "" {
		if _, warned := e.missingTenant.LoadOrStore(device.DeviceID, struct{}{}); !warned {
			e.logger.Warn("Fall detected but device has no tenant, alarm not created",
				zap.String("device_id", device.DeviceID),
				zap.Float64("fall_score", result.FallScore),
			)
		}
		return "", nil
	}

	cooldown := e.config.Vision.Alarm.Cooldown
	stateKey := e.stateManager.GetStateKey(device.DeviceID, fallStateType)

	if cooldown > 0 {
		exists, err := e.stateManager.ExistsState(ctx, stateKey)
		if err != nil {
			return "", err
		}
		if exists {
			e.logger.Debug("Fall alarm suppressed by cooldown",
				zap.String("device_id", device.DeviceID),
				zap.Float64("fall_score", result.FallScore),
			)
			return "", nil
		}

		// Redis 状态丢失（重启、过期）时以数据库为准
		recent, err := e.CheckDuplicate(ctx, result.TenantID, device.DeviceID, cooldown)
		if err != nil {
			return "", err
		}
		if recent != nil {
			e.logger.Debug("Recent fall alarm exists, skipping",
				zap.String("device_id", device.DeviceID),
				zap.String("event_id", recent.EventID),
			)
			e.setCooldown(ctx, stateKey, recent.EventID, recent.TriggeredAt, result.FallScore, cooldown-time.Since(recent.TriggeredAt))
			return "", nil
		}
	}

	metadata := map[string]interface{}{
		"trigger_source": "cloud",
		"window_start":   result.WindowStart,
		"window_end":     result.WindowEnd,
	}
	if device.DeviceName != "" {
		metadata["device_name"] = device.DeviceName
	}
	if device.RoomName != nil {
		metadata["room_name"] = *device.RoomName
	}

	builder := NewAlarmEventBuilder(result.TenantID, device.DeviceID)
	event, err := builder.BuildAlarmEvent(
		models.EventTypeFall,
		models.CategorySafety,
		models.AlarmLevelAlert,
		BuildFallTriggerData(result),
		metadata,
	)
	if err != nil {
		return "", err
	}

	if err := e.alarmEventsRepo.CreateAlarmEvent(ctx, result.TenantID, event); err != nil {
		return "", err
	}

	e.logger.Info("Fall alarm created",
		zap.String("event_id", event.EventID),
		zap.String("device_id", device.DeviceID),
		zap.Float64("fall_score", result.FallScore),
		zap.Float64("motion_index", result.MotionIndex),
	)

	if cooldown > 0 {
		e.setCooldown(ctx, stateKey, event.EventID, event.TriggeredAt, result.FallScore, cooldown)
	}

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, event); err != nil {
			e.logger.Warn("Failed to notify fall alarm",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
		}
	}

	return event.EventID, nil
}

// CheckDuplicate 查询冷却期内是否已有同设备的跌倒报警
func (e *FallEvaluator) CheckDuplicate(ctx context.Context, tenantID, deviceID string, within time.Duration) (*models.AlarmEvent, error) {
	if tenantID == "" {
		return nil, nil
	}
	return e.alarmEventsRepo.GetRecentAlarmEvent(ctx, tenantID, deviceID, models.EventTypeFall, within)
}

func (e *FallEvaluator) setCooldown(ctx context.Context, key, eventID string, triggeredAt time.Time, score float64, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	state := &consumer.FallAlarmState{
		EventID:     eventID,
		TriggeredAt: triggeredAt.Unix(),
		FallScore:   score,
	}
	if err := e.stateManager.SetState(ctx, key, state, ttl); err != nil {
		e.logger.Warn("Failed to set fall alarm cooldown",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
