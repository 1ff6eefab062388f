package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	mqttcommon "wisefido-vision/internal/common/mqtt"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/pose"
)

// Subscriber MQTT 订阅接口（由 mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// DeviceResolver 根据主题中的设备标识（序列号或 UID）查找设备
type DeviceResolver interface {
	ResolveDevice(ctx context.Context, identifier string) (*models.Device, error)
}

// Evaluator 跌倒评估器接口
type Evaluator interface {
	// Evaluate 对已满的窗口执行检测
	Evaluate(ctx context.Context, device *models.Device, window *Window) (*models.FallResult, error)
}

// MQTTConsumer 骨架数据消费者
type MQTTConsumer struct {
	config     *config.Config
	subscriber Subscriber
	cache      *CacheManager
	devices    DeviceResolver
	evaluator  Evaluator
	logger     *zap.Logger

	// 设备标识 -> 设备，设备绑定关系很少变化
	mu          sync.RWMutex
	deviceCache map[string]*models.Device

	ctx context.Context
}

// NewMQTTConsumer 创建骨架数据消费者
func NewMQTTConsumer(
	cfg *config.Config,
	subscriber Subscriber,
	cache *CacheManager,
	devices DeviceResolver,
	evaluator Evaluator,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		subscriber:  subscriber,
		cache:       cache,
		devices:     devices,
		evaluator:   evaluator,
		logger:      logger,
		deviceCache: make(map[string]*models.Device),
		ctx:         context.Background(),
	}
}

// Start 订阅骨架主题并阻塞直到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	c.ctx = ctx
	topic := c.config.Vision.SkeletonTopic
	if err := c.subscriber.Subscribe(topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to skeleton topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", topic),
		zap.Int("window_size", c.config.Vision.WindowSize),
		zap.Int("fps", c.config.Vision.FPS),
	)

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() error {
	if err := c.subscriber.Unsubscribe(c.config.Vision.SkeletonTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
		return err
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理单帧骨架消息
// 主题格式: vision/{device_identifier}/skeleton
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	ctx := c.ctx

	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	identifier := parts[1]

	var msg models.SkeletonMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal skeleton message: %w", err)
	}

	// 坏帧直接丢弃，不进入窗口
	if _, err := pose.ParseFrame(msg.Keypoints); err != nil {
		c.logger.Warn("Dropping invalid skeleton frame",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}

	device, err := c.resolveDevice(ctx, identifier)
	if err != nil {
		return err
	}
	if c.config.TenantID != "" && device.TenantID != c.config.TenantID {
		c.logger.Debug("Ignoring frame from other tenant",
			zap.String("device_id", device.DeviceID),
			zap.String("tenant_id", device.TenantID),
		)
		return nil
	}

	ts := msg.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	n, err := c.cache.AppendFrame(ctx, device.DeviceID, models.StoredFrame{
		Timestamp: ts,
		Keypoints: msg.Keypoints,
	})
	if err != nil {
		if errors.Is(err, ErrStaleFrame) {
			c.logger.Debug("Dropping stale skeleton frame", zap.Error(err))
			return nil
		}
		return err
	}

	if n < c.config.Vision.WindowSize {
		return nil
	}

	window, err := c.cache.GetWindow(ctx, device.DeviceID)
	if err != nil {
		return err
	}

	result, err := c.evaluator.Evaluate(ctx, device, window)
	if err != nil {
		return fmt.Errorf("failed to evaluate device %s: %w", device.DeviceID, err)
	}

	c.logger.Debug("Skeleton window evaluated",
		zap.String("device_id", device.DeviceID),
		zap.Bool("is_fall", result.IsFall),
		zap.Float64("fall_score", result.FallScore),
	)
	return nil
}

func (c *MQTTConsumer) resolveDevice(ctx context.Context, identifier string) (*models.Device, error) {
	c.mu.RLock()
	device, ok := c.deviceCache[identifier]
	c.mu.RUnlock()
	if ok {
		return device, nil
	}

	device, err := c.devices.ResolveDevice(ctx, identifier)
	if err != nil {
		c.logger.Warn("Device not found",
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		return nil, fmt.Errorf("device not found: %s: %w", identifier, err)
	}

	c.mu.Lock()
	c.deviceCache[identifier] = device
	c.mu.Unlock()
	return device, nil
}
