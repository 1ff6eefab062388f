package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-vision/internal/config"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/pose"
)

// ErrStaleFrame 帧时间戳不晚于窗口内最后一帧
var ErrStaleFrame = errors.New("stale skeleton frame")

// Window 设备当前的骨架窗口
type Window struct {
	Frames pose.Cache
	Start  int64 // 首帧时间戳（毫秒）
	End    int64 // 末帧时间戳（毫秒）
}

// CacheManager Redis 缓存管理器（骨架滑动窗口、最近检测结果）
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) windowKey(deviceID string) string {
	return c.config.Vision.Cache.KeyPrefix + deviceID + c.config.Vision.Cache.WindowSuffix
}

func (c *CacheManager) resultKey(deviceID string) string {
	return c.config.Vision.Cache.KeyPrefix + deviceID + c.config.Vision.Cache.ResultSuffix
}

// windowTTL 窗口在设备停止上报后的保留时间
func (c *CacheManager) windowTTL() time.Duration {
	return c.config.WindowDuration() + c.config.Vision.MaxFrameGap
}

// AppendFrame 追加一帧到设备窗口，只保留最近 WindowSize 帧，返回追加后的窗口长度
// 与上一帧间隔超过 MaxFrameGap 时先清空窗口
func (c *CacheManager) AppendFrame(ctx context.Context, deviceID string, frame models.StoredFrame) (int, error) {
	key := c.windowKey(deviceID)

	last, err := c.lastFrame(ctx, key)
	if err != nil {
		return 0, err
	}
	if last != nil {
		if frame.Timestamp <= last.Timestamp {
			return 0, fmt.Errorf("%w: device=%s ts=%d last=%d", ErrStaleFrame, deviceID, frame.Timestamp, last.Timestamp)
		}
		gap := time.Duration(frame.Timestamp-last.Timestamp) * time.Millisecond
		if c.config.Vision.MaxFrameGap > 0 && gap > c.config.Vision.MaxFrameGap {
			c.logger.Info("Frame gap exceeded, resetting skeleton window",
				zap.String("device_id", deviceID),
				zap.Duration("gap", gap),
			)
			if err := c.ResetWindow(ctx, deviceID); err != nil {
				return 0, err
			}
		}
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal frame: %w", err)
	}

	size := int64(c.config.Vision.WindowSize)
	pipe := c.redisClient.TxPipeline()
	push := pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -size, -1)
	pipe.Expire(ctx, key, c.windowTTL())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to append frame: %w", err)
	}

	n := push.Val()
	if n > size {
		n = size
	}
	return int(n), nil
}

func (c *CacheManager) lastFrame(ctx context.Context, key string) (*models.StoredFrame, error) {
	val, err := c.redisClient.LIndex(ctx, key, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read last frame: %w", err)
	}

	var frame models.StoredFrame
	if err := json.Unmarshal([]byte(val), &frame); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last frame: %w", err)
	}
	return &frame, nil
}

// GetWindow 读取设备窗口并转换为 pose.Cache
func (c *CacheManager) GetWindow(ctx context.Context, deviceID string) (*Window, error) {
	vals, err := c.redisClient.LRange(ctx, c.windowKey(deviceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read skeleton window: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("skeleton window not found for device: %s", deviceID)
	}

	window := &Window{Frames: make(pose.Cache, 0, len(vals))}
	for i, val := range vals {
		var stored models.StoredFrame
		if err := json.Unmarshal([]byte(val), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal frame %d: %w", i, err)
		}
		frame, err := pose.ParseFrame(stored.Keypoints)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		window.Frames = append(window.Frames, frame)
		if i == 0 {
			window.Start = stored.Timestamp
		}
		window.End = stored.Timestamp
	}
	return window, nil
}

// ResetWindow 清空设备窗口
func (c *CacheManager) ResetWindow(ctx context.Context, deviceID string) error {
	if err := c.redisClient.Del(ctx, c.windowKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to reset skeleton window: %w", err)
	}
	return nil
}

// SetLatestResult 缓存设备最近一次检测结果（带 TTL）
func (c *CacheManager) SetLatestResult(ctx context.Context, result *models.FallResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal fall result: %w", err)
	}

	key := c.resultKey(result.DeviceID)
	if err := c.redisClient.Set(ctx, key, data, c.config.Vision.Cache.ResultTTL).Err(); err != nil {
		return fmt.Errorf("failed to set fall result: %w", err)
	}

	c.logger.Debug("Updated fall result cache",
		zap.String("device_id", result.DeviceID),
		zap.String("key", key),
		zap.Float64("fall_score", result.FallScore),
	)
	return nil
}

// GetLatestResult 读取设备最近一次检测结果
func (c *CacheManager) GetLatestResult(ctx context.Context, deviceID string) (*models.FallResult, error) {
	val, err := c.redisClient.Get(ctx, c.resultKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("fall result not found for device: %s", deviceID)
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var result models.FallResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fall result: %w", err)
	}
	return &result, nil
}
