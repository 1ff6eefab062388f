package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"wisefido-vision/internal/common/config"
)

// Config 视觉跌倒检测服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Vision struct {
		// 骨架数据来源
		SkeletonTopic string // MQTT 主题，如 "vision/+/skeleton"，第 2 段为设备标识

		// 检测窗口
		WindowSize  int           // 每次检测的帧数 M（帧率 × 秒数）
		FPS         int           // 上游姿态估计帧率，仅用于日志和校验
		MaxFrameGap time.Duration // 相邻帧时间间隔超过该值时重置窗口

		// Redis 缓存
		Cache struct {
			KeyPrefix      string        // 设备缓存键前缀，如 "vision:device:"
			WindowSuffix   string        // 骨架窗口键后缀，如 ":skeleton"
			ResultSuffix   string        // 最近检测结果键后缀，如 ":fall"
			ResultTTL      time.Duration // 检测结果 TTL
			StateKeyPrefix string        // 报警状态键前缀，如 "vision:state:"
		}

		// 检测结果 Stream
		ResultStream    string
		ResultStreamMax int64

		// 报警
		Alarm struct {
			Cooldown       time.Duration // 同一设备两次跌倒报警的最小间隔
			WebhookURL     string        // 为空时不推送
			WebhookTimeout time.Duration
			WebhookRetries int
		}
	}

	TenantID string

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-vision"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Vision.SkeletonTopic = getEnv("VISION_SKELETON_TOPIC", "vision/+/skeleton")
	cfg.Vision.WindowSize = getEnvInt("VISION_WINDOW_SIZE", 36)
	cfg.Vision.FPS = getEnvInt("VISION_FPS", 12)
	cfg.Vision.MaxFrameGap = getEnvDuration("VISION_MAX_FRAME_GAP", 2*time.Second)

	cfg.Vision.Cache.KeyPrefix = getEnv("VISION_CACHE_PREFIX", "vision:device:")
	cfg.Vision.Cache.WindowSuffix = ":skeleton"
	cfg.Vision.Cache.ResultSuffix = ":fall"
	cfg.Vision.Cache.ResultTTL = getEnvDuration("VISION_RESULT_TTL", 30*time.Second)
	cfg.Vision.Cache.StateKeyPrefix = getEnv("VISION_STATE_PREFIX", "vision:state:")

	cfg.Vision.ResultStream = getEnv("VISION_RESULT_STREAM", "vision:fall:stream")
	cfg.Vision.ResultStreamMax = int64(getEnvInt("VISION_RESULT_STREAM_MAXLEN", 10000))

	cfg.Vision.Alarm.Cooldown = getEnvDuration("VISION_ALARM_COOLDOWN", 5*time.Minute)
	cfg.Vision.Alarm.WebhookURL = getEnv("VISION_ALARM_WEBHOOK_URL", "")
	cfg.Vision.Alarm.WebhookTimeout = getEnvDuration("VISION_ALARM_WEBHOOK_TIMEOUT", 10*time.Second)
	cfg.Vision.Alarm.WebhookRetries = getEnvInt("VISION_ALARM_WEBHOOK_RETRIES", 3)

	cfg.TenantID = getEnv("TENANT_ID", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Vision.WindowSize < 1 {
		return fmt.Errorf("VISION_WINDOW_SIZE must be >= 1, got %d", c.Vision.WindowSize)
	}
	if c.Vision.FPS < 1 {
		return fmt.Errorf("VISION_FPS must be >= 1, got %d", c.Vision.FPS)
	}
	return nil
}

// WindowDuration 检测窗口覆盖的时长
func (c *Config) WindowDuration() time.Duration {
	return time.Duration(c.Vision.WindowSize) * time.Second / time.Duration(c.Vision.FPS)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}
