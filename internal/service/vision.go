package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-vision/internal/common/database"
	mqttcommon "wisefido-vision/internal/common/mqtt"
	rediscommon "wisefido-vision/internal/common/redis"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/consumer"
	"wisefido-vision/internal/evaluator"
	"wisefido-vision/internal/notifier"
	"wisefido-vision/internal/pose"
	"wisefido-vision/internal/repository"
)

// VisionService 视觉跌倒检测服务（整合各层）
type VisionService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	logger      *zap.Logger

	// 各层组件
	cacheManager    *consumer.CacheManager
	stateManager    *consumer.StateManager
	mqttConsumer    *consumer.MQTTConsumer
	deviceRepo      *repository.DeviceRepository
	alarmEventsRepo *repository.AlarmEventsRepository
	evaluator       *evaluator.FallEvaluator
}

// NewVisionService 创建视觉跌倒检测服务
func NewVisionService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*VisionService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	// 2. 连接 Redis
	redisClient, err := rediscommon.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}

	// 3. 连接 MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect mqtt: %w", err)
	}

	// 4. Repository 层
	deviceRepo := repository.NewDeviceRepository(db, logger)
	alarmEventsRepo := repository.NewAlarmEventsRepository(db, logger)

	// 5. Consumer 层
	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)
	stateManager := consumer.NewStateManager(cfg, redisClient, logger)

	// 6. Evaluator 层（Webhook 可选）
	var alarmNotifier evaluator.Notifier
	if cfg.Vision.Alarm.WebhookURL != "" {
		alarmNotifier = notifier.NewWebhookNotifier(
			cfg.Vision.Alarm.WebhookURL,
			cfg.Vision.Alarm.WebhookTimeout,
			cfg.Vision.Alarm.WebhookRetries,
			logger,
		)
	}
	eval := evaluator.NewFallEvaluator(
		cfg,
		pose.NewDetector(),
		cacheManager,
		stateManager,
		alarmEventsRepo,
		alarmNotifier,
		redisClient,
		logger,
	)

	// 7. MQTT 消费者
	mqttConsumer := consumer.NewMQTTConsumer(
		cfg,
		mqttClient,
		cacheManager,
		deviceRepo,
		eval,
		logger,
	)

	return &VisionService{
		config:          cfg,
		db:              db,
		redisClient:     redisClient,
		mqttClient:      mqttClient,
		logger:          logger,
		cacheManager:    cacheManager,
		stateManager:    stateManager,
		mqttConsumer:    mqttConsumer,
		deviceRepo:      deviceRepo,
		alarmEventsRepo: alarmEventsRepo,
		evaluator:       eval,
	}, nil
}

// Start 启动服务，阻塞直到 ctx 取消
func (s *VisionService) Start(ctx context.Context) error {
	s.logger.Info("Starting vision service",
		zap.String("tenant_id", s.config.TenantID),
		zap.String("topic", s.config.Vision.SkeletonTopic),
		zap.Duration("window", s.config.WindowDuration()),
	)

	if err := s.mqttConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mqtt consumer: %w", err)
	}
	return nil
}

// Stop 停止服务
func (s *VisionService) Stop() error {
	s.logger.Info("Stopping vision service")

	if err := s.mqttConsumer.Stop(); err != nil {
		s.logger.Error("Failed to stop mqtt consumer", zap.Error(err))
	}
	s.mqttClient.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}
