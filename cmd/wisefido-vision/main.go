package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"wisefido-vision/internal/common/logger"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/service"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-vision")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	if cfg.TenantID == "" {
		log.Warn("TENANT_ID not set, accepting frames from all tenants")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 创建服务
	visionService, err := service.NewVisionService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create vision service", zap.Error(err))
	}
	defer visionService.Stop()

	// 4. 启动服务（在 goroutine 中）
	serviceErrChan := make(chan error, 1)
	go func() {
		if err := visionService.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	// 5. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
	case err := <-serviceErrChan:
		log.Error("Service error", zap.Error(err))
	}

	log.Info("Vision service stopped")
}
