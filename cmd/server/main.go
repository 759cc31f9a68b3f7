package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentflow/internal/database"
	"rentflow/internal/router"
	"rentflow/internal/services"
	"rentflow/pkg/config"
	"rentflow/pkg/jwt"
	"rentflow/pkg/logger"
	"rentflow/pkg/metrics"
	"rentflow/pkg/queue"
	"rentflow/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "rentflow",
		Short: "Property rental management server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server, notification worker and schedulers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			defer database.Close()
			return database.Migrate()
		},
	}

	expireCmd = &cobra.Command{
		Use:   "expire-leases",
		Short: "Expire active leases whose end date has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			defer database.Close()

			q := connectQueue()
			defer closeQueue(q)

			container := services.NewContainer(database.GetDB(), q, cfg, nil)
			n, err := container.Leases.ExpireOverdue(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("expired %d lease(s)\n", n)
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rentflow",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rentflow version %s\n", version.Get())
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, expireCmd, tokenCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap 加载配置、初始化日志和数据库
func bootstrap() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := logger.Initialize(cfg); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
	}
	if err := database.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	return cfg, nil
}

// connectQueue Redis 不可用时返回 nil，通知改为进程内直接投递
func connectQueue() *queue.RedisQueue {
	q := database.GetRedisQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := q.Ping(ctx); err != nil {
		logger.GetLogger().WithError(err).Warn("Redis不可用，通知将直接投递，实时推送关闭")
		_ = q.Close()
		return nil
	}
	return q
}

func closeQueue(q *queue.RedisQueue) {
	if q == nil {
		return
	}
	if err := q.Close(); err != nil {
		logger.GetLogger().Error("Failed to close Redis:", err)
	}
}

func serve() error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	appLogger := logger.GetLogger()
	appLogger.Infof("Starting rentflow %s...", version.Get())

	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
	}()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	gin.SetMode(cfg.Server.Mode)

	q := connectQueue()
	defer closeQueue(q)

	container := services.NewContainer(database.GetDB(), q, cfg, metrics.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 通知投递 worker
	workerDone := make(chan struct{})
	if q != nil {
		go func() {
			defer close(workerDone)
			container.Dispatcher.Run(ctx)
		}()
	} else {
		close(workerDone)
	}

	if cfg.Scheduler.Enabled {
		if err := container.Scheduler.Start(); err != nil {
			// 不影响主服务启动
			appLogger.Errorf("Failed to start scheduler: %v", err)
		}
		defer container.Scheduler.Stop()
	}

	r := router.SetupRouter(container, jwt.GetJWTManager(), cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}

	cancel()
	<-workerDone
	appLogger.Info("Server exited")
	return nil
}
