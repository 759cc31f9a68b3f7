package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rentflow/pkg/config"
	"rentflow/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler 定时任务：延迟通知轮询、租约到期处理
type Scheduler struct {
	cron          *cron.Cron
	cfg           config.SchedulerConfig
	leases        *LeaseService
	notifications *NotificationService
	mu            sync.Mutex
	running       bool
}

// NewScheduler 创建调度器
func NewScheduler(cfg config.SchedulerConfig, leases *LeaseService, notifications *NotificationService) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithLocation(time.UTC)),
		cfg:           cfg,
		leases:        leases,
		notifications: notifications,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	if _, err := s.cron.AddFunc(s.cfg.NotificationSpec, s.runNotifications); err != nil {
		return fmt.Errorf("添加延迟通知任务失败: %v", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.LeaseExpirySpec, s.runLeaseExpiry); err != nil {
		return fmt.Errorf("添加租约到期任务失败: %v", err)
	}

	s.cron.Start()
	s.running = true
	logger.GetLogger().Infof("定时任务调度器已启动，延迟通知: %s，租约到期: %s", s.cfg.NotificationSpec, s.cfg.LeaseExpirySpec)
	return nil
}

// Stop 停止调度器并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	logger.GetLogger().Info("定时任务调度器已停止")
}

func (s *Scheduler) runNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sent, failed, err := s.notifications.ProcessDue(ctx, s.cfg.NotificationBatch)
	if err != nil {
		logger.GetLogger().WithError(err).Error("处理延迟通知失败")
		return
	}
	if sent > 0 || failed > 0 {
		logger.GetLogger().Infof("延迟通知处理完成，成功 %d，失败 %d", sent, failed)
	}
}

func (s *Scheduler) runLeaseExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.leases.ExpireOverdue(ctx, s.leases.now()); err != nil {
		logger.GetLogger().WithError(err).Error("租约到期处理失败")
	}
}
