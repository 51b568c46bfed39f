package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// PresenceSweeper 清理过期在线记录所需的后端能力
type PresenceSweeper interface {
	SweepPresence(ctx context.Context, documentID string, olderThan time.Time) (int, error)
}

// CleanupService 定时清理没有心跳的在线记录（标签页崩溃或卸载时未注销）
type CleanupService struct {
	backend    PresenceSweeper
	documentID string
	ttl        time.Duration
	schedule   string
	cron       *cron.Cron
	now        func() time.Time
}

// NewCleanupService 创建清理服务；schedule 为 cron 表达式（支持 "@every 30s"）
func NewCleanupService(backend PresenceSweeper, documentID string, ttl time.Duration, schedule string) *CleanupService {
	if schedule == "" {
		schedule = "@every 30s"
	}
	return &CleanupService{
		backend:    backend,
		documentID: documentID,
		ttl:        ttl,
		schedule:   schedule,
		now:        time.Now,
	}
}

// Start 启动定时清理任务
func (s *CleanupService) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("注册清理任务失败: %w", err)
	}

	s.cron = c
	c.Start()
	log.Printf("[Cleanup] 在线记录清理已启动 (%s, ttl=%s)", s.schedule, s.ttl)
	return nil
}

// Stop 停止定时任务并等待正在执行的清理结束
func (s *CleanupService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce 执行一次清理，返回清理条数
func (s *CleanupService) RunOnce(ctx context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	removed, err := s.backend.SweepPresence(ctx, s.documentID, s.now().Add(-s.ttl))
	if err != nil {
		log.Printf("[Cleanup] 清理在线记录失败: %v", err)
		return 0
	}
	if removed > 0 {
		presenceSwept.Add(float64(removed))
		log.Printf("[Cleanup] 已清理 %d 条过期在线记录", removed)
	}
	return removed
}
