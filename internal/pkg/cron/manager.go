package cron

import (
	"Parley/internal/job"
	"context"
	"fmt"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine          *cron.Cron
	mediaCleanupJob *job.MediaCleanupJob
	mediaSpec       string
}

// NewCronManager spec 为带秒字段的六段表达式
func NewCronManager(mediaCleanupJob *job.MediaCleanupJob, mediaSpec string) *Manager {
	return &Manager{
		engine:          cron.New(cron.WithSeconds()),
		mediaCleanupJob: mediaCleanupJob,
		mediaSpec:       mediaSpec,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.mediaSpec, s.mediaCleanupJob); err != nil {
		return fmt.Errorf("register media cleanup job: %w", err)
	}
	return nil
}

// Run 注册并启动任务, ctx 结束后等待执行中的任务完成再返回
func (s *Manager) Run(ctx context.Context) error {
	if err := s.RegisterJobs(); err != nil {
		return err
	}
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

// Stop 等待正在执行的任务结束
func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}
