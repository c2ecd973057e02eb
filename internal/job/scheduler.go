package job

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultCronSpec 为未配置时的执行时间（每天 07:00）。
const DefaultCronSpec = "0 7 * * *"

// Scheduler 按 cron 表达式重复执行批量改名，上一轮未结束时跳过本轮。
type Scheduler struct {
	cronExpr string
	logger   *zap.Logger
	cron     *cron.Cron
	runFunc  func(context.Context) error
	parent   context.Context
	mu       sync.Mutex
	running  bool
}

// NewScheduler 构建调度器，spec 为空时使用 DefaultCronSpec。
func NewScheduler(spec string, runFunc func(context.Context) error, logger *zap.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultCronSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("解析 cron 表达式失败 %q: %w", spec, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cronExpr: spec, logger: logger, runFunc: runFunc}, nil
}

// Spec 返回生效的 cron 表达式。
func (s *Scheduler) Spec() string {
	return s.cronExpr
}

// Start 启动调度器，返回用于停止任务的函数；parent 结束时自动停止。
func (s *Scheduler) Start(parent context.Context) (context.CancelFunc, error) {
	s.parent = parent
	c := cron.New()
	id, err := c.AddFunc(s.cronExpr, s.runOnce)
	if err != nil {
		return func() {}, fmt.Errorf("注册 cron 任务失败: %w", err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("job scheduler started", zap.String("cron", s.cronExpr), zap.Time("next", c.Entry(id).Next))

	var once sync.Once
	stopped := make(chan struct{})
	stop := func() {
		once.Do(func() {
			ctx := s.cron.Stop()
			<-ctx.Done()
			close(stopped)
			s.logger.Info("job scheduler stopped")
		})
	}

	go func() {
		select {
		case <-parent.Done():
			stop()
		case <-stopped:
		}
	}()

	return stop, nil
}

func (s *Scheduler) runOnce() {
	if s.runFunc == nil {
		s.logger.Warn("run function not configured")
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous run still in progress, skip current schedule")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	runCtx := context.Background()
	if s.parent != nil {
		if s.parent.Err() != nil {
			s.logger.Info("scheduler context cancelled, skip run")
			return
		}
		runCtx = s.parent
	}
	start := time.Now()
	err := s.runFunc(runCtx)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error("scheduled run failed", zap.Duration("duration", elapsed), zap.Error(err))
	} else {
		s.logger.Info("scheduled run completed", zap.Duration("duration", elapsed))
	}
}
