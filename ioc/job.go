package ioc

import (
	"context"

	"robotrenamer/internal/app"
	"robotrenamer/internal/job"

	"github.com/google/wire"
	"go.uber.org/zap"
)

// RunnerSet 汇总构建 Runner 所需的 provider。
var RunnerSet = wire.NewSet(
	InitLogger,
	InitOrchestratorClient,
	InitResultSink,
	app.NewRunner,
)

// InitScheduler 构建定时批处理调度器。
func InitScheduler(cfg app.Config, runner *app.Runner, logger *zap.Logger) (*job.Scheduler, error) {
	return job.NewScheduler(cfg.Schedule.Cron, func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		return err
	}, logger)
}
