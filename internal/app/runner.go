package app

import (
	"context"
	"fmt"

	"robotrenamer/internal/orchestrator"
	"robotrenamer/internal/records"
	"robotrenamer/internal/renamer"
	"robotrenamer/internal/report"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner 负责一次批量改名：读取任务文件，逐条交给 Reconciler 处理并记录结果。
type Runner struct {
	cfg    Config
	api    orchestrator.API
	sink   report.Sink
	logger *zap.Logger
	// NewRunID 生成每次运行的标识，测试中可替换。
	NewRunID func() string
}

// NewRunner 构建 Runner。
func NewRunner(cfg Config, api orchestrator.API, sink report.Sink, logger *zap.Logger) (*Runner, error) {
	if api == nil {
		return nil, fmt.Errorf("必须提供 orchestrator api")
	}
	if sink == nil {
		return nil, fmt.Errorf("必须提供 result sink")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		api:      api,
		sink:     sink,
		logger:   logger,
		NewRunID: func() string { return uuid.NewString() },
	}, nil
}

// Run 执行一次批处理。只有读取任务文件失败会返回错误，单条任务失败只记录结果。
func (r *Runner) Run(ctx context.Context) (report.Summary, error) {
	var summary report.Summary
	runID := r.NewRunID()
	log := r.logger.With(zap.String("run_id", runID))

	log.Info("processing robot rename file",
		zap.String("file", r.cfg.CSV.File),
		zap.Int("from", r.cfg.CSV.From),
		zap.Stringer("count", r.cfg.CSV.Count))
	log.Info("orchestrator server",
		zap.String("tenant", r.cfg.Orchestrator.Tenant),
		zap.String("server", r.cfg.Orchestrator.Server),
		zap.String("user", r.cfg.Orchestrator.User))
	if r.cfg.DryRun() {
		log.Warn("DRY RUNNING, no robots will actually be changed")
	}

	reqs, err := records.Read(r.cfg.CSV.File, r.cfg.CSV.From, r.cfg.CSV.Count)
	if err != nil {
		return summary, fmt.Errorf("读取任务文件失败: %w", err)
	}
	log.Info("rename requests loaded", zap.Int("requests", len(reqs)))

	reconciler, err := r.newReconciler(log)
	if err != nil {
		return summary, err
	}

	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", append(summary.Fields(), zap.Error(err))...)
			return summary, err
		}
		res := reconciler.Process(ctx, req)
		r.sink.Record(runID, res)
		summary.Add(res)
		if res.Status == renamer.StatusFailed {
			log.Error("failed handling robot",
				zap.Int("line", req.Line),
				zap.String("unit", req.Unit),
				zap.String("machine", req.MachineName),
				zap.String("user", req.UserName),
				zap.String("new_name", req.NewName),
				zap.String("step", string(res.Step)),
				zap.Error(res.Err))
		}
	}

	log.Info("Done", summary.Fields()...)
	return summary, nil
}

// newReconciler 每次运行新建，组织单元缓存只在本次运行内有效。
func (r *Runner) newReconciler(log *zap.Logger) (*renamer.Reconciler, error) {
	mode, err := orchestrator.ParseMatchMode(r.cfg.Units.Match)
	if err != nil {
		return nil, err
	}
	verify, err := renamer.ParseVerifyMode(r.cfg.Verify.Mode)
	if err != nil {
		return nil, err
	}
	var units *renamer.UnitResolver
	if r.cfg.UnitsEnabled() {
		units = renamer.NewUnitResolver(r.api, mode, log)
	}
	return renamer.NewReconciler(r.api, units, renamer.Options{
		DryRun:   r.cfg.DryRun(),
		UseUnits: r.cfg.UnitsEnabled(),
		Verify:   verify,
	}, log)
}
