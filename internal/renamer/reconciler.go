package renamer

import (
	"context"
	"fmt"
	"strings"

	"robotrenamer/internal/orchestrator"
	"robotrenamer/internal/records"

	"go.uber.org/zap"
)

// VerifyMode 控制更新后的回读方式。
type VerifyMode string

const (
	// VerifyByName 以新名称为条件重新查询机器人。
	VerifyByName VerifyMode = "name"
	// VerifyByID 按 id 重新读取机器人。
	VerifyByID VerifyMode = "id"
)

// ParseVerifyMode 解析配置中的回读方式，空值视为 name。
func ParseVerifyMode(s string) (VerifyMode, error) {
	switch VerifyMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", VerifyByName:
		return VerifyByName, nil
	case VerifyByID:
		return VerifyByID, nil
	default:
		return "", fmt.Errorf("unknown verify mode %q", s)
	}
}

// Options 控制 Reconciler 的行为。
type Options struct {
	// DryRun 为 true 时只做查询，不发起更新。
	DryRun bool
	// UseUnits 为 false 时跳过组织单元解析，所有调用不限定单元。
	UseUnits bool
	Verify   VerifyMode
}

// Reconciler 按 解析单元 -> 定位 -> 判断 -> 更新 -> 回读校验 的顺序处理单条改名任务。
type Reconciler struct {
	api    orchestrator.API
	units  *UnitResolver
	lookup *Lookup
	opts   Options
	logger *zap.Logger
}

// NewReconciler 创建 Reconciler。units 在 UseUnits 为 false 时可以为 nil。
func NewReconciler(api orchestrator.API, units *UnitResolver, opts Options, logger *zap.Logger) (*Reconciler, error) {
	if api == nil {
		return nil, fmt.Errorf("必须提供 orchestrator api")
	}
	if opts.UseUnits && units == nil {
		return nil, fmt.Errorf("启用组织单元时必须提供 unit resolver")
	}
	if opts.Verify == "" {
		opts.Verify = VerifyByName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		api:    api,
		units:  units,
		lookup: NewLookup(api),
		opts:   opts,
		logger: logger,
	}, nil
}

// Process 处理一条任务并返回终态，失败不会中断后续任务。
func (r *Reconciler) Process(ctx context.Context, req records.RenameRequest) Result {
	res := Result{Request: req}
	fail := func(step Step, err error) Result {
		res.Status = StatusFailed
		res.Step = step
		res.Err = err
		return res
	}
	log := r.logger.With(
		zap.String("unit", req.Unit),
		zap.String("machine", req.MachineName),
		zap.String("user", req.UserName),
		zap.String("new_name", req.NewName))

	unitID := orchestrator.NoUnit
	if r.opts.UseUnits {
		id, err := r.units.Resolve(ctx, req.Unit)
		if err != nil {
			return fail(StepResolve, err)
		}
		unitID = id
	}

	robot, err := r.lookup.Find(ctx, unitID, req.UserName, req.MachineName)
	if err != nil {
		return fail(StepLocate, err)
	}
	res.RobotID = robot.ID
	res.CurrentName = robot.Name

	res.Step = StepDecide
	if robot.Name == req.NewName {
		log.Info("robot name already up-to-date", zap.Int64("robot_id", robot.ID))
		res.Status = StatusSkippedUpToDate
		return res
	}
	if req.OldName != "" && robot.Name != req.OldName {
		log.Warn("robot name differs from the expected old name",
			zap.String("expected", req.OldName), zap.String("current", robot.Name))
	}
	if r.opts.DryRun {
		log.Info("dry-run: skipping rename", zap.Int64("robot_id", robot.ID), zap.String("current_name", robot.Name))
		res.Status = StatusSkippedDryRun
		return res
	}

	if err := r.apply(ctx, unitID, robot.ID, req); err != nil {
		return fail(StepApply, err)
	}
	log.Info("robot renamed", zap.Int64("robot_id", robot.ID), zap.String("old_name", robot.Name))

	if err := r.verify(ctx, unitID, robot.ID, req); err != nil {
		return fail(StepVerify, err)
	}
	res.Step = StepVerify
	res.Status = StatusOK
	return res
}

// apply 先按 id 读取完整记录，再整条回写，只替换名称。
func (r *Reconciler) apply(ctx context.Context, unitID, robotID int64, req records.RenameRequest) error {
	full, err := r.api.GetRobot(ctx, robotID, unitID)
	if err != nil {
		return fmt.Errorf("fetch robot %d: %w", robotID, err)
	}
	if err := checkIdentity(full, req.UserName, req.MachineName); err != nil {
		return err
	}
	if err := r.api.UpdateRobot(ctx, full.ID, unitID, full.WithName(req.NewName)); err != nil {
		return fmt.Errorf("update robot %d: %w", full.ID, err)
	}
	return nil
}

func (r *Reconciler) verify(ctx context.Context, unitID, robotID int64, req records.RenameRequest) error {
	var robot orchestrator.Robot
	switch r.opts.Verify {
	case VerifyByID:
		got, err := r.api.GetRobot(ctx, robotID, unitID)
		if err != nil {
			return fmt.Errorf("re-read robot %d: %w", robotID, err)
		}
		robot = got
	default:
		robots, err := r.api.QueryRobots(ctx, unitID, orchestrator.RobotQuery{Name: req.NewName})
		if err != nil {
			return fmt.Errorf("re-read robot named %q: %w", req.NewName, err)
		}
		if len(robots) != 1 {
			return fmt.Errorf("%w: expected exactly one robot named %q after update, found %d",
				ErrVerification, req.NewName, len(robots))
		}
		robot = robots[0]
	}
	if err := checkIdentity(robot, req.UserName, req.MachineName); err != nil {
		return fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if robot.Name != req.NewName {
		return fmt.Errorf("%w: robot %d name is %q, expected %q", ErrVerification, robot.ID, robot.Name, req.NewName)
	}
	return nil
}
