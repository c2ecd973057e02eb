package renamer

import (
	"context"
	"fmt"

	"robotrenamer/internal/orchestrator"
)

// Lookup 按身份字段定位机器人。
type Lookup struct {
	api orchestrator.API
}

// NewLookup 创建 Lookup。
func NewLookup(api orchestrator.API) *Lookup {
	return &Lookup{api: api}
}

// Find 按用户名和机器名查找唯一的机器人，并校验其身份。
func (l *Lookup) Find(ctx context.Context, unitID int64, userName, machineName string) (orchestrator.Robot, error) {
	robots, err := l.api.QueryRobots(ctx, unitID, orchestrator.RobotQuery{
		UserName:    userName,
		MachineName: machineName,
	})
	if err != nil {
		return orchestrator.Robot{}, fmt.Errorf("query robot %s/%s: %w", machineName, userName, err)
	}
	if len(robots) != 1 {
		return orchestrator.Robot{}, fmt.Errorf("%w: expected exactly one robot for %s/%s, found %d",
			ErrRobotLookup, machineName, userName, len(robots))
	}
	robot := robots[0]
	if err := checkIdentity(robot, userName, machineName); err != nil {
		return orchestrator.Robot{}, err
	}
	return robot, nil
}

// checkIdentity 确认机器人的用户名和机器名与任务一致，这是防止改错机器人的唯一校验。
func checkIdentity(robot orchestrator.Robot, userName, machineName string) error {
	if robot.Username != userName || robot.MachineName != machineName {
		return fmt.Errorf("%w: got robot %d for %s/%s, expected %s/%s",
			ErrIdentityMismatch, robot.ID, robot.MachineName, robot.Username, machineName, userName)
	}
	return nil
}
