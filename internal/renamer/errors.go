package renamer

import "errors"

// 单条任务失败的分类，均只放弃当前任务，批次继续。
var (
	// ErrAmbiguousUnit 组织单元名称命中 0 个或多个单元。
	ErrAmbiguousUnit = errors.New("ambiguous organization unit")
	// ErrRobotLookup 按用户/机器查到 0 个或多个机器人。
	ErrRobotLookup = errors.New("robot lookup failed")
	// ErrIdentityMismatch 查到的机器人与任务的用户/机器不一致。
	ErrIdentityMismatch = errors.New("robot identity mismatch")
	// ErrVerification 更新成功但回读的名称与目标不一致。
	ErrVerification = errors.New("rename verification failed")
)
