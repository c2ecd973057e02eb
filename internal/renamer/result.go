package renamer

import "robotrenamer/internal/records"

// Status 为单条任务的终态。
type Status int

const (
	StatusOK Status = iota
	StatusSkippedUpToDate
	StatusSkippedDryRun
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkippedUpToDate:
		return "skipped-uptodate"
	case StatusSkippedDryRun:
		return "skipped-dryrun"
	default:
		return "failed"
	}
}

// Step 标识任务失败时所处的阶段。
type Step string

const (
	StepResolve Step = "resolve"
	StepLocate  Step = "locate"
	StepDecide  Step = "decide"
	StepApply   Step = "apply"
	StepVerify  Step = "verify"
)

// Result 为一条任务的处理结果，携带原始任务。
type Result struct {
	Request records.RenameRequest
	Status  Status
	// Step 为到达终态时的阶段。
	Step    Step
	RobotID int64
	// CurrentName 为定位时机器人的名称。
	CurrentName string
	Err         error
}

// Outcome 返回写入结果文件的结论字符串。
func (r Result) Outcome() string {
	switch r.Status {
	case StatusOK:
		return "OK"
	case StatusSkippedUpToDate:
		return "Skipped-already updated"
	case StatusSkippedDryRun:
		return "Skipped-dry run"
	default:
		msg := "unknown error"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		return "Failed-" + msg
	}
}
