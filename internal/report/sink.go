package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"robotrenamer/internal/renamer"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink 接收每条任务的处理结果。
type Sink interface {
	Record(runID string, res renamer.Result)
}

// JSONSink 将结果以一行一条 JSON 的形式写出，便于事后对账。
type JSONSink struct {
	logger *zap.Logger
	closer io.Closer
}

// NewJSONSink 写入任意 writer。
func NewJSONSink(w io.Writer) *JSONSink {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zapcore.InfoLevel)
	return &JSONSink{logger: zap.New(core)}
}

// OpenFileSink 以追加方式打开结果文件。
func OpenFileSink(path string) (*JSONSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建结果目录失败: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开结果文件失败: %w", err)
	}
	sink := NewJSONSink(f)
	sink.closer = f
	return sink, nil
}

// Record 写出一条结果，runID 用于区分多次运行追加到同一文件的结果。
func (s *JSONSink) Record(runID string, res renamer.Result) {
	req := res.Request
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.Int("line", req.Line),
		zap.String("unit", req.Unit),
		zap.String("old_name", req.OldName),
		zap.String("enabled", req.Enabled),
		zap.String("machine", req.MachineName),
		zap.String("user_name", req.UserName),
		zap.String("new_name", req.NewName),
		zap.String("status", res.Status.String()),
		zap.String("outcome", res.Outcome()),
	}
	if res.RobotID != 0 {
		fields = append(fields, zap.Int64("robot_id", res.RobotID), zap.String("current_name", res.CurrentName))
	}
	if res.Step != "" {
		fields = append(fields, zap.String("step", string(res.Step)))
	}
	s.logger.Info("result", fields...)
}

// Close 刷盘并关闭底层文件。
func (s *JSONSink) Close() error {
	_ = s.logger.Sync()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Summary 汇总一次运行的结果数量。
type Summary struct {
	Total           int
	OK              int
	SkippedUpToDate int
	SkippedDryRun   int
	Failed          int
}

// Add 计入一条结果。
func (s *Summary) Add(res renamer.Result) {
	s.Total++
	switch res.Status {
	case renamer.StatusOK:
		s.OK++
	case renamer.StatusSkippedUpToDate:
		s.SkippedUpToDate++
	case renamer.StatusSkippedDryRun:
		s.SkippedDryRun++
	default:
		s.Failed++
	}
}

// Fields 以 zap 字段形式输出汇总。
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("total", s.Total),
		zap.Int("ok", s.OK),
		zap.Int("skipped_uptodate", s.SkippedUpToDate),
		zap.Int("skipped_dryrun", s.SkippedDryRun),
		zap.Int("failed", s.Failed),
	}
}
