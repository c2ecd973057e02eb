package ioc

import (
	"robotrenamer/internal/app"
	"robotrenamer/internal/report"
)

// InitResultSink 打开结果文件。
func InitResultSink(cfg app.Config) (report.Sink, func(), error) {
	sink, err := report.OpenFileSink(cfg.Result.File)
	if err != nil {
		return nil, nil, err
	}
	return sink, func() { _ = sink.Close() }, nil
}
