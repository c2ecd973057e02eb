package ioc

import (
	"robotrenamer/internal/app"
	"robotrenamer/pkg/logging"

	"go.uber.org/zap"
)

// InitLogger 构建全局 logger，cleanup 负责刷盘。
func InitLogger(cfg app.Config) (*zap.Logger, func(), error) {
	logger, err := logging.NewZapLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}
