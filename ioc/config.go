package ioc

import (
	"errors"
	"fmt"
	"os"

	"robotrenamer/internal/app"
)

// InitConfig 读取应用配置。explicit 为 false 且文件不存在时返回只含缺省值的配置，
// 由命令行参数补齐其余字段。
func InitConfig(path string, explicit bool) (app.Config, error) {
	if path == "" {
		path = app.DefaultConfigPath
	}
	cfg, err := app.LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if explicit || !errors.Is(err, os.ErrNotExist) {
		return app.Config{}, err
	}
	cfg = app.Config{}
	if err := app.LoadEnv(&cfg); err != nil {
		return app.Config{}, fmt.Errorf("加载环境变量失败: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
