package ioc

import (
	"fmt"
	"strings"
	"time"

	"robotrenamer/internal/app"
	"robotrenamer/internal/orchestrator"

	"go.uber.org/zap"
)

// InitOrchestratorClient 构建 Orchestrator 客户端，优先使用已签发的 token，否则用账号密码登录。
func InitOrchestratorClient(cfg app.Config, logger *zap.Logger) (orchestrator.API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	oc := cfg.Orchestrator
	baseURL := orchestrator.BaseURL(strings.TrimSpace(oc.Server), oc.Port, oc.Safe)
	timeout := time.Duration(oc.TimeoutSeconds) * time.Second

	var tokenSource orchestrator.TokenSource
	if oc.Token != "" {
		tokenSource = &orchestrator.StaticTokenSource{Value: oc.Token}
	} else {
		ts, err := orchestrator.NewPasswordTokenSource(orchestrator.PasswordTokenConfig{
			BaseURL:  baseURL,
			Tenant:   oc.Tenant,
			Username: oc.User,
			Password: oc.Password,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, err
		}
		tokenSource = ts
	}

	return orchestrator.NewHTTPClient(orchestrator.HTTPConfig{
		BaseURL:     baseURL,
		TokenSource: tokenSource,
		Timeout:     timeout,
		Attempts:    cfg.Retry.Attempts,
		Backoff:     time.Duration(cfg.Retry.BackoffMillis) * time.Millisecond,
		Logger:      logger,
	})
}
