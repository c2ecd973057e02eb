package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// AuthenticatePath 为 Orchestrator 的登录接口。
const AuthenticatePath = "/api/Account/Authenticate"

// defaultTokenTTL 为登录接口不返回有效期时的缓存时长。
const defaultTokenTTL = 30 * time.Minute

// TokenSource 提供调用 Orchestrator 接口所需的 Bearer Token。
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource 返回固定 Token，适用于测试或已签发的 API token。
type StaticTokenSource struct {
	Value string
}

// Token 返回固定值。
func (s *StaticTokenSource) Token(context.Context) (string, error) {
	return s.Value, nil
}

// PasswordTokenSource 通过租户/用户名/密码换取 Token，并带简单缓存。
type PasswordTokenSource struct {
	endpoint   string
	tenant     string
	username   string
	password   string
	httpClient *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// PasswordTokenConfig 配置基于密码登录的 TokenSource。
type PasswordTokenConfig struct {
	BaseURL    string
	Tenant     string
	Username   string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewPasswordTokenSource 创建一个 PasswordTokenSource。
func NewPasswordTokenSource(cfg PasswordTokenConfig) (*PasswordTokenSource, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("orchestrator base url 不能为空")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("用户名和密码不能为空")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &PasswordTokenSource{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + AuthenticatePath,
		tenant:     cfg.Tenant,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: client,
	}, nil
}

// Token 实现 TokenSource 接口，必要时重新登录。
func (s *PasswordTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Until(s.expiry) > 30*time.Second {
		return s.token, nil
	}
	return s.refresh(ctx)
}

// Invalidate 丢弃缓存的 Token，下次调用会重新登录。
func (s *PasswordTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func (s *PasswordTokenSource) refresh(ctx context.Context) (string, error) {
	body := map[string]string{
		"tenancyName":            s.tenant,
		"usernameOrEmailAddress": s.username,
		"password":               s.password,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("编码登录请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("构建登录请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Op: "POST " + AuthenticatePath, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newStatusError(http.MethodPost, AuthenticatePath, resp)
	}

	var authResp struct {
		Result    string `json:"result"`
		Success   bool   `json:"success"`
		ExpiresIn int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", fmt.Errorf("解析登录响应失败: %w", err)
	}
	if !authResp.Success || authResp.Result == "" {
		return "", errors.New("登录响应中缺少 token")
	}
	expires := time.Now().Add(time.Duration(authResp.ExpiresIn) * time.Second)
	if authResp.ExpiresIn == 0 {
		expires = time.Now().Add(defaultTokenTTL)
	}
	s.token = authResp.Result
	s.expiry = expires
	return s.token, nil
}
