package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"robotrenamer/internal/util"

	"go.uber.org/zap"
)

// NoUnit 表示不按组织单元限定范围。
const NoUnit int64 = 0

// API 抽象改名流程用到的 Orchestrator 接口。
type API interface {
	QueryOrganizationUnits(ctx context.Context, name string, mode MatchMode) ([]OrganizationUnit, error)
	QueryRobots(ctx context.Context, unitID int64, q RobotQuery) ([]Robot, error)
	GetRobot(ctx context.Context, id, unitID int64) (Robot, error)
	UpdateRobot(ctx context.Context, id, unitID int64, robot Robot) error
}

// HTTPClient 实现 API，通过 OData REST 接口与 Orchestrator 通信。
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource TokenSource
	timeout     time.Duration
	attempts    int
	backoff     time.Duration
	logger      *zap.Logger
}

// HTTPConfig 配置 HTTP 客户端。
type HTTPConfig struct {
	BaseURL      string
	TokenSource  TokenSource
	Timeout      time.Duration
	CustomClient *http.Client
	Attempts     int
	Backoff      time.Duration
	Logger       *zap.Logger
}

// BaseURL 根据主机名、端口和是否启用 TLS 拼出服务地址，port 为 0 时使用协议默认端口。
func BaseURL(host string, port int, secure bool) string {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	host = strings.TrimSpace(host)
	if port > 0 {
		host = host + ":" + strconv.Itoa(port)
	}
	return scheme + "://" + host
}

// NewHTTPClient 根据配置创建 Orchestrator HTTP 客户端。
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("orchestrator base url 不能为空")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("解析 orchestrator 地址失败: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := cfg.CustomClient
	if client == nil {
		client = &http.Client{}
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  client,
		tokenSource: cfg.TokenSource,
		timeout:     timeout,
		attempts:    attempts,
		backoff:     backoff,
		logger:      logger,
	}, nil
}

// QueryOrganizationUnits 按显示名称查询组织单元。
func (c *HTTPClient) QueryOrganizationUnits(ctx context.Context, name string, mode MatchMode) ([]OrganizationUnit, error) {
	query := url.Values{}
	query.Set("$filter", unitFilter(name, mode))
	query.Set("$orderby", "DisplayName")
	query.Set("$top", "10")
	var out odataList[OrganizationUnit]
	if err := c.do(ctx, http.MethodGet, "/odata/OrganizationUnits", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// QueryRobots 按条件查询机器人，unitID 为 NoUnit 时不限定组织单元。
func (c *HTTPClient) QueryRobots(ctx context.Context, unitID int64, q RobotQuery) ([]Robot, error) {
	query := url.Values{}
	query.Set("$count", "true")
	if filter := robotFilter(q); filter != "" {
		query.Set("$filter", filter)
	}
	scope(query, unitID)
	var out odataList[Robot]
	if err := c.do(ctx, http.MethodGet, "/odata/Robots", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetRobot 按 id 读取完整机器人记录。
func (c *HTTPClient) GetRobot(ctx context.Context, id, unitID int64) (Robot, error) {
	query := url.Values{}
	scope(query, unitID)
	var robot Robot
	if err := c.do(ctx, http.MethodGet, robotPath(id), query, nil, &robot); err != nil {
		return Robot{}, err
	}
	return robot, nil
}

// UpdateRobot 以整条记录覆盖的方式更新机器人。
func (c *HTTPClient) UpdateRobot(ctx context.Context, id, unitID int64, robot Robot) error {
	query := url.Values{}
	scope(query, unitID)
	return c.do(ctx, http.MethodPut, robotPath(id), query, robot.ensurePassword(), nil)
}

func robotPath(id int64) string {
	return "/odata/Robots(" + strconv.FormatInt(id, 10) + ")"
}

func scope(query url.Values, unitID int64) {
	if unitID != NoUnit {
		query.Set("OrganizationUnitId", strconv.FormatInt(unitID, 10))
	}
}

// do 执行单次调用，瞬时错误按退避重试，每次尝试单独计时。
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if c == nil {
		return errors.New("orchestrator http client 未初始化")
	}
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	attempt := 0
	return util.Retry(ctx, c.attempts, c.backoff, IsRetryable, func() error {
		attempt++
		err := c.once(ctx, method, path, endpoint, payload, out)
		if err != nil {
			c.logger.Debug("orchestrator call failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Bool("retryable", IsRetryable(err)),
				zap.Error(err))
		}
		return err
	})
}

func (c *HTTPClient) once(ctx context.Context, method, path, endpoint string, payload []byte, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token(callCtx)
		if err != nil {
			return fmt.Errorf("获取 token 失败: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	op := method + " " + path
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := newStatusError(method, path, resp)
		if resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := c.tokenSource.(interface{ Invalidate() }); ok {
				inv.Invalidate()
				statusErr.reauth = true
			}
		}
		return statusErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &NetworkError{Op: op, Err: err}
		}
		return fmt.Errorf("解析 %s 响应失败: %w", op, err)
	}
	return nil
}
