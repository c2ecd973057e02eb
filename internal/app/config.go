package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"robotrenamer/internal/orchestrator"
	"robotrenamer/internal/records"
	"robotrenamer/internal/renamer"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath 为默认配置文件位置。
const DefaultConfigPath = "configs/config.yaml"

// 可覆盖配置文件的环境变量。
const (
	EnvTenant   = "ORCHESTRATOR_TENANT"
	EnvUser     = "ORCHESTRATOR_USER"
	EnvPassword = "ORCHESTRATOR_PASSWORD"
	EnvToken    = "ORCHESTRATOR_TOKEN"
)

type Orchestrator struct {
	Server         string `yaml:"server"`
	Port           int    `yaml:"port"`
	Safe           bool   `yaml:"safe"`
	Tenant         string `yaml:"tenant"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type CSV struct {
	File  string        `yaml:"file"`
	From  int           `yaml:"from"`
	Count records.Count `yaml:"count"`
}

type Units struct {
	Enabled *bool  `yaml:"enabled"`
	Match   string `yaml:"match"`
}

type Verify struct {
	Mode string `yaml:"mode"`
}

type Retry struct {
	Attempts      int `yaml:"attempts"`
	BackoffMillis int `yaml:"backoff_millis"`
}

type Log struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

type Result struct {
	File string `yaml:"file"`
}

type Schedule struct {
	Cron string `yaml:"cron"`
}

type Config struct {
	Orchestrator Orchestrator `yaml:"orchestrator"`
	CSV          CSV          `yaml:"csv"`
	// Prod 为 true 时才真正写入 Orchestrator，否则只做 dry run。
	Prod     bool     `yaml:"prod"`
	Units    Units    `yaml:"units"`
	Verify   Verify   `yaml:"verify"`
	Retry    Retry    `yaml:"retry"`
	Log      Log      `yaml:"log"`
	Result   Result   `yaml:"result"`
	Schedule Schedule `yaml:"schedule"`
}

// LoadConfig 从文件加载配置，并用 .env 与环境变量覆盖凭据。
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置失败: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := LoadEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadEnv 读取当前目录下的 .env（可选），再用环境变量覆盖凭据。
func LoadEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("读取 .env 失败: %w", err)
	}
	cfg.applyEnv()
	return nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Orchestrator.Tenant, EnvTenant)
	override(&c.Orchestrator.User, EnvUser)
	override(&c.Orchestrator.Password, EnvPassword)
	override(&c.Orchestrator.Token, EnvToken)
}

// ApplyDefaults 填充缺省值。
func (c *Config) ApplyDefaults() {
	if c.CSV.From == 0 {
		c.CSV.From = 1
	}
	if c.CSV.Count == 0 {
		c.CSV.Count = 1
	}
	if c.Units.Enabled == nil {
		enabled := true
		c.Units.Enabled = &enabled
	}
	if c.Orchestrator.TimeoutSeconds <= 0 {
		c.Orchestrator.TimeoutSeconds = 30
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.BackoffMillis <= 0 {
		c.Retry.BackoffMillis = 500
	}
	if strings.TrimSpace(c.Log.File) == "" {
		c.Log.File = "update.log"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.Result.File) == "" {
		c.Result.File = "results.jsonl"
	}
}

// UnitsEnabled 报告是否按组织单元限定机器人。
func (c Config) UnitsEnabled() bool {
	return c.Units.Enabled == nil || *c.Units.Enabled
}

// DryRun 报告本次运行是否只做查询。
func (c Config) DryRun() bool {
	return !c.Prod
}

// Validate 校验运行一次批处理所需的配置。
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Orchestrator.Server) == "" {
		errs = append(errs, errors.New("orchestrator.server 不能为空"))
	}
	if c.Orchestrator.Token == "" && (c.Orchestrator.User == "" || c.Orchestrator.Password == "") {
		errs = append(errs, errors.New("orchestrator.user/password 或 orchestrator.token 必须配置"))
	}
	if strings.TrimSpace(c.CSV.File) == "" {
		errs = append(errs, errors.New("csv.file 不能为空"))
	}
	if c.CSV.From < 1 {
		errs = append(errs, fmt.Errorf("csv.from 必须 >= 1, got %d", c.CSV.From))
	}
	if c.CSV.Count != records.All && c.CSV.Count <= 0 {
		errs = append(errs, fmt.Errorf("csv.count 必须为正整数或 all, got %d", c.CSV.Count))
	}
	if _, err := orchestrator.ParseMatchMode(c.Units.Match); err != nil {
		errs = append(errs, err)
	}
	if _, err := renamer.ParseVerifyMode(c.Verify.Mode); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
