package orchestrator

import (
	"fmt"
	"strings"
)

// MatchMode 控制组织单元名称的匹配方式。
type MatchMode string

const (
	// MatchExact 使用 `DisplayName eq 'x'`，只命中完全相同的名称。
	MatchExact MatchMode = "exact"
	// MatchContains 使用 `contains(DisplayName,'x')`，名称相互包含时可能命中多个单元。
	MatchContains MatchMode = "contains"
)

// ParseMatchMode 解析配置中的匹配方式，空值视为 exact。
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchExact:
		return MatchExact, nil
	case MatchContains:
		return MatchContains, nil
	default:
		return "", fmt.Errorf("unknown unit match mode %q", s)
	}
}

// quote 生成 OData 字符串字面量，单引号需要成对转义。
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func unitFilter(name string, mode MatchMode) string {
	if mode == MatchContains {
		return fmt.Sprintf("contains(DisplayName,%s)", quote(name))
	}
	return fmt.Sprintf("DisplayName eq %s", quote(name))
}

func robotFilter(q RobotQuery) string {
	var parts []string
	if q.UserName != "" {
		parts = append(parts, "Username eq "+quote(q.UserName))
	}
	if q.MachineName != "" {
		parts = append(parts, "MachineName eq "+quote(q.MachineName))
	}
	if q.Name != "" {
		parts = append(parts, "Name eq "+quote(q.Name))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " and ") + ")"
}
