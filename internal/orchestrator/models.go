package orchestrator

import (
	"encoding/json"
	"fmt"
)

// OrganizationUnit 表示 Orchestrator 中的组织单元。
type OrganizationUnit struct {
	ID          int64  `json:"Id"`
	DisplayName string `json:"DisplayName"`
}

// Robot 表示 Orchestrator 返回的完整机器人记录。
// 未显式建模的字段保存在 Extra 中，更新时原样回写。
type Robot struct {
	ID          int64
	LicenseKey  string
	MachineName string
	Username    string
	Name        string
	Type        string
	Description string
	Extra       map[string]json.RawMessage
}

const (
	keyID          = "Id"
	keyLicenseKey  = "LicenseKey"
	keyMachineName = "MachineName"
	keyUsername    = "Username"
	keyName        = "Name"
	keyType        = "Type"
	keyDescription = "Description"
	keyPassword    = "Password"
	keyODataCtx    = "@odata.context"
)

// UnmarshalJSON 解析已知字段并保留其余字段。
func (r *Robot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := []struct {
		key string
		dst any
	}{
		{keyID, &r.ID},
		{keyLicenseKey, &r.LicenseKey},
		{keyMachineName, &r.MachineName},
		{keyUsername, &r.Username},
		{keyName, &r.Name},
		{keyType, &r.Type},
		{keyDescription, &r.Description},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		delete(raw, f.key)
		if string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("robot field %s: %w", f.key, err)
		}
	}
	delete(raw, keyODataCtx)
	if len(raw) == 0 {
		raw = nil
	}
	r.Extra = raw
	return nil
}

// MarshalJSON 输出完整记录，包含 Extra 中的原始字段。
func (r Robot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+7)
	for k, v := range r.Extra {
		out[k] = v
	}
	out[keyID] = r.ID
	out[keyLicenseKey] = r.LicenseKey
	out[keyMachineName] = r.MachineName
	out[keyUsername] = r.Username
	out[keyName] = r.Name
	out[keyType] = r.Type
	out[keyDescription] = r.Description
	return json.Marshal(out)
}

// WithName 返回只替换了 Name 的副本，Extra 深拷贝。
func (r Robot) WithName(name string) Robot {
	cp := r
	cp.Name = name
	if r.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			cp.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return cp
}

// ensurePassword 更新接口要求带 Password 字段，读取结果中缺失时补空串占位。
func (r Robot) ensurePassword() Robot {
	if _, ok := r.Extra[keyPassword]; ok {
		return r
	}
	cp := r.WithName(r.Name)
	if cp.Extra == nil {
		cp.Extra = make(map[string]json.RawMessage, 1)
	}
	cp.Extra[keyPassword] = json.RawMessage(`""`)
	return cp
}

// RobotQuery 描述机器人查询条件，空字段不参与过滤。
type RobotQuery struct {
	UserName    string
	MachineName string
	Name        string
}

type odataList[T any] struct {
	Count *int `json:"@odata.count,omitempty"`
	Value []T  `json:"value"`
}
