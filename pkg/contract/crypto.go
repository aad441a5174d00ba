package contract

import (
	"fmt"
	"strings"
)

// Profile: 加密配置档（决定 salt/最小长度/字母表）。
type Profile string

const (
	ProfileGeneral Profile = "general"
	ProfileHuawei  Profile = "huawei"
)

// DisplayName 返回界面展示名（与前端约定一致）。
func (p Profile) DisplayName() string {
	switch p {
	case ProfileHuawei:
		return "华为"
	default:
		return "通用"
	}
}

// ParseProfile 接受展示名或内部名。
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "通用", "general":
		return ProfileGeneral, nil
	case "华为", "huawei":
		return ProfileHuawei, nil
	default:
		return "", fmt.Errorf("%w: 无效的配置名称 %q，必须是 '通用' 或 '华为'", ErrInvalidInput, s)
	}
}

// CryptoOptions: 单次编解码使用的配置快照。
type CryptoOptions struct {
	Profile Profile
	// UsePrefix: 华为档下是否附加/识别固定前缀。
	UsePrefix bool
}

// Codec: 单个数字 ID 与加密串之间的可逆映射。
// 约束：纯计算、并发安全、无 I/O。
type Codec interface {
	Encode(opts CryptoOptions, item string) (string, error)
	Decode(opts CryptoOptions, item string) (string, error)
}
