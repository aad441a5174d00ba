package contract

import "context"

// SettingsStore: 会话级可变设置（加密配置档、华为前缀开关）。
// 实现需并发安全；未设置时返回默认值（ProfileGeneral、前缀开启）。
type SettingsStore interface {
	Profile(ctx context.Context) (Profile, error)
	SetProfile(ctx context.Context, p Profile) error
	PrefixEnabled(ctx context.Context) (bool, error)
	SetPrefixEnabled(ctx context.Context, on bool) error
}

// DefaultCryptoOptions 为未持久化任何设置时的默认值。
var DefaultCryptoOptions = CryptoOptions{Profile: ProfileGeneral, UsePrefix: true}
