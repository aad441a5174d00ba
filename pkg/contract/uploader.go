package contract

import (
	"context"
	"fmt"
	"strings"
)

// Channel: 上传目标渠道。
type Channel string

const (
	ChannelVivo   Channel = "vivo"
	ChannelOppo   Channel = "oppo"
	ChannelHuawei Channel = "huawei"
	ChannelXiaomi Channel = "xiaomi"
)

// ParseChannel 大小写不敏感地解析渠道名。
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelVivo, ChannelOppo, ChannelHuawei, ChannelXiaomi:
		return c, nil
	default:
		return "", fmt.Errorf("%w: 不支持的渠道: %s", ErrInvalidInput, s)
	}
}

// Credentials: 对象存储访问凭据。
type Credentials struct {
	AccessID  string
	AccessKey string
}

// Uploader: 将 ID 列表（每行一个数字 ID）上传到对象存储。
// 返回可读的对象位置标识；应尊重 ctx 取消/超时；错误直接上抛（不做重试）。
type Uploader interface {
	Upload(ctx context.Context, cred Credentials, content string, ch Channel) (string, error)
}
