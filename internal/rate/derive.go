package rate

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"opkit/pkg/contract"
)

// DeriveUploadKey 以 uploader 名称与 sha256(access id) 构造限流分组键；
// 凭据原文不进入键与日志。access id 为空时返回 ErrInvalidInput。
func DeriveUploadKey(uploader, accessID string) (LimitKey, error) {
	id := strings.TrimSpace(accessID)
	if id == "" {
		return "", fmt.Errorf("%w: rate: missing access id for %s", contract.ErrInvalidInput, uploader)
	}
	sum := sha256.Sum256([]byte(id))
	return LimitKey(fmt.Sprintf("%s:%x", uploader, sum[:])), nil
}
