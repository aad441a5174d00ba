package contract

import (
	"path"
	"strings"
)

// NormalizeArtifactID 规范化工件标识：统一正斜杠并清理多余片段。
// 保留相对/绝对语义，越界判定由 Writer 实现负责。
func NormalizeArtifactID(p string) ArtifactID {
	return ArtifactID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}
