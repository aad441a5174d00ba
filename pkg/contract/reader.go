package contract

import (
	"context"
	"io"
)

// Reader: 输入源抽象（文件或 STDIN，"-" 表示 STDIN）。
// 约束：
// 1) 仅提供字节流，不做业务解析；
// 2) 调用方负责 Close；
// 3) 目录等非常规文件返回错误。
type Reader interface {
	Open(ctx context.Context, src string) (io.ReadCloser, error)
}
