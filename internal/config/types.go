package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"opkit/internal/diag"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Concurrency: 批量编解码的并发批数。
	Concurrency int `json:"concurrency"`
	// BatchSize: 每批条目数；0 使用默认 1000。
	BatchSize int     `json:"batch_size"`
	Logging   Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`

	// 上传限流。
	Limits Limits `json:"limits"`
}

// Logging: 日志等级与目录；目录为空或 "-" 时仅输出到 stderr。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
	// MaxSize: 单个日志文件上限，如 "10MiB"；空为默认。
	MaxSize string `json:"max_size,omitempty"`
	// Keep: 保留的历史文件数；0 不清理。
	Keep int `json:"keep,omitempty"`
}

// Rotate 转换为日志轮转参数。
func (l Logging) Rotate() (diag.RotateOptions, error) {
	n, err := diag.ParseSize(l.MaxSize)
	if err != nil {
		return diag.RotateOptions{}, fmt.Errorf("config: logging.max_size: %w", err)
	}
	if l.Keep < 0 {
		return diag.RotateOptions{}, errors.New("config: logging.keep must be >= 0")
	}
	return diag.RotateOptions{MaxBytes: n, Keep: l.Keep}, nil
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader        string `json:"reader"`
	Writer        string `json:"writer"`
	TextProcessor string `json:"text_processor"`
	Codec         string `json:"codec"`
	Settings      string `json:"settings"`
	Uploader      string `json:"uploader"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader        json.RawMessage `json:"reader"`
	Writer        json.RawMessage `json:"writer"`
	TextProcessor json.RawMessage `json:"text_processor"`
	Codec         json.RawMessage `json:"codec"`
	Settings      json.RawMessage `json:"settings"`
	Uploader      json.RawMessage `json:"uploader"`
}

// Limits: 上传限流（仅承载；执行位于 rate.Gate）。0 表示不限制。
// 解析 JSON/ENV 时未出现的字段为 -1，Merge 据此区分“未覆盖”。
type Limits struct {
	RPM            int `json:"rpm"`
	BytesPerMinute int `json:"bytes_per_minute"`
	MaxBytesPerReq int `json:"max_bytes_per_req"`
}

func unsetLimits() Limits { return Limits{RPM: -1, BytesPerMinute: -1, MaxBytesPerReq: -1} }
