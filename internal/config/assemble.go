package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"opkit/internal/backend"
	"opkit/internal/batch"
	"opkit/internal/diag"
	"opkit/internal/rate"
	"opkit/pkg/contract"
	"opkit/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if cfg.BatchSize < 0 {
		return errors.New("config: batch_size must be >= 0")
	}
	if cfg.Limits.RPM < 0 || cfg.Limits.BytesPerMinute < 0 || cfg.Limits.MaxBytesPerReq < 0 {
		return errors.New("config: limits must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging level %q", cfg.Logging.Level)
	}
	if _, err := cfg.Logging.Rotate(); err != nil {
		return err
	}
	d := Defaults().Components
	c := cfg.Components
	checks := []struct {
		kind, name string
		ok         func(string) bool
	}{
		{"reader", effName(c.Reader, d.Reader), func(n string) bool { return registry.Reader[n] != nil }},
		{"writer", effName(c.Writer, d.Writer), func(n string) bool { return registry.Writer[n] != nil }},
		{"text_processor", effName(c.TextProcessor, d.TextProcessor), func(n string) bool { return registry.TextProcessor[n] != nil }},
		{"codec", effName(c.Codec, d.Codec), func(n string) bool { return registry.Codec[n] != nil }},
		{"settings", effName(c.Settings, d.Settings), func(n string) bool { return registry.Settings[n] != nil }},
		{"uploader", effName(c.Uploader, d.Uploader), func(n string) bool { return registry.Uploader[n] != nil }},
	}
	for _, ch := range checks {
		if !ch.ok(ch.name) {
			return fmt.Errorf("config: %s %q not registered", ch.kind, ch.name)
		}
	}
	return nil
}

// Assembly 为装配结果：网关后端、输入 Reader 与按需构造的 Writer。
type Assembly struct {
	Backend *backend.Backend
	Reader  contract.Reader
	Gate    rate.Gate

	writerName string
	writerOpts json.RawMessage
}

// Writer 以配置中的 writer 选项构造 Writer；outputDir 非空时覆盖 output_dir。
func (a *Assembly) Writer(outputDir string) (contract.Writer, error) {
	raw := a.writerOpts
	if outputDir != "" && a.writerName == "fs" {
		m := map[string]json.RawMessage{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, fmt.Errorf("writer options: %w", err)
			}
		}
		b, _ := json.Marshal(outputDir)
		m["output_dir"] = b
		raw, _ = json.Marshal(m)
	}
	return registry.Writer[a.writerName](raw)
}

// Close 释放后端持有的资源（如 sqlite 连接）。
func (a *Assembly) Close() error {
	if a == nil || a.Backend == nil {
		return nil
	}
	return a.Backend.Close()
}

// Assemble 构造组件、批处理设置与上传限流 Gate。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config, logger *diag.Logger) (*Assembly, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	d := Defaults().Components
	rn := effName(cfg.Components.Reader, d.Reader)
	wn := effName(cfg.Components.Writer, d.Writer)
	tn := effName(cfg.Components.TextProcessor, d.TextProcessor)
	cn := effName(cfg.Components.Codec, d.Codec)
	sn := effName(cfg.Components.Settings, d.Settings)
	un := effName(cfg.Components.Uploader, d.Uploader)

	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return nil, fmt.Errorf("reader %s: %w", rn, err)
	}
	tp, err := registry.TextProcessor[tn](cfg.Options.TextProcessor)
	if err != nil {
		return nil, fmt.Errorf("text_processor %s: %w", tn, err)
	}
	codec, err := registry.Codec[cn](cfg.Options.Codec)
	if err != nil {
		return nil, fmt.Errorf("codec %s: %w", cn, err)
	}
	up, err := registry.Uploader[un](cfg.Options.Uploader)
	if err != nil {
		return nil, fmt.Errorf("uploader %s: %w", un, err)
	}
	// 设置存储可能持有连接，放在最后构造以免前序失败时泄漏
	st, err := registry.Settings[sn](cfg.Options.Settings)
	if err != nil {
		return nil, fmt.Errorf("settings %s: %w", sn, err)
	}

	gate := rate.NewGate(rate.Limits{
		RPM:            cfg.Limits.RPM,
		BPM:            cfg.Limits.BytesPerMinute,
		MaxBytesPerReq: cfg.Limits.MaxBytesPerReq,
	}, nil, nil)
	set := backend.Settings{
		Batch:        batch.Settings{Concurrency: cfg.Concurrency, BatchSize: cfg.BatchSize},
		Gate:         gate,
		UploaderName: un,
	}
	be, err := backend.New(backend.Components{Text: tp, Codec: codec, Settings: st, Uploader: up}, set, logger)
	if err != nil {
		return nil, err
	}
	return &Assembly{
		Backend:    be,
		Reader:     r,
		Gate:       gate,
		writerName: wn,
		writerOpts: cloneRaw(cfg.Options.Writer),
	}, nil
}

func effName(got, def string) string {
	if strings.TrimSpace(got) == "" {
		return def
	}
	return strings.TrimSpace(got)
}
