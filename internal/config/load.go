package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// EnvPrefix 为环境变量覆盖的统一前缀。
const EnvPrefix = "OPKIT_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Concurrency: 4,
		BatchSize:   1000,
		Logging:     Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:        "fs",
			Writer:        "fs",
			TextProcessor: "delimited",
			Codec:         "hashids",
			Settings:      "memory",
			Uploader:      "mock",
		},
		Limits: Limits{RPM: 60},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	cfg := Config{Limits: unsetLimits()}
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.BatchSize != 0 {
		out.BatchSize = over.BatchSize
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}
	if s := strings.TrimSpace(over.Logging.MaxSize); s != "" {
		out.Logging.MaxSize = s
	}
	if over.Logging.Keep != 0 {
		out.Logging.Keep = over.Logging.Keep
	}

	// 组件名（空不覆盖）
	mergeName(&out.Components.Reader, over.Components.Reader)
	mergeName(&out.Components.Writer, over.Components.Writer)
	mergeName(&out.Components.TextProcessor, over.Components.TextProcessor)
	mergeName(&out.Components.Codec, over.Components.Codec)
	mergeName(&out.Components.Settings, over.Components.Settings)
	mergeName(&out.Components.Uploader, over.Components.Uploader)

	// Options（完整替换对应键）
	mergeRaw(&out.Options.Reader, over.Options.Reader)
	mergeRaw(&out.Options.Writer, over.Options.Writer)
	mergeRaw(&out.Options.TextProcessor, over.Options.TextProcessor)
	mergeRaw(&out.Options.Codec, over.Options.Codec)
	mergeRaw(&out.Options.Settings, over.Options.Settings)
	mergeRaw(&out.Options.Uploader, over.Options.Uploader)

	// 限额：0 有语义（不限制），仅 >=0 视为覆盖
	if over.Limits.RPM >= 0 {
		out.Limits.RPM = over.Limits.RPM
	}
	if over.Limits.BytesPerMinute >= 0 {
		out.Limits.BytesPerMinute = over.Limits.BytesPerMinute
	}
	if over.Limits.MaxBytesPerReq >= 0 {
		out.Limits.MaxBytesPerReq = over.Limits.MaxBytesPerReq
	}
	return out
}

func mergeName(dst *string, v string) {
	if s := strings.TrimSpace(v); s != "" {
		*dst = s
	}
}

func mergeRaw(dst *json.RawMessage, v json.RawMessage) {
	if len(v) > 0 {
		*dst = cloneRaw(v)
	}
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 支持：CONCURRENCY, BATCH_SIZE, LOG_*, COMPONENTS_*, OPTIONS_*_JSON, LIMITS_*。
// 数值无法解析时报错。
func EnvOverlay(environ []string) (Config, error) {
	over := Config{Limits: unsetLimits()}
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空 config.json 中的值
			continue
		}
		var err error
		switch key {
		case "CONCURRENCY":
			over.Concurrency, err = atoi(val)
		case "BATCH_SIZE":
			over.BatchSize, err = atoi(val)
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "LOG_MAX_SIZE":
			over.Logging.MaxSize = val
		case "LOG_KEEP":
			over.Logging.Keep, err = atoi(val)
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "COMPONENTS_TEXT_PROCESSOR":
			over.Components.TextProcessor = val
		case "COMPONENTS_CODEC":
			over.Components.Codec = val
		case "COMPONENTS_SETTINGS":
			over.Components.Settings = val
		case "COMPONENTS_UPLOADER":
			over.Components.Uploader = val
		case "OPTIONS_READER_JSON":
			over.Options.Reader = json.RawMessage(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = json.RawMessage(val)
		case "OPTIONS_TEXT_PROCESSOR_JSON":
			over.Options.TextProcessor = json.RawMessage(val)
		case "OPTIONS_CODEC_JSON":
			over.Options.Codec = json.RawMessage(val)
		case "OPTIONS_SETTINGS_JSON":
			over.Options.Settings = json.RawMessage(val)
		case "OPTIONS_UPLOADER_JSON":
			over.Options.Uploader = json.RawMessage(val)
		case "LIMITS_RPM":
			over.Limits.RPM, err = atoi(val)
		case "LIMITS_BYTES_PER_MINUTE":
			over.Limits.BytesPerMinute, err = atoi(val)
		case "LIMITS_MAX_BYTES_PER_REQ":
			over.Limits.MaxBytesPerReq, err = atoi(val)
		default:
			// 其他 OPKIT_ 键（如 CONFIG_FILE）由调用方处理
		}
		if err != nil {
			return Config{}, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
	}
	return over, nil
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func atoi(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}
