package registry

import (
	"bytes"
	"encoding/json"
	"sort"

	"opkit/pkg/contract"
	hashids "opkit/plugins/codec/hashids"
	rfs "opkit/plugins/reader/filesystem"
	smem "opkit/plugins/settings/memory"
	ssql "opkit/plugins/settings/sqlite"
	delimited "opkit/plugins/textproc/delimited"
	umock "opkit/plugins/uploader/mock"
	oss "opkit/plugins/uploader/oss"
	wfs "opkit/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewTextProcessor 工厂签名：接收原样 JSON Options。
type NewTextProcessor func(raw json.RawMessage) (contract.TextProcessor, error)

// NewCodec 工厂签名：接收原样 JSON Options。
type NewCodec func(raw json.RawMessage) (contract.Codec, error)

// NewSettings 工厂签名：接收原样 JSON Options。
// 返回值若实现 io.Closer，由装配方负责关闭。
type NewSettings func(raw json.RawMessage) (contract.SettingsStore, error)

// NewUploader 工厂签名：接收原样 JSON Options。
type NewUploader func(raw json.RawMessage) (contract.Uploader, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// TextProcessor 工厂注册表。
var TextProcessor = map[string]NewTextProcessor{
	// delimited: 换行/逗号分隔条目的格式化
	"delimited": func(raw json.RawMessage) (contract.TextProcessor, error) {
		var opts delimited.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return delimited.New(&opts)
	},
}

// Codec 工厂注册表。
var Codec = map[string]NewCodec{
	"hashids": func(raw json.RawMessage) (contract.Codec, error) {
		var opts hashids.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return hashids.New(&opts)
	},
}

// Settings 工厂注册表。
var Settings = map[string]NewSettings{
	// memory: 进程内设置，退出即丢失
	"memory": func(raw json.RawMessage) (contract.SettingsStore, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return smem.New(), nil
	},
	// sqlite: 本地数据库持久化
	"sqlite": func(raw json.RawMessage) (contract.SettingsStore, error) {
		var opts ssql.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ssql.Open(&opts)
	},
}

// Uploader 工厂注册表。
var Uploader = map[string]NewUploader{
	"oss":  func(raw json.RawMessage) (contract.Uploader, error) { return oss.New(raw) },
	"mock": func(raw json.RawMessage) (contract.Uploader, error) { return umock.New(raw) },
}

// Names 返回注册表的全部键（升序），用于错误提示与模板。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
