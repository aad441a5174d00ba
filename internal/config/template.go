package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 设置存于本地 sqlite，重启后保留；
// - 上传器为 oss，bucket/endpoint 为示例值，需按实际填写；
// - 选项列出全部键，值为安全中性默认。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Concurrency: d.Concurrency,
		BatchSize:   d.BatchSize,
		Logging:     Logging{Level: d.Logging.Level, Dir: d.Logging.Dir, MaxSize: "10MiB", Keep: 10},
		Components:  d.Components,
		Limits:      Limits{RPM: 60, BytesPerMinute: 0, MaxBytesPerReq: 10 << 20},
	}
	cfg.Components.Settings = "sqlite"
	cfg.Components.Uploader = "oss"
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "max_bytes": 0,
  "raw": false
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": true,
  "trailing_newline": false,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	cfg.Options.TextProcessor = json.RawMessage(`{
  "fold_width": false,
  "quote": "'"
}`)
	// 空值沿用内置 salt/最小长度/字母表
	cfg.Options.Codec = json.RawMessage(`{
  "general_salt": "",
  "general_min_length": 0,
  "huawei_salt": "",
  "huawei_min_length": 0,
  "huawei_alphabet": ""
}`)
	cfg.Options.Settings = json.RawMessage(`{
  "path": "opkit-settings.db"
}`)
	cfg.Options.Uploader = json.RawMessage(`{
  "bucket": "my-bucket",
  "endpoint": "oss-cn-hangzhou.aliyuncs.com",
  "scheme": "https",
  "base_url": "",
  "folder_template": "hive2/dim/tmp_%s_ids",
  "timeout_seconds": 30,
  "max_bytes": 0
}`)
	return cfg
}
