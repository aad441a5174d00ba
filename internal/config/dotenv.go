package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadDotEnv 读取简单的 .env 文件并注入进程环境。
// - 文件不存在时忽略；
// - 跳过空行与 # 注释；支持可选前缀 "export "；
// - 仅按首个 '=' 分割；成对引号被去除，双引号内处理 \n \t \r \" \\；
// - 不覆盖已存在的环境变量。
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		key, val, ok := parseDotEnvLine(s.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func parseDotEnvLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	eq := strings.IndexByte(line, '=')
	if eq <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:eq])
	val = strings.TrimSpace(line[eq+1:])
	if key == "" {
		return "", "", false
	}
	if len(val) >= 2 {
		if q := val[0]; (q == '\'' || q == '"') && val[len(val)-1] == q {
			val = val[1 : len(val)-1]
			if q == '"' {
				val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
			}
		}
	}
	return key, val, true
}

// DotEnvTemplate 返回 --init-config 生成的 .env 模板内容。
func DotEnvTemplate() string {
	var b strings.Builder
	b.WriteString("# opkit .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > JSON\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	for _, k := range []string{"CONFIG_FILE", "CONFIG_JSON"} {
		b.WriteString(EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 运行参数覆盖\n")
	for _, k := range []string{"CONCURRENCY", "BATCH_SIZE", "LOG_LEVEL", "LOG_DIR", "LOG_MAX_SIZE", "LOG_KEEP"} {
		b.WriteString(EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择与选项（原样 JSON）\n")
	for _, c := range []string{"READER", "WRITER", "TEXT_PROCESSOR", "CODEC", "SETTINGS", "UPLOADER"} {
		b.WriteString(EnvPrefix + "COMPONENTS_" + c + "=\n")
		b.WriteString(EnvPrefix + "OPTIONS_" + c + "_JSON=\n")
	}
	b.WriteString("\n# 上传限流（0 表示不限制）\n")
	for _, k := range []string{"LIMITS_RPM", "LIMITS_BYTES_PER_MINUTE", "LIMITS_MAX_BYTES_PER_REQ"} {
		b.WriteString(EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# OSS 凭据（由 CLI 读取，不写入日志）\n")
	b.WriteString(EnvPrefix + "OSS_ACCESS_ID=\n")
	b.WriteString(EnvPrefix + "OSS_ACCESS_KEY=\n")
	return b.String()
}
