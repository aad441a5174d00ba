package contract

import "strings"

// SplitItems 按换行或英文逗号切分条目列表：裁剪两端空白并丢弃空条目。
func SplitItems(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool { return r == '\n' || r == ',' })
	out := fields[:0]
	for _, f := range fields {
		if s := strings.TrimSpace(f); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// UsesNewlines 报告输入是否以换行为主分隔符（换行数严格多于逗号数）。
func UsesNewlines(input string) bool {
	return strings.Count(input, "\n") > strings.Count(input, ",")
}

// Delimiter 返回与输入一致的分隔符：以换行为主时为 "\n"，否则为 ","。
func Delimiter(input string) string {
	if UsesNewlines(input) {
		return "\n"
	}
	return ","
}
