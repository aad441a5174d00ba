package textstate

import "unicode/utf8"

// PageSize: 每页字符数（按 rune 计）。
const PageSize = 5000

// PageCount 返回 text 需要的页数：ceil(runes / PageSize)。
// 空串返回 0；状态层负责施加 max(1, ·) 下限。
func PageCount(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + PageSize - 1) / PageSize
}

// PageSlice 返回第 page 页（1 起）的内容，即 rune 区间 [(page-1)*PageSize, page*PageSize)。
// 越界页（page<1 或超出内容）返回空串而非错误。
func PageSlice(text string, page int) string {
	if page < 1 || text == "" {
		return ""
	}
	// 防止 (page-1)*PageSize 溢出
	if page-1 > (int(^uint(0)>>1))/PageSize {
		return ""
	}
	start := runeOffset(text, (page-1)*PageSize)
	if start >= len(text) {
		return ""
	}
	end := start + runeOffset(text[start:], PageSize)
	return text[start:end]
}

// runeOffset 返回 s 中第 n 个 rune 的字节偏移；不足 n 个时返回 len(s)。
// 非法 UTF-8 字节按单个 rune 计，与 utf8.RuneCountInString 保持一致。
func runeOffset(s string, n int) int {
	if n <= 0 {
		return 0
	}
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}
