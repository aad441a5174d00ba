package contract

// TextProcessor: 分隔文本（换行或逗号分隔的条目列表）的格式化操作。
// 约束：
//  1. 纯计算，不做 I/O；
//  2. 空输入返回 ErrInvalidInput；
//  3. 条目两端空白被裁剪，空条目被丢弃。
type TextProcessor interface {
	ConvertFormat(input string) (string, error)
	ReplaceCommas(input string) (string, error)
	AddQuotes(input string) (string, error)
	RemoveQuotes(input string) (string, error)
}
