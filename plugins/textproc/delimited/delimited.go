// Package delimited 实现换行/逗号分隔条目列表的格式化操作。
package delimited

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"

	"opkit/pkg/contract"
)

// Options 为 Processor 的可选配置。
type Options struct {
	// FoldWidth: 替换中文逗号时，同时将全角字符折叠为半角（例如 "１２３" → "123"）。
	FoldWidth bool `json:"fold_width"`
	// Quote: 引号字符，默认单引号。
	Quote string `json:"quote"`
}

// Processor 为纯计算实现，无状态，并发安全。
type Processor struct {
	fold  bool
	quote string
}

// New 构造 Processor；Quote 必须为单个字符。
func New(opts *Options) (*Processor, error) {
	p := &Processor{quote: "'"}
	if opts != nil {
		p.fold = opts.FoldWidth
		if opts.Quote != "" {
			if len([]rune(opts.Quote)) != 1 {
				return nil, fmt.Errorf("%w: quote must be a single character: %q", contract.ErrInvalidInput, opts.Quote)
			}
			p.quote = opts.Quote
		}
	}
	return p, nil
}

func checkEmpty(input string) error {
	if input == "" {
		return fmt.Errorf("%w: 输入不能为空", contract.ErrInvalidInput)
	}
	return nil
}

// ConvertFormat 在换行分隔与逗号分隔之间互换。
func (p *Processor) ConvertFormat(input string) (string, error) {
	if err := checkEmpty(input); err != nil {
		return "", err
	}
	items := contract.SplitItems(input)
	if contract.UsesNewlines(input) {
		return strings.Join(items, ","), nil
	}
	return strings.Join(items, "\n"), nil
}

// ReplaceCommas 将中文逗号替换为英文逗号（可选全角折叠）。
func (p *Processor) ReplaceCommas(input string) (string, error) {
	if err := checkEmpty(input); err != nil {
		return "", err
	}
	if p.fold {
		// width.Fold 会将 U+FF0C 折叠为 ','
		return width.Fold.String(input), nil
	}
	return strings.ReplaceAll(input, "，", ","), nil
}

// AddQuotes 为每个条目加引号；已以引号开头或结尾的条目保持不变。
func (p *Processor) AddQuotes(input string) (string, error) {
	if err := checkEmpty(input); err != nil {
		return "", err
	}
	items := contract.SplitItems(input)
	for i, it := range items {
		if !strings.HasPrefix(it, p.quote) && !strings.HasSuffix(it, p.quote) {
			items[i] = p.quote + it + p.quote
		}
	}
	return strings.Join(items, contract.Delimiter(input)), nil
}

// RemoveQuotes 去掉首尾成对的引号（条目长度至少为两个引号）。
func (p *Processor) RemoveQuotes(input string) (string, error) {
	if err := checkEmpty(input); err != nil {
		return "", err
	}
	items := contract.SplitItems(input)
	q := len(p.quote)
	for i, it := range items {
		if len(it) >= 2*q && strings.HasPrefix(it, p.quote) && strings.HasSuffix(it, p.quote) {
			items[i] = it[q : len(it)-q]
		}
	}
	return strings.Join(items, contract.Delimiter(input)), nil
}

var _ contract.TextProcessor = (*Processor)(nil)
