package textstate

import (
	"fmt"
	"iter"
)

// PageInfo: 分页元信息。约束 1 <= CurrentPage <= TotalPages。
type PageInfo struct {
	CurrentPage int
	TotalPages  int
	PageSize    int
}

// TextState 将完整文本与当前页内容配对。
// 约束：
//  1. CurrentContent == PageSlice(FullContent, CurrentPage)；
//  2. TotalPages == max(1, PageCount(FullContent))，仅在整体替换时重算；
//  3. 单一所有者顺序调用，不做并发保护。
type TextState struct {
	FullContent    string
	CurrentContent string
	PageInfo       PageInfo
}

// New 返回空状态：第 1/1 页，内容为空。
func New() *TextState {
	return &TextState{PageInfo: PageInfo{CurrentPage: 1, TotalPages: 1, PageSize: PageSize}}
}

// Replace 整体替换完整内容：重算总页数，回到第 1 页并物化首页。
// 对任意输入（包括空串）均成功。
func (s *TextState) Replace(content string) {
	s.FullContent = content
	s.PageInfo.PageSize = PageSize
	s.PageInfo.TotalPages = max(1, PageCount(content))
	s.PageInfo.CurrentPage = 1
	s.CurrentContent = PageSlice(content, 1)
}

// Clear 等价于 Replace("")。
func (s *TextState) Clear() { s.Replace("") }

// GoTo 跳转到第 page 页。越界（page<1 或 page>TotalPages）时静默忽略并返回 false。
func (s *TextState) GoTo(page int) bool {
	if page < 1 || page > s.PageInfo.TotalPages {
		return false
	}
	s.PageInfo.CurrentPage = page
	s.CurrentContent = PageSlice(s.FullContent, page)
	return true
}

func (s *TextState) First() bool { return s.GoTo(1) }
func (s *TextState) Prev() bool  { return s.GoTo(s.PageInfo.CurrentPage - 1) }
func (s *TextState) Next() bool  { return s.GoTo(s.PageInfo.CurrentPage + 1) }
func (s *TextState) Last() bool  { return s.GoTo(s.PageInfo.TotalPages) }

// Empty 报告完整内容是否为空。
func (s *TextState) Empty() bool { return s.FullContent == "" }

// Label 返回当前页的页码提示；仅一页时为空串。
func (s *TextState) Label() string { return PageLabel(s.PageInfo.CurrentPage, s.PageInfo.TotalPages) }

// PageLabel 渲染 "第 page/total 页"；total<=1 时为空串。
func PageLabel(page, total int) string {
	if total <= 1 {
		return ""
	}
	return fmt.Sprintf("第 %d/%d 页", page, total)
}

// Pages 依次产出 (页码, 页内容)，不改变当前页。整个遍历只扫描一遍文本。
func (s *TextState) Pages() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		text, off := s.FullContent, 0
		for p := 1; p <= s.PageInfo.TotalPages; p++ {
			end := off + runeOffset(text[off:], PageSize)
			if !yield(p, text[off:end]) {
				return
			}
			off = end
		}
	}
}
