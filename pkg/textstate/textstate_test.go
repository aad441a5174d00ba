package textstate

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

// TestPageCount 覆盖 ceil 规则与空串返回 0。
func TestPageCount(t *testing.T) {
	cases := []struct {
		name string
		n    int
		want int
	}{
		{"empty", 0, 0},
		{"one", 1, 1},
		{"exact", PageSize, 1},
		{"over", PageSize + 1, 2},
		{"12001", 12001, 3},
		{"three exact", 3 * PageSize, 3},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := PageCount(strings.Repeat("a", tt.n)); got != tt.want {
				t.Fatalf("PageCount(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

// 按 rune 计数：多字节字符不应按字节分页。
func TestPageCountRunes(t *testing.T) {
	text := strings.Repeat("中", PageSize)
	if got := PageCount(text); got != 1 {
		t.Fatalf("5000 个汉字应为 1 页, got %d", got)
	}
	if got := PageSlice(text+"文", 2); got != "文" {
		t.Fatalf("第 2 页应为单个汉字, got %q", got)
	}
}

// 场景：12001 字符 → 5000/5000/2001/"".
func TestPageSlice12001(t *testing.T) {
	text := strings.Repeat("x", 12001)
	want := []int{5000, 5000, 2001, 0}
	for i, w := range want {
		got := utf8.RuneCountInString(PageSlice(text, i+1))
		if got != w {
			t.Fatalf("page %d len = %d, want %d", i+1, got, w)
		}
	}
	if PageSlice(text, 0) != "" || PageSlice(text, -3) != "" {
		t.Fatalf("page<1 应返回空串")
	}
}

// 分区律：逐页拼接可无损还原原文。
func TestPartitionLaw(t *testing.T) {
	inputs := []string{
		"",
		"abc",
		strings.Repeat("ab", PageSize),
		strings.Repeat("中文,", 4321),
		strings.Repeat("🙂x", 7777),
	}
	for _, in := range inputs {
		s := New()
		s.Replace(in)
		var b strings.Builder
		for _, page := range s.Pages() {
			b.WriteString(page)
		}
		if b.String() != in {
			t.Fatalf("partition mismatch for input of %d runes", utf8.RuneCountInString(in))
		}
	}
}

// 多 MB 输入下逐页内容与 PageSlice 一致，且拼接还原原文。
func TestPagesLargeInput(t *testing.T) {
	in := strings.Repeat("中", 4<<20) + "尾"
	s := New()
	s.Replace(in)
	want := PageCount(in)
	var b strings.Builder
	n := 0
	for p, page := range s.Pages() {
		n++
		if p != n {
			t.Fatalf("page number %d, want %d", p, n)
		}
		if utf8.RuneCountInString(page) != PageSize && p != want {
			t.Fatalf("page %d has %d runes", p, utf8.RuneCountInString(page))
		}
		if p == 1 || p == want {
			if page != PageSlice(in, p) {
				t.Fatalf("page %d differs from PageSlice", p)
			}
		}
		b.WriteString(page)
	}
	if n != want || b.String() != in {
		t.Fatalf("pages=%d want %d, rebuilt %d bytes of %d", n, want, b.Len(), len(in))
	}
	if s.PageInfo.CurrentPage != 1 {
		t.Fatalf("Pages 不应改变当前页")
	}
}

func TestPagesStopEarly(t *testing.T) {
	s := New()
	s.Replace(strings.Repeat("a", 3*PageSize))
	seen := 0
	for p := range s.Pages() {
		seen = p
		if p == 2 {
			break
		}
	}
	if seen != 2 {
		t.Fatalf("break 后仍继续产出: %d", seen)
	}
}

func BenchmarkPages(b *testing.B) {
	s := New()
	s.Replace(strings.Repeat("中", 1<<20))
	b.SetBytes(int64(len(s.FullContent)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for range s.Pages() {
		}
	}
}

func TestNewEmpty(t *testing.T) {
	want := &TextState{PageInfo: PageInfo{CurrentPage: 1, TotalPages: 1, PageSize: PageSize}}
	if diff := cmp.Diff(want, New()); diff != "" {
		t.Fatalf("New() mismatch (-want +got):\n%s", diff)
	}
}

// 场景：空串替换 → 1/1 页、空内容。
func TestReplaceEmpty(t *testing.T) {
	s := New()
	s.Replace("hello")
	s.Replace("")
	want := &TextState{PageInfo: PageInfo{CurrentPage: 1, TotalPages: 1, PageSize: PageSize}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("Replace(\"\") mismatch (-want +got):\n%s", diff)
	}
	if s.Label() != "" {
		t.Fatalf("单页不应有页码提示: %q", s.Label())
	}
}

// 场景：替换总是回到第 1 页。
func TestReplaceResetsPage(t *testing.T) {
	s := New()
	s.Replace(strings.Repeat("a", 3*PageSize))
	if !s.GoTo(3) {
		t.Fatalf("GoTo(3) 应成功")
	}
	s.Replace(strings.Repeat("b", 2*PageSize+10))
	if s.PageInfo.CurrentPage != 1 || s.PageInfo.TotalPages != 3 {
		t.Fatalf("unexpected page info: %+v", s.PageInfo)
	}
	if s.CurrentContent != strings.Repeat("b", PageSize) {
		t.Fatalf("首页内容未重算")
	}
}

// GoTo 越界为静默 no-op；重复跳转同一页幂等。
func TestGoTo(t *testing.T) {
	s := New()
	s.Replace(strings.Repeat("a", PageSize) + strings.Repeat("b", PageSize) + "c")
	before := *s
	for _, p := range []int{0, -1, s.PageInfo.TotalPages + 1} {
		if s.GoTo(p) {
			t.Fatalf("GoTo(%d) 应被拒绝", p)
		}
		if diff := cmp.Diff(before, *s); diff != "" {
			t.Fatalf("GoTo(%d) 改变了状态:\n%s", p, diff)
		}
	}
	if !s.GoTo(3) || s.CurrentContent != "c" {
		t.Fatalf("GoTo(3) content = %q", s.CurrentContent)
	}
	snap := *s
	s.GoTo(s.PageInfo.CurrentPage)
	if diff := cmp.Diff(snap, *s); diff != "" {
		t.Fatalf("GoTo(current) 非幂等:\n%s", diff)
	}
	if s.Label() != "第 3/3 页" {
		t.Fatalf("label = %q", s.Label())
	}
}

func TestNavigation(t *testing.T) {
	s := New()
	s.Replace(strings.Repeat("z", 2*PageSize+1))
	if s.Prev() {
		t.Fatalf("首页 Prev 应为 no-op")
	}
	if !s.Next() || s.PageInfo.CurrentPage != 2 {
		t.Fatalf("Next 失败: %+v", s.PageInfo)
	}
	if !s.Last() || s.PageInfo.CurrentPage != 3 {
		t.Fatalf("Last 失败: %+v", s.PageInfo)
	}
	if s.Next() {
		t.Fatalf("末页 Next 应为 no-op")
	}
	if !s.First() || s.CurrentContent != PageSlice(s.FullContent, 1) {
		t.Fatalf("First 失败")
	}
	s.Clear()
	if !s.Empty() || s.PageInfo.TotalPages != 1 {
		t.Fatalf("Clear 后应为空: %+v", s.PageInfo)
	}
}

func TestAppStateIndependent(t *testing.T) {
	app := NewApp()
	app.Side(Input).Replace(strings.Repeat("i", PageSize+1))
	app.Side(Input).Next()
	if app.Output.PageInfo.CurrentPage != 1 || !app.Output.Empty() {
		t.Fatalf("输出侧不应受输入侧影响: %+v", app.Output)
	}
	if app.Side(Side(9)) != nil {
		t.Fatalf("未知 side 应返回 nil")
	}
	for _, name := range []string{"input", "in", "output", "out"} {
		if _, err := ParseSide(name); err != nil {
			t.Fatalf("ParseSide(%q): %v", name, err)
		}
	}
	if _, err := ParseSide("left"); err == nil {
		t.Fatalf("未知 side 应报错")
	}
	if Output.String() != "output" {
		t.Fatalf("String() = %q", Output.String())
	}
}

func BenchmarkPageSliceLast(b *testing.B) {
	text := strings.Repeat("数据,", 100000)
	last := PageCount(text)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = PageSlice(text, last)
	}
}
