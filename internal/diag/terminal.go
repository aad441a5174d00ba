package diag

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// 进度行最短刷新间隔
const progressEvery = 100 * time.Millisecond

// Terminal 在 stderr 上给人看的状态行，与结构化日志互不影响。
// TTY 下进度以 \r 原地刷新并按列宽截断；非 TTY 只在关键节点整行输出。
// 任何一次写失败后停用。nil *Terminal 的方法均为空操作。
type Terminal struct {
	mu   sync.Mutex
	out  io.Writer
	on   bool
	tty  bool
	cols int

	conc  int
	ops   int
	began time.Time
	op    opState

	inline  int // 当前未换行内容的显示宽度
	flushed time.Time
}

type opState struct {
	name              string
	total, done, errs int
}

var (
	termMu  sync.RWMutex
	current *Terminal
)

// SetTerminal 设置进程内共享的终端，nil 表示关闭。
func SetTerminal(t *Terminal) {
	termMu.Lock()
	current = t
	termMu.Unlock()
}

// GetTerminal 返回共享终端，可能为 nil。
func GetTerminal() *Terminal {
	termMu.RLock()
	defer termMu.RUnlock()
	return current
}

// NewTerminal 构造状态输出；w 为 nil 时用 stderr，enabled=false 时所有方法不输出。
// 设置了 CI 环境变量时按非 TTY 处理。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{out: w, on: enabled}
	f, isFile := w.(*os.File)
	if !isFile || os.Getenv("CI") != "" {
		return t
	}
	fd := f.Fd()
	if t.tty = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd); t.tty {
		if cols, _, err := term.GetSize(int(fd)); err == nil {
			t.cols = cols
		}
	}
	return t
}

func (t *Terminal) IsTTY() bool { return t != nil && t.tty }

// with 在持锁且启用时执行 fn。
func (t *Terminal) with(fn func()) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.on {
		fn()
	}
}

// RunStart 记录并发度与组件组合并输出一行。
func (t *Terminal) RunStart(concurrency int, backend string) {
	t.with(func() {
		t.conc, t.ops, t.began = concurrency, 0, time.Now()
		t.line(fmt.Sprintf("[run] 并发=%d | backend=%s", concurrency, oneLine(backend)))
	})
}

// OpStart 开始一次批量操作。
func (t *Terminal) OpStart(op string, items int) {
	t.with(func() {
		t.op = opState{name: clip(oneLine(op), 48), total: items}
		if !t.tty {
			t.line(fmt.Sprintf("[op] %s | 条目=%s", t.op.name, humanize.Comma(int64(items))))
		}
	})
}

// OpProgress 仅在 TTY 下输出，受 progressEvery 节流。
func (t *Terminal) OpProgress(done, total, errs int) {
	t.with(func() {
		if !t.tty {
			return
		}
		t.op.done, t.op.total, t.op.errs = done, total, errs
		now := time.Now()
		if now.Sub(t.flushed) < progressEvery {
			return
		}
		t.flushed = now
		t.rewrite(fmt.Sprintf("[op] %s | 进度 %s/%s | 错误 %d | 并发 %d | 用时 %s",
			t.op.name, humanize.Comma(int64(done)), humanize.Comma(int64(total)),
			errs, t.conc, elapsed(time.Since(t.began))))
	})
}

// OpFinish 结束当前操作；size 为结果字节数。
func (t *Terminal) OpFinish(ok bool, dur time.Duration, size int) {
	t.with(func() {
		t.ops++
		t.line(fmt.Sprintf("[%s] %s | 条目 %s | 输出 %s | 用时 %s",
			pick(ok, "done", "fail"), t.op.name, humanize.Comma(int64(t.op.total)),
			humanize.Bytes(uint64(max(size, 0))), elapsed(dur)))
	})
}

// Note 输出一行提示，如分页标签。
func (t *Terminal) Note(s string) {
	t.with(func() { t.line(oneLine(s)) })
}

func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	t.with(func() {
		t.line(fmt.Sprintf("[%s] 全部完成 | 操作 %d | 总用时 %s", pick(ok, "ok", "fail"), t.ops, elapsed(dur)))
	})
}

// line 先清掉未换行的进度，再整行输出。
func (t *Terminal) line(s string) {
	if t.tty && t.inline > 0 {
		t.rewrite("")
	}
	t.write(t.fit(s) + "\n")
	t.inline = 0
}

// rewrite 回到行首覆盖；比上一次短时以空格抹掉残留。
func (t *Terminal) rewrite(s string) {
	s = t.fit(s)
	w := runewidth.StringWidth(s)
	pad := strings.Repeat(" ", max(t.inline-w, 0))
	if t.write("\r" + s + pad) {
		t.inline = w
	}
}

func (t *Terminal) write(s string) bool {
	if !t.on {
		return false
	}
	if _, err := io.WriteString(t.out, s); err != nil {
		t.on = false
		return false
	}
	return true
}

// fit 留出最后一列，避免终端自动换行。
func (t *Terminal) fit(s string) string {
	if t.cols <= 1 {
		return s
	}
	return runewidth.Truncate(s, t.cols-1, "…")
}

func clip(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(strings.TrimSpace(s), width, "…")
}

var controlBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func oneLine(s string) string { return controlBreaks.Replace(s) }

func pick(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

func elapsed(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatInt(max(d.Milliseconds(), 0), 10) + "ms"
	}
	return strconv.FormatFloat(float64(d.Milliseconds())/1000, 'f', 1, 64) + "s"
}
