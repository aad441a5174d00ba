package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultMaxLogBytes 为单个日志文件的默认上限。
const DefaultMaxLogBytes = 10 * humanize.MiByte

// RotateOptions 控制日志文件轮转。零值字段使用默认。
type RotateOptions struct {
	Prefix   string // 默认 opkit
	MaxBytes int64  // 默认 DefaultMaxLogBytes
	Keep     int    // >0 时只保留最近 Keep 个历史文件
}

// ParseSize 解析 "10MiB"、"512 KB"、"1048576" 等写法；空串返回 0。
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}
	return int64(n), nil
}

// RotatingFile 追加写 <dir>/<prefix>-current.txt；写入将超过上限时
// 将其改名为 <prefix>-<UTC 时间戳>.txt 后重新打开。
type RotatingFile struct {
	dir  string
	opts RotateOptions

	mu   sync.Mutex
	f    *os.File
	size int64
}

// NewRotatingFile 以默认前缀、不清理历史文件构造。
func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	return NewRotatingFileOpts(dir, RotateOptions{MaxBytes: maxBytes})
}

// NewRotatingFileOpts 按 opts 构造；文件在首次写入时创建。
func NewRotatingFileOpts(dir string, opts RotateOptions) *RotatingFile {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxLogBytes
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = "opkit"
	}
	return &RotatingFile{dir: dir, opts: opts}
}

// CurrentPath 返回当前日志文件路径。
func (w *RotatingFile) CurrentPath() string {
	return filepath.Join(w.dir, w.opts.Prefix+"-current.txt")
}

// WriteLine 追加一行；单行超过上限时仍完整写入（独占一个文件）。
func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.open(); err != nil {
		return err
	}
	need := int64(len(b)) + 1
	if w.size > 0 && w.size+need > w.opts.MaxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(append(b, '\n'))
	w.size += int64(n)
	return err
}

func (w *RotatingFile) open() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.CurrentPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.size = f, st.Size()
	return nil
}

// rotate 关闭并改名当前文件，清理历史后重新打开。
func (w *RotatingFile) rotate() error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	// 纳秒精度，同一秒内多次轮转不会互相覆盖
	stamp := time.Now().UTC().Format("20060102-150405.000000000")
	dst := filepath.Join(w.dir, w.opts.Prefix+"-"+stamp+".txt")
	if err := os.Rename(w.CurrentPath(), dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate log: %w", err)
	}
	w.prune()
	return w.open()
}

// prune 删除超出 Keep 的最旧历史文件；时间戳命名下字典序即时间序。
func (w *RotatingFile) prune() {
	if w.opts.Keep <= 0 {
		return
	}
	ents, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	cur := filepath.Base(w.CurrentPath())
	var old []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || name == cur || !strings.HasPrefix(name, w.opts.Prefix+"-") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		old = append(old, name)
	}
	sort.Strings(old)
	for i := 0; i < len(old)-w.opts.Keep; i++ {
		_ = os.Remove(filepath.Join(w.dir, old[i]))
	}
}

// Close 关闭当前文件句柄；之后的写入会重新打开。
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
