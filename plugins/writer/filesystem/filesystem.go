package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"opkit/pkg/contract"
)

// Options 为 writer 组件的 JSON 选项。
type Options struct {
	// 必填；--out 时为目标文件所在目录。
	OutputDir string `json:"output_dir"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。未提供时为 true。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 是否只保留文件名；未提供时为 true。
	Flat *bool `json:"flat,omitempty"`
	// TrailingNewline: 内容非空且不以换行结尾时补一个 '\n'。
	TrailingNewline bool `json:"trailing_newline,omitempty"`
	// PermFile/PermDir: 为 0 表示使用默认。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用默认。
	BufSize int `json:"buf_size,omitempty"`
}

type FS struct {
	root     string
	atomic   bool
	flat     bool
	trailing bool
	permF    os.FileMode
	permD    os.FileMode
	bufSize  int
}

// New 校验选项并填充默认值。
func New(opts *Options) (*FS, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("%w: output_dir required", contract.ErrInvalidInput)
	}
	w := &FS{
		root:     opts.OutputDir,
		atomic:   true,
		flat:     true,
		trailing: opts.TrailingNewline,
		permF:    0o644,
		permD:    0o755,
		bufSize:  64 * 1024,
	}
	if opts.BufSize > 0 {
		w.bufSize = opts.BufSize
	}
	if opts.PermFile != 0 {
		w.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		w.permD = opts.PermDir
	}
	if opts.Flat != nil {
		w.flat = *opts.Flat
	}
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	return w, nil
}

var _ contract.Writer = (*FS)(nil)

// Path 返回 id 映射到的目标路径（不触碰文件系统）。
func (w *FS) Path(id contract.ArtifactID) (string, error) { return w.mapPath(id) }

// Write 将 r 写到 id 对应的路径，目录按需创建。
func (w *FS) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := w.mapPath(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return err
	}

	var src io.Reader = ctxReader{ctx, r}
	if w.trailing {
		src = &newlineReader{r: src}
	}
	return w.copyTo(dest, src)
}

// mapPath 规范化 id 并拒绝逃出 root 的路径。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(string(contract.NormalizeArtifactID(string(id)))))
	if w.flat {
		rel = filepath.Base(rel)
		if rel == "." || rel == ".." || rel == "" || rel == string(filepath.Separator) {
			return "", fmt.Errorf("%w: %q", contract.ErrPathInvalid, id)
		}
		return filepath.Join(w.root, rel), nil
	}
	// 非扁平：禁止绝对路径、父级逃逸、卷名
	switch {
	case rel == "." || rel == "",
		filepath.IsAbs(rel),
		rel == "..", strings.HasPrefix(rel, ".."+string(filepath.Separator)),
		filepath.VolumeName(rel) != "":
		return "", fmt.Errorf("%w: %q", contract.ErrPathInvalid, id)
	}
	return filepath.Join(w.root, rel), nil
}

// target 为一次写入打开的目标文件；commit 使内容生效，abort 丢弃。
type target struct {
	f      *os.File
	commit func() error
	abort  func()
}

// open 原子模式下写同目录临时文件，commit 时 fsync 后替换目标。
func (w *FS) open(dest string) (*target, error) {
	if !w.atomic {
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
		if err != nil {
			return nil, err
		}
		return &target{f: f, commit: f.Close, abort: func() { _ = f.Close() }}, nil
	}
	dir := filepath.Dir(dest)
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, err
	}
	tmp := f.Name()
	_ = os.Chmod(tmp, w.permF)
	t := &target{f: f}
	t.abort = func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}
	t.commit = func() error {
		if err := f.Sync(); err != nil {
			t.abort()
			return err
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(tmp)
			return err
		}
		if err := osReplace(tmp, dest); err != nil {
			_ = os.Remove(tmp)
			return err
		}
		_ = syncDir(dir)
		return nil
	}
	return t, nil
}

func (w *FS) copyTo(dest string, r io.Reader) error {
	t, err := w.open(dest)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(t.f, w.bufSize)
	if _, err := io.Copy(bw, r); err != nil {
		t.abort()
		return err
	}
	if err := bw.Flush(); err != nil {
		t.abort()
		return err
	}
	return t.commit()
}

// ctxReader 每次 Read 前检查取消，长内容写到一半也能中止。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// newlineReader 在 EOF 处按需补 '\n'。
type newlineReader struct {
	r    io.Reader
	last byte
	seen bool
	eof  bool
	done bool
}

func (n *newlineReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if n.eof {
		if n.done || !n.seen || n.last == '\n' {
			n.done = true
			return 0, io.EOF
		}
		n.done = true
		p[0] = '\n'
		return 1, io.EOF
	}
	k, err := n.r.Read(p)
	if k > 0 {
		n.seen = true
		n.last = p[k-1]
	}
	if err == io.EOF {
		n.eof = true
		if k > 0 {
			return k, nil
		}
		return n.Read(p)
	}
	return k, err
}
