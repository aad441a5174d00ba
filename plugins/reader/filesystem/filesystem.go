package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"opkit/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// MaxBytes: 单个输入源的原始字节上限；<=0 不限制。
	MaxBytes int64 `json:"max_bytes"`
	// Raw: 关闭 BOM 剥离与 CRLF 归一。
	Raw bool `json:"raw"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
type FileSystem struct {
	bufSize  int
	maxBytes int64
	raw      bool
	stdin    io.Reader
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	r := &FileSystem{bufSize: defaultBuf}
	if opts != nil {
		if opts.BufSize > 0 {
			r.bufSize = opts.BufSize
		}
		r.maxBytes = opts.MaxBytes
		r.raw = opts.Raw
	}
	return r
}

// Open 打开单个输入源："-" 为 STDIN；符号链接仅跟随到常规文件。
// 目录、设备、管道等非常规文件返回 ErrInvalidInput。
func (r *FileSystem) Open(ctx context.Context, src string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if src == "" {
		return nil, fmt.Errorf("%w: empty source", contract.ErrInvalidInput)
	}
	if src == "-" {
		in := r.stdin
		if in == nil {
			in = os.Stdin
		}
		// STDIN 不由 Reader 关闭
		return r.wrap(io.NopCloser(in)), nil
	}
	// os.Stat 跟随符号链接，失效链接在此报错
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", contract.ErrInvalidInput, src)
	}
	if r.maxBytes > 0 && info.Size() > r.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", contract.ErrBudgetExceeded, src, info.Size(), r.maxBytes)
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	return r.wrap(f), nil
}

// wrap 叠加：字节上限 → 缓冲 → BOM/换行归一。
func (r *FileSystem) wrap(rc io.ReadCloser) io.ReadCloser {
	var src io.Reader = rc
	if r.maxBytes > 0 {
		src = &capReader{r: src, left: r.maxBytes}
	}
	br := bufio.NewReaderSize(src, r.bufSize)
	if r.raw {
		return &bufferedCloser{Reader: br, c: rc}
	}
	t := transform.Chain(unicode.BOMOverride(transform.Nop), crlf{})
	return &bufferedCloser{Reader: transform.NewReader(br, t), c: rc}
}

// capReader 超过上限即报错（而非静默截断）。
type capReader struct {
	r    io.Reader
	left int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, fmt.Errorf("%w: input exceeds byte limit", contract.ErrBudgetExceeded)
	}
	// 多读 1 字节用于判定越界
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n + int(c.left), fmt.Errorf("%w: input exceeds byte limit", contract.ErrBudgetExceeded)
	}
	return n, err
}

// crlf 将 "\r\n" 归一为 "\n"；孤立的 '\r' 原样保留。
type crlf struct{ transform.NopResetter }

func (crlf) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c == '\r' {
			if nSrc+1 == len(src) && !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			if nSrc+1 < len(src) && src[nSrc+1] == '\n' {
				nSrc++
				continue
			}
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = c
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}

// bufferedCloser 将读取端与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	io.Reader
	c io.Closer
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
