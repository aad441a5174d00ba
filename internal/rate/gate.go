// Package rate 为上传等外部调用提供按分组键的令牌桶限流（请求数/分钟、字节数/分钟）。
package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"opkit/internal/diag"
	"opkit/pkg/contract"
)

// LimitKey: 限流分组键（例如 上传器名 + 凭据摘要）。
type LimitKey string

// Limits: 每分组的限额。0 表示该维度不启用。
type Limits struct {
	RPM            int // 每分钟请求数
	BPM            int // 每分钟字节数
	MaxBytesPerReq int // 单次请求字节上限
}

// Ask: 一次放行申请。
type Ask struct {
	Key      LimitKey
	Requests int // >=1
	Bytes    int // >=0
}

// Gate: 限流闸门（并发安全）。
type Gate interface {
	// Wait 阻塞直到额度可用或 ctx 结束；永远无法满足的申请立即失败。
	Wait(ctx context.Context, a Ask) error
	// Try 非阻塞尝试。
	Try(a Ask) bool
}

// Snapshoter: 可选诊断接口。
type Snapshoter interface {
	Snapshot(key LimitKey) (rpmAvail, bpmAvail int)
}

const (
	// 空闲超过该时长且额度已回满的分组会被回收
	idleTTL = 10 * time.Minute
	// 单次等待上限，到点后重新读取时钟
	maxPark = 250 * time.Millisecond
	minPark = 5 * time.Millisecond
)

// NewGate: def 作用于 m 中未列出的键（零值即不限额）；clk 为空使用 time.Now。
func NewGate(def Limits, m map[LimitKey]Limits, clk func() time.Time) Gate {
	if clk == nil {
		clk = time.Now
	}
	fixed := make(map[LimitKey]Limits, len(m))
	for k, v := range m {
		fixed[k] = v
	}
	return &gate{clk: clk, def: def, fixed: fixed, wins: map[LimitKey]*window{}}
}

type gate struct {
	clk   func() time.Time
	def   Limits
	fixed map[LimitKey]Limits

	mu   sync.Mutex
	wins map[LimitKey]*window
}

// window 为单个分组的两维令牌。
type window struct {
	mu    sync.Mutex
	lim   Limits
	reqs  tokens
	bytes tokens
	seen  time.Time
}

// tokens: 容量为每分钟额度、线性回补的令牌桶；cap==0 表示关闭。
type tokens struct {
	cap    float64
	have   float64
	perSec float64
	at     time.Time
}

func newTokens(perMin int, now time.Time) tokens {
	if perMin <= 0 {
		return tokens{}
	}
	c := float64(perMin)
	return tokens{cap: c, have: c, perSec: c / 60, at: now}
}

func (t *tokens) on() bool { return t.cap > 0 }

func (t *tokens) advance(now time.Time) {
	if !t.on() || !now.After(t.at) {
		// 时钟回拨视为无时间流逝
		return
	}
	t.have = min(t.cap, t.have+now.Sub(t.at).Seconds()*t.perSec)
	t.at = now
}

// short 返回凑齐 n 个令牌还需的秒数。
func (t *tokens) short(n int) float64 {
	if !t.on() || n <= 0 || t.have >= float64(n) {
		return 0
	}
	return (float64(n) - t.have) / t.perSec
}

func (t *tokens) spend(n int) {
	if t.on() && n > 0 {
		t.have = max(0, t.have-float64(n))
	}
}

func (t *tokens) level() int {
	if !t.on() {
		return 0
	}
	return int(t.have)
}

func (t *tokens) full() bool { return !t.on() || t.have >= t.cap }

func (g *gate) limitsFor(key LimitKey) Limits {
	if l, ok := g.fixed[key]; ok {
		return l
	}
	return g.def
}

// window 取得（必要时创建）分组；新建时顺带回收空闲分组。
func (g *gate) window(key LimitKey) *window {
	now := g.clk()
	g.mu.Lock()
	defer g.mu.Unlock()
	if w := g.wins[key]; w != nil {
		return w
	}
	for k, w := range g.wins {
		w.mu.Lock()
		stale := now.Sub(w.seen) > idleTTL
		if stale {
			w.reqs.advance(now)
			w.bytes.advance(now)
			stale = w.reqs.full() && w.bytes.full()
		}
		w.mu.Unlock()
		if stale {
			delete(g.wins, k)
		}
	}
	lim := g.limitsFor(key)
	w := &window{lim: lim, reqs: newTokens(lim.RPM, now), bytes: newTokens(lim.BPM, now), seen: now}
	g.wins[key] = w
	return w
}

func (g *gate) validate(a Ask) (*window, error) {
	if a.Requests <= 0 || a.Bytes < 0 {
		return nil, fmt.Errorf("%w: rate ask requests=%d bytes=%d", contract.ErrInvalidInput, a.Requests, a.Bytes)
	}
	w := g.window(a.Key)
	switch {
	case w.lim.MaxBytesPerReq > 0 && a.Bytes > w.lim.MaxBytesPerReq:
		return nil, fmt.Errorf("%w: %d bytes > per-request limit %d", contract.ErrBudgetExceeded, a.Bytes, w.lim.MaxBytesPerReq)
	case w.bytes.on() && float64(a.Bytes) > w.bytes.cap:
		return nil, fmt.Errorf("%w: %d bytes > bytes-per-minute %d", contract.ErrBudgetExceeded, a.Bytes, w.lim.BPM)
	case w.reqs.on() && float64(a.Requests) > w.reqs.cap:
		return nil, fmt.Errorf("%w: %d requests > requests-per-minute %d", contract.ErrBudgetExceeded, a.Requests, w.lim.RPM)
	}
	return w, nil
}

// acquire 尝试扣减；不足时返回仍需等待的时长。
func (w *window) acquire(a Ask, now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen = now
	w.reqs.advance(now)
	w.bytes.advance(now)
	need := max(w.reqs.short(a.Requests), w.bytes.short(a.Bytes))
	if need > 0 {
		return time.Duration(need * float64(time.Second))
	}
	w.reqs.spend(a.Requests)
	w.bytes.spend(a.Bytes)
	return 0
}

func (g *gate) Try(a Ask) bool {
	w, err := g.validate(a)
	if err != nil {
		return false
	}
	return w.acquire(a, g.clk()) == 0
}

func (g *gate) Wait(ctx context.Context, a Ask) error {
	w, err := g.validate(a)
	if err != nil {
		return err
	}
	start := time.Now()
	waited := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := w.acquire(a, g.clk())
		if d == 0 {
			if waited {
				diag.IncOp("rate", "wait", "throttled")
				diag.ObserveDuration("rate", "wait", time.Since(start).Milliseconds())
			}
			return nil
		}
		waited = true
		t := time.NewTimer(min(max(d, minPark), maxPark))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Snapshot 返回当前可用请求数/字节数的向下取整估值（仅诊断）。
func (g *gate) Snapshot(key LimitKey) (rpmAvail, bpmAvail int) {
	w := g.window(key)
	now := g.clk()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reqs.advance(now)
	w.bytes.advance(now)
	return w.reqs.level(), w.bytes.level()
}

var (
	_ Gate       = (*gate)(nil)
	_ Snapshoter = (*gate)(nil)
)
