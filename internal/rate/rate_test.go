package rate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"opkit/internal/diag"
	"opkit/pkg/contract"
)

// 超过 RPM
func TestGateTryLimit(t *testing.T) {
	now := time.Unix(0, 0)
	clk := func() time.Time { return now }
	g := NewGate(Limits{}, map[LimitKey]Limits{"k": {RPM: 1, BPM: 10, MaxBytesPerReq: 5}}, clk)
	if !g.Try(Ask{Key: "k", Requests: 1, Bytes: 3}) {
		t.Fatalf("首次应通过")
	}
	if g.Try(Ask{Key: "k", Requests: 1, Bytes: 3}) {
		t.Fatalf("应因 RPM 拒绝")
	}
	// 30s 后补充半个请求，仍不足；60s 后补满
	now = now.Add(30 * time.Second)
	if g.Try(Ask{Key: "k", Requests: 1, Bytes: 1}) {
		t.Fatalf("30s 不应补满")
	}
	now = now.Add(30 * time.Second)
	if !g.Try(Ask{Key: "k", Requests: 1, Bytes: 1}) {
		t.Fatalf("60s 后应通过")
	}
}

func TestGateBytesDimension(t *testing.T) {
	now := time.Unix(0, 0)
	g := NewGate(Limits{}, map[LimitKey]Limits{"k": {BPM: 100}}, func() time.Time { return now })
	if !g.Try(Ask{Key: "k", Requests: 1, Bytes: 80}) {
		t.Fatalf("80 应通过")
	}
	if g.Try(Ask{Key: "k", Requests: 1, Bytes: 30}) {
		t.Fatalf("剩余 20 不足 30")
	}
	rpm, bpm := g.(Snapshoter).Snapshot("k")
	if rpm != 0 || bpm != 20 {
		t.Fatalf("snapshot rpm=%d bpm=%d", rpm, bpm)
	}
}

func TestGateOversizeFailsFast(t *testing.T) {
	g := NewGate(Limits{BPM: 100, MaxBytesPerReq: 50}, nil, nil)
	err := g.Wait(context.Background(), Ask{Key: "any", Requests: 1, Bytes: 60})
	if !errors.Is(err, contract.ErrBudgetExceeded) {
		t.Fatalf("超单次上限应为 ErrBudgetExceeded: %v", err)
	}
	g2 := NewGate(Limits{BPM: 100}, nil, nil)
	if err := g2.Wait(context.Background(), Ask{Key: "any", Requests: 1, Bytes: 101}); !errors.Is(err, contract.ErrBudgetExceeded) {
		t.Fatalf("超桶容量应为 ErrBudgetExceeded: %v", err)
	}
	if err := g2.Wait(context.Background(), Ask{Key: "any", Requests: 0}); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("非法申请应为 ErrInvalidInput: %v", err)
	}
	if g2.Try(Ask{Key: "any", Requests: 1, Bytes: -1}) {
		t.Fatalf("负字节应拒绝")
	}
}

func TestGateDefaultLimitsApplyToUnknownKeys(t *testing.T) {
	now := time.Unix(0, 0)
	g := NewGate(Limits{RPM: 1}, nil, func() time.Time { return now })
	if !g.Try(Ask{Key: "a", Requests: 1}) || g.Try(Ask{Key: "a", Requests: 1}) {
		t.Fatalf("默认限额未生效")
	}
	if !g.Try(Ask{Key: "b", Requests: 1}) {
		t.Fatalf("不同键应独立计数")
	}
	unlimited := NewGate(Limits{}, nil, nil)
	for i := 0; i < 100; i++ {
		if !unlimited.Try(Ask{Key: "x", Requests: 1, Bytes: 1 << 20}) {
			t.Fatalf("零限额应不限流")
		}
	}
}

// 取消上下文
func TestGateWaitCancel(t *testing.T) {
	now := time.Unix(0, 0)
	clk := func() time.Time { return now }
	g := NewGate(Limits{}, map[LimitKey]Limits{"k": {RPM: 2}}, clk)
	_ = g.Try(Ask{Key: "k", Requests: 2})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	if err := g.Wait(ctx, Ask{Key: "k", Requests: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("应返回取消错误: %v", err)
	}
}

func TestGateConcurrentKeys(t *testing.T) {
	g := NewGate(Limits{RPM: 1000}, nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := LimitKey(strings.Repeat("k", i%4+1))
			for j := 0; j < 10; j++ {
				_ = g.Try(Ask{Key: key, Requests: 1})
			}
		}(i)
	}
	wg.Wait()
}

func TestGateWaitRecordsThrottle(t *testing.T) {
	diag.ResetMetrics()
	defer diag.ResetMetrics()
	now := time.Unix(0, 0)
	// 每次读取时钟前进 25s
	clk := func() time.Time { now = now.Add(25 * time.Second); return now }
	g := NewGate(Limits{RPM: 1}, nil, clk)
	if !g.Try(Ask{Key: "k", Requests: 1}) {
		t.Fatalf("首次应通过")
	}
	if err := g.Wait(context.Background(), Ask{Key: "k", Requests: 1}); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := diag.Snapshot().OpTotal["rate|wait|throttled"]; got != 1 {
		t.Fatalf("throttled=%d", got)
	}
	// 无需等待的放行不计数
	g2 := NewGate(Limits{}, nil, nil)
	if err := g2.Wait(context.Background(), Ask{Key: "k", Requests: 1}); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := diag.Snapshot().OpTotal["rate|wait|throttled"]; got != 1 {
		t.Fatalf("throttled=%d", got)
	}
}

func TestGateEvictsIdleWindows(t *testing.T) {
	now := time.Unix(0, 0)
	g := NewGate(Limits{RPM: 1}, nil, func() time.Time { return now }).(*gate)
	_ = g.Try(Ask{Key: "a", Requests: 1})
	_ = g.Try(Ask{Key: "b", Requests: 1})
	if len(g.wins) != 2 {
		t.Fatalf("wins=%d", len(g.wins))
	}
	// 未回满前不回收
	now = now.Add(idleTTL / 2)
	_ = g.Try(Ask{Key: "c", Requests: 1})
	if len(g.wins) != 3 {
		t.Fatalf("wins=%d", len(g.wins))
	}
	now = now.Add(idleTTL)
	_ = g.Try(Ask{Key: "d", Requests: 1})
	_, okA := g.wins["a"]
	_, okB := g.wins["b"]
	if okA || okB || len(g.wins) != 2 {
		t.Fatalf("空闲分组未回收: %d", len(g.wins))
	}
}

func TestDeriveUploadKey(t *testing.T) {
	k1, err := DeriveUploadKey("oss", "AKID123")
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	if !strings.HasPrefix(string(k1), "oss:") || strings.Contains(string(k1), "AKID123") {
		t.Fatalf("键格式错误或泄露凭据: %s", k1)
	}
	k2, _ := DeriveUploadKey("oss", " AKID123 ")
	if k1 != k2 {
		t.Fatalf("两端空白应忽略")
	}
	if _, err := DeriveUploadKey("oss", "  "); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("空 access id 应失败: %v", err)
	}
}
