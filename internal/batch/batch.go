// Package batch 将逐条转换（如加密/解密）按固定批量并发执行，并按原顺序汇总结果。
//
// - 单点并发：只有这一层管理并发与背压，传入的转换函数须为同步实现；
// - 顺序门闩：批按序号提交，乱序完成的结果暂存，连续冲刷；
// - 首错中止：任一条目出错后，序号更大的条目不再执行；返回序号最小的失败条目，
//   与顺序执行的结果一致。
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"opkit/internal/diag"
)

// DefaultBatchSize 为每批条目数的默认值。
const DefaultBatchSize = 1000

// Settings 运行期配置。
type Settings struct {
	// Concurrency: 并发批数；<1 视为 1（严格顺序）。
	Concurrency int
	// BatchSize: 每批条目数；<1 使用 DefaultBatchSize。
	BatchSize int
}

func (s Settings) normalized() Settings {
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.BatchSize < 1 {
		s.BatchSize = DefaultBatchSize
	}
	return s
}

// ItemError 标识失败条目（Index 从 1 开始）。
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string { return fmt.Sprintf("第 %d 项: %v", e.Index, e.Err) }
func (e *ItemError) Unwrap() error { return e.Err }

// Func 为单条转换。
type Func func(item string) (string, error)

// errSkipped: 因更早条目失败而未执行（不对外暴露）。
var errSkipped = errors.New("batch: skipped after earlier failure")

// Run 对 items 逐条应用 fn，返回与输入同序的结果。
// 出错时返回 *ItemError（全局 1 基序号）；ctx 取消时返回 ctx.Err()。
// op 仅用于日志与终端提示，logger 可为 nil。
func Run(ctx context.Context, op string, items []string, fn Func, set Settings, logger *diag.Logger) ([]string, error) {
	set = set.normalized()
	if len(items) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct{ idx, from, to int }
	type res struct {
		idx int
		out []string
		err error
	}
	nb := (len(items) + set.BatchSize - 1) / set.BatchSize

	if t := diag.GetTerminal(); t != nil {
		t.OpStart(op, len(items))
	}
	start := time.Now()
	ok := false
	defer func() {
		if t := diag.GetTerminal(); t != nil {
			t.OpFinish(ok, time.Since(start), 0)
		}
	}()

	// stopAt: 已知最小失败条目的 0 基下标；此后的条目不再执行。
	var stopAt atomic.Int64
	stopAt.Store(math.MaxInt64)
	lower := func(i int) {
		for {
			cur := stopAt.Load()
			if int64(i) >= cur || stopAt.CompareAndSwap(cur, int64(i)) {
				return
			}
		}
	}

	// 有界通道：2×并发度，形成自然背压
	inCh := make(chan job, set.Concurrency*2)
	outCh := make(chan res, set.Concurrency*2)

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for j := range inCh {
			var btimer *diag.Timer
			if logger != nil {
				btimer = logger.StartWith("batch", "run", op, fmt.Sprintf("%d", j.idx))
			}
			out := make([]string, 0, j.to-j.from)
			var err error
			for i := j.from; i < j.to; i++ {
				if cerr := ctx.Err(); cerr != nil {
					err = cerr
					break
				}
				if int64(i) > stopAt.Load() {
					err = errSkipped
					break
				}
				s, ferr := fn(items[i])
				if ferr != nil {
					lower(i)
					err = &ItemError{Index: i + 1, Err: ferr}
					break
				}
				out = append(out, s)
			}
			switch {
			case err == nil:
				btimer.Finish("run", int64(len(out)))
				diag.IncOp("batch", "finish", "success")
			case errors.Is(err, errSkipped):
			default:
				btimer.Fail(string(diag.Classify(err)), "batch failed", map[string]string{"err": err.Error()})
				diag.IncOp("batch", "error", "error")
			}
			outCh <- res{idx: j.idx, out: out, err: err}
		}
	}
	wg.Add(set.Concurrency)
	for i := 0; i < set.Concurrency; i++ {
		go worker()
	}

	// 生产者
	go func() {
		defer close(inCh)
		for b := 0; b < nb; b++ {
			from := b * set.BatchSize
			if int64(from) > stopAt.Load() {
				return
			}
			to := min(from+set.BatchSize, len(items))
			select {
			case <-ctx.Done():
				return
			case inCh <- job{idx: b, from: from, to: to}:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(outCh)
	}()

	// 提交门闩：按批序号连续冲刷
	result := make([]string, 0, len(items))
	buf := make(map[int][]string)
	expect := 0
	done, errCount := 0, 0
	var firstItem *ItemError
	var otherErr error
	for r := range outCh {
		done++
		var ie *ItemError
		switch {
		case r.err == nil:
			buf[r.idx] = r.out
			for {
				out, has := buf[expect]
				if !has {
					break
				}
				result = append(result, out...)
				delete(buf, expect)
				expect++
			}
		case errors.As(r.err, &ie):
			errCount++
			if firstItem == nil || ie.Index < firstItem.Index {
				firstItem = ie
			}
		case errors.Is(r.err, errSkipped):
		default:
			errCount++
			if otherErr == nil {
				otherErr = r.err
			}
			cancel()
		}
		if t := diag.GetTerminal(); t != nil {
			t.OpProgress(min(done*set.BatchSize, len(items)), len(items), errCount)
		}
	}
	if firstItem != nil {
		return nil, firstItem
	}
	if otherErr != nil {
		return nil, otherErr
	}
	if expect < nb {
		// 生产者因外部取消提前退出
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, context.Canceled
	}
	ok = true
	return result, nil
}
