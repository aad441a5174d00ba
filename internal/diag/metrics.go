package diag

import (
	"maps"
	"sync"
)

// 进程内最小指标：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计毫秒）
// 键以 "|" 连接标签值。

var (
	metricsMu  sync.Mutex
	opTotal    = map[string]int64{}
	errorTotal = map[string]int64{}
	durTotalMS = map[string]int64{}
)

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	metricsMu.Lock()
	opTotal[comp+"|"+stage+"|"+result]++
	metricsMu.Unlock()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	metricsMu.Lock()
	errorTotal[comp+"|"+code]++
	metricsMu.Unlock()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	if durMS < 0 {
		durMS = 0
	}
	metricsMu.Lock()
	durTotalMS[comp+"|"+stage] += durMS
	metricsMu.Unlock()
}

// Metrics 为某一时刻的计数快照（副本，可自由修改）。
type Metrics struct {
	OpTotal    map[string]int64 `json:"op_total"`
	ErrorTotal map[string]int64 `json:"error_total"`
	DurationMS map[string]int64 `json:"op_duration_ms"`
}

// Snapshot 返回当前计数副本。
func Snapshot() Metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return Metrics{
		OpTotal:    maps.Clone(opTotal),
		ErrorTotal: maps.Clone(errorTotal),
		DurationMS: maps.Clone(durTotalMS),
	}
}

// ResetMetrics 清零全部计数（测试与长驻进程复位使用）。
func ResetMetrics() {
	metricsMu.Lock()
	clear(opTotal)
	clear(errorTotal)
	clear(durTotalMS)
	metricsMu.Unlock()
}
