package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level 日志级别。
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = [...]string{Debug: "debug", Info: "info", Warn: "warn", Error: "error"}

func (l Level) String() string {
	if l < Debug || l > Error {
		return "info"
	}
	return levelNames[l]
}

func parseLevel(s string) Level {
	for lv, name := range levelNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Level(lv)
		}
	}
	return Info
}

// lineSink 接收一行完整的 JSON 事件（不含换行）。
type lineSink interface {
	WriteLine(b []byte) error
	Close() error
}

// writerSink 将事件逐行写入任意 io.Writer（stderr、测试缓冲）。
type writerSink struct{ w io.Writer }

func (s writerSink) WriteLine(b []byte) error {
	_, err := s.w.Write(append(b, '\n'))
	return err
}

func (writerSink) Close() error { return nil }

// Logger 写单行 JSON 事件；文件 sink 出错时回落 stderr。nil *Logger 的方法均为空操作。
type Logger struct {
	corrID string
	level  Level
	mu     sync.Mutex
	sink   lineSink
}

// NewCorrID 生成一次运行的关联 ID。
func NewCorrID() string { return uuid.NewString() }

// NewLogger 写入 logs/opkit-current.txt（10 MiB 轮转）。corrID 为空时自动生成。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerAt("logs", corrID, level)
}

// NewLoggerAt 同 NewLogger，dir 为空时写 stderr。
func NewLoggerAt(dir, corrID, level string) *Logger {
	return NewLoggerRotating(dir, corrID, level, RotateOptions{})
}

// NewLoggerRotating 以指定轮转参数写入 dir；dir 为空时写 stderr。
func NewLoggerRotating(dir, corrID, level string, opts RotateOptions) *Logger {
	if dir == "" {
		return NewLoggerTo(os.Stderr, corrID, level)
	}
	return newLogger(NewRotatingFileOpts(dir, opts), corrID, level)
}

// NewLoggerTo 将事件写入 w。
func NewLoggerTo(w io.Writer, corrID, level string) *Logger {
	return newLogger(writerSink{w}, corrID, level)
}

func newLogger(sink lineSink, corrID, level string) *Logger {
	if strings.TrimSpace(corrID) == "" {
		corrID = NewCorrID()
	}
	return &Logger{corrID: corrID, level: parseLevel(level), sink: sink}
}

// CorrID 返回关联 ID。
func (l *Logger) CorrID() string {
	if l == nil {
		return ""
	}
	return l.corrID
}

// Close 释放 sink。
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.sink.Close()
}

// Event 为单条日志的 JSON 形状。
type Event struct {
	Level  string            `json:"level"`
	TS     string            `json:"ts"`
	CorrID string            `json:"corr_id"`
	Comp   string            `json:"comp"`
	Stage  string            `json:"stage"` // start|finish|error|warn|debug
	Code   string            `json:"code,omitempty"`
	DurMS  int64             `json:"dur_ms,omitempty"`
	Count  int64             `json:"count,omitempty"`
	Op     string            `json:"op,omitempty"`
	Item   string            `json:"item,omitempty"`
	Msg    string            `json:"msg"`
	KV     map[string]string `json:"kv,omitempty"`
}

// 键名包含这些片段的值不落盘。
var secretKeyParts = []string{"secret", "password", "access_key", "accesskey", "token"}

func redact(kv map[string]string) map[string]string {
	var out map[string]string
	for k := range kv {
		lk := strings.ToLower(k)
		for _, p := range secretKeyParts {
			if strings.Contains(lk, p) {
				if out == nil {
					out = make(map[string]string, len(kv))
					for k2, v2 := range kv {
						out[k2] = v2
					}
				}
				out[k] = "***"
				break
			}
		}
	}
	if out == nil {
		return kv
	}
	return out
}

func (l *Logger) emit(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	ev.KV = redact(ev.KV)
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(append(b, '\n'))
	}
}

func since(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return time.Since(*t).Milliseconds()
}

// Start 记录 start 并返回计时器。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "", "")
}

// StartWith 记录带 op/item 的 start。
func (l *Logger) StartWith(comp, msg, op, item string) *Timer {
	l.emit(Info, Event{Comp: comp, Stage: "start", Op: op, Item: item, Msg: msg})
	return &Timer{l: l, comp: comp, op: op, item: item, t0: time.Now()}
}

// Error 记录 error 事件；durSince 非空时附带耗时。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.emit(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: since(durSince), Msg: msg})
}

// ErrorKV 记录带 op 与键值（如 HTTP 状态码）的 error 事件。
func (l *Logger) ErrorKV(comp, code, msg, op string, durSince *time.Time, kv map[string]string) {
	l.emit(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: since(durSince), Msg: msg, Op: op, KV: kv})
}

func (l *Logger) Warn(comp, msg string, kv map[string]string) {
	l.emit(Warn, Event{Comp: comp, Stage: "warn", Msg: msg, KV: kv})
}

// DebugStart 调试级别的 start 类事件。
func (l *Logger) DebugStart(comp, msg, op, item string, kv map[string]string) {
	l.emit(Debug, Event{Comp: comp, Stage: "start", Op: op, Item: item, Msg: msg, KV: kv})
}

func (l *Logger) Debug(comp, msg string, kv map[string]string) {
	l.emit(Debug, Event{Comp: comp, Stage: "debug", Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l    *Logger
	comp string
	op   string
	item string
	t0   time.Time
}

// Finish 记录 finish 并累计耗时指标。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	ObserveDuration(t.comp, msg, dur)
	t.l.emit(Info, Event{Comp: t.comp, Stage: "finish", DurMS: dur, Count: count, Op: t.op, Item: t.item, Msg: msg})
}

// Fail 以计时器起点记录 error。
func (t *Timer) Fail(code, msg string, kv map[string]string) {
	if t == nil {
		return
	}
	t.l.emit(Error, Event{Comp: t.comp, Stage: "error", Code: code, DurMS: since(&t.t0), Msg: msg, Op: t.op, Item: t.item, KV: kv})
}
