package diag

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"time"

	"opkit/pkg/contract"
)

// Code 为日志与指标使用的错误分类，与退出码无关。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeCancel    Code = "cancel"
	CodeBudget    Code = "budget"
	CodeProtocol  Code = "protocol"
	CodeInput     Code = "input"
	CodeInvariant Code = "invariant"
	CodeIO        Code = "io"
	CodeNetwork   Code = "network"
)

// 按顺序匹配，先命中者生效。
var sentinelCodes = []struct {
	code Code
	errs []error
}{
	{CodeCancel, []error{context.Canceled, context.DeadlineExceeded}},
	{CodeBudget, []error{contract.ErrBudgetExceeded, contract.ErrRateLimited}},
	{CodeProtocol, []error{contract.ErrResponseInvalid, contract.ErrUnknownOperation}},
	{CodeInput, []error{contract.ErrInvalidInput, contract.ErrDecryptFailed}},
	{CodeInvariant, []error{contract.ErrInvariantViolation, contract.ErrPathInvalid}},
}

// Classify 只看哨兵错误与标准库错误类型，不匹配消息文本。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	for _, sc := range sentinelCodes {
		for _, target := range sc.errs {
			if errors.Is(err, target) {
				return sc.code
			}
		}
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}

// Record 计数并记录一次失败；logger 为 nil 时只计数。
func Record(logger *Logger, comp, msg, op string, err error) Code {
	code := Classify(err)
	IncOp(comp, "error", "error")
	if code != CodeUnknown {
		IncError(comp, string(code))
	}
	if logger != nil {
		logger.ErrorKV(comp, string(code), msg, op, nil, errorKV(err))
	}
	return code
}

// errorKV 上游错误记录状态码与截断后的响应体，其余记录错误文本。
func errorKV(err error) map[string]string {
	var ue contract.UpstreamError
	if !errors.As(err, &ue) {
		return map[string]string{"err": err.Error()}
	}
	kv := map[string]string{"http_status": strconv.Itoa(ue.UpstreamStatus())}
	if m := ue.UpstreamMessage(); m != "" {
		if r := []rune(m); len(r) > 200 {
			m = string(r[:200])
		}
		kv["upstream_msg"] = m
	}
	return kv
}

// NowUTC 返回 RFC3339 格式的 UTC 时间，用作日志 ts 字段。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
