package contract

import "errors"

// 最小错误分类（用于上层策略判定与日志分类）。
var (
	// ErrInvalidInput: 输入不合法（空输入、非数字 ID、未知渠道/配置名等）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrDecryptFailed: 无法解析的加密串。
	ErrDecryptFailed = errors.New("decrypt failed")
	// ErrUnknownOperation: 网关收到未登记的操作名或操作变体。
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrRateLimited: 上游或本地闸门限流。
	ErrRateLimited = errors.New("rate limited")
	// ErrResponseInvalid: 上游响应无法理解。
	ErrResponseInvalid = errors.New("response invalid")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrBudgetExceeded: 预算或配额不足（如单次上传字节上限）。
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
