package textstate

import "fmt"

// Side 标识输入侧或输出侧。
type Side int

const (
	Input Side = iota
	Output
)

func (s Side) String() string {
	switch s {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// ParseSide 解析 "input"/"output"（亦接受 "in"/"out"）。
func ParseSide(s string) (Side, error) {
	switch s {
	case "input", "in":
		return Input, nil
	case "output", "out":
		return Output, nil
	default:
		return 0, fmt.Errorf("textstate: unknown side %q", s)
	}
}

// AppState: 两个互相独立的 TextState（输入侧、输出侧）。
type AppState struct {
	Input  *TextState
	Output *TextState
}

func NewApp() *AppState {
	return &AppState{Input: New(), Output: New()}
}

// Side 返回指定侧的状态；未知值返回 nil。
func (a *AppState) Side(side Side) *TextState {
	switch side {
	case Input:
		return a.Input
	case Output:
		return a.Output
	default:
		return nil
	}
}
