package gateway

import (
	"encoding/json"
	"fmt"
)

// Kind: 结果形状（无返回值 / 文本 / 布尔）。
type Kind int

const (
	KindVoid Kind = iota
	KindText
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return "void"
	}
}

// Result: Invoke 的返回值；仅与 Kind 对应的字段有意义。
type Result struct {
	Kind Kind
	Text string
	Flag bool
}

func Void() Result { return Result{Kind: KindVoid} }
func Text(s string) Result { return Result{Kind: KindText, Text: s} }
func Bool(b bool) Result { return Result{Kind: KindBool, Flag: b} }

// AsText 在结果为文本时返回内容，否则报错。
func (r Result) AsText() (string, error) {
	if r.Kind != KindText {
		return "", fmt.Errorf("gateway: want text result, got %s", r.Kind)
	}
	return r.Text, nil
}

// AsBool 在结果为布尔时返回值，否则报错。
func (r Result) AsBool() (bool, error) {
	if r.Kind != KindBool {
		return false, fmt.Errorf("gateway: want bool result, got %s", r.Kind)
	}
	return r.Flag, nil
}

// MarshalJSON 按线上形状编码：文本为字符串、布尔为 true/false、void 为 null。
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindText:
		return json.Marshal(r.Text)
	case KindBool:
		return json.Marshal(r.Flag)
	default:
		return []byte("null"), nil
	}
}
