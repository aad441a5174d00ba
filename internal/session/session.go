// Package session 持有界面状态（输入/输出两侧）并把每个界面动作翻译为
// 一次网关调用加一次状态更新。单所有者、同步使用，不加锁。
package session

import (
	"context"
	"fmt"

	"opkit/pkg/contract"
	"opkit/pkg/gateway"
	"opkit/pkg/textstate"
)

// Session 不可并发使用。
type Session struct {
	app *textstate.AppState
	gw  gateway.Gateway
}

// New 以空白双侧状态构造会话。
func New(gw gateway.Gateway) *Session {
	return &Session{app: textstate.NewApp(), gw: gw}
}

// State 返回底层状态（只读使用）。
func (s *Session) State() *textstate.AppState { return s.app }

func (s *Session) side(side textstate.Side) (*textstate.TextState, error) {
	st := s.app.Side(side)
	if st == nil {
		return nil, fmt.Errorf("%w: %s", contract.ErrInvalidInput, side)
	}
	return st, nil
}

// Paste 以 text 替换输入侧；空文本忽略并返回 false。
func (s *Session) Paste(text string) bool {
	if text == "" {
		return false
	}
	s.app.Input.Replace(text)
	return true
}

// Clear 清空指定侧。
func (s *Session) Clear(side textstate.Side) error {
	st, err := s.side(side)
	if err != nil {
		return err
	}
	st.Clear()
	return nil
}

// transform: 从 src 取完整内容调用网关，成功后写入 dst；失败时状态不变。
func (s *Session) transform(ctx context.Context, src, dst *textstate.TextState, mk func(string) gateway.Op) error {
	r, err := s.gw.Invoke(ctx, mk(src.FullContent))
	if err != nil {
		return err
	}
	out, err := r.AsText()
	if err != nil {
		return err
	}
	dst.Replace(out)
	return nil
}

// Encrypt 批量加密：输入侧 → 输出侧。
func (s *Session) Encrypt(ctx context.Context) error {
	return s.transform(ctx, s.app.Input, s.app.Output, func(in string) gateway.Op { return gateway.BatchEncrypt{Input: in} })
}

// Decrypt 批量解密：输入侧 → 输出侧。
func (s *Session) Decrypt(ctx context.Context) error {
	return s.transform(ctx, s.app.Input, s.app.Output, func(in string) gateway.Op { return gateway.BatchDecrypt{Input: in} })
}

// Convert 换行/逗号格式互换：输入侧 → 输出侧。
func (s *Session) Convert(ctx context.Context) error {
	return s.transform(ctx, s.app.Input, s.app.Output, func(in string) gateway.Op { return gateway.ConvertFormat{Input: in} })
}

// ReplaceCommas 就地替换输入侧的中文逗号。
func (s *Session) ReplaceCommas(ctx context.Context) error {
	return s.transform(ctx, s.app.Input, s.app.Input, func(in string) gateway.Op { return gateway.ReplaceCommas{Input: in} })
}

// AddQuotes 就地为指定侧加引号；该侧为空时不调用网关。
func (s *Session) AddQuotes(ctx context.Context, side textstate.Side) error {
	st, err := s.side(side)
	if err != nil || st.Empty() {
		return err
	}
	return s.transform(ctx, st, st, func(in string) gateway.Op { return gateway.AddQuotes{Input: in} })
}

// RemoveQuotes 就地为指定侧去引号；该侧为空时不调用网关。
func (s *Session) RemoveQuotes(ctx context.Context, side textstate.Side) error {
	st, err := s.side(side)
	if err != nil || st.Empty() {
		return err
	}
	return s.transform(ctx, st, st, func(in string) gateway.Op { return gateway.RemoveQuotes{Input: in} })
}

// 翻页：越界或未知侧返回 false，状态不变。
func (s *Session) GoTo(side textstate.Side, page int) bool {
	st, err := s.side(side)
	return err == nil && st.GoTo(page)
}

func (s *Session) First(side textstate.Side) bool { return s.nav(side, (*textstate.TextState).First) }
func (s *Session) Prev(side textstate.Side) bool  { return s.nav(side, (*textstate.TextState).Prev) }
func (s *Session) Next(side textstate.Side) bool  { return s.nav(side, (*textstate.TextState).Next) }
func (s *Session) Last(side textstate.Side) bool  { return s.nav(side, (*textstate.TextState).Last) }

func (s *Session) nav(side textstate.Side, f func(*textstate.TextState) bool) bool {
	st, err := s.side(side)
	return err == nil && f(st)
}

// CryptoProfile 返回当前加密配置的展示名。
func (s *Session) CryptoProfile(ctx context.Context) (string, error) {
	r, err := s.gw.Invoke(ctx, gateway.GetCryptoConfig{})
	if err != nil {
		return "", err
	}
	return r.AsText()
}

// SetCryptoProfile 切换加密配置（"通用" 或 "华为"）。
func (s *Session) SetCryptoProfile(ctx context.Context, name string) error {
	_, err := s.gw.Invoke(ctx, gateway.SetCryptoConfig{ConfigName: name})
	return err
}

// PrefixFlag 返回华为前缀开关。
func (s *Session) PrefixFlag(ctx context.Context) (bool, error) {
	r, err := s.gw.Invoke(ctx, gateway.GetPrefixFlag{})
	if err != nil {
		return false, err
	}
	return r.AsBool()
}

// SetPrefixFlag 设置华为前缀开关。
func (s *Session) SetPrefixFlag(ctx context.Context, on bool) error {
	_, err := s.gw.Invoke(ctx, gateway.SetPrefixFlag{UsePrefix: on})
	return err
}

// Upload 上传输出侧完整内容，返回对象位置。
func (s *Session) Upload(ctx context.Context, accessID, accessKey, channel string) (string, error) {
	r, err := s.gw.Invoke(ctx, gateway.Upload{
		AccessID:  accessID,
		AccessKey: accessKey,
		Content:   s.app.Output.FullContent,
		Channel:   channel,
	})
	if err != nil {
		return "", err
	}
	return r.AsText()
}
