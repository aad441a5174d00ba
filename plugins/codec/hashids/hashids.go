// Package hashids 实现基于 Hashids 的数字 ID 可逆编码（通用 / 华为两种配置档）。
//
// 超出 int64 的数字不做 Hashids 编码，输出 "x"+原数字（华为档开启前缀时为 "haot"+原数字）。
// 华为档关闭前缀时同样会产出 "x"+数字，所以 Decode 在两个配置档下都识别该形式，
// 否则这类条目无法在华为档下还原。其余以 x 开头的密文仍交给 Hashids 解码。
package hashids

import (
	"fmt"
	"strconv"
	"strings"

	hid "github.com/speps/go-hashids/v2"

	"opkit/pkg/contract"
)

// 各配置档的默认参数。
const (
	DefaultGeneralSalt      = "Tongyong"
	DefaultGeneralMinLength = 12
	DefaultHuaweiSalt       = "Huawei"
	DefaultHuaweiMinLength  = 16
	DefaultHuaweiAlphabet   = "abcdefghijklmnopqrstuvwxyz1234567890"
	// HuaweiPrefix: 华为档开启前缀时附加在密文前的固定串。
	HuaweiPrefix = "haot"
	// overflowMark: 超出 int64 的纯数字无法编码，原样加此标记（不再是纯数字）。
	overflowMark = "x"
)

// Options 为 Codec 的可选配置；零值字段使用默认参数。
type Options struct {
	GeneralSalt      string `json:"general_salt"`
	GeneralMinLength int    `json:"general_min_length"`
	HuaweiSalt       string `json:"huawei_salt"`
	HuaweiMinLength  int    `json:"huawei_min_length"`
	HuaweiAlphabet   string `json:"huawei_alphabet"`
}

type profile struct {
	h      *hid.HashID
	minLen int
}

// Codec 同时持有两个配置档的编码器；构造后只读，并发安全。
type Codec struct {
	general profile
	huawei  profile
}

// New 按选项构造 Codec；字母表或参数非法时返回 ErrInvalidInput。
func New(opts *Options) (*Codec, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.GeneralSalt == "" {
		o.GeneralSalt = DefaultGeneralSalt
	}
	if o.GeneralMinLength <= 0 {
		o.GeneralMinLength = DefaultGeneralMinLength
	}
	if o.HuaweiSalt == "" {
		o.HuaweiSalt = DefaultHuaweiSalt
	}
	if o.HuaweiMinLength <= 0 {
		o.HuaweiMinLength = DefaultHuaweiMinLength
	}
	if o.HuaweiAlphabet == "" {
		o.HuaweiAlphabet = DefaultHuaweiAlphabet
	}
	g, err := build(o.GeneralSalt, o.GeneralMinLength, "")
	if err != nil {
		return nil, err
	}
	hw, err := build(o.HuaweiSalt, o.HuaweiMinLength, o.HuaweiAlphabet)
	if err != nil {
		return nil, err
	}
	return &Codec{
		general: profile{h: g, minLen: o.GeneralMinLength},
		huawei:  profile{h: hw, minLen: o.HuaweiMinLength},
	}, nil
}

func build(salt string, minLen int, alphabet string) (*hid.HashID, error) {
	hd := hid.NewData()
	hd.Salt = salt
	hd.MinLength = minLen
	if alphabet != "" {
		hd.Alphabet = alphabet
	}
	h, err := hid.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("%w: hashids: %v", contract.ErrInvalidInput, err)
	}
	return h, nil
}

func (c *Codec) pick(p contract.Profile) profile {
	if p == contract.ProfileHuawei {
		return c.huawei
	}
	return c.general
}

// Encode 将纯数字 ID 编码为密文。
func (c *Codec) Encode(opts contract.CryptoOptions, item string) (string, error) {
	if item == "" {
		return "", fmt.Errorf("%w: 输入不能为空", contract.ErrInvalidInput)
	}
	if !allDigits(item) {
		return "", fmt.Errorf("%w: 输入必须为数字: %q", contract.ErrInvalidInput, item)
	}
	prefix := ""
	if opts.Profile == contract.ProfileHuawei && opts.UsePrefix {
		prefix = HuaweiPrefix
	}
	n, err := strconv.ParseInt(item, 10, 64)
	if err != nil {
		// 溢出：保留原数字，仅加标记
		if prefix != "" {
			return prefix + item, nil
		}
		return overflowMark + item, nil
	}
	s, err := c.pick(opts.Profile).h.EncodeInt64([]int64{n})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	return prefix + s, nil
}

// Decode 将密文还原为数字 ID。
func (c *Codec) Decode(opts contract.CryptoOptions, item string) (string, error) {
	if item == "" {
		return "", fmt.Errorf("%w: 输入不能为空", contract.ErrDecryptFailed)
	}
	if allDigits(item) {
		return "", fmt.Errorf("%w: 无效的加密字符串 %q", contract.ErrDecryptFailed, item)
	}
	if rest, ok := strings.CutPrefix(item, overflowMark); ok && allDigits(rest) {
		return rest, nil
	}
	p := c.pick(opts.Profile)
	text := item
	if opts.Profile == contract.ProfileHuawei {
		if rest, ok := strings.CutPrefix(item, HuaweiPrefix); ok {
			if allDigits(rest) {
				return rest, nil
			}
			text = rest
		}
		if len(text) < p.minLen {
			return "", fmt.Errorf("%w: 无效的加密字符串：长度不足，需要至少%d个字符", contract.ErrDecryptFailed, p.minLen)
		}
	}
	nums, err := p.h.DecodeInt64WithError(text)
	if err != nil || len(nums) == 0 {
		return "", fmt.Errorf("%w: 无效的加密字符串 %q", contract.ErrDecryptFailed, item)
	}
	return strconv.FormatInt(nums[0], 10), nil
}

// allDigits: 非空且全为 ASCII 数字。
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

var _ contract.Codec = (*Codec)(nil)
