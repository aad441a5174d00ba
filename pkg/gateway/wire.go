package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"opkit/pkg/contract"
)

// strictUnmarshal: 严格解码，拒绝未知字段；空载荷保持零值。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	return nil
}

type inputPayload struct {
	Input *string `json:"input"`
}

func decodeInput(name string, raw json.RawMessage) (string, error) {
	var p inputPayload
	if err := strictUnmarshal(raw, &p); err != nil {
		return "", err
	}
	if p.Input == nil {
		return "", fmt.Errorf("%w: %s: missing input", contract.ErrInvalidInput, name)
	}
	return *p.Input, nil
}

// decoders: 线上名 → 变体构造（显式、零反射）。
var decoders = map[string]func(raw json.RawMessage) (Op, error){
	NameBatchEncrypt: func(raw json.RawMessage) (Op, error) {
		s, err := decodeInput(NameBatchEncrypt, raw)
		return BatchEncrypt{Input: s}, err
	},
	NameBatchDecrypt: func(raw json.RawMessage) (Op, error) {
		s, err := decodeInput(NameBatchDecrypt, raw)
		return BatchDecrypt{Input: s}, err
	},
	NameConvertFormat: func(raw json.RawMessage) (Op, error) {
		s, err := decodeInput(NameConvertFormat, raw)
		return ConvertFormat{Input: s}, err
	},
	NameReplaceCommas: func(raw json.RawMessage) (Op, error) {
		s, err := decodeInput(NameReplaceCommas, raw)
		return ReplaceCommas{Input: s}, err
	},
	NameAddQuotes: func(raw json.RawMessage) (Op, error) {
		s, err := decodeInput(NameAddQuotes, raw)
		return AddQuotes{Input: s}, err
	},
	NameRemoveQuotes: func(raw json.RawMessage) (Op, error) {
		s, err := decodeInput(NameRemoveQuotes, raw)
		return RemoveQuotes{Input: s}, err
	},
	NameGetCryptoConfig: func(raw json.RawMessage) (Op, error) {
		var p struct{}
		return GetCryptoConfig{}, strictUnmarshal(raw, &p)
	},
	NameSetCryptoConfig: func(raw json.RawMessage) (Op, error) {
		var p struct {
			ConfigName *string `json:"configName"`
		}
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.ConfigName == nil {
			return nil, fmt.Errorf("%w: %s: missing configName", contract.ErrInvalidInput, NameSetCryptoConfig)
		}
		return SetCryptoConfig{ConfigName: *p.ConfigName}, nil
	},
	NameGetPrefixFlag: func(raw json.RawMessage) (Op, error) {
		var p struct{}
		return GetPrefixFlag{}, strictUnmarshal(raw, &p)
	},
	NameSetPrefixFlag: func(raw json.RawMessage) (Op, error) {
		var p struct {
			UsePrefix *bool `json:"usePrefix"`
		}
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.UsePrefix == nil {
			return nil, fmt.Errorf("%w: %s: missing usePrefix", contract.ErrInvalidInput, NameSetPrefixFlag)
		}
		return SetPrefixFlag{UsePrefix: *p.UsePrefix}, nil
	},
	NameUpload: func(raw json.RawMessage) (Op, error) {
		var p struct {
			AccessID  string `json:"accessId"`
			AccessKey string `json:"accessKey"`
			Content   string `json:"content"`
			Channel   string `json:"channel"`
		}
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, err
		}
		return Upload{AccessID: p.AccessID, AccessKey: p.AccessKey, Content: p.Content, Channel: p.Channel}, nil
	},
}

// Decode 将“操作名 + JSON 载荷”的线上形式映射为类型化变体。
// 未登记的名称返回 ErrUnknownOperation；载荷形状不符返回 ErrInvalidInput。
func Decode(name string, raw json.RawMessage) (Op, error) {
	dec, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", contract.ErrUnknownOperation, name)
	}
	op, err := dec(raw)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Names 返回全部线上操作名（升序）。
func Names() []string {
	out := make([]string, 0, len(decoders))
	for k := range decoders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
