package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"opkit/pkg/contract"
)

// TestDecode_AllVariants 覆盖全部线上名称到变体的映射。
func TestDecode_AllVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Op
	}{
		{NameBatchEncrypt, `{"input":"1\n2"}`, BatchEncrypt{Input: "1\n2"}},
		{NameBatchDecrypt, `{"input":"abc"}`, BatchDecrypt{Input: "abc"}},
		{NameConvertFormat, `{"input":"1,2"}`, ConvertFormat{Input: "1,2"}},
		{NameReplaceCommas, `{"input":"1，2"}`, ReplaceCommas{Input: "1，2"}},
		{NameAddQuotes, `{"input":"a"}`, AddQuotes{Input: "a"}},
		{NameRemoveQuotes, `{"input":"'a'"}`, RemoveQuotes{Input: "'a'"}},
		{NameGetCryptoConfig, ``, GetCryptoConfig{}},
		{NameGetCryptoConfig, `{}`, GetCryptoConfig{}},
		{NameSetCryptoConfig, `{"configName":"华为"}`, SetCryptoConfig{ConfigName: "华为"}},
		{NameGetPrefixFlag, `{}`, GetPrefixFlag{}},
		{NameSetPrefixFlag, `{"usePrefix":false}`, SetPrefixFlag{UsePrefix: false}},
		{NameUpload, `{"accessId":"id","accessKey":"k","content":"1","channel":"vivo"}`,
			Upload{AccessID: "id", AccessKey: "k", Content: "1", Channel: "vivo"}},
	}
	for _, c := range cases {
		got, err := Decode(c.name, json.RawMessage(c.raw))
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", c.name, diff)
		}
		if got.Name() != c.name {
			t.Fatalf("Name()=%q want %q", got.Name(), c.name)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode("process_unknown", nil); !errors.Is(err, contract.ErrUnknownOperation) {
		t.Fatalf("未知操作应为 ErrUnknownOperation: %v", err)
	}
	bad := map[string]string{
		NameBatchEncrypt:    `{"input":"1","extra":1}`,
		NameAddQuotes:       `{}`,
		NameSetCryptoConfig: `{}`,
		NameSetPrefixFlag:   `{"usePrefix":"yes"}`,
		NameGetCryptoConfig: `{"x":1}`,
		NameUpload:          `[1,2]`,
	}
	for name, raw := range bad {
		if _, err := Decode(name, json.RawMessage(raw)); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("%s %s: 期望 ErrInvalidInput, got %v", name, raw, err)
		}
	}
}

func TestNames_SortedAndComplete(t *testing.T) {
	names := Names()
	if len(names) != 11 {
		t.Fatalf("names=%d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("未排序: %v", names)
		}
	}
}

func TestResult_Accessors(t *testing.T) {
	if s, err := Text("x").AsText(); err != nil || s != "x" {
		t.Fatalf("AsText: %q %v", s, err)
	}
	if _, err := Void().AsText(); err == nil {
		t.Fatalf("void 不应转为文本")
	}
	if b, err := Bool(true).AsBool(); err != nil || !b {
		t.Fatalf("AsBool: %v %v", b, err)
	}
	if _, err := Text("x").AsBool(); err == nil {
		t.Fatalf("文本不应转为布尔")
	}
	for _, c := range []struct {
		r    Result
		want string
	}{{Void(), "null"}, {Text("a"), `"a"`}, {Bool(false), "false"}} {
		b, err := json.Marshal(c.r)
		if err != nil || string(b) != c.want {
			t.Fatalf("marshal %v: %s %v", c.r.Kind, b, err)
		}
	}
}

func TestFunc_AdaptsGateway(t *testing.T) {
	var seen Op
	var g Gateway = Func(func(_ context.Context, op Op) (Result, error) {
		seen = op
		return Text("ok"), nil
	})
	r, err := g.Invoke(context.Background(), ConvertFormat{Input: "a"})
	if err != nil || r.Text != "ok" {
		t.Fatalf("invoke: %+v %v", r, err)
	}
	if _, ok := seen.(ConvertFormat); !ok {
		t.Fatalf("变体未透传: %T", seen)
	}
}

func TestUpload_StringHidesCredentials(t *testing.T) {
	s := Upload{AccessID: "AKID", AccessKey: "SECRET", Channel: "oppo"}.String()
	if strings.Contains(s, "SECRET") || strings.Contains(s, "AKID") {
		t.Fatalf("凭据泄露: %s", s)
	}
}
