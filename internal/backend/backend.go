// Package backend 是 gateway.Gateway 的本地实现：按操作变体分派到原子组件。
//
// - 单点并发：仅批量编解码经 batch.Run 并发执行，其余组件均同步调用；
// - 上传经限流闸门（按 sha256(access id) 分组）；
// - 每次 Invoke 记录 start/finish/error 事件与计数，错误原样上抛。
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"opkit/internal/batch"
	"opkit/internal/diag"
	"opkit/internal/rate"
	"opkit/pkg/contract"
	"opkit/pkg/gateway"
)

// Components 聚合运行所需的原子组件。
type Components struct {
	Text     contract.TextProcessor
	Codec    contract.Codec
	Settings contract.SettingsStore
	Uploader contract.Uploader
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Batch batch.Settings
	// Gate 为空时上传不限流。
	Gate rate.Gate
	// UploaderName 参与限流分组键。
	UploaderName string
}

// Backend 实现 gateway.Gateway。
type Backend struct {
	comp   Components
	set    Settings
	logger *diag.Logger
}

var _ gateway.Gateway = (*Backend)(nil)

// New 校验组件齐备后构造；logger 可为 nil。
func New(comp Components, set Settings, logger *diag.Logger) (*Backend, error) {
	if err := sanity(comp); err != nil {
		return nil, err
	}
	if set.UploaderName == "" {
		set.UploaderName = "uploader"
	}
	return &Backend{comp: comp, set: set, logger: logger}, nil
}

func sanity(c Components) error {
	if c.Text == nil || c.Codec == nil || c.Settings == nil || c.Uploader == nil {
		return errors.New("backend: missing components")
	}
	return nil
}

// Invoke 执行单个操作。
func (b *Backend) Invoke(ctx context.Context, op gateway.Op) (gateway.Result, error) {
	if op == nil {
		return gateway.Result{}, fmt.Errorf("%w: nil op", contract.ErrUnknownOperation)
	}
	if err := ctx.Err(); err != nil {
		return gateway.Result{}, err
	}
	name := op.Name()
	timer := b.logger.StartWith("backend", "invoke", name, "")
	diag.IncOp("backend", "start", "ok")

	res, count, err := b.dispatch(ctx, op)
	if err != nil {
		diag.Record(b.logger, "backend", "invoke failed", name, err)
		return gateway.Result{}, err
	}
	timer.Finish("invoke", int64(count))
	diag.IncOp("backend", "finish", "success")
	return res, nil
}

// dispatch 返回结果与条目数（仅用于日志）。
func (b *Backend) dispatch(ctx context.Context, op gateway.Op) (gateway.Result, int, error) {
	switch o := op.(type) {
	case gateway.BatchEncrypt:
		return b.batchCodec(ctx, o.Name(), o.Input, false)
	case gateway.BatchDecrypt:
		return b.batchCodec(ctx, o.Name(), o.Input, true)
	case gateway.ConvertFormat:
		return text(b.comp.Text.ConvertFormat(o.Input))
	case gateway.ReplaceCommas:
		return text(b.comp.Text.ReplaceCommas(o.Input))
	case gateway.AddQuotes:
		return text(b.comp.Text.AddQuotes(o.Input))
	case gateway.RemoveQuotes:
		return text(b.comp.Text.RemoveQuotes(o.Input))
	case gateway.GetCryptoConfig:
		p, err := b.comp.Settings.Profile(ctx)
		if err != nil {
			return gateway.Result{}, 0, err
		}
		return gateway.Text(p.DisplayName()), 1, nil
	case gateway.SetCryptoConfig:
		p, err := contract.ParseProfile(o.ConfigName)
		if err != nil {
			return gateway.Result{}, 0, err
		}
		if err := b.comp.Settings.SetProfile(ctx, p); err != nil {
			return gateway.Result{}, 0, err
		}
		b.logger.Debug("backend", "profile set", map[string]string{"profile": string(p)})
		return gateway.Void(), 1, nil
	case gateway.GetPrefixFlag:
		on, err := b.comp.Settings.PrefixEnabled(ctx)
		if err != nil {
			return gateway.Result{}, 0, err
		}
		return gateway.Bool(on), 1, nil
	case gateway.SetPrefixFlag:
		if err := b.comp.Settings.SetPrefixEnabled(ctx, o.UsePrefix); err != nil {
			return gateway.Result{}, 0, err
		}
		return gateway.Void(), 1, nil
	case gateway.Upload:
		return b.upload(ctx, o)
	default:
		return gateway.Result{}, 0, fmt.Errorf("%w: %T", contract.ErrUnknownOperation, op)
	}
}

func text(s string, err error) (gateway.Result, int, error) {
	if err != nil {
		return gateway.Result{}, 0, err
	}
	return gateway.Text(s), len(contract.SplitItems(s)), nil
}

// cryptoOptions 读取当前设置快照；整批共用同一快照。
func (b *Backend) cryptoOptions(ctx context.Context) (contract.CryptoOptions, error) {
	p, err := b.comp.Settings.Profile(ctx)
	if err != nil {
		return contract.CryptoOptions{}, err
	}
	on, err := b.comp.Settings.PrefixEnabled(ctx)
	if err != nil {
		return contract.CryptoOptions{}, err
	}
	return contract.CryptoOptions{Profile: p, UsePrefix: on}, nil
}

// batchCodec: 切分 → 逐条编解码（并发、保序）→ 以原分隔符拼接。
// 无有效条目时返回空串。
func (b *Backend) batchCodec(ctx context.Context, name, input string, decode bool) (gateway.Result, int, error) {
	items := contract.SplitItems(input)
	if len(items) == 0 {
		return gateway.Text(""), 0, nil
	}
	opts, err := b.cryptoOptions(ctx)
	if err != nil {
		return gateway.Result{}, 0, err
	}
	fn := func(s string) (string, error) { return b.comp.Codec.Encode(opts, s) }
	if decode {
		fn = func(s string) (string, error) { return b.comp.Codec.Decode(opts, s) }
	}
	out, err := batch.Run(ctx, name, items, fn, b.set.Batch, b.logger)
	if err != nil {
		return gateway.Result{}, 0, err
	}
	return gateway.Text(strings.Join(out, contract.Delimiter(input))), len(items), nil
}

func (b *Backend) upload(ctx context.Context, o gateway.Upload) (gateway.Result, int, error) {
	ch := contract.Channel(o.Channel)
	if c, err := contract.ParseChannel(o.Channel); err == nil {
		ch = c
	}
	// access id 缺失时不进闸门，由上传器给出校验错误
	if b.set.Gate != nil {
		if key, err := rate.DeriveUploadKey(b.set.UploaderName, o.AccessID); err == nil {
			if err := b.set.Gate.Wait(ctx, rate.Ask{Key: key, Requests: 1, Bytes: len(o.Content)}); err != nil {
				return gateway.Result{}, 0, err
			}
		}
	}
	cred := contract.Credentials{AccessID: o.AccessID, AccessKey: o.AccessKey}
	loc, err := b.comp.Uploader.Upload(ctx, cred, o.Content, ch)
	if err != nil {
		return gateway.Result{}, 0, err
	}
	b.logger.Debug("backend", "uploaded", map[string]string{"channel": string(ch), "location": loc})
	return gateway.Text(loc), len(contract.SplitItems(o.Content)), nil
}

// Close 关闭实现了 io.Closer 的组件（如持久化设置）。
func (b *Backend) Close() error {
	var errs []error
	for _, c := range []any{b.comp.Text, b.comp.Codec, b.comp.Settings, b.comp.Uploader} {
		if cl, ok := c.(io.Closer); ok {
			errs = append(errs, cl.Close())
		}
	}
	return errors.Join(errs...)
}
