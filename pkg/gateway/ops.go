// Package gateway 定义前端动作到后端的调用面：封闭的操作变体集合 + 统一的 Invoke。
// 每个变体在编译期确定参数形状；线上名称仅在 Decode 处出现一次。
package gateway

import "context"

// Op 是封闭的操作变体集合；仅本包内的类型可实现。
type Op interface {
	// Name 返回稳定的线上操作名。
	Name() string
	op()
}

// Gateway: 异步后端调用面。失败为不透明错误，调用方原样上抛，不做重试。
type Gateway interface {
	Invoke(ctx context.Context, op Op) (Result, error)
}

// Func 将普通函数适配为 Gateway（测试与装配使用）。
type Func func(ctx context.Context, op Op) (Result, error)

func (f Func) Invoke(ctx context.Context, op Op) (Result, error) { return f(ctx, op) }

// 文本类操作：输入为完整文本，返回变换后的文本。
type (
	BatchEncrypt  struct{ Input string }
	BatchDecrypt  struct{ Input string }
	ConvertFormat struct{ Input string }
	ReplaceCommas struct{ Input string }
	AddQuotes     struct{ Input string }
	RemoveQuotes  struct{ Input string }
)

// 设置类操作。
type (
	GetCryptoConfig struct{}
	SetCryptoConfig struct{ ConfigName string }
	GetPrefixFlag   struct{}
	SetPrefixFlag   struct{ UsePrefix bool }
)

// Upload: 将 ID 列表上传到对象存储，返回对象位置标识。
type Upload struct {
	AccessID  string
	AccessKey string
	Content   string
	Channel   string
}

// 线上操作名。
const (
	NameBatchEncrypt    = "process_batch_encrypt"
	NameBatchDecrypt    = "process_batch_decrypt"
	NameConvertFormat   = "process_convert_format"
	NameReplaceCommas   = "process_replace_commas"
	NameAddQuotes       = "process_add_quotes"
	NameRemoveQuotes    = "process_remove_quotes"
	NameGetCryptoConfig = "get_crypto_config"
	NameSetCryptoConfig = "set_crypto_config"
	NameGetPrefixFlag   = "get_huawei_prefix_config"
	NameSetPrefixFlag   = "set_huawei_prefix_config"
	NameUpload          = "upload_to_oss"
)

func (BatchEncrypt) Name() string { return NameBatchEncrypt }
func (BatchDecrypt) Name() string { return NameBatchDecrypt }
func (ConvertFormat) Name() string { return NameConvertFormat }
func (ReplaceCommas) Name() string { return NameReplaceCommas }
func (AddQuotes) Name() string { return NameAddQuotes }
func (RemoveQuotes) Name() string { return NameRemoveQuotes }
func (GetCryptoConfig) Name() string { return NameGetCryptoConfig }
func (SetCryptoConfig) Name() string { return NameSetCryptoConfig }
func (GetPrefixFlag) Name() string { return NameGetPrefixFlag }
func (SetPrefixFlag) Name() string { return NameSetPrefixFlag }
func (Upload) Name() string { return NameUpload }

func (BatchEncrypt) op() {}
func (BatchDecrypt) op() {}
func (ConvertFormat) op() {}
func (ReplaceCommas) op() {}
func (AddQuotes) op() {}
func (RemoveQuotes) op() {}
func (GetCryptoConfig) op() {}
func (SetCryptoConfig) op() {}
func (GetPrefixFlag) op() {}
func (SetPrefixFlag) op() {}
func (Upload) op() {}

// Upload 的凭据不参与日志。
func (u Upload) String() string {
	return "upload_to_oss{channel=" + u.Channel + "}"
}
