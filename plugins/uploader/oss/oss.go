// Package oss 通过对象存储的 PUT Object 接口上传 ID 列表（每行一个数字 ID）。
// 签名为 OSS V1：Authorization: OSS <id>:base64(hmac-sha1(key, StringToSign))。
package oss

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"opkit/pkg/contract"
)

// Options: 最小必需配置。
type Options struct {
	Bucket   string `json:"bucket"`
	Endpoint string `json:"endpoint"` // 例如 oss-cn-hangzhou.aliyuncs.com
	// Scheme: 默认 https。
	Scheme string `json:"scheme"`
	// BaseURL: 覆盖请求地址（私有网关或测试）；为空时使用 <scheme>://<bucket>.<endpoint>。
	BaseURL string `json:"base_url"`
	// FolderTemplate: 对象目录模板，%s 替换为渠道名。
	FolderTemplate string `json:"folder_template"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// MaxBytes: 单次上传字节上限，0 表示不限制。
	MaxBytes int `json:"max_bytes"`
}

// DefaultFolderTemplate 为默认对象目录模板。
const DefaultFolderTemplate = "hive2/dim/tmp_%s_ids"

const contentType = "text/plain"

func (o *Options) defaults() {
	if o.Scheme == "" {
		o.Scheme = "https"
	}
	if o.FolderTemplate == "" {
		o.FolderTemplate = DefaultFolderTemplate
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
}

// Uploader 为对象存储上传器；构造后只读，并发安全。
type Uploader struct {
	bucket   string
	host     string
	baseURL  string
	folder   string
	maxBytes int
	now      func() time.Time
	do       func(*http.Request) (*http.Response, error)
}

// New 从原样 JSON 选项构造上传器。
func New(raw json.RawMessage) (*Uploader, error) {
	var opts Options
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, fmt.Errorf("oss options: %v: %w", err, contract.ErrInvalidInput)
		}
	}
	return NewWithOptions(opts)
}

// NewWithOptions 以结构化选项构造上传器。
func NewWithOptions(opts Options) (*Uploader, error) {
	opts.defaults()
	if strings.TrimSpace(opts.Bucket) == "" || strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("oss: %w: bucket and endpoint are required", contract.ErrInvalidInput)
	}
	if strings.Count(opts.FolderTemplate, "%s") != 1 {
		return nil, fmt.Errorf("oss: %w: folder_template must contain exactly one %%s", contract.ErrInvalidInput)
	}
	host := opts.Bucket + "." + opts.Endpoint
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = opts.Scheme + "://" + host
	}
	hc := &http.Client{
		Timeout: time.Duration(opts.TimeoutSeconds) * time.Second,
		// 接入点与 bucket 地域不符时 OSS 返回 3xx，直接上报而不跟随
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return &Uploader{
		bucket:   opts.Bucket,
		host:     host,
		baseURL:  base,
		folder:   opts.FolderTemplate,
		maxBytes: opts.MaxBytes,
		now:      time.Now,
		do:       hc.Do,
	}, nil
}

// upstreamError 实现 net.Error，用于将 HTTP 上游 5xx/408 映射为网络类错误，便于分类。
type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string           { return fmt.Sprintf("oss upstream %d: %s", e.status, e.msg) }
func (e upstreamError) Timeout() bool           { return e.status == http.StatusRequestTimeout }
func (e upstreamError) Temporary() bool         { return e.status/100 == 5 }
func (e upstreamError) UpstreamStatus() int     { return e.status }
func (e upstreamError) UpstreamMessage() string { return e.msg }

// ObjectPath 返回渠道对应的对象路径：<folder>/<channel>.txt。
func (u *Uploader) ObjectPath(ch contract.Channel) string {
	return fmt.Sprintf(u.folder, string(ch)) + "/" + string(ch) + ".txt"
}

// Upload 校验凭据与内容后执行 PUT；成功返回 "<host>/<object>"。
func (u *Uploader) Upload(ctx context.Context, cred contract.Credentials, content string, ch contract.Channel) (string, error) {
	id := strings.TrimSpace(cred.AccessID)
	key := strings.TrimSpace(cred.AccessKey)
	if id == "" || key == "" {
		return "", fmt.Errorf("%w: OSS Access ID或Access Key不能为空", contract.ErrInvalidInput)
	}
	if _, err := contract.ParseChannel(string(ch)); err != nil {
		return "", err
	}
	if err := ValidateContent(content); err != nil {
		return "", err
	}
	if u.maxBytes > 0 && len(content) > u.maxBytes {
		return "", fmt.Errorf("%w: 内容 %d 字节超过上限 %d", contract.ErrBudgetExceeded, len(content), u.maxBytes)
	}

	object := u.ObjectPath(ch)
	body := []byte(content)
	sum := md5.Sum(body)
	contentMD5 := base64.StdEncoding.EncodeToString(sum[:])
	date := u.now().UTC().Format(http.TimeFormat)
	auth := "OSS " + id + ":" + Sign(key, http.MethodPut, contentMD5, contentType, date, "/"+u.bucket+"/"+object)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.baseURL+"/"+object, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %v: %w", err, contract.ErrInvalidInput)
	}
	req.Header.Set("Date", date)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-MD5", contentMD5)
	req.Header.Set("Authorization", auth)

	resp, err := u.do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if cerr := ctx.Err(); cerr != nil {
				return "", cerr
			}
		}
		return "", fmt.Errorf("网络连接错误，请检查网络并确认使用了正确的OSS接入点: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return u.host + "/" + object, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("oss upstream 429: %w", contract.ErrRateLimited)
	}
	slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := strings.TrimSpace(string(slurp))
	switch {
	case strings.Contains(msg, "InvalidAccessKeyId"):
		return "", fmt.Errorf("%w: Access ID无效，请检查配置", contract.ErrInvalidInput)
	case strings.Contains(msg, "SignatureDoesNotMatch"):
		return "", fmt.Errorf("%w: Access Key无效，请检查配置或签名错误", contract.ErrInvalidInput)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode/100 == 5:
		return "", upstreamError{status: resp.StatusCode, msg: msg}
	case resp.StatusCode/100 == 3:
		return "", fmt.Errorf("%w: OSS 返回 HTTP %d，请确认接入点与 bucket 所在地域一致", contract.ErrResponseInvalid, resp.StatusCode)
	default:
		return "", fmt.Errorf("上传到OSS失败: HTTP %d: %s: %w", resp.StatusCode, msg, contract.ErrInvalidInput)
	}
}

// Sign 计算 OSS V1 签名：base64(hmac-sha1(key, VERB\nContent-MD5\nContent-Type\nDate\nResource))。
func Sign(key, verb, contentMD5, ctype, date, resource string) string {
	mac := hmac.New(sha1.New, []byte(key))
	io.WriteString(mac, verb+"\n"+contentMD5+"\n"+ctype+"\n"+date+"\n"+resource)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateContent 要求内容非空，且每个非空行都是纯数字 ID。
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: 内容不能为空", contract.ErrInvalidInput)
	}
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, r := range line {
			if r < '0' || r > '9' {
				return fmt.Errorf("%w: 第 %d 行不是有效的数字ID: '%s'", contract.ErrInvalidInput, i+1, line)
			}
		}
	}
	return nil
}

var _ contract.Uploader = (*Uploader)(nil)
