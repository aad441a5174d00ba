// Package mock 提供不访问网络的上传器：记录上传内容并返回伪造的对象位置。
package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"opkit/pkg/contract"
	"opkit/plugins/uploader/oss"
)

// Options 控制模拟行为。
type Options struct {
	// Host: 返回位置使用的主机名，默认 mock.oss.local。
	Host string `json:"host"`
	// DelayMS: 每次上传的模拟延迟（毫秒）。
	DelayMS int `json:"delay_ms"`
	// FailWith: 非空时每次上传都返回 ErrInvalidInput（携带该消息）。
	FailWith string `json:"fail_with"`
}

// Upload 为一次记录。
type Upload struct {
	AccessID string
	Channel  contract.Channel
	Content  string
}

// Uploader 并发安全。
type Uploader struct {
	host     string
	delay    time.Duration
	failWith string

	mu      sync.Mutex
	uploads []Upload
}

// New 从原样 JSON 构造。
func New(raw json.RawMessage) (*Uploader, error) {
	var opts Options
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, fmt.Errorf("mock uploader options: %v: %w", err, contract.ErrInvalidInput)
		}
	}
	if opts.Host == "" {
		opts.Host = "mock.oss.local"
	}
	return &Uploader{host: opts.Host, delay: time.Duration(opts.DelayMS) * time.Millisecond, failWith: opts.FailWith}, nil
}

// Upload 执行与真实上传器一致的输入校验，然后记录。
func (u *Uploader) Upload(ctx context.Context, cred contract.Credentials, content string, ch contract.Channel) (string, error) {
	if strings.TrimSpace(cred.AccessID) == "" || strings.TrimSpace(cred.AccessKey) == "" {
		return "", fmt.Errorf("%w: OSS Access ID或Access Key不能为空", contract.ErrInvalidInput)
	}
	if _, err := contract.ParseChannel(string(ch)); err != nil {
		return "", err
	}
	if err := oss.ValidateContent(content); err != nil {
		return "", err
	}
	if u.delay > 0 {
		t := time.NewTimer(u.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	if u.failWith != "" {
		return "", fmt.Errorf("%w: %s", contract.ErrInvalidInput, u.failWith)
	}
	u.mu.Lock()
	u.uploads = append(u.uploads, Upload{AccessID: cred.AccessID, Channel: ch, Content: content})
	u.mu.Unlock()
	return fmt.Sprintf("%s/"+oss.DefaultFolderTemplate+"/%s.txt", u.host, ch, ch), nil
}

// Uploads 返回已记录上传的副本。
func (u *Uploader) Uploads() []Upload {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Upload(nil), u.uploads...)
}

var _ contract.Uploader = (*Uploader)(nil)
