// Package memory 提供进程内的设置存储（进程退出即丢失）。
package memory

import (
	"context"
	"sync"

	"opkit/pkg/contract"
)

// Store 以互斥锁保护的内存设置；零值不可用，请使用 New。
type Store struct {
	mu   sync.RWMutex
	opts contract.CryptoOptions
}

// New 以默认值（通用档、前缀开启）初始化。
func New() *Store {
	return &Store{opts: contract.DefaultCryptoOptions}
}

func (s *Store) Profile(ctx context.Context) (contract.Profile, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Profile, nil
}

func (s *Store) SetProfile(ctx context.Context, p contract.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.opts.Profile = p
	s.mu.Unlock()
	return nil
}

func (s *Store) PrefixEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.UsePrefix, nil
}

func (s *Store) SetPrefixEnabled(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.opts.UsePrefix = on
	s.mu.Unlock()
	return nil
}

var _ contract.SettingsStore = (*Store)(nil)
