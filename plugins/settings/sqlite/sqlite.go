// Package sqlite 将设置持久化到本地 SQLite 数据库（键值表），跨进程保留。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"opkit/pkg/contract"
)

// Options 为 Store 的配置。
type Options struct {
	// Path: 数据库文件路径；默认 "opkit-settings.db"。
	Path string `json:"path"`
}

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

const (
	keyProfile = "crypto_profile"
	keyPrefix  = "huawei_prefix"
)

// Store 为 SQLite 后端的设置存储；*sql.DB 自带连接池，并发安全。
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）数据库并建表。
func Open(opts *Options) (*Store, error) {
	path := "opkit-settings.db"
	if opts != nil && strings.TrimSpace(opts.Path) != "" {
		path = opts.Path
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("settings: create directory: %w", err)
		}
	}
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("settings: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: connect database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库。
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: read %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("settings: write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Profile(ctx context.Context) (contract.Profile, error) {
	v, ok, err := s.get(ctx, keyProfile)
	if err != nil {
		return "", err
	}
	if !ok {
		return contract.DefaultCryptoOptions.Profile, nil
	}
	p, err := contract.ParseProfile(v)
	if err != nil {
		return "", fmt.Errorf("settings: stored profile: %w", err)
	}
	return p, nil
}

func (s *Store) SetProfile(ctx context.Context, p contract.Profile) error {
	if _, err := contract.ParseProfile(string(p)); err != nil {
		return err
	}
	return s.put(ctx, keyProfile, string(p))
}

func (s *Store) PrefixEnabled(ctx context.Context) (bool, error) {
	v, ok, err := s.get(ctx, keyPrefix)
	if err != nil {
		return false, err
	}
	if !ok {
		return contract.DefaultCryptoOptions.UsePrefix, nil
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: settings: stored prefix flag %q", contract.ErrInvariantViolation, v)
	}
	return on, nil
}

func (s *Store) SetPrefixEnabled(ctx context.Context, on bool) error {
	return s.put(ctx, keyPrefix, strconv.FormatBool(on))
}

var _ contract.SettingsStore = (*Store)(nil)
