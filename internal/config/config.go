// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port     string `env:"PORT" envDefault:"8080"`       // APIサーバーのポート番号
	GinMode  string `env:"GIN_MODE" envDefault:"debug"` // Ginの実行モード (debug, release, test)
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"` // ログレベル (debug, info, warn, error)

	// CORS設定
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"` // CORS許可オリジン（カンマ区切り）

	// ログイン設定
	AppUsername     string `env:"APP_USERNAME"`                    // ログイン用ユーザー名
	AppPasswordHash string `env:"APP_PASSWORD_HASH"`               // bcryptでハッシュ化されたパスワード
	AppUserID       string `env:"APP_USER_ID" envDefault:"123456"` // ログイン成功時に発行するユーザーID

	// Redis設定（未設定の場合はメモリ上のリミッターとログ出力のみの監査になります）
	RedisURL string `env:"REDIS_URL"`

	// 監査ログ設定
	AuditRetention   time.Duration `env:"AUDIT_RETENTION" envDefault:"24h"` // 監査レコードの保持期間
	AuditConcurrency int           `env:"AUDIT_CONCURRENCY" envDefault:"2"` // 監査ワーカーの並列数
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.AuditConcurrency <= 0 {
		return fmt.Errorf("AUDIT_CONCURRENCY must be positive")
	}
	if c.AuditRetention <= 0 {
		return fmt.Errorf("AUDIT_RETENTION must be positive")
	}

	if len(c.AllowedOrigins()) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must contain at least one origin")
	}

	// ローカル開発ではデモ用の認証を許可する
	// 本番環境では固定ユーザーの設定を必須にする
	if c.GinMode == "release" {
		if c.AppUsername == "" {
			return fmt.Errorf("APP_USERNAME is required in release mode")
		}
		if c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required in release mode")
		}
	}

	return nil
}

// UseStaticCredentials は固定ユーザーでの認証が設定されているかを返します。
func (c *Config) UseStaticCredentials() bool {
	return c.AppUsername != "" && c.AppPasswordHash != ""
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
