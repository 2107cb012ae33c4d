package auth

import (
	"errors"
	"log/slog"

	"github.com/yourusername/dvorak-admin/internal/audit"
)

// Manager はログイン・ログアウト処理に必要な部品をまとめた構造体です。
type Manager struct {
	validator CredentialValidator
	issuer    *Issuer
	limiter   AttemptLimiter
	recorder  audit.Recorder
	logger    *slog.Logger

	adminPath string
	loginPath string
}

// Option は Manager の設定を変更します。
type Option func(*Manager)

// WithLimiter はログイン試行回数の制限方法を指定します。
func WithLimiter(l AttemptLimiter) Option {
	return func(m *Manager) {
		if l != nil {
			m.limiter = l
		}
	}
}

// WithRecorder は監査イベントの記録先を指定します。
func WithRecorder(r audit.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithLogger はロガーを指定します。
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.logger = log
		}
	}
}

// WithRedirectPaths はログイン成功後とログアウト後のリダイレクト先を指定します。
func WithRedirectPaths(adminPath, loginPath string) Option {
	return func(m *Manager) {
		if adminPath != "" {
			m.adminPath = adminPath
		}
		if loginPath != "" {
			m.loginPath = loginPath
		}
	}
}

// NewManager は認証マネージャーを作成します。
func NewManager(validator CredentialValidator, issuer *Issuer, opts ...Option) (*Manager, error) {
	if validator == nil {
		return nil, errors.New("credential validator is nil")
	}
	if issuer == nil {
		return nil, errors.New("issuer is nil")
	}

	m := &Manager{
		validator: validator,
		issuer:    issuer,
		limiter:   NewMemoryLimiter(DefaultLimiterConfig()),
		logger:    slog.Default(),
		adminPath: "/admin",
		loginPath: defaultLoginPath,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.recorder == nil {
		m.recorder = audit.LogRecorder{Logger: m.logger}
	}
	return m, nil
}
