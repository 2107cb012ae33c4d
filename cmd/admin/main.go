// Package main は管理コンソールのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/dvorak-admin/internal/auth"
	"github.com/yourusername/dvorak-admin/internal/cipher"
	"github.com/yourusername/dvorak-admin/internal/config"
	"github.com/yourusername/dvorak-admin/internal/logger"
)

const (
	serviceName    = "dvorak-admin"
	serviceVersion = "0.1.0"
	adminPath      = "/admin"
	loginPath      = "/login"
)

// services はルーティングに必要な部品です。
type services struct {
	gate   *auth.Gate
	auth   *auth.Manager
	events auditLister // Redis 未設定の場合は nil
}

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.GinMode, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	// 暗号器はプロセスで1つだけ作り、発行とゲートで共有する
	chacha, err := cipher.NewChaCha20Poly1305()
	if err != nil {
		return fmt.Errorf("failed to initialize cipher: %w", err)
	}
	sharedCipher := cipher.NewGuarded(chacha)

	backend, err := setupBackend(cfg, log)
	if err != nil {
		return err
	}
	defer backend.close()

	manager, err := auth.NewManager(
		newValidator(cfg),
		auth.NewIssuer(sharedCipher),
		auth.WithLimiter(backend.limiter),
		auth.WithRecorder(backend.recorder),
		auth.WithLogger(log),
		auth.WithRedirectPaths(adminPath, loginPath),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	gate := auth.NewGate(sharedCipher, auth.WithLoginPath(loginPath), auth.WithGateLogger(log))

	gin.SetMode(cfg.GinMode)
	router := newRouter(cfg, log, services{gate: gate, auth: manager, events: backend.events})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting admin server", slog.String("addr", srv.Addr), slog.String("mode", cfg.GinMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down admin server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newValidator(cfg *config.Config) auth.CredentialValidator {
	if cfg.UseStaticCredentials() {
		return auth.StaticValidator{
			UserID:       cfg.AppUserID,
			Username:     cfg.AppUsername,
			PasswordHash: cfg.AppPasswordHash,
		}
	}
	return auth.DemoValidator{}
}

// newRouter は gin エンジンを作成し、ミドルウェアとルーティングを設定します。
func newRouter(cfg *config.Config, log *slog.Logger, svc services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(log))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		logger.RequestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{logger.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	// ページ遷移はすべてゲートを通す
	router.Use(svc.gate.Handler())

	setupRoutes(router, svc)
	return router
}

// setupRoutes は画面と API のルーティングを行います。
func setupRoutes(router *gin.Engine, svc services) {
	// HTML を要求しないのでゲートの対象外
	router.GET("/health", handleHealth)

	router.GET(loginPath, handleLoginPage)
	router.POST(loginPath, svc.auth.Login)
	router.POST("/logout", svc.auth.Logout)

	router.GET(adminPath, auth.RequireAuthenticated(), handleAdminPage)

	api := router.Group("/api")
	api.Use(auth.RequireAuthenticated())
	{
		api.GET("/me", handleMe)
		api.GET("/audit", auditListHandler(svc.events))
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

const loginPage = `<!doctype html>
<html lang="ja">
<head><meta charset="utf-8"><title>ログイン</title></head>
<body>
<form method="post" action="/login">
<label>ユーザー名 <input name="username" autocomplete="username"></label>
<label>パスワード <input name="password" type="password" autocomplete="current-password"></label>
<button type="submit">ログイン</button>
</form>
</body>
</html>
`

func handleLoginPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(loginPage))
}

func handleAdminPage(c *gin.Context) {
	identity, err := auth.Authenticated(c)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	page := fmt.Sprintf(`<!doctype html>
<html lang="ja">
<head><meta charset="utf-8"><title>管理画面</title></head>
<body>
<p>ようこそ、%s さん</p>
<form method="post" action="/logout"><button type="submit">ログアウト</button></form>
</body>
</html>
`, html.EscapeString(identity.Username()))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func handleMe(c *gin.Context) {
	identity, err := auth.Authenticated(c)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, identity)
}
