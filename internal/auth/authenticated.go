package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrNotAuthenticated はリクエストにログイン済みユーザーが紐付いていないことを表します。
var ErrNotAuthenticated = errors.New("auth: request is not authenticated")

type identityContextKey struct{}

// attachIdentity はリクエストのコンテキストにユーザー情報を紐付けます。
// 既に紐付いている場合は上書きしません。
func attachIdentity(r *http.Request, identity UserIdentity) *http.Request {
	if _, ok := IdentityFromContext(r.Context()); ok {
		return r
	}
	ctx := context.WithValue(r.Context(), identityContextKey{}, &identity)
	return r.WithContext(ctx)
}

// IdentityFromContext はゲートが紐付けたユーザー情報を返します。
func IdentityFromContext(ctx context.Context) (*UserIdentity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*UserIdentity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// Authenticated はハンドラー内でログイン済みユーザーを取得します。
// 返り値は参照専用です。ゲートを通っていない場合は ErrNotAuthenticated を返します。
func Authenticated(c *gin.Context) (*UserIdentity, error) {
	identity, ok := IdentityFromContext(c.Request.Context())
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return identity, nil
}

// RequireAuthenticated はログイン済みでないリクエストを本文なしの 401 で止めるミドルウェアです。
// ゲートがリダイレクト対象外とする API 用のエンドポイントに使います。
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := Authenticated(c); err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
