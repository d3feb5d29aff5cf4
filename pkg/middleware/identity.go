package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/plantnet/pkg/token"
)

// Identity は認証ゲートを通過したリクエストの認証済みコンテキスト。
// 1リクエストの間だけ有効で、永続化しない。
type Identity struct {
	// Email はトークンに埋め込まれた識別子。
	Email string
	// IssuedAt はトークンの発行日時。
	IssuedAt time.Time
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time
	// TokenID はトークンのjti。
	TokenID string
}

// identityFromClaims は検証済みクレームからIdentityを組み立てる。
func identityFromClaims(claims *token.Claims) Identity {
	id := Identity{
		Email:   claims.Email,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id
}

// identityContextKey はcontext.Contextに認証済みIdentityを格納するためのキー。
type identityContextKey struct{}

// ginKeyIdentity はGinコンテキストに認証済みIdentityを格納するためのキー。
const ginKeyIdentity = "plantnet.identity"

// WithIdentity はコンテキストに認証済みIdentityを設定する。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext はコンテキストから認証済みIdentityを取得する。
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// GetIdentity はGinコンテキストから認証済みIdentityを取得する。
// SessionAuthミドルウェアが事前に適用されている必要がある。
func GetIdentity(c *gin.Context) (Identity, bool) {
	if v, ok := c.Get(ginKeyIdentity); ok {
		if id, ok := v.(Identity); ok {
			return id, true
		}
	}
	return IdentityFromContext(c.Request.Context())
}
