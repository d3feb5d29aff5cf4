package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/plantnet/pkg/cookie"
	"github.com/nao1215/plantnet/pkg/token"
)

// UnauthorizedMessage は認証失敗時にクライアントへ返すメッセージ。
// 失敗理由によらず同じ値を返す。
const UnauthorizedMessage = "unauthorized access"

// StatusClientClosedRequest はクライアントが応答を待たずに切断したことを表すステータスコード。
// アクセスログで200と区別するために使う。
const StatusClientClosedRequest = 499

// Verifier はセッショントークンを検証する。
type Verifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// AuthResult は認証ゲート1回分の結果。
type AuthResult struct {
	// Identity は認証成功時の認証済みコンテキスト。
	Identity Identity
	// Kind は失敗の種類。成功時は空文字。
	Kind token.Kind
	// Err は失敗の原因。サーバー側の診断専用。
	Err error
}

// Authenticated は認証に成功したかどうかを返す。
func (r AuthResult) Authenticated() bool {
	return r.Kind == ""
}

// AuthObserver は認証ゲートの結果を受け取るフック。
// メトリクスや監査ログの記録に使う。レスポンスには影響しない。
type AuthObserver func(c *gin.Context, result AuthResult)

// SessionAuthOption はSessionAuthの設定を変更する。
type SessionAuthOption func(*sessionAuth)

// WithAuthLogger は拒否理由を記録するロガーを設定する。
func WithAuthLogger(logger *zap.Logger) SessionAuthOption {
	return func(s *sessionAuth) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthObserver は認証結果のフックを追加する。
func WithAuthObserver(observer AuthObserver) SessionAuthOption {
	return func(s *sessionAuth) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

type sessionAuth struct {
	verifier  Verifier
	policy    cookie.Policy
	logger    *zap.Logger
	observers []AuthObserver
}

// SessionAuth はセッションクッキーを検証するGinミドルウェアを返す。
//
// クッキーが無い場合は検証を行わずに401を返す。検証に失敗した場合も
// 同じ401を返し、原因はサーバーログにのみ記録する。成功した場合は
// Identityをコンテキストに設定して後続のハンドラに処理を渡す。
func SessionAuth(verifier Verifier, policy cookie.Policy, opts ...SessionAuthOption) gin.HandlerFunc {
	s := &sessionAuth{
		verifier: verifier,
		policy:   policy,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s.handle
}

func (s *sessionAuth) handle(c *gin.Context) {
	// クライアントが切断済みならボディを書き込まずに終了する
	if c.Request.Context().Err() != nil {
		c.AbortWithStatus(StatusClientClosedRequest)
		return
	}

	value, ok := cookie.Read(c.Request, s.policy)
	if !ok {
		s.reject(c, AuthResult{Kind: token.KindMissingCredential, Err: token.ErrMissingCredential})
		return
	}

	claims, err := s.verifier.Verify(value)
	if err != nil {
		kind := token.KindOf(err)
		if kind == "" {
			kind = token.KindInvalidSignature
		}
		s.reject(c, AuthResult{Kind: kind, Err: err})
		return
	}

	id := identityFromClaims(claims)
	c.Set(ginKeyIdentity, id)
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
	s.notify(c, AuthResult{Identity: id})
	c.Next()
}

func (s *sessionAuth) reject(c *gin.Context, result AuthResult) {
	if result.Kind != token.KindMissingCredential {
		s.logger.Warn("トークン検証に失敗",
			zap.String("reason", string(result.Kind)),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Error(result.Err),
		)
	}
	s.notify(c, result)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": UnauthorizedMessage})
}

func (s *sessionAuth) notify(c *gin.Context, result AuthResult) {
	for _, o := range s.observers {
		o(c, result)
	}
}
