package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/plantnet/internal/audit"
	"github.com/nao1215/plantnet/pkg/cookie"
	"github.com/nao1215/plantnet/pkg/event"
	"github.com/nao1215/plantnet/pkg/middleware"
	"github.com/nao1215/plantnet/pkg/token"
)

// レスポンスメッセージ。
const (
	// MessageEmailRequired はログイン時に識別子が無い場合のメッセージ。
	MessageEmailRequired = "Email is required"
	// MessageLogoutFailed はログアウト処理が予期せず失敗した場合のメッセージ。
	MessageLogoutFailed = "Logout Failed"
	// MessageAuditDisabled は監査ログが無効な場合のメッセージ。
	MessageAuditDisabled = "Audit log is disabled"
)

// healthTimeout はヘルスチェックで監査ログの疎通を確認する時間。
const healthTimeout = 2 * time.Second

// loginRequest はログインのリクエストボディ。
// identityはemailの別名として受け付ける。
type loginRequest struct {
	Email    string `json:"email"`
	Identity string `json:"identity"`
}

func (r loginRequest) subject() string {
	if s := strings.TrimSpace(r.Email); s != "" {
		return s
	}
	return strings.TrimSpace(r.Identity)
}

// handleHealth はヘルスチェックのハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.audit != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := s.audit.Ping(ctx); err != nil {
				s.logger.Warn("監査ログに接続できません", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "service": "gateway"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	}
}

// handleLogin はトークンを発行してクッキーに設定するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.logger.Debug("ログインリクエストのパースに失敗", zap.Error(err))
		}

		subject := req.subject()
		if subject == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": MessageEmailRequired})
			return
		}

		signed, claims, err := s.tokens.Issue(subject)
		if err != nil {
			if errors.Is(err, token.ErrValidation) {
				c.JSON(http.StatusBadRequest, gin.H{"message": MessageEmailRequired})
				return
			}
			s.metrics.IssueFailed()
			s.logger.Error("トークンの発行に失敗", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": middleware.InternalErrorMessage})
			return
		}

		cookie.Attach(c.Writer, signed, s.policy)
		s.metrics.SessionIssued()
		s.record(subject, event.TypeSessionIssued, event.SessionIssuedData{
			TokenID:   claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
			ClientIP:  c.ClientIP(),
		})

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// handleLogout はセッションクッキーを削除するハンドラを返す。
// クッキーの有無やトークンの正否に関わらず成功する。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("ログアウト処理でpanicが発生", zap.Any("panic", r), zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"message": MessageLogoutFailed,
					"error":   "unexpected error while clearing session",
				})
			}
		}()

		value, hadCookie := cookie.Read(c.Request, s.policy)

		// 監査ログの対象者を求めるだけなので検証失敗は無視する
		subject := ""
		if hadCookie {
			if claims, err := s.tokens.Verify(value); err == nil {
				subject = claims.Email
			}
		}

		cookie.Clear(c.Writer, s.policy)
		s.metrics.SessionCleared()
		s.record(subject, event.TypeSessionCleared, event.SessionClearedData{
			HadCookie: hadCookie,
			ClientIP:  c.ClientIP(),
		})

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// handleMe は認証済みの識別子を返すハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"message": middleware.UnauthorizedMessage})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"email":      id.Email,
			"issued_at":  id.IssuedAt.UTC().Format(time.RFC3339),
			"expires_at": id.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

// handleMyEvents は認証済みユーザー自身のセッションイベントを返すハンドラを返す。
func (s *Server) handleMyEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"message": middleware.UnauthorizedMessage})
			return
		}
		if s.audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": MessageAuditDisabled})
			return
		}

		limit := audit.DefaultListLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		events, err := s.audit.ListBySubject(c.Request.Context(), id.Email, limit)
		if err != nil {
			s.logger.Error("監査ログの取得に失敗", zap.String("subject", id.Email), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": middleware.InternalErrorMessage})
			return
		}

		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}
