package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nao1215/plantnet/pkg/cookie"
	"github.com/nao1215/plantnet/pkg/token"
)

// TestAccessLog はAccessLogミドルウェアを検証する。
func TestAccessLog(t *testing.T) {
	t.Parallel()

	t.Run("ステータスに応じたレベルで記録されること", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zapcore.DebugLevel)
		router := gin.New()
		router.Use(AccessLog(zap.New(core)))
		router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
		router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
		router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

		for _, p := range []string{"/ok", "/bad", "/fail"} {
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
		}

		entries := logs.All()
		if len(entries) != 3 {
			t.Fatalf("ログ件数 = %d, want 3", len(entries))
		}
		wantLevels := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
		for i, e := range entries {
			if e.Level != wantLevels[i] {
				t.Errorf("%d件目のレベル = %v, want %v", i, e.Level, wantLevels[i])
			}
		}
		if got := entries[1].ContextMap()["status"]; got != int64(http.StatusBadRequest) {
			t.Errorf("status = %v, want %d", got, http.StatusBadRequest)
		}
	})

	t.Run("除外パスは記録されないこと", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zapcore.DebugLevel)
		router := gin.New()
		router.Use(AccessLog(zap.New(core), "/health"))
		router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

		if logs.Len() != 0 {
			t.Errorf("ログ件数 = %d, want 0", logs.Len())
		}
	})

	t.Run("クッキーの値を出力せず認証済みの識別子を出力すること", func(t *testing.T) {
		t.Parallel()

		m, err := token.NewManager(token.Config{Secret: testSecret})
		if err != nil {
			t.Fatalf("NewManager()でエラーが発生: %v", err)
		}
		signed, err := m.Sign("log@example.com")
		if err != nil {
			t.Fatalf("Sign()でエラーが発生: %v", err)
		}

		core, logs := observer.New(zapcore.DebugLevel)
		router := gin.New()
		router.Use(AccessLog(zap.New(core)))
		router.Use(SessionAuth(m, cookie.Policy{}))
		router.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: cookie.DefaultName, Value: signed})
		router.ServeHTTP(httptest.NewRecorder(), req)

		if logs.Len() != 1 {
			t.Fatalf("ログ件数 = %d, want 1", logs.Len())
		}
		fields := logs.All()[0].ContextMap()
		if fields["subject"] != "log@example.com" {
			t.Errorf("subject = %v, want %q", fields["subject"], "log@example.com")
		}
		for k, v := range fields {
			if s, ok := v.(string); ok && strings.Contains(s, signed) {
				t.Errorf("フィールド %q にトークンが含まれている", k)
			}
		}
	})
}
