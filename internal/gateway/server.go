package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nao1215/plantnet/internal/config"
	"github.com/nao1215/plantnet/internal/metrics"
	"github.com/nao1215/plantnet/pkg/cookie"
	"github.com/nao1215/plantnet/pkg/event"
	"github.com/nao1215/plantnet/pkg/middleware"
	"github.com/nao1215/plantnet/pkg/token"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// AuditLog はセッションイベントの監査ログ。
// 診断専用であり、認証の判定には使わない。
type AuditLog interface {
	Append(ctx context.Context, ev *event.Event) error
	ListBySubject(ctx context.Context, subject string, limit int) ([]event.Event, error)
	Ping(ctx context.Context) error
}

// Options はServerの任意の依存。
type Options struct {
	// Logger は構造化ロガー。nilの場合は何も出力しない。
	Logger *zap.Logger
	// Audit は監査ログ。nilの場合は監査ログを無効にする。
	Audit AuditLog
	// Registry はメトリクスの登録先。nilの場合は新しいレジストリを作る。
	Registry *prometheus.Registry
}

// Server はセッションゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は起動時に読み込んだ設定。
	cfg config.Config
	// tokens はトークンの発行と検証を行う。
	tokens *token.Manager
	// policy はセッションクッキーの属性。
	policy cookie.Policy
	// audit は監査ログ。nilの場合は無効。
	audit AuditLog
	// auditor は監査ログへの非同期書き込みを行う。auditがnilの場合はnil。
	auditor *auditWriter
	// metrics は認証とセッション操作のカウンタ。
	metrics *metrics.Metrics
	// registry は/metricsで公開するレジストリ。
	registry *prometheus.Registry
	// logger は構造化ロガー。
	logger *zap.Logger
	// api は認証ゲートを通過したリクエストだけが届くルートグループ。
	api *gin.RouterGroup
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens, err := token.NewManager(token.Config{
		Secret: cfg.TokenSecret,
		TTL:    cfg.TokenTTL,
		Issuer: cfg.TokenIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("トークン設定が不正です: %w", err)
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m, err := metrics.New("plantnet", registry)
	if err != nil {
		return nil, fmt.Errorf("メトリクスの登録に失敗: %w", err)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.AccessLog(logger, "/health", "/metrics"))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router: router,
		cfg:    cfg,
		tokens: tokens,
		policy: cookie.Policy{
			ProductionLike: cfg.ProductionLike(),
			Name:           cfg.CookieName,
		},
		audit:    opts.Audit,
		metrics:  m,
		registry: registry,
		logger:   logger,
	}
	if opts.Audit != nil {
		s.auditor = newAuditWriter(opts.Audit, m, logger)
	}
	s.setupRoutes()

	return s, nil
}

// Handler はサーバーのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// ProtectedGroup は認証ゲートの後ろにあるルートグループを返す。
// ここに登録したハンドラはmiddleware.GetIdentityで認証済みの識別子を受け取れる。
func (s *Server) ProtectedGroup() *gin.RouterGroup {
	return s.api
}

// Close は監査ログの書き込みキューを停止し、残っているイベントを書き込む。
// ctxが完了すると待つのをやめてctx.Err()を返す。
func (s *Server) Close(ctx context.Context) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.close(ctx)
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
// 停止時には監査ログの書き込みキューも閉じる。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Gatewayサービスを起動します", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.closeAudit()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Gatewayサービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.closeAudit()
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	s.closeAudit()
	return <-errCh
}

// closeAudit はshutdownTimeoutの範囲で監査ログの書き込みキューを閉じる。
func (s *Server) closeAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		s.logger.Warn("監査ログの書き込み待ちを打ち切りました", zap.Error(err))
	}
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello from plantNet Server!")
	})
	s.router.GET("/health", s.handleHealth())
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	// ログイン（認証不要）
	login := []gin.HandlerFunc{s.handleLogin()}
	if s.cfg.LoginRateLimit > 0 {
		limiter := middleware.NewRateLimiter(s.cfg.LoginRateLimit, s.cfg.LoginRateBurst)
		login = append([]gin.HandlerFunc{limiter.Middleware()}, login...)
	}
	s.router.POST("/session", login...)
	s.router.POST("/jwt", login...)

	// ログアウト（クッキーが無くても成功する）
	s.router.DELETE("/session", s.handleLogout())
	s.router.GET("/logout", s.handleLogout())

	// 認証必須のAPIエンドポイント
	s.api = s.router.Group("/api/v1")
	s.api.Use(middleware.SessionAuth(s.tokens, s.policy,
		middleware.WithAuthLogger(s.logger),
		middleware.WithAuthObserver(s.observeAuth),
	))
	{
		s.api.GET("/me", s.handleMe())
		s.api.GET("/me/events", s.handleMyEvents())
	}
}

// observeAuth は認証ゲートの結果をメトリクスと監査ログに記録する。
func (s *Server) observeAuth(c *gin.Context, result middleware.AuthResult) {
	switch result.Kind {
	case "":
		s.metrics.ObserveAuth(metrics.OutcomeAuthenticated)
	case token.KindMissingCredential:
		s.metrics.ObserveAuth(metrics.OutcomeMissingCredential)
	case token.KindExpired:
		s.metrics.ObserveAuth(metrics.OutcomeExpired)
		s.record("", event.TypeSessionRejected, event.SessionRejectedData{
			Reason:   string(result.Kind),
			Path:     c.Request.URL.Path,
			ClientIP: c.ClientIP(),
		})
	default:
		s.metrics.ObserveAuth(metrics.OutcomeInvalidSignature)
		s.record("", event.TypeSessionRejected, event.SessionRejectedData{
			Reason:   string(token.KindInvalidSignature),
			Path:     c.Request.URL.Path,
			ClientIP: c.ClientIP(),
		})
	}
}

// record は監査イベントを書き込みキューに積む。
// 書き込みはバックグラウンドで行い、レスポンスを待たせない。
func (s *Server) record(subject string, eventType event.Type, data any) {
	if s.auditor == nil {
		return
	}

	ev, err := event.New(subject, eventType, data)
	if err != nil {
		s.logger.Error("監査イベントの生成に失敗", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}
	s.auditor.enqueue(ev)
}
