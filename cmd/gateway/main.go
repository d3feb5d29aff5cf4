// plantNetセッションゲートウェイのエントリポイント。
// ログイン時のトークン発行、クッキーによるセッション管理、保護ルートの認証を担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/plantnet/internal/audit"
	"github.com/nao1215/plantnet/internal/config"
	"github.com/nao1215/plantnet/internal/gateway"
	"github.com/nao1215/plantnet/pkg/httpclient"
	"github.com/nao1215/plantnet/pkg/logging"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "起動中のゲートウェイの/healthを確認して終了する")
	flag.Parse()

	if *healthcheck {
		if err := checkHealth(); err != nil {
			fmt.Fprintf(os.Stderr, "ヘルスチェックに失敗: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Gatewayサービスの起動に失敗: %v\n", err)
		os.Exit(1)
	}
}

// checkHealth はローカルで動いているゲートウェイの/healthを確認する。
// コンテナのHEALTHCHECKから呼び出す。
func checkHealth() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client, err := httpclient.New("http://" + net.JoinHostPort("127.0.0.1", cfg.Port))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := client.Health(ctx)
	if err != nil {
		return err
	}
	if h.Status != "ok" {
		return fmt.Errorf("status=%s", h.Status)
	}
	return nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.ProductionLike() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := gateway.Options{Logger: logger}
	if cfg.AuditDBPath != "" {
		store, err := audit.Open(ctx, cfg.AuditDBPath, logger)
		if err != nil {
			return fmt.Errorf("監査ログの初期化に失敗: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("監査ログのクローズに失敗", zap.Error(err))
			}
		}()
		opts.Audit = store
	} else {
		logger.Info("監査ログは無効です")
	}

	server, err := gateway.NewServer(cfg, opts)
	if err != nil {
		return fmt.Errorf("Gatewayサーバーの初期化に失敗: %w", err)
	}

	logger.Info("設定を読み込みました",
		zap.String("environment", cfg.Environment),
		zap.Bool("production_like", cfg.ProductionLike()),
		zap.Duration("token_ttl", cfg.TokenTTL),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
	)
	return server.Run(ctx)
}
