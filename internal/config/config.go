// Package config はゲートウェイの設定を環境変数と任意のYAMLファイルから読み込む。
//
// 設定は起動時に一度だけ読み込まれ、以降は不変の値として各コンポーネントに
// 明示的に渡される。環境変数はYAMLファイルの値より優先される。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/plantnet/pkg/token"
)

// devSecret は開発環境でのみ使用する署名鍵。
const devSecret = "dev-secret-key"

// Config はゲートウェイ全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// Environment は実行環境名。"production" の場合は本番相当として扱う。
	Environment string `yaml:"environment"`
	// TokenSecret はトークン署名用の秘密鍵。
	TokenSecret string `yaml:"token_secret"`
	// TokenTTL はトークンの有効期間。
	TokenTTL time.Duration `yaml:"-"`
	// TokenTTLRaw はYAML上の有効期間表記（例: "365d", "12h"）。
	TokenTTLRaw string `yaml:"token_ttl"`
	// TokenIssuer はトークンのissクレーム。
	TokenIssuer string `yaml:"token_issuer"`
	// CookieName はセッションクッキー名。
	CookieName string `yaml:"cookie_name"`
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string `yaml:"allowed_origins"`
	// AuditDBPath は監査ログ用SQLiteファイルのパス。空の場合は監査ログを無効にする。
	AuditDBPath string `yaml:"audit_db_path"`
	// LogLevel はログレベル。
	LogLevel string `yaml:"log_level"`
	// LogFormat はログ形式（json / console）。
	LogFormat string `yaml:"log_format"`
	// LoginRateLimit はクライアントごとのログイン試行の毎秒許可数。0の場合は無制限。
	LoginRateLimit float64 `yaml:"login_rate_limit"`
	// LoginRateBurst はログイン試行のバースト数。
	LoginRateBurst int `yaml:"login_rate_burst"`
}

// Default は既定値で埋めた設定を返す。
func Default() Config {
	return Config{
		Port:           "3000",
		Environment:    "development",
		TokenTTL:       token.DefaultTTL,
		TokenIssuer:    token.DefaultIssuer,
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:5174"},
		AuditDBPath:    "plantnet.db",
		LogLevel:       "info",
		LogFormat:      "json",
		LoginRateBurst: 5,
	}
}

// ProductionLike はTLS前提の本番相当環境かどうかを返す。
func (c Config) ProductionLike() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate は設定値の整合性を検証する。
func (c Config) Validate() error {
	var errs []error
	if c.TokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRETが設定されていません"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("トークンの有効期間が不正です: %s", c.TokenTTL))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORTが設定されていません"))
	}
	if c.LoginRateLimit < 0 {
		errs = append(errs, fmt.Errorf("ログインレート制限が不正です: %v", c.LoginRateLimit))
	}
	return errors.Join(errs...)
}

// Load は設定を読み込む。CONFIG_FILEが指定されていればYAMLを先に読み込み、
// その上に環境変数を適用する。
func Load() (Config, error) {
	return load(os.LookupEnv)
}

// load は環境変数の参照関数を受け取って設定を組み立てる。
// lookupはos.LookupEnvと同じく、未設定と空文字を区別する。
func load(lookup func(string) (string, bool)) (Config, error) {
	getenv := valueOf(lookup)
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if cfg.TokenSecret == "" && !cfg.ProductionLike() {
		cfg.TokenSecret = devSecret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("設定が不正です: %w", err)
	}
	return cfg, nil
}

// valueOf は参照関数から、未設定を空文字として返す取得関数を作る。
func valueOf(lookup func(string) (string, bool)) func(string) string {
	return func(key string) string {
		v, _ := lookup(key)
		return v
	}
}

// mergeFile はYAMLファイルの値を設定に上書きする。
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルのパースに失敗: %w", err)
	}
	if c.TokenTTLRaw != "" {
		ttl, err := ParseTTL(c.TokenTTLRaw)
		if err != nil {
			return err
		}
		c.TokenTTL = ttl
	}
	return nil
}

// applyEnv は環境変数の値を設定に上書きする。
// AUDIT_DB_PATHは空文字で明示的に設定された場合も反映し、監査ログを無効にする。
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	getenv := valueOf(lookup)
	setString(&c.Port, getenv("PORT"))
	setString(&c.Environment, getenv("NODE_ENV"))
	setString(&c.Environment, getenv("APP_ENV"))
	setString(&c.TokenSecret, getenv("ACCESS_TOKEN_SECRET"))
	setString(&c.TokenIssuer, getenv("TOKEN_ISSUER"))
	setString(&c.CookieName, getenv("COOKIE_NAME"))
	setString(&c.LogLevel, getenv("LOG_LEVEL"))
	setString(&c.LogFormat, getenv("LOG_FORMAT"))

	if v, ok := lookup("AUDIT_DB_PATH"); ok {
		c.AuditDBPath = strings.TrimSpace(v)
	}
	if strings.EqualFold(getenv("AUDIT_DISABLED"), "true") {
		c.AuditDBPath = ""
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := getenv("TOKEN_TTL"); v != "" {
		ttl, err := ParseTTL(v)
		if err != nil {
			return err
		}
		c.TokenTTL = ttl
	}
	if v := getenv("LOGIN_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LOGIN_RATE_LIMITが不正です: %w", err)
		}
		c.LoginRateLimit = f
	}
	if v := getenv("LOGIN_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOGIN_RATE_BURSTが不正です: %w", err)
		}
		c.LoginRateBurst = n
	}
	return nil
}

// ParseTTL は有効期間の表記を解釈する。
// Goのduration表記（"12h"）に加えて日数表記（"365d"）を受け付ける。
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, found := strings.CutSuffix(s, "d"); found {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("有効期間の表記が不正です: %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("有効期間の表記が不正です: %q", s)
	}
	return d, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
