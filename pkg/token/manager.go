package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL はトークンの既定の有効期間（365日）。
const DefaultTTL = 365 * 24 * time.Hour

// DefaultIssuer はトークンの既定の発行者。
const DefaultIssuer = "plantnet-server"

// Claims はセッショントークンのクレーム（ペイロード）を表す。
type Claims struct {
	jwt.RegisteredClaims
	// Email は認証済みの識別子。トークンに埋め込まれた後は変更されない。
	Email string `json:"email"`
}

// Config はトークンの署名・検証設定。起動時に一度だけ組み立てる。
type Config struct {
	// Secret はHS256の署名鍵。発行と検証で同じ値を使う。
	Secret string
	// TTL はトークンの有効期間。0の場合はDefaultTTL。
	TTL time.Duration
	// Issuer はissクレーム。空でなければ検証時にも照合する。
	Issuer string
	// Now は現在時刻を返す関数。テスト用。nilの場合はtime.Now。
	Now func() time.Time
}

// Manager はトークンの発行（Sign）と検証（Verify）を行う。
// 生成後は不変であり、複数のgoroutineから同時に使用できる。
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewManager は新しいManagerを生成する。
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("署名鍵が設定されていません")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("有効期間が不正です: %s", cfg.TTL)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}, nil
}

// TTL はトークンの有効期間を返す。
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Sign は識別子を埋め込んだトークンを発行する。
// 識別子が空の場合はErrValidationを返す。
func (m *Manager) Sign(identity string) (string, error) {
	signed, _, err := m.Issue(identity)
	return signed, err
}

// Issue はSignと同じくトークンを発行し、埋め込んだクレームも返す。
func (m *Manager) Issue(identity string) (string, *Claims, error) {
	if strings.TrimSpace(identity) == "" {
		return "", nil, ErrValidation
	}

	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			ID:        uuid.New().String(),
		},
		Email: identity,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("%w: トークンの署名に失敗: %v", ErrInternal, err)
	}
	return signed, claims, nil
}

// Verify はトークンを検証し、クレームを返す。
// 有効期限切れは署名の正否に関わらずKindExpiredとして扱う。
// 状態を変更しないため、並行に呼び出してよい。
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, newAuthError(KindMissingCredential, ErrMissingCredential)
	}

	unverified := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return nil, newAuthError(KindInvalidSignature, err)
	}
	if exp := unverified.ExpiresAt; exp != nil && !m.now().Before(exp.Time) {
		return nil, newAuthError(KindExpired, jwt.ErrTokenExpired)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newAuthError(KindExpired, err)
		}
		return nil, newAuthError(KindInvalidSignature, err)
	}
	if !parsed.Valid {
		return nil, newAuthError(KindInvalidSignature, jwt.ErrTokenSignatureInvalid)
	}
	if claims.Email == "" {
		return nil, newAuthError(KindInvalidSignature, errors.New("email claim is empty"))
	}
	return claims, nil
}
