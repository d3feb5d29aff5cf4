package token

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation は必須の入力（識別子）が欠けていることを表す。
	ErrValidation = errors.New("identity is required")
	// ErrMissingCredential はトークンが提示されていないことを表す。
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidToken は署名不一致、形式不正、許可されていないアルゴリズムを表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpired はトークンの有効期限切れを表す。
	ErrExpired = errors.New("token expired")
	// ErrInternal は署名処理などライブラリ内部の失敗を表す。
	ErrInternal = errors.New("internal token error")
)

// Kind は認証失敗の種類。ログとテストで区別するために使う。
type Kind string

const (
	// KindMissingCredential はトークン未提示。
	KindMissingCredential Kind = "missing_credential"
	// KindInvalidSignature は署名不正または形式不正。
	KindInvalidSignature Kind = "invalid_signature"
	// KindExpired は有効期限切れ。
	KindExpired Kind = "expired"
)

// AuthError は認証失敗を表すエラー。
// errors.Is で ErrMissingCredential / ErrInvalidToken / ErrExpired に一致する。
type AuthError struct {
	// Kind は失敗の種類。
	Kind Kind
	// Err は元になったライブラリのエラー。サーバーログ専用。
	Err error
}

// Error はエラーメッセージを返す。
func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed: %s", e.Kind)
	}
	return fmt.Sprintf("authentication failed: %s: %v", e.Kind, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is はKindに対応するセンチネルエラーとの一致を判定する。
func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrMissingCredential:
		return e.Kind == KindMissingCredential
	case ErrInvalidToken:
		return e.Kind == KindInvalidSignature
	case ErrExpired:
		return e.Kind == KindExpired
	}
	return false
}

func newAuthError(kind Kind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// KindOf はエラーから認証失敗の種類を取り出す。AuthErrorでなければ空文字を返す。
func KindOf(err error) Kind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}
