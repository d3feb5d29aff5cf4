package event

import (
	"encoding/json"
	"time"
)

// Type はセッションイベントの種類を表す。
type Type string

const (
	// TypeSessionIssued はログインによりセッショントークンが発行されたことを表す。
	TypeSessionIssued Type = "SessionIssued"
	// TypeSessionCleared はログアウトによりセッションクッキーが削除されたことを表す。
	TypeSessionCleared Type = "SessionCleared"
	// TypeSessionRejected は保護されたルートへのアクセスが認証で拒否されたことを表す。
	TypeSessionRejected Type = "SessionRejected"
)

// Event は監査ログに追記される不変のセッションイベント。
// トークンそのものや署名に関する情報は含めない。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// Subject は対象の識別子（メールアドレス）。拒否イベントでは空の場合がある。
	Subject string `json:"subject"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// SessionIssuedData はSessionIssuedイベントのデータ。
type SessionIssuedData struct {
	// TokenID はトークンのjti。トークン本体は保存しない。
	TokenID string `json:"token_id"`
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time `json:"expires_at"`
	// ClientIP は要求元のIPアドレス。
	ClientIP string `json:"client_ip"`
}

// SessionClearedData はSessionClearedイベントのデータ。
type SessionClearedData struct {
	// HadCookie はログアウト時にクッキーが提示されていたかどうか。
	HadCookie bool `json:"had_cookie"`
	// ClientIP は要求元のIPアドレス。
	ClientIP string `json:"client_ip"`
}

// SessionRejectedData はSessionRejectedイベントのデータ。
type SessionRejectedData struct {
	// Reason は拒否理由（missing_credential / invalid_signature / expired）。
	Reason string `json:"reason"`
	// Path は拒否されたリクエストのパス。
	Path string `json:"path"`
	// ClientIP は要求元のIPアドレス。
	ClientIP string `json:"client_ip"`
}
