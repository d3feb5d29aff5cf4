// Package gateway はplantNetサーバーのセッションゲートウェイを提供する。
//
// ログイン時に署名付きトークンを発行してHTTP-onlyクッキーに格納し、
// 保護されたルートではクッキーを検証してから後続のハンドラに処理を渡す。
// サーバーはセッションテーブルを持たず、トークンの署名と有効期限だけで
// 認証を判定する。
package gateway
