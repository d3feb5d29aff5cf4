// Package audit はセッションイベントの監査ログをSQLiteに永続化する。
//
// 監査ログは追記のみ（append-only）で運用し、診断用途に限って参照する。
// 認証の判定はトークンの署名と有効期限だけで行い、このログは参照しない。
package audit
