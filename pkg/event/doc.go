// Package event はセッションの監査ログに記録するイベントの型を定義する。
//
// イベントは追記のみで扱い、認証判定には使用しない。
package event
