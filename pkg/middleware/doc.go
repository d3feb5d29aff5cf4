// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// セッションクッキーによる認証ゲート、アクセスログ、パニックリカバリ、
// CORS設定、ログイン試行のレート制限を含む。
package middleware
