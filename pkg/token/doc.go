// Package token はセッション用の署名付きトークン（HS256 JWT）の発行と検証を提供する。
//
// サーバーはセッションテーブルを持たない。トークンの正当性は署名と
// 有効期限だけで判定される（ステートレスセッション）。
// 検証の失敗理由はAuthErrorのKindで区別できるが、クライアントへは
// 一律に401として返すこと。
package token
