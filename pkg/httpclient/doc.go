// Package httpclient はplantNetゲートウェイのセッションAPIを呼び出すクライアントを提供する。
//
// クッキージャーを持ち、ログインで受け取ったセッションクッキーを以降の
// リクエストに自動で付与する。ブラウザと同じ流れでゲートウェイを操作するため、
// ヘルスチェックや結合テストから使用する。
package httpclient
