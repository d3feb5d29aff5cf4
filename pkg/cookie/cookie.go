// Package cookie はセッショントークンを運ぶHTTP-onlyクッキーの付与と削除を提供する。
package cookie

import (
	"net/http"
	"time"
)

// DefaultName はセッションクッキーの既定名。
const DefaultName = "token"

// Policy はクッキーの属性を決める設定。
type Policy struct {
	// ProductionLike はTLS前提の本番相当環境かどうか。
	// trueの場合 Secure=true, SameSite=None、falseの場合 Secure=false, SameSite=Strict。
	ProductionLike bool
	// Name はクッキー名。空の場合はDefaultName。
	Name string
	// Path はクッキーのパス。空の場合は "/"。
	Path string
	// Domain はクッキーのドメイン。通常は空。
	Domain string
	// MaxAge は付与時のMax-Age（秒）。0の場合はブラウザセッション限りのクッキーになる。
	MaxAge int
}

// Attributes はSecureとSameSiteの組を返す。
// SameSite=None は必ず Secure=true と組になる。この2つを個別に設定してはならない。
func (p Policy) Attributes() (secure bool, sameSite http.SameSite) {
	if p.ProductionLike {
		return true, http.SameSiteNoneMode
	}
	return false, http.SameSiteStrictMode
}

func (p Policy) name() string {
	if p.Name == "" {
		return DefaultName
	}
	return p.Name
}

func (p Policy) path() string {
	if p.Path == "" {
		return "/"
	}
	return p.Path
}

// Attach はトークンをセッションクッキーとしてレスポンスに設定する。
// HttpOnlyは常にtrue。
func Attach(w http.ResponseWriter, token string, p Policy) {
	secure, sameSite := p.Attributes()
	c := &http.Cookie{
		Name:     p.name(),
		Value:    token,
		Path:     p.path(),
		Domain:   p.Domain,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
	if p.MaxAge > 0 {
		c.MaxAge = p.MaxAge
	}
	http.SetCookie(w, c)
}

// Clear はセッションクッキーを即時失効させる指示をレスポンスに設定する。
// 付与時と同じSecure/SameSiteの組を使う。
func Clear(w http.ResponseWriter, p Policy) {
	secure, sameSite := p.Attributes()
	http.SetCookie(w, &http.Cookie{
		Name:   p.name(),
		Value:  "",
		Path:   p.path(),
		Domain: p.Domain,
		// net/httpでは負の値が "Max-Age=0" として出力される
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

// Read はリクエストからセッションクッキーの値を取り出す。
// クッキーが無い、または値が空の場合はfalseを返す。
func Read(r *http.Request, p Policy) (string, bool) {
	c, err := r.Cookie(p.name())
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
