package model

// Principal は認証済みユーザーを表す。
// 検証済みのIDトークンまたはセッションCookieからリクエストごとに復元し、
// 単独のレコードとしては永続化しない。
type Principal struct {
	Email   string // 一意の識別子（必須）
	Name    string
	Picture string
}
