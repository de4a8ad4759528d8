package model

import "time"

// Role はチャット履歴の発言者を表す。
type Role string

const (
	// RoleUser はユーザーの発言。
	RoleUser Role = "user"
	// RoleAssistant はAIの応答。
	RoleAssistant Role = "assistant"
)

// Valid はRoleが定義済みの値かどうかを判定する。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Exchange はチャット履歴の1件を表す。
// 追記専用で、更新・削除の操作は存在しない。
type Exchange struct {
	ID             string
	PrincipalEmail string
	Role           Role
	Content        string
	CreatedAt      time.Time
}
