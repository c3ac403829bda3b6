// Package model はドメインモデルを定義する。
package model

import (
	"time"
)

// ロール名
const (
	RoleStudent    = "STUDENT"
	RoleInstructor = "INSTRUCTOR"
	RoleAdmin      = "ADMIN"
)

// ProviderLocal はメールアドレスとパスワードで登録したユーザーのプロバイダー名。
const ProviderLocal = "local"

// User はサービス利用ユーザーを表す。
// 外部IdPでログインしたユーザーはProviderとProviderIDを持つ。
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Enabled      bool
	Locked       bool
	Provider     string
	ProviderID   *string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole はユーザーが指定ロールを保持しているかを返す。
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Role はロールの参照データを表す。マイグレーションで投入される。
type Role struct {
	ID   int64
	Name string
}
