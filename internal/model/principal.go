package model

// Principal は検証済みトークンから復元した認証主体を表す。
// Subjectはユーザーのメールアドレス。
type Principal struct {
	Subject string
	Roles   []string
}

// HasRole は指定ロールを保持しているかを返す。
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole はいずれかのロールを保持しているかを返す。
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin は管理者ロールを保持しているかを返す。
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// Authenticated は認証済みの主体かを返す。ゼロ値は匿名を表す。
func (p Principal) Authenticated() bool {
	return p.Subject != ""
}
