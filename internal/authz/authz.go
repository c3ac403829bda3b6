// Package authz はロールとコース所有権による認可判定を提供する。
// ハンドラーは処理の先頭でガード関数を呼び出し、Decisionに従って応答する。
package authz

import (
	"context"
	"log/slog"

	"github.com/hitoshi/coursehub/internal/logger"
	"github.com/hitoshi/coursehub/internal/model"
)

// Decision は認可判定の結果。
type Decision int

const (
	// Allow は操作を許可する。
	Allow Decision = iota
	// DenyUnauthenticated は認証されていないため拒否する。
	DenyUnauthenticated
	// DenyForbidden は権限不足のため拒否する。
	DenyForbidden
)

// String はログ出力用の文字列を返す。
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Allowed は許可されたかを返す。
func (d Decision) Allowed() bool {
	return d == Allow
}

// Err は拒否理由に対応するAPIエラーを返す。許可の場合はnilを返す。
func (d Decision) Err() error {
	switch d {
	case Allow:
		return nil
	case DenyUnauthenticated:
		return model.NewUnauthenticatedError()
	default:
		return model.NewForbiddenError()
	}
}

// CourseFinder はコースをIDで取得する。
type CourseFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Course, error)
}

// UserFinder はユーザーをメールアドレスで取得する。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// Authorizer はコース所有権に基づく認可判定を行う。
// 判定は読み取りのみで、状態を変更しない。
type Authorizer struct {
	courses CourseFinder
	users   UserFinder
}

// NewAuthorizer はAuthorizerを生成する。
func NewAuthorizer(courses CourseFinder, users UserFinder) *Authorizer {
	return &Authorizer{courses: courses, users: users}
}

// IsCourseOwnerOrAdmin は主体が管理者またはコースの担当インストラクターかを返す。
// コースやユーザーが存在しない場合、取得に失敗した場合はfalseを返す。
func (a *Authorizer) IsCourseOwnerOrAdmin(ctx context.Context, courseID int64, p model.Principal) bool {
	if p.IsAdmin() {
		return true
	}
	if !p.Authenticated() {
		return false
	}

	log := logger.FromContext(ctx)

	course, err := a.courses.FindByID(ctx, courseID)
	if err != nil {
		log.Warn("ownership check: course lookup failed",
			slog.Int64("course_id", courseID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if course == nil {
		return false
	}

	user, err := a.users.FindByEmail(ctx, p.Subject)
	if err != nil {
		log.Warn("ownership check: user lookup failed",
			slog.String("subject", p.Subject),
			slog.String("error", err.Error()),
		)
		return false
	}
	if user == nil {
		return false
	}

	return course.InstructorID == user.ID
}

// RequireCourseOwnerOrAdmin はコース所有者または管理者のみを許可する。
func (a *Authorizer) RequireCourseOwnerOrAdmin(ctx context.Context, p model.Principal, courseID int64) Decision {
	if !p.Authenticated() {
		return DenyUnauthenticated
	}
	if !a.IsCourseOwnerOrAdmin(ctx, courseID, p) {
		return DenyForbidden
	}
	return Allow
}

// RequireAuthenticated は認証済みの主体のみを許可する。
func RequireAuthenticated(p model.Principal) Decision {
	if !p.Authenticated() {
		return DenyUnauthenticated
	}
	return Allow
}

// RequireAnyRole はいずれかのロールを持つ主体のみを許可する。
func RequireAnyRole(p model.Principal, roles ...string) Decision {
	if !p.Authenticated() {
		return DenyUnauthenticated
	}
	if !p.HasAnyRole(roles...) {
		return DenyForbidden
	}
	return Allow
}
