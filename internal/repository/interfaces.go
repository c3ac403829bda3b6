// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
// 見つからない場合のFind系メソッドはnil, nilを返す。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/coursehub/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーをロール付きで取得する。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーをロール付きで取得する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByEmail はメールアドレスが登録済みかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
	// メールアドレスが重複する場合はErrDuplicateをラップして返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile は氏名を更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// UpdateProvider は外部IdP情報と氏名を更新する。
	UpdateProvider(ctx context.Context, user *model.User) error

	// AddRole はユーザーにロールを付与する。付与済みの場合は何もしない。
	AddRole(ctx context.Context, userID, roleID int64) error

	// RemoveRoles はユーザーの全ロール紐付けを削除する。
	RemoveRoles(ctx context.Context, userID int64) error

	// Delete は指定IDのユーザーを削除する。
	Delete(ctx context.Context, id int64) error
}

// RoleRepository はロール参照データの取得インターフェース。
type RoleRepository interface {
	// FindByName はロール名でロールを取得する。
	FindByName(ctx context.Context, name string) (*model.Role, error)
}

// CourseScope はコース一覧で返す範囲を指定する。
// IncludeUnpublishedがtrueの場合は全件、それ以外は公開コースと
// OwnerIDが担当する非公開コースを返す。OwnerIDが0の場合は公開コースのみ。
type CourseScope struct {
	IncludeUnpublished bool
	OwnerID            int64
}

// CourseRepository はコースデータの永続化インターフェース。
type CourseRepository interface {
	// FindByID は指定IDのコースを取得する。
	FindByID(ctx context.Context, id int64) (*model.Course, error)

	// FindDetailsByID はインストラクター情報と受講者数を結合したコースを取得する。
	// Lessonsは設定しない。
	FindDetailsByID(ctx context.Context, id int64) (*model.CourseWithDetails, error)

	// ListDetails はscopeに該当するコースをcreated_at降順で取得する。
	// Lessonsは設定しない。
	ListDetails(ctx context.Context, scope CourseScope) ([]model.CourseWithDetails, error)

	// CountByInstructor は指定ユーザーが担当するコース数を返す。
	CountByInstructor(ctx context.Context, instructorID int64) (int, error)

	// Create はコースを作成し、採番されたIDをcourse.IDに設定する。
	Create(ctx context.Context, course *model.Course) error

	// Update はタイトル、説明、画像URL、更新日時を更新する。
	Update(ctx context.Context, course *model.Course) error

	// Publish はコースを公開状態にしてpublished_atを設定する。
	Publish(ctx context.Context, id int64, at time.Time) error

	// Delete は指定IDのコースを削除する。
	Delete(ctx context.Context, id int64) error
}

// LessonRepository はレッスンデータの永続化インターフェース。
// 一覧はorder_index昇順、同値の場合はid昇順で返す。
type LessonRepository interface {
	// FindByID は指定IDのレッスンを取得する。
	FindByID(ctx context.Context, id int64) (*model.Lesson, error)

	// FindByIDAndCourseID は指定コースに属するレッスンを取得する。
	FindByIDAndCourseID(ctx context.Context, id, courseID int64) (*model.Lesson, error)

	// ListByCourseID はコースのレッスン一覧を取得する。
	ListByCourseID(ctx context.Context, courseID int64) ([]model.Lesson, error)

	// ListByCourseIDs は複数コースのレッスンをコースID単位で取得する。
	ListByCourseIDs(ctx context.Context, courseIDs []int64) (map[int64][]model.Lesson, error)

	// MaxOrderIndex はコース内の最大order_indexを返す。レッスンがない場合は0を返す。
	MaxOrderIndex(ctx context.Context, courseID int64) (int, error)

	// CountByCourseID はコースのレッスン数を返す。
	CountByCourseID(ctx context.Context, courseID int64) (int, error)

	// Create はレッスンを作成し、採番されたIDをlesson.IDに設定する。
	Create(ctx context.Context, lesson *model.Lesson) error

	// Update はレッスンの内容を更新する。
	Update(ctx context.Context, lesson *model.Lesson) error

	// Delete は指定IDのレッスンを削除する。
	Delete(ctx context.Context, id int64) error

	// DeleteByCourseID はコースの全レッスンを削除する。
	DeleteByCourseID(ctx context.Context, courseID int64) error
}

// EnrollmentRepository は受講登録データの永続化インターフェース。
type EnrollmentRepository interface {
	// FindByStudentAndCourse は学生とコースの組で受講登録を取得する。
	FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*model.Enrollment, error)

	// Create は受講登録を作成し、採番されたIDをenrollment.IDに設定する。
	// 一意制約違反の場合はErrDuplicateをラップして返す。
	Create(ctx context.Context, enrollment *model.Enrollment) error

	// TouchLastAccessed はlast_accessed_atを更新する。
	TouchLastAccessed(ctx context.Context, id int64, at time.Time) error

	// MarkCompleted はcompleted_atが未設定の場合のみ設定する。
	// 設定した場合はtrueを返す。
	MarkCompleted(ctx context.Context, id int64, at time.Time) (bool, error)

	// ListDetailsByStudent は学生の受講一覧をコース情報と進捗付きで取得する。
	ListDetailsByStudent(ctx context.Context, studentID int64) ([]model.EnrollmentWithDetails, error)

	// ListDetailsByCourse はコースの受講者一覧を学生情報と進捗付きで取得する。
	ListDetailsByCourse(ctx context.Context, courseID int64) ([]model.EnrollmentWithDetails, error)

	// Delete は指定IDの受講登録を削除する。
	Delete(ctx context.Context, id int64) error

	// DeleteByCourseID はコースの全受講登録を削除する。
	DeleteByCourseID(ctx context.Context, courseID int64) error

	// DeleteByStudentID は学生の全受講登録を削除する。
	DeleteByStudentID(ctx context.Context, studentID int64) error
}

// ProgressRepository はレッスン進捗データの永続化インターフェース。
type ProgressRepository interface {
	// FindByStudentAndLesson は学生とレッスンの組で進捗を取得する。
	FindByStudentAndLesson(ctx context.Context, studentID, lessonID int64) (*model.Progress, error)

	// Create は進捗を作成し、採番されたIDをprogress.IDに設定する。
	// 同じ学生とレッスンの行が既にある場合は作成せずfalseを返す。
	Create(ctx context.Context, progress *model.Progress) (bool, error)

	// Update は完了状態と完了日時を更新する。
	Update(ctx context.Context, progress *model.Progress) error

	// CountCompleted は学生がコース内で完了したレッスン数を返す。
	CountCompleted(ctx context.Context, studentID, courseID int64) (int, error)

	// ListDetailsByStudent は学生の全進捗をレッスン・コース情報付きで取得する。
	ListDetailsByStudent(ctx context.Context, studentID int64) ([]model.ProgressWithDetails, error)

	// ListDetailsByStudentAndCourse は学生のコース内の進捗をレッスン順で取得する。
	ListDetailsByStudentAndCourse(ctx context.Context, studentID, courseID int64) ([]model.ProgressWithDetails, error)

	// DeleteByStudentAndCourse は学生のコース内の進捗を削除し、削除件数を返す。
	DeleteByStudentAndCourse(ctx context.Context, studentID, courseID int64) (int64, error)

	// DeleteByCourseID はコースの全進捗を削除する。
	DeleteByCourseID(ctx context.Context, courseID int64) error

	// DeleteByStudentID は学生の全進捗を削除する。
	DeleteByStudentID(ctx context.Context, studentID int64) error
}
