// Package course はコースとレッスンの管理に関するドメインロジックを提供する。
//
// 所有者・管理者の認可はハンドラーがauthzで事前に判定する。
// このパッケージは可視性（非公開コースを誰が見られるか）と整合性を扱う。
package course

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/coursehub/internal/model"
	"github.com/hitoshi/coursehub/internal/repository"
	"github.com/hitoshi/coursehub/internal/security"
)

// サニタイズ後の本文に求める最小文字数。リクエスト検証と同じ値を使う。
const (
	minDescriptionLength = 10
	minContentLength     = 10
)

// CourseInput はコース作成・更新の入力。
type CourseInput struct {
	Title       string
	Description string
	ImageURL    *string
}

// ServiceDeps はコースサービスの依存関係。
type ServiceDeps struct {
	Courses     repository.CourseRepository
	Lessons     repository.LessonRepository
	Enrollments repository.EnrollmentRepository
	Progress    repository.ProgressRepository
	Users       repository.UserRepository
	Tx          repository.TxRunner
	Sanitizer   security.Sanitizer
}

// Service はコースとレッスンのビジネスロジックを提供する。
type Service struct {
	courses     repository.CourseRepository
	lessons     repository.LessonRepository
	enrollments repository.EnrollmentRepository
	progress    repository.ProgressRepository
	users       repository.UserRepository
	tx          repository.TxRunner
	sanitizer   security.Sanitizer
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(deps ServiceDeps) *Service {
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = security.NewContentSanitizer()
	}
	return &Service{
		courses:     deps.Courses,
		lessons:     deps.Lessons,
		enrollments: deps.Enrollments,
		progress:    deps.Progress,
		users:       deps.Users,
		tx:          deps.Tx,
		sanitizer:   sanitizer,
		now:         time.Now,
	}
}

// currentUser は認証主体に対応するユーザーを取得する。
func (s *Service) currentUser(ctx context.Context, p model.Principal) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, p.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(p.Subject)
	}
	return user, nil
}

// sanitizeRequired は必須本文をサニタイズし、除去後も最小文字数を満たすかを検証する。
func (s *Service) sanitizeRequired(field, raw string, minLen int) (string, error) {
	sanitized := s.sanitizer.Sanitize(raw)
	if sanitized == "" {
		return "", model.NewValidationError(map[string]string{field: "must not be blank"})
	}
	if utf8.RuneCountInString(sanitized) < minLen {
		return "", model.NewValidationError(map[string]string{
			field: fmt.Sprintf("length must be at least %d characters", minLen),
		})
	}
	return sanitized, nil
}

// canSeeUnpublished は主体が指定インストラクターの非公開コースを閲覧できるかを返す。
func (s *Service) canSeeUnpublished(ctx context.Context, p model.Principal, instructorID int64) (bool, error) {
	if p.IsAdmin() {
		return true, nil
	}
	if !p.Authenticated() {
		return false, nil
	}
	user, err := s.users.FindByEmail(ctx, p.Subject)
	if err != nil {
		return false, fmt.Errorf("failed to resolve current user: %w", err)
	}
	return user != nil && user.ID == instructorID, nil
}

// visibleCourse はコースを取得し、主体から見えない場合は存在しないものとして扱う。
func (s *Service) visibleCourse(ctx context.Context, p model.Principal, id int64) (*model.CourseWithDetails, error) {
	course, err := s.courses.FindDetailsByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(id)
	}
	if course.Published {
		return course, nil
	}
	ok, err := s.canSeeUnpublished(ctx, p, course.InstructorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewCourseNotFoundError(id)
	}
	return course, nil
}

// List は主体から見えるコースをレッスン一覧付きで返す。
// 管理者は全件、インストラクターは公開コースと自分の非公開コース、それ以外は公開コースのみ。
func (s *Service) List(ctx context.Context, p model.Principal) ([]model.CourseWithDetails, error) {
	scope := repository.CourseScope{}
	switch {
	case p.IsAdmin():
		scope.IncludeUnpublished = true
	case p.Authenticated() && p.HasRole(model.RoleInstructor):
		user, err := s.users.FindByEmail(ctx, p.Subject)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve current user: %w", err)
		}
		if user != nil {
			scope.OwnerID = user.ID
		}
	}

	courses, err := s.courses.ListDetails(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return []model.CourseWithDetails{}, nil
	}

	ids := make([]int64, len(courses))
	for i := range courses {
		ids[i] = courses[i].ID
	}
	lessons, err := s.lessons.ListByCourseIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		courses[i].Lessons = lessons[courses[i].ID]
	}
	return courses, nil
}

// Get はコースをレッスン一覧付きで返す。
// 非公開コースは所有者と管理者以外には存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, p model.Principal, id int64) (*model.CourseWithDetails, error) {
	course, err := s.visibleCourse(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.withLessons(ctx, course)
}

func (s *Service) withLessons(ctx context.Context, course *model.CourseWithDetails) (*model.CourseWithDetails, error) {
	lessons, err := s.lessons.ListByCourseID(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	course.Lessons = lessons
	return course, nil
}

// Create は主体をインストラクターとする非公開コースを作成する。
func (s *Service) Create(ctx context.Context, p model.Principal, in CourseInput) (*model.CourseWithDetails, error) {
	user, err := s.currentUser(ctx, p)
	if err != nil {
		return nil, err
	}

	description, err := s.sanitizeRequired("description", in.Description, minDescriptionLength)
	if err != nil {
		return nil, err
	}

	now := s.now()
	course := &model.Course{
		Title:        in.Title,
		Description:  description,
		ImageURL:     in.ImageURL,
		InstructorID: user.ID,
		Published:    false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, err
	}

	slog.Info("course created",
		slog.Int64("course_id", course.ID),
		slog.Int64("instructor_id", user.ID),
	)

	return &model.CourseWithDetails{
		Course: *course,
		Instructor: model.UserSummary{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		},
		Lessons: []model.Lesson{},
	}, nil
}

// Update はタイトルと説明を更新する。画像URLは指定された場合のみ更新する。
func (s *Service) Update(ctx context.Context, id int64, in CourseInput) (*model.CourseWithDetails, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(id)
	}

	description, err := s.sanitizeRequired("description", in.Description, minDescriptionLength)
	if err != nil {
		return nil, err
	}

	course.Title = in.Title
	course.Description = description
	if in.ImageURL != nil {
		course.ImageURL = in.ImageURL
	}
	course.UpdatedAt = s.now()

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, err
	}

	details, err := s.courses.FindDetailsByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, model.NewCourseNotFoundError(id)
	}
	return s.withLessons(ctx, details)
}

// Publish はコースを公開し、公開日時を記録する。
func (s *Service) Publish(ctx context.Context, id int64) error {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if course == nil {
		return model.NewCourseNotFoundError(id)
	}

	if err := s.courses.Publish(ctx, id, s.now()); err != nil {
		return err
	}

	slog.Info("course published", slog.Int64("course_id", id))
	return nil
}

// Delete はコースを削除する。
// 削除順序: progress → enrollments → lessons → course（1トランザクション）
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		course, err := s.courses.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if course == nil {
			return model.NewCourseNotFoundError(id)
		}

		if err := s.progress.DeleteByCourseID(ctx, id); err != nil {
			return err
		}
		if err := s.enrollments.DeleteByCourseID(ctx, id); err != nil {
			return err
		}
		if err := s.lessons.DeleteByCourseID(ctx, id); err != nil {
			return err
		}
		return s.courses.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	slog.Info("course deleted", slog.Int64("course_id", id))
	return nil
}
