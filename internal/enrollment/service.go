// Package enrollment は受講登録とレッスン進捗のドメインロジックを提供する。
//
// 学生とコース、学生とレッスンの組の一意性はデータベースの一意制約で保証し、
// 競合時の一意制約違反は重複エラーまたは冪等な成功として扱う。
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/coursehub/internal/metrics"
	"github.com/hitoshi/coursehub/internal/model"
	"github.com/hitoshi/coursehub/internal/repository"
)

// CourseFinder はコースをIDで取得する。
type CourseFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Course, error)
}

// ServiceDeps は受講サービスの依存関係。
type ServiceDeps struct {
	Courses     CourseFinder
	Lessons     repository.LessonRepository
	Enrollments repository.EnrollmentRepository
	Progress    repository.ProgressRepository
	Users       repository.UserRepository
	Tx          repository.TxRunner
	Metrics     metrics.Recorder
}

// Service は受講登録と進捗のビジネスロジックを提供する。
type Service struct {
	courses     CourseFinder
	lessons     repository.LessonRepository
	enrollments repository.EnrollmentRepository
	progress    repository.ProgressRepository
	users       repository.UserRepository
	tx          repository.TxRunner
	metrics     metrics.Recorder
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(deps ServiceDeps) *Service {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &Service{
		courses:     deps.Courses,
		lessons:     deps.Lessons,
		enrollments: deps.Enrollments,
		progress:    deps.Progress,
		users:       deps.Users,
		tx:          deps.Tx,
		metrics:     rec,
		now:         time.Now,
	}
}

// currentStudent は認証主体に対応する学生ユーザーを取得する。
func (s *Service) currentStudent(ctx context.Context, p model.Principal) (*model.User, error) {
	if !p.HasRole(model.RoleStudent) {
		return nil, model.NewNotStudentError()
	}
	user, err := s.users.FindByEmail(ctx, p.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(p.Subject)
	}
	return user, nil
}

func (s *Service) requireCourse(ctx context.Context, courseID int64) (*model.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}
	return course, nil
}

// Enroll は学生を公開済みコースに受講登録する。
// 学生ロールなし、コース不在、非公開、登録済みはそれぞれ別のエラーを返す。
func (s *Service) Enroll(ctx context.Context, p model.Principal, courseID int64) (*model.Enrollment, error) {
	student, err := s.currentStudent(ctx, p)
	if err != nil {
		return nil, err
	}

	var enrollment *model.Enrollment
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		course, err := s.requireCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if !course.Published {
			return model.NewCourseNotPublishedError()
		}

		existing, err := s.enrollments.FindByStudentAndCourse(ctx, student.ID, courseID)
		if err != nil {
			return err
		}
		if existing != nil {
			return model.NewAlreadyEnrolledError()
		}

		enrollment = &model.Enrollment{
			StudentID:  student.ID,
			CourseID:   courseID,
			EnrolledAt: s.now(),
			Active:     true,
		}
		if err := s.enrollments.Create(ctx, enrollment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.NewAlreadyEnrolledError()
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEnrollment("enroll")
	slog.Info("student enrolled",
		slog.Int64("student_id", student.ID),
		slog.Int64("course_id", courseID),
	)
	return enrollment, nil
}

// Unenroll は受講登録を解除する。
// 削除順序: progress → enrollment（1トランザクション）
func (s *Service) Unenroll(ctx context.Context, p model.Principal, courseID int64) error {
	student, err := s.currentStudent(ctx, p)
	if err != nil {
		return err
	}

	var removedProgress int64
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.requireCourse(ctx, courseID); err != nil {
			return err
		}

		enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, student.ID, courseID)
		if err != nil {
			return err
		}
		if enrollment == nil {
			return model.NewEnrollmentNotFoundError()
		}

		removedProgress, err = s.progress.DeleteByStudentAndCourse(ctx, student.ID, courseID)
		if err != nil {
			return err
		}
		return s.enrollments.Delete(ctx, enrollment.ID)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordEnrollment("unenroll")
	slog.Info("student unenrolled",
		slog.Int64("student_id", student.ID),
		slog.Int64("course_id", courseID),
		slog.Int64("progress_removed", removedProgress),
	)
	return nil
}

// ListMine は主体の受講一覧を進捗付きで返す。
func (s *Service) ListMine(ctx context.Context, p model.Principal) ([]model.EnrollmentWithDetails, error) {
	student, err := s.currentStudent(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.enrollments.ListDetailsByStudent(ctx, student.ID)
}

// ListForCourse はコースの受講者一覧を進捗付きで返す。
func (s *Service) ListForCourse(ctx context.Context, courseID int64) ([]model.EnrollmentWithDetails, error) {
	if _, err := s.requireCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return s.enrollments.ListDetailsByCourse(ctx, courseID)
}
