package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hitoshi/coursehub/internal/model"
)

// CompletionResult はレッスン完了記録の結果。
type CompletionResult struct {
	// Recorded は今回の呼び出しで完了状態になった場合にtrue。
	Recorded bool
	// CourseCompleted は今回の呼び出しでコースの全レッスンが完了した場合にtrue。
	CourseCompleted bool
}

// MarkLessonCompleted はレッスンを完了済みにする。
// 受講登録がない場合はエラー。完了済みのレッスンに対しては何も変更しない。
// 最終アクセス日時は完了済みかどうかに関わらず更新する。
func (s *Service) MarkLessonCompleted(ctx context.Context, p model.Principal, lessonID int64) (*CompletionResult, error) {
	student, err := s.currentStudent(ctx, p)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		lesson, err := s.lessons.FindByID(ctx, lessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return model.NewLessonNotFoundError(lessonID)
		}

		enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, student.ID, lesson.CourseID)
		if err != nil {
			return err
		}
		if enrollment == nil {
			return model.NewEnrollmentNotFoundError()
		}

		now := s.now()
		if err := s.enrollments.TouchLastAccessed(ctx, enrollment.ID, now); err != nil {
			return err
		}

		progress, err := s.progress.FindByStudentAndLesson(ctx, student.ID, lessonID)
		if err != nil {
			return err
		}
		if progress != nil && progress.Completed {
			return nil
		}

		if progress == nil {
			progress = &model.Progress{
				StudentID:   student.ID,
				LessonID:    lessonID,
				CourseID:    lesson.CourseID,
				Completed:   true,
				CompletedAt: &now,
			}
			inserted, err := s.progress.Create(ctx, progress)
			if err != nil {
				return err
			}
			if !inserted {
				// 並行して完了済みになった
				return nil
			}
		} else {
			progress.Completed = true
			progress.CompletedAt = &now
			if err := s.progress.Update(ctx, progress); err != nil {
				return err
			}
		}
		result.Recorded = true

		completed, err := s.progress.CountCompleted(ctx, student.ID, lesson.CourseID)
		if err != nil {
			return err
		}
		total, err := s.lessons.CountByCourseID(ctx, lesson.CourseID)
		if err != nil {
			return err
		}
		if total > 0 && completed >= total {
			result.CourseCompleted, err = s.enrollments.MarkCompleted(ctx, enrollment.ID, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Recorded {
		s.metrics.RecordLessonCompleted()
		slog.Info("lesson completed",
			slog.Int64("student_id", student.ID),
			slog.Int64("lesson_id", lessonID),
		)
	}
	if result.CourseCompleted {
		s.metrics.RecordCourseCompleted()
		slog.Info("course completed",
			slog.Int64("student_id", student.ID),
			slog.Int64("lesson_id", lessonID),
		)
	}
	return result, nil
}

// ListMyProgress は主体の全進捗を返す。
func (s *Service) ListMyProgress(ctx context.Context, p model.Principal) ([]model.ProgressWithDetails, error) {
	student, err := s.currentStudent(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.progress.ListDetailsByStudent(ctx, student.ID)
}

// ListMyProgressInCourse は受講中のコースにおける主体の進捗を返す。
func (s *Service) ListMyProgressInCourse(ctx context.Context, p model.Principal, courseID int64) ([]model.ProgressWithDetails, error) {
	student, err := s.currentStudent(ctx, p)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireCourse(ctx, courseID); err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, student.ID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, model.NewEnrollmentNotFoundError()
	}
	return s.progress.ListDetailsByStudentAndCourse(ctx, student.ID, courseID)
}

// StudentProgressInCourse は指定学生のコース内の進捗を返す。
// 所有者・管理者の認可は呼び出し側で行う。
func (s *Service) StudentProgressInCourse(ctx context.Context, courseID, studentID int64) ([]model.ProgressWithDetails, error) {
	if _, err := s.requireCourse(ctx, courseID); err != nil {
		return nil, err
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find student: %w", err)
	}
	if student == nil {
		return nil, model.NewUserNotFoundError(strconv.FormatInt(studentID, 10))
	}
	return s.progress.ListDetailsByStudentAndCourse(ctx, studentID, courseID)
}
