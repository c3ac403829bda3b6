package course

import (
	"context"
	"log/slog"

	"github.com/hitoshi/coursehub/internal/model"
)

// LessonInput はレッスン作成・更新の入力。
// OrderIndexがnilの場合、作成時はコース内の最大値+1、更新時は現在値を維持する。
type LessonInput struct {
	Title               string
	Content             string
	VideoURL            *string
	DurationMinutes     int
	OrderIndex          *int
	AdditionalResources *string
}

func lessonWithCourse(lesson model.Lesson, course *model.CourseWithDetails) model.LessonWithCourse {
	return model.LessonWithCourse{
		Lesson:     lesson,
		Course:     course.Course,
		Instructor: course.Instructor,
	}
}

// ListLessons はコースのレッスンをorder_index順で返す。
// コースの可視性はGetと同じ規則に従う。
func (s *Service) ListLessons(ctx context.Context, p model.Principal, courseID int64) ([]model.LessonWithCourse, error) {
	course, err := s.visibleCourse(ctx, p, courseID)
	if err != nil {
		return nil, err
	}

	lessons, err := s.lessons.ListByCourseID(ctx, courseID)
	if err != nil {
		return nil, err
	}

	result := make([]model.LessonWithCourse, 0, len(lessons))
	for _, l := range lessons {
		result = append(result, lessonWithCourse(l, course))
	}
	return result, nil
}

// GetLesson はパスのコースに属するレッスンを返す。
func (s *Service) GetLesson(ctx context.Context, p model.Principal, courseID, lessonID int64) (*model.LessonWithCourse, error) {
	course, err := s.visibleCourse(ctx, p, courseID)
	if err != nil {
		return nil, err
	}

	lesson, err := s.lessons.FindByIDAndCourseID(ctx, lessonID, courseID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, model.NewLessonNotInCourseError(lessonID, courseID)
	}

	result := lessonWithCourse(*lesson, course)
	return &result, nil
}

// CreateLesson はコースにレッスンを追加する。
// order_index未指定時の採番と作成は同一トランザクションで行う。
func (s *Service) CreateLesson(ctx context.Context, courseID int64, in LessonInput) (*model.LessonWithCourse, error) {
	var result model.LessonWithCourse
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		course, err := s.courses.FindDetailsByID(ctx, courseID)
		if err != nil {
			return err
		}
		if course == nil {
			return model.NewCourseNotFoundError(courseID)
		}

		content, err := s.sanitizeRequired("content", in.Content, minContentLength)
		if err != nil {
			return err
		}

		orderIndex := 0
		if in.OrderIndex != nil {
			orderIndex = *in.OrderIndex
		} else {
			maxIndex, err := s.lessons.MaxOrderIndex(ctx, courseID)
			if err != nil {
				return err
			}
			orderIndex = maxIndex + 1
		}

		now := s.now()
		lesson := &model.Lesson{
			CourseID:            courseID,
			Title:               in.Title,
			Content:             content,
			VideoURL:            in.VideoURL,
			DurationMinutes:     in.DurationMinutes,
			OrderIndex:          orderIndex,
			AdditionalResources: s.sanitizeOptional(in.AdditionalResources),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.lessons.Create(ctx, lesson); err != nil {
			return err
		}

		result = lessonWithCourse(*lesson, course)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("lesson created",
		slog.Int64("course_id", courseID),
		slog.Int64("lesson_id", result.ID),
		slog.Int("order_index", result.OrderIndex),
	)
	return &result, nil
}

// UpdateLesson はレッスンの内容を置き換える。
func (s *Service) UpdateLesson(ctx context.Context, courseID, lessonID int64, in LessonInput) (*model.LessonWithCourse, error) {
	course, err := s.courses.FindDetailsByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	lesson, err := s.lessons.FindByIDAndCourseID(ctx, lessonID, courseID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, model.NewLessonNotInCourseError(lessonID, courseID)
	}

	content, err := s.sanitizeRequired("content", in.Content, minContentLength)
	if err != nil {
		return nil, err
	}

	lesson.Title = in.Title
	lesson.Content = content
	lesson.VideoURL = in.VideoURL
	lesson.DurationMinutes = in.DurationMinutes
	if in.OrderIndex != nil {
		lesson.OrderIndex = *in.OrderIndex
	}
	lesson.AdditionalResources = s.sanitizeOptional(in.AdditionalResources)
	lesson.UpdatedAt = s.now()

	if err := s.lessons.Update(ctx, lesson); err != nil {
		return nil, err
	}

	result := lessonWithCourse(*lesson, course)
	return &result, nil
}

// DeleteLesson はパスのコースに属するレッスンを削除する。
// 進捗はON DELETE CASCADEで削除される。
func (s *Service) DeleteLesson(ctx context.Context, courseID, lessonID int64) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return err
	}
	if course == nil {
		return model.NewCourseNotFoundError(courseID)
	}

	lesson, err := s.lessons.FindByIDAndCourseID(ctx, lessonID, courseID)
	if err != nil {
		return err
	}
	if lesson == nil {
		return model.NewLessonNotInCourseError(lessonID, courseID)
	}

	if err := s.lessons.Delete(ctx, lessonID); err != nil {
		return err
	}

	slog.Info("lesson deleted",
		slog.Int64("course_id", courseID),
		slog.Int64("lesson_id", lessonID),
	)
	return nil
}

func (s *Service) sanitizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	sanitized := s.sanitizer.Sanitize(*v)
	return &sanitized
}
