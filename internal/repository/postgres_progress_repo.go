package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/coursehub/internal/model"
)

// PostgresProgressRepo はPostgreSQLを使用したレッスン進捗リポジトリ。
type PostgresProgressRepo struct {
	db DBTX
}

// NewPostgresProgressRepo はPostgresProgressRepoを生成する。
func NewPostgresProgressRepo(db DBTX) *PostgresProgressRepo {
	return &PostgresProgressRepo{db: db}
}

// selectProgressDetails は進捗にレッスン・コース・インストラクターを結合する。
const selectProgressDetails = `
	SELECT p.id, p.student_id, p.lesson_id, p.course_id, p.completed, p.completed_at,
	       ` + lessonColumns + `,
	       ` + courseColumns + `,
	       i.id, i.email, i.first_name, i.last_name
	FROM progress p
	JOIN lessons l ON l.id = p.lesson_id
	JOIN courses c ON c.id = p.course_id
	JOIN users i ON i.id = c.instructor_id`

func scanProgressDetails(s rowScanner) (*model.ProgressWithDetails, error) {
	d := &model.ProgressWithDetails{}
	var completedAt, publishedAt sql.NullTime
	var videoURL, resources, imageURL sql.NullString
	err := s.Scan(
		&d.ID, &d.StudentID, &d.LessonID, &d.CourseID, &d.Completed, &completedAt,
		&d.Lesson.ID, &d.Lesson.CourseID, &d.Lesson.Title, &d.Lesson.Content, &videoURL,
		&d.Lesson.DurationMinutes, &d.Lesson.OrderIndex, &resources, &d.Lesson.CreatedAt, &d.Lesson.UpdatedAt,
		&d.Course.ID, &d.Course.Title, &d.Course.Description, &imageURL, &d.Course.InstructorID,
		&d.Course.Published, &d.Course.CreatedAt, &d.Course.UpdatedAt, &publishedAt,
		&d.Instructor.ID, &d.Instructor.Email, &d.Instructor.FirstName, &d.Instructor.LastName,
	)
	if err != nil {
		return nil, err
	}
	d.CompletedAt = nullTimePtr(completedAt)
	d.Lesson.VideoURL = nullStringPtr(videoURL)
	d.Lesson.AdditionalResources = nullStringPtr(resources)
	d.Course.ImageURL = nullStringPtr(imageURL)
	d.Course.PublishedAt = nullTimePtr(publishedAt)
	return d, nil
}

// FindByStudentAndLesson は学生とレッスンの組で進捗を取得する。見つからない場合はnilを返す。
func (r *PostgresProgressRepo) FindByStudentAndLesson(ctx context.Context, studentID, lessonID int64) (*model.Progress, error) {
	p := &model.Progress{}
	var completedAt sql.NullTime
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, student_id, lesson_id, course_id, completed, completed_at
		 FROM progress WHERE student_id = $1 AND lesson_id = $2`,
		studentID, lessonID,
	).Scan(&p.ID, &p.StudentID, &p.LessonID, &p.CourseID, &p.Completed, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find progress: %w", err)
	}
	p.CompletedAt = nullTimePtr(completedAt)
	return p, nil
}

// Create は進捗を作成し、採番されたIDをprogress.IDに設定する。
// 同じ学生とレッスンの行が既にある場合は何もせずfalseを返す。
// 競合してもトランザクションは中断されない。
func (r *PostgresProgressRepo) Create(ctx context.Context, progress *model.Progress) (bool, error) {
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO progress (student_id, lesson_id, course_id, completed, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (student_id, lesson_id) DO NOTHING
		 RETURNING id`,
		progress.StudentID, progress.LessonID, progress.CourseID, progress.Completed, progress.CompletedAt,
	).Scan(&progress.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert progress: %w", err)
	}
	return true, nil
}

// Update は完了状態と完了日時を更新する。
func (r *PostgresProgressRepo) Update(ctx context.Context, progress *model.Progress) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE progress SET completed = $2, completed_at = $3 WHERE id = $1`,
		progress.ID, progress.Completed, progress.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// CountCompleted は学生がコース内で完了したレッスン数を返す。
func (r *PostgresProgressRepo) CountCompleted(ctx context.Context, studentID, courseID int64) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT count(*) FROM progress WHERE student_id = $1 AND course_id = $2 AND completed = TRUE`,
		studentID, courseID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	return count, nil
}

func (r *PostgresProgressRepo) listDetails(ctx context.Context, query string, args ...any) ([]model.ProgressWithDetails, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	result := []model.ProgressWithDetails{}
	for rows.Next() {
		d, err := scanProgressDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress: %w", err)
	}
	return result, nil
}

// ListDetailsByStudent は学生の全進捗をコース、レッスン順で取得する。
func (r *PostgresProgressRepo) ListDetailsByStudent(ctx context.Context, studentID int64) ([]model.ProgressWithDetails, error) {
	return r.listDetails(ctx,
		selectProgressDetails+` WHERE p.student_id = $1 ORDER BY p.course_id, l.order_index, l.id`,
		studentID)
}

// ListDetailsByStudentAndCourse は学生のコース内の進捗をレッスン順で取得する。
func (r *PostgresProgressRepo) ListDetailsByStudentAndCourse(ctx context.Context, studentID, courseID int64) ([]model.ProgressWithDetails, error) {
	return r.listDetails(ctx,
		selectProgressDetails+` WHERE p.student_id = $1 AND p.course_id = $2 ORDER BY l.order_index, l.id`,
		studentID, courseID)
}

// DeleteByStudentAndCourse は学生のコース内の進捗を削除し、削除件数を返す。
func (r *PostgresProgressRepo) DeleteByStudentAndCourse(ctx context.Context, studentID, courseID int64) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM progress WHERE student_id = $1 AND course_id = $2`, studentID, courseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete progress: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// DeleteByCourseID はコースの全進捗を削除する。
func (r *PostgresProgressRepo) DeleteByCourseID(ctx context.Context, courseID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM progress WHERE course_id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("failed to delete progress by course: %w", err)
	}
	return nil
}

// DeleteByStudentID は学生の全進捗を削除する。
func (r *PostgresProgressRepo) DeleteByStudentID(ctx context.Context, studentID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM progress WHERE student_id = $1`, studentID)
	if err != nil {
		return fmt.Errorf("failed to delete progress by student: %w", err)
	}
	return nil
}

var _ ProgressRepository = (*PostgresProgressRepo)(nil)
