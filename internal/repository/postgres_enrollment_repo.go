package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/coursehub/internal/model"
)

// PostgresEnrollmentRepo はPostgreSQLを使用した受講登録リポジトリ。
type PostgresEnrollmentRepo struct {
	db DBTX
}

// NewPostgresEnrollmentRepo はPostgresEnrollmentRepoを生成する。
func NewPostgresEnrollmentRepo(db DBTX) *PostgresEnrollmentRepo {
	return &PostgresEnrollmentRepo{db: db}
}

// selectEnrollmentDetails は受講登録に学生・コース・インストラクターと進捗件数を結合する。
const selectEnrollmentDetails = `
	SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.last_accessed_at, e.active, e.completed_at,
	       s.id, s.email, s.first_name, s.last_name,
	       ` + courseColumns + `,
	       i.id, i.email, i.first_name, i.last_name,
	       (SELECT count(*) FROM lessons l WHERE l.course_id = c.id),
	       (SELECT count(*) FROM progress p
	         WHERE p.student_id = e.student_id AND p.course_id = c.id AND p.completed = TRUE)
	FROM enrollments e
	JOIN users s ON s.id = e.student_id
	JOIN courses c ON c.id = e.course_id
	JOIN users i ON i.id = c.instructor_id`

func scanEnrollmentDetails(s rowScanner) (*model.EnrollmentWithDetails, error) {
	d := &model.EnrollmentWithDetails{}
	var lastAccessed, completedAt, publishedAt sql.NullTime
	var imageURL sql.NullString
	err := s.Scan(
		&d.ID, &d.StudentID, &d.CourseID, &d.EnrolledAt, &lastAccessed, &d.Active, &completedAt,
		&d.Student.ID, &d.Student.Email, &d.Student.FirstName, &d.Student.LastName,
		&d.Course.ID, &d.Course.Title, &d.Course.Description, &imageURL, &d.Course.InstructorID,
		&d.Course.Published, &d.Course.CreatedAt, &d.Course.UpdatedAt, &publishedAt,
		&d.Instructor.ID, &d.Instructor.Email, &d.Instructor.FirstName, &d.Instructor.LastName,
		&d.TotalLessons, &d.CompletedLessons,
	)
	if err != nil {
		return nil, err
	}
	d.LastAccessedAt = nullTimePtr(lastAccessed)
	d.CompletedAt = nullTimePtr(completedAt)
	d.Course.ImageURL = nullStringPtr(imageURL)
	d.Course.PublishedAt = nullTimePtr(publishedAt)
	return d, nil
}

// FindByStudentAndCourse は学生とコースの組で受講登録を取得する。見つからない場合はnilを返す。
func (r *PostgresEnrollmentRepo) FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	var lastAccessed, completedAt sql.NullTime
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, student_id, course_id, enrolled_at, last_accessed_at, active, completed_at
		 FROM enrollments WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	).Scan(&e.ID, &e.StudentID, &e.CourseID, &e.EnrolledAt, &lastAccessed, &e.Active, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment: %w", err)
	}
	e.LastAccessedAt = nullTimePtr(lastAccessed)
	e.CompletedAt = nullTimePtr(completedAt)
	return e, nil
}

// Create は受講登録を作成し、採番されたIDをenrollment.IDに設定する。
func (r *PostgresEnrollmentRepo) Create(ctx context.Context, enrollment *model.Enrollment) error {
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO enrollments (student_id, course_id, enrolled_at, last_accessed_at, active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		enrollment.StudentID, enrollment.CourseID, enrollment.EnrolledAt,
		enrollment.LastAccessedAt, enrollment.Active,
	).Scan(&enrollment.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert enrollment: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}
	return nil
}

// TouchLastAccessed はlast_accessed_atを更新する。
func (r *PostgresEnrollmentRepo) TouchLastAccessed(ctx context.Context, id int64, at time.Time) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE enrollments SET last_accessed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch enrollment: %w", err)
	}
	return nil
}

// MarkCompleted はcompleted_atが未設定の場合のみ設定する。設定した場合はtrueを返す。
func (r *PostgresEnrollmentRepo) MarkCompleted(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE enrollments SET completed_at = $2 WHERE id = $1 AND completed_at IS NULL`, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark enrollment completed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresEnrollmentRepo) listDetails(ctx context.Context, query string, arg int64) ([]model.EnrollmentWithDetails, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := []model.EnrollmentWithDetails{}
	for rows.Next() {
		d, err := scanEnrollmentDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}
	return enrollments, nil
}

// ListDetailsByStudent は学生の受講一覧を登録日時の新しい順で取得する。
func (r *PostgresEnrollmentRepo) ListDetailsByStudent(ctx context.Context, studentID int64) ([]model.EnrollmentWithDetails, error) {
	return r.listDetails(ctx,
		selectEnrollmentDetails+` WHERE e.student_id = $1 ORDER BY e.enrolled_at DESC, e.id DESC`, studentID)
}

// ListDetailsByCourse はコースの受講者一覧を登録日時の古い順で取得する。
func (r *PostgresEnrollmentRepo) ListDetailsByCourse(ctx context.Context, courseID int64) ([]model.EnrollmentWithDetails, error) {
	return r.listDetails(ctx,
		selectEnrollmentDetails+` WHERE e.course_id = $1 ORDER BY e.enrolled_at ASC, e.id ASC`, courseID)
}

// Delete は指定IDの受講登録を削除する。
func (r *PostgresEnrollmentRepo) Delete(ctx context.Context, id int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}
	return nil
}

// DeleteByCourseID はコースの全受講登録を削除する。
func (r *PostgresEnrollmentRepo) DeleteByCourseID(ctx context.Context, courseID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM enrollments WHERE course_id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("failed to delete enrollments by course: %w", err)
	}
	return nil
}

// DeleteByStudentID は学生の全受講登録を削除する。
func (r *PostgresEnrollmentRepo) DeleteByStudentID(ctx context.Context, studentID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM enrollments WHERE student_id = $1`, studentID)
	if err != nil {
		return fmt.Errorf("failed to delete enrollments by student: %w", err)
	}
	return nil
}

var _ EnrollmentRepository = (*PostgresEnrollmentRepo)(nil)
