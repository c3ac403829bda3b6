package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/coursehub/internal/model"
)

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db DBTX
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db DBTX) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

const courseColumns = `c.id, c.title, c.description, c.image_url, c.instructor_id,
	       c.published, c.created_at, c.updated_at, c.published_at`

// selectCourseDetails はコースにインストラクターと受講者数を結合する。
const selectCourseDetails = `
	SELECT ` + courseColumns + `,
	       u.id, u.email, u.first_name, u.last_name,
	       (SELECT count(*) FROM enrollments e WHERE e.course_id = c.id)
	FROM courses c
	JOIN users u ON u.id = c.instructor_id`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourseInto(s rowScanner, c *model.Course, extra ...any) error {
	var imageURL sql.NullString
	var publishedAt sql.NullTime
	dest := append([]any{
		&c.ID, &c.Title, &c.Description, &imageURL, &c.InstructorID,
		&c.Published, &c.CreatedAt, &c.UpdatedAt, &publishedAt,
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return err
	}
	c.ImageURL = nullStringPtr(imageURL)
	c.PublishedAt = nullTimePtr(publishedAt)
	return nil
}

func scanCourseDetails(s rowScanner) (*model.CourseWithDetails, error) {
	d := &model.CourseWithDetails{}
	err := scanCourseInto(s, &d.Course,
		&d.Instructor.ID, &d.Instructor.Email, &d.Instructor.FirstName, &d.Instructor.LastName,
		&d.EnrollmentCount,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id int64) (*model.Course, error) {
	course := &model.Course{}
	err := scanCourseInto(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses c WHERE c.id = $1`, id), course)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course by ID: %w", err)
	}
	return course, nil
}

// FindDetailsByID はインストラクター情報と受講者数を結合したコースを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindDetailsByID(ctx context.Context, id int64) (*model.CourseWithDetails, error) {
	d, err := scanCourseDetails(conn(ctx, r.db).QueryRowContext(ctx,
		selectCourseDetails+` WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course details: %w", err)
	}
	return d, nil
}

// ListDetails はscopeに該当するコースをcreated_at降順で取得する。
func (r *PostgresCourseRepo) ListDetails(ctx context.Context, scope CourseScope) ([]model.CourseWithDetails, error) {
	query := selectCourseDetails
	var args []any
	switch {
	case scope.IncludeUnpublished:
	case scope.OwnerID != 0:
		query += ` WHERE c.published = TRUE OR c.instructor_id = $1`
		args = append(args, scope.OwnerID)
	default:
		query += ` WHERE c.published = TRUE`
	}
	query += ` ORDER BY c.created_at DESC, c.id DESC`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []model.CourseWithDetails
	for rows.Next() {
		d, err := scanCourseDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}
	return courses, nil
}

// CountByInstructor は指定ユーザーが担当するコース数を返す。
func (r *PostgresCourseRepo) CountByInstructor(ctx context.Context, instructorID int64) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT count(*) FROM courses WHERE instructor_id = $1`, instructorID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count courses by instructor: %w", err)
	}
	return count, nil
}

// Create はコースを作成し、採番されたIDをcourse.IDに設定する。
func (r *PostgresCourseRepo) Create(ctx context.Context, course *model.Course) error {
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO courses (title, description, image_url, instructor_id, published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		course.Title, course.Description, course.ImageURL, course.InstructorID,
		course.Published, course.CreatedAt, course.UpdatedAt,
	).Scan(&course.ID)
	if err != nil {
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

// Update はタイトル、説明、画像URL、更新日時を更新する。
func (r *PostgresCourseRepo) Update(ctx context.Context, course *model.Course) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE courses SET title = $2, description = $3, image_url = $4, updated_at = $5 WHERE id = $1`,
		course.ID, course.Title, course.Description, course.ImageURL, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	return nil
}

// Publish はコースを公開状態にしてpublished_atを設定する。
func (r *PostgresCourseRepo) Publish(ctx context.Context, id int64, at time.Time) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE courses SET published = TRUE, published_at = $2, updated_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to publish course: %w", err)
	}
	return nil
}

// Delete は指定IDのコースを削除する。
func (r *PostgresCourseRepo) Delete(ctx context.Context, id int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	return nil
}

var _ CourseRepository = (*PostgresCourseRepo)(nil)

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
