package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/coursehub/internal/model"
)

// PostgresLessonRepo はPostgreSQLを使用したレッスンリポジトリ。
type PostgresLessonRepo struct {
	db DBTX
}

// NewPostgresLessonRepo はPostgresLessonRepoを生成する。
func NewPostgresLessonRepo(db DBTX) *PostgresLessonRepo {
	return &PostgresLessonRepo{db: db}
}

const lessonColumns = `l.id, l.course_id, l.title, l.content, l.video_url, l.duration_minutes,
	       l.order_index, l.additional_resources, l.created_at, l.updated_at`

func scanLessonInto(s rowScanner, l *model.Lesson, extra ...any) error {
	var videoURL, resources sql.NullString
	dest := append([]any{
		&l.ID, &l.CourseID, &l.Title, &l.Content, &videoURL, &l.DurationMinutes,
		&l.OrderIndex, &resources, &l.CreatedAt, &l.UpdatedAt,
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return err
	}
	l.VideoURL = nullStringPtr(videoURL)
	l.AdditionalResources = nullStringPtr(resources)
	return nil
}

func (r *PostgresLessonRepo) findOne(ctx context.Context, query string, args ...any) (*model.Lesson, error) {
	lesson := &model.Lesson{}
	err := scanLessonInto(conn(ctx, r.db).QueryRowContext(ctx, query, args...), lesson)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

// FindByID は指定IDのレッスンを取得する。見つからない場合はnilを返す。
func (r *PostgresLessonRepo) FindByID(ctx context.Context, id int64) (*model.Lesson, error) {
	lesson, err := r.findOne(ctx, `SELECT `+lessonColumns+` FROM lessons l WHERE l.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find lesson by ID: %w", err)
	}
	return lesson, nil
}

// FindByIDAndCourseID は指定コースに属するレッスンを取得する。見つからない場合はnilを返す。
func (r *PostgresLessonRepo) FindByIDAndCourseID(ctx context.Context, id, courseID int64) (*model.Lesson, error) {
	lesson, err := r.findOne(ctx,
		`SELECT `+lessonColumns+` FROM lessons l WHERE l.id = $1 AND l.course_id = $2`, id, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to find lesson by ID and course: %w", err)
	}
	return lesson, nil
}

// ListByCourseID はコースのレッスン一覧をorder_index、id昇順で取得する。
func (r *PostgresLessonRepo) ListByCourseID(ctx context.Context, courseID int64) ([]model.Lesson, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons l WHERE l.course_id = $1 ORDER BY l.order_index ASC, l.id ASC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	lessons := []model.Lesson{}
	for rows.Next() {
		var l model.Lesson
		if err := scanLessonInto(rows, &l); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lessons: %w", err)
	}
	return lessons, nil
}

// ListByCourseIDs は複数コースのレッスンをコースID単位で取得する。
// 各コースのスライスはorder_index、id昇順に並ぶ。
func (r *PostgresLessonRepo) ListByCourseIDs(ctx context.Context, courseIDs []int64) (map[int64][]model.Lesson, error) {
	result := make(map[int64][]model.Lesson, len(courseIDs))
	if len(courseIDs) == 0 {
		return result, nil
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons l WHERE l.course_id = ANY($1)
		 ORDER BY l.course_id, l.order_index ASC, l.id ASC`,
		pq.Array(courseIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons by courses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.Lesson
		if err := scanLessonInto(rows, &l); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		result[l.CourseID] = append(result[l.CourseID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lessons: %w", err)
	}
	return result, nil
}

// MaxOrderIndex はコース内の最大order_indexを返す。レッスンがない場合は0を返す。
func (r *PostgresLessonRepo) MaxOrderIndex(ctx context.Context, courseID int64) (int, error) {
	var max int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(order_index), 0) FROM lessons WHERE course_id = $1`, courseID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max order index: %w", err)
	}
	return max, nil
}

// CountByCourseID はコースのレッスン数を返す。
func (r *PostgresLessonRepo) CountByCourseID(ctx context.Context, courseID int64) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT count(*) FROM lessons WHERE course_id = $1`, courseID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lessons: %w", err)
	}
	return count, nil
}

// Create はレッスンを作成し、採番されたIDをlesson.IDに設定する。
func (r *PostgresLessonRepo) Create(ctx context.Context, lesson *model.Lesson) error {
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO lessons (course_id, title, content, video_url, duration_minutes, order_index,
		                      additional_resources, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		lesson.CourseID, lesson.Title, lesson.Content, lesson.VideoURL, lesson.DurationMinutes,
		lesson.OrderIndex, lesson.AdditionalResources, lesson.CreatedAt, lesson.UpdatedAt,
	).Scan(&lesson.ID)
	if err != nil {
		return fmt.Errorf("failed to insert lesson: %w", err)
	}
	return nil
}

// Update はレッスンの内容を更新する。
func (r *PostgresLessonRepo) Update(ctx context.Context, lesson *model.Lesson) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE lessons SET title = $2, content = $3, video_url = $4, duration_minutes = $5,
		                    order_index = $6, additional_resources = $7, updated_at = $8
		 WHERE id = $1`,
		lesson.ID, lesson.Title, lesson.Content, lesson.VideoURL, lesson.DurationMinutes,
		lesson.OrderIndex, lesson.AdditionalResources, lesson.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	return nil
}

// Delete は指定IDのレッスンを削除する。紐付く進捗はCASCADE削除される。
func (r *PostgresLessonRepo) Delete(ctx context.Context, id int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lesson: %w", err)
	}
	return nil
}

// DeleteByCourseID はコースの全レッスンを削除する。
func (r *PostgresLessonRepo) DeleteByCourseID(ctx context.Context, courseID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM lessons WHERE course_id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("failed to delete lessons by course: %w", err)
	}
	return nil
}

var _ LessonRepository = (*PostgresLessonRepo)(nil)
