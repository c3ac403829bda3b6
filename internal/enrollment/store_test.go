package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/coursehub/internal/model"
	"github.com/hitoshi/coursehub/internal/repository"
)

// memStore は一意制約を再現するインメモリのリポジトリ群。
// 受講と進捗の不変条件を状態ベースで検証するために使う。
type memStore struct {
	courses     map[int64]*model.Course
	lessons     map[int64]*model.Lesson
	users       map[int64]*model.User
	enrollments map[int64]*model.Enrollment
	progress    map[int64]*model.Progress
	nextID      int64

	// 先行するFindを素通りさせ、Createで一意制約違反を起こすためのフック
	hideEnrollments bool
	hideProgress    bool

	touched []int64
}

func newMemStore() *memStore {
	return &memStore{
		courses:     map[int64]*model.Course{},
		lessons:     map[int64]*model.Lesson{},
		users:       map[int64]*model.User{},
		enrollments: map[int64]*model.Enrollment{},
		progress:    map[int64]*model.Progress{},
		nextID:      1000,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// --- courses ---

type memCourses struct{ *memStore }

func (m memCourses) FindByID(_ context.Context, id int64) (*model.Course, error) {
	if c, ok := m.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// --- lessons ---

type memLessons struct {
	repository.LessonRepository
	*memStore
}

func (m memLessons) FindByID(_ context.Context, id int64) (*model.Lesson, error) {
	if l, ok := m.lessons[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (m memLessons) CountByCourseID(_ context.Context, courseID int64) (int, error) {
	n := 0
	for _, l := range m.lessons {
		if l.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// --- users ---

type memUsers struct {
	repository.UserRepository
	*memStore
}

func (m memUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, nil
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

// --- enrollments ---

type memEnrollments struct{ *memStore }

func (m memEnrollments) FindByStudentAndCourse(_ context.Context, studentID, courseID int64) (*model.Enrollment, error) {
	if m.hideEnrollments {
		return nil, nil
	}
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memEnrollments) Create(_ context.Context, e *model.Enrollment) error {
	for _, existing := range m.enrollments {
		if existing.StudentID == e.StudentID && existing.CourseID == e.CourseID {
			return fmt.Errorf("failed to create enrollment: %w", repository.ErrDuplicate)
		}
	}
	e.ID = m.id()
	cp := *e
	m.enrollments[e.ID] = &cp
	return nil
}

func (m memEnrollments) TouchLastAccessed(_ context.Context, id int64, at time.Time) error {
	m.memStore.touched = append(m.memStore.touched, id)
	if e, ok := m.enrollments[id]; ok {
		e.LastAccessedAt = &at
	}
	return nil
}

func (m memEnrollments) MarkCompleted(_ context.Context, id int64, at time.Time) (bool, error) {
	e, ok := m.enrollments[id]
	if !ok || e.CompletedAt != nil {
		return false, nil
	}
	e.CompletedAt = &at
	return true, nil
}

func (m memEnrollments) ListDetailsByStudent(_ context.Context, studentID int64) ([]model.EnrollmentWithDetails, error) {
	var out []model.EnrollmentWithDetails
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, model.EnrollmentWithDetails{Enrollment: *e})
		}
	}
	return out, nil
}

func (m memEnrollments) ListDetailsByCourse(_ context.Context, courseID int64) ([]model.EnrollmentWithDetails, error) {
	var out []model.EnrollmentWithDetails
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			out = append(out, model.EnrollmentWithDetails{Enrollment: *e})
		}
	}
	return out, nil
}

func (m memEnrollments) Delete(_ context.Context, id int64) error {
	delete(m.enrollments, id)
	return nil
}

func (m memEnrollments) DeleteByCourseID(_ context.Context, courseID int64) error {
	for id, e := range m.enrollments {
		if e.CourseID == courseID {
			delete(m.enrollments, id)
		}
	}
	return nil
}

func (m memEnrollments) DeleteByStudentID(_ context.Context, studentID int64) error {
	for id, e := range m.enrollments {
		if e.StudentID == studentID {
			delete(m.enrollments, id)
		}
	}
	return nil
}

// --- progress ---

type memProgress struct{ *memStore }

func (m memProgress) FindByStudentAndLesson(_ context.Context, studentID, lessonID int64) (*model.Progress, error) {
	if m.hideProgress {
		return nil, nil
	}
	for _, p := range m.progress {
		if p.StudentID == studentID && p.LessonID == lessonID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memProgress) Create(_ context.Context, p *model.Progress) (bool, error) {
	for _, existing := range m.progress {
		if existing.StudentID == p.StudentID && existing.LessonID == p.LessonID {
			return false, nil
		}
	}
	p.ID = m.id()
	cp := *p
	m.progress[p.ID] = &cp
	return true, nil
}

func (m memProgress) Update(_ context.Context, p *model.Progress) error {
	cp := *p
	m.progress[p.ID] = &cp
	return nil
}

func (m memProgress) CountCompleted(_ context.Context, studentID, courseID int64) (int, error) {
	n := 0
	for _, p := range m.progress {
		if p.StudentID == studentID && p.CourseID == courseID && p.Completed {
			n++
		}
	}
	return n, nil
}

func (m memProgress) ListDetailsByStudent(_ context.Context, studentID int64) ([]model.ProgressWithDetails, error) {
	var out []model.ProgressWithDetails
	for _, p := range m.progress {
		if p.StudentID == studentID {
			out = append(out, model.ProgressWithDetails{Progress: *p})
		}
	}
	return out, nil
}

func (m memProgress) ListDetailsByStudentAndCourse(_ context.Context, studentID, courseID int64) ([]model.ProgressWithDetails, error) {
	var out []model.ProgressWithDetails
	for _, p := range m.progress {
		if p.StudentID == studentID && p.CourseID == courseID {
			out = append(out, model.ProgressWithDetails{Progress: *p})
		}
	}
	return out, nil
}

func (m memProgress) DeleteByStudentAndCourse(_ context.Context, studentID, courseID int64) (int64, error) {
	var n int64
	for id, p := range m.progress {
		if p.StudentID == studentID && p.CourseID == courseID {
			delete(m.progress, id)
			n++
		}
	}
	return n, nil
}

func (m memProgress) DeleteByCourseID(_ context.Context, courseID int64) error {
	for id, p := range m.progress {
		if p.CourseID == courseID {
			delete(m.progress, id)
		}
	}
	return nil
}

func (m memProgress) DeleteByStudentID(_ context.Context, studentID int64) error {
	for id, p := range m.progress {
		if p.StudentID == studentID {
			delete(m.progress, id)
		}
	}
	return nil
}

var (
	_ repository.EnrollmentRepository = memEnrollments{}
	_ repository.ProgressRepository   = memProgress{}
)

// fakeTxRunner はfnがエラーを返した場合にストアをスナップショットへ戻す。
type fakeTxRunner struct {
	store *memStore
	calls int
}

func (f *fakeTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	enrollments := cloneMap(f.store.enrollments)
	progress := cloneMap(f.store.progress)
	if err := fn(ctx); err != nil {
		f.store.enrollments = enrollments
		f.store.progress = progress
		return err
	}
	return nil
}

func cloneMap[T any](src map[int64]*T) map[int64]*T {
	dst := make(map[int64]*T, len(src))
	for k, v := range src {
		cp := *v
		dst[k] = &cp
	}
	return dst
}

type spyRecorder struct {
	enrollments      []string
	lessonsCompleted int
	coursesCompleted int
}

func (s *spyRecorder) RecordHTTPStatus(int)                {}
func (s *spyRecorder) RecordRequestDuration(time.Duration) {}
func (s *spyRecorder) RecordAuthAttempt(string, string)    {}
func (s *spyRecorder) RecordEnrollment(action string) {
	s.enrollments = append(s.enrollments, action)
}
func (s *spyRecorder) RecordLessonCompleted() { s.lessonsCompleted++ }
func (s *spyRecorder) RecordCourseCompleted() { s.coursesCompleted++ }
