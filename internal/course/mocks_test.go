package course

import (
	"context"
	"time"

	"github.com/hitoshi/coursehub/internal/model"
	"github.com/hitoshi/coursehub/internal/repository"
)

// --- モック定義 ---

type mockCourseRepo struct {
	findByIDFn        func(ctx context.Context, id int64) (*model.Course, error)
	findDetailsByIDFn func(ctx context.Context, id int64) (*model.CourseWithDetails, error)
	listDetailsFn     func(ctx context.Context, scope repository.CourseScope) ([]model.CourseWithDetails, error)
	createFn          func(ctx context.Context, course *model.Course) error
	updateFn          func(ctx context.Context, course *model.Course) error
	publishFn         func(ctx context.Context, id int64, at time.Time) error
	deleteFn          func(ctx context.Context, id int64) error
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id int64) (*model.Course, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCourseRepo) FindDetailsByID(ctx context.Context, id int64) (*model.CourseWithDetails, error) {
	if m.findDetailsByIDFn != nil {
		return m.findDetailsByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCourseRepo) ListDetails(ctx context.Context, scope repository.CourseScope) ([]model.CourseWithDetails, error) {
	if m.listDetailsFn != nil {
		return m.listDetailsFn(ctx, scope)
	}
	return nil, nil
}

func (m *mockCourseRepo) CountByInstructor(_ context.Context, _ int64) (int, error) {
	return 0, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *model.Course) error {
	if m.createFn != nil {
		return m.createFn(ctx, course)
	}
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *model.Course) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, course)
	}
	return nil
}

func (m *mockCourseRepo) Publish(ctx context.Context, id int64, at time.Time) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, id, at)
	}
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockLessonRepo struct {
	findByIDAndCourseIDFn func(ctx context.Context, id, courseID int64) (*model.Lesson, error)
	listByCourseIDFn      func(ctx context.Context, courseID int64) ([]model.Lesson, error)
	listByCourseIDsFn     func(ctx context.Context, courseIDs []int64) (map[int64][]model.Lesson, error)
	maxOrderIndexFn       func(ctx context.Context, courseID int64) (int, error)
	createFn              func(ctx context.Context, lesson *model.Lesson) error
	updateFn              func(ctx context.Context, lesson *model.Lesson) error
	deleteFn              func(ctx context.Context, id int64) error
	deleteByCourseIDFn    func(ctx context.Context, courseID int64) error
}

func (m *mockLessonRepo) FindByID(_ context.Context, _ int64) (*model.Lesson, error) {
	return nil, nil
}

func (m *mockLessonRepo) FindByIDAndCourseID(ctx context.Context, id, courseID int64) (*model.Lesson, error) {
	if m.findByIDAndCourseIDFn != nil {
		return m.findByIDAndCourseIDFn(ctx, id, courseID)
	}
	return nil, nil
}

func (m *mockLessonRepo) ListByCourseID(ctx context.Context, courseID int64) ([]model.Lesson, error) {
	if m.listByCourseIDFn != nil {
		return m.listByCourseIDFn(ctx, courseID)
	}
	return nil, nil
}

func (m *mockLessonRepo) ListByCourseIDs(ctx context.Context, courseIDs []int64) (map[int64][]model.Lesson, error) {
	if m.listByCourseIDsFn != nil {
		return m.listByCourseIDsFn(ctx, courseIDs)
	}
	return map[int64][]model.Lesson{}, nil
}

func (m *mockLessonRepo) MaxOrderIndex(ctx context.Context, courseID int64) (int, error) {
	if m.maxOrderIndexFn != nil {
		return m.maxOrderIndexFn(ctx, courseID)
	}
	return 0, nil
}

func (m *mockLessonRepo) CountByCourseID(_ context.Context, _ int64) (int, error) {
	return 0, nil
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *model.Lesson) error {
	if m.createFn != nil {
		return m.createFn(ctx, lesson)
	}
	return nil
}

func (m *mockLessonRepo) Update(ctx context.Context, lesson *model.Lesson) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, lesson)
	}
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockLessonRepo) DeleteByCourseID(ctx context.Context, courseID int64) error {
	if m.deleteByCourseIDFn != nil {
		return m.deleteByCourseIDFn(ctx, courseID)
	}
	return nil
}

type mockEnrollmentRepo struct {
	repository.EnrollmentRepository
	deleteByCourseIDFn func(ctx context.Context, courseID int64) error
}

func (m *mockEnrollmentRepo) DeleteByCourseID(ctx context.Context, courseID int64) error {
	if m.deleteByCourseIDFn != nil {
		return m.deleteByCourseIDFn(ctx, courseID)
	}
	return nil
}

type mockProgressRepo struct {
	repository.ProgressRepository
	deleteByCourseIDFn func(ctx context.Context, courseID int64) error
}

func (m *mockProgressRepo) DeleteByCourseID(ctx context.Context, courseID int64) error {
	if m.deleteByCourseIDFn != nil {
		return m.deleteByCourseIDFn(ctx, courseID)
	}
	return nil
}

type mockUserRepo struct {
	repository.UserRepository
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// markSanitizer はサニタイズ呼び出しを検出するために "[clean]" を前置する。
type markSanitizer struct{}

func (markSanitizer) Sanitize(raw string) string {
	return "[clean]" + raw
}

type testDeps struct {
	courses     *mockCourseRepo
	lessons     *mockLessonRepo
	enrollments *mockEnrollmentRepo
	progress    *mockProgressRepo
	users       *mockUserRepo
	tx          *fakeTxRunner
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *testDeps) {
	d := &testDeps{
		courses:     &mockCourseRepo{},
		lessons:     &mockLessonRepo{},
		enrollments: &mockEnrollmentRepo{},
		progress:    &mockProgressRepo{},
		users:       &mockUserRepo{},
		tx:          &fakeTxRunner{},
	}
	svc := NewService(ServiceDeps{
		Courses:     d.courses,
		Lessons:     d.lessons,
		Enrollments: d.enrollments,
		Progress:    d.progress,
		Users:       d.users,
		Tx:          d.tx,
		Sanitizer:   markSanitizer{},
	})
	svc.now = func() time.Time { return fixedNow }
	return svc, d
}

var (
	adminPrincipal      = model.Principal{Subject: "admin@example.com", Roles: []string{model.RoleAdmin}}
	instructorPrincipal = model.Principal{Subject: "prof@example.com", Roles: []string{model.RoleInstructor}}
	studentPrincipal    = model.Principal{Subject: "student@example.com", Roles: []string{model.RoleStudent}}
)

// usersByEmail はメールアドレスからユーザーを返すfindByEmailFnを生成する。
func usersByEmail(users ...*model.User) func(context.Context, string) (*model.User, error) {
	return func(_ context.Context, email string) (*model.User, error) {
		for _, u := range users {
			if u.Email == email {
				return u, nil
			}
		}
		return nil, nil
	}
}

var (
	profUser = &model.User{ID: 10, Email: "prof@example.com", FirstName: "Tina", LastName: "Teach", Roles: []string{model.RoleInstructor}}
	student  = &model.User{ID: 20, Email: "student@example.com", FirstName: "Sam", LastName: "Study", Roles: []string{model.RoleStudent}}
)

func courseDetails(id, instructorID int64, published bool) *model.CourseWithDetails {
	return &model.CourseWithDetails{
		Course: model.Course{
			ID:           id,
			Title:        "Go入門",
			Description:  "Goの基礎を学ぶコース",
			InstructorID: instructorID,
			Published:    published,
		},
		Instructor: model.UserSummary{ID: instructorID, Email: "prof@example.com"},
	}
}
