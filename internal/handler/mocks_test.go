package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/coursehub/internal/auth"
	"github.com/hitoshi/coursehub/internal/authz"
	"github.com/hitoshi/coursehub/internal/course"
	"github.com/hitoshi/coursehub/internal/enrollment"
	"github.com/hitoshi/coursehub/internal/middleware"
	"github.com/hitoshi/coursehub/internal/model"
	"github.com/hitoshi/coursehub/internal/user"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn       func(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	loginFn          func(ctx context.Context, email, password string) (*auth.LoginResult, error)
	oauthEnabled     bool
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*auth.LoginResult, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &model.User{ID: 1, Email: in.Email}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return &auth.LoginResult{Token: "token"}, nil
}

func (m *mockAuthService) OAuthEnabled() bool { return m.oauthEnabled }

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *mockAuthService) HandleOAuthCallback(ctx context.Context, code string) (*auth.LoginResult, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return &auth.LoginResult{Token: "oauth-token"}, nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	meFn            func(ctx context.Context, p model.Principal) (*model.User, error)
	updateProfileFn func(ctx context.Context, p model.Principal, in user.ProfileInput) (*model.User, error)
	withdrawFn      func(ctx context.Context, p model.Principal) error
	grantRoleFn     func(ctx context.Context, userID int64, roleName string) (*model.User, error)
}

func (m *mockUserService) Me(ctx context.Context, p model.Principal) (*model.User, error) {
	if m.meFn != nil {
		return m.meFn(ctx, p)
	}
	return &model.User{Email: p.Subject, Roles: p.Roles}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, p model.Principal, in user.ProfileInput) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, p, in)
	}
	return &model.User{Email: p.Subject, FirstName: in.FirstName, LastName: in.LastName}, nil
}

func (m *mockUserService) Withdraw(ctx context.Context, p model.Principal) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, p)
	}
	return nil
}

func (m *mockUserService) GrantRole(ctx context.Context, userID int64, roleName string) (*model.User, error) {
	if m.grantRoleFn != nil {
		return m.grantRoleFn(ctx, userID, roleName)
	}
	return &model.User{ID: userID, Roles: []string{roleName}}, nil
}

// mockCourseService はCourseServiceInterfaceとLessonServiceInterfaceのモック実装。
type mockCourseService struct {
	listFn         func(ctx context.Context, p model.Principal) ([]model.CourseWithDetails, error)
	getFn          func(ctx context.Context, p model.Principal, id int64) (*model.CourseWithDetails, error)
	createFn       func(ctx context.Context, p model.Principal, in course.CourseInput) (*model.CourseWithDetails, error)
	updateFn       func(ctx context.Context, id int64, in course.CourseInput) (*model.CourseWithDetails, error)
	publishFn      func(ctx context.Context, id int64) error
	deleteFn       func(ctx context.Context, id int64) error
	listLessonsFn  func(ctx context.Context, p model.Principal, courseID int64) ([]model.LessonWithCourse, error)
	getLessonFn    func(ctx context.Context, p model.Principal, courseID, lessonID int64) (*model.LessonWithCourse, error)
	createLessonFn func(ctx context.Context, courseID int64, in course.LessonInput) (*model.LessonWithCourse, error)
	updateLessonFn func(ctx context.Context, courseID, lessonID int64, in course.LessonInput) (*model.LessonWithCourse, error)
	deleteLessonFn func(ctx context.Context, courseID, lessonID int64) error
}

func (m *mockCourseService) List(ctx context.Context, p model.Principal) ([]model.CourseWithDetails, error) {
	if m.listFn != nil {
		return m.listFn(ctx, p)
	}
	return []model.CourseWithDetails{}, nil
}

func (m *mockCourseService) Get(ctx context.Context, p model.Principal, id int64) (*model.CourseWithDetails, error) {
	if m.getFn != nil {
		return m.getFn(ctx, p, id)
	}
	return sampleCourse(id), nil
}

func (m *mockCourseService) Create(ctx context.Context, p model.Principal, in course.CourseInput) (*model.CourseWithDetails, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p, in)
	}
	c := sampleCourse(1)
	c.Title = in.Title
	return c, nil
}

func (m *mockCourseService) Update(ctx context.Context, id int64, in course.CourseInput) (*model.CourseWithDetails, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return sampleCourse(id), nil
}

func (m *mockCourseService) Publish(ctx context.Context, id int64) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, id)
	}
	return nil
}

func (m *mockCourseService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockCourseService) ListLessons(ctx context.Context, p model.Principal, courseID int64) ([]model.LessonWithCourse, error) {
	if m.listLessonsFn != nil {
		return m.listLessonsFn(ctx, p, courseID)
	}
	return []model.LessonWithCourse{}, nil
}

func (m *mockCourseService) GetLesson(ctx context.Context, p model.Principal, courseID, lessonID int64) (*model.LessonWithCourse, error) {
	if m.getLessonFn != nil {
		return m.getLessonFn(ctx, p, courseID, lessonID)
	}
	return sampleLesson(courseID, lessonID), nil
}

func (m *mockCourseService) CreateLesson(ctx context.Context, courseID int64, in course.LessonInput) (*model.LessonWithCourse, error) {
	if m.createLessonFn != nil {
		return m.createLessonFn(ctx, courseID, in)
	}
	return sampleLesson(courseID, 1), nil
}

func (m *mockCourseService) UpdateLesson(ctx context.Context, courseID, lessonID int64, in course.LessonInput) (*model.LessonWithCourse, error) {
	if m.updateLessonFn != nil {
		return m.updateLessonFn(ctx, courseID, lessonID, in)
	}
	return sampleLesson(courseID, lessonID), nil
}

func (m *mockCourseService) DeleteLesson(ctx context.Context, courseID, lessonID int64) error {
	if m.deleteLessonFn != nil {
		return m.deleteLessonFn(ctx, courseID, lessonID)
	}
	return nil
}

// mockEnrollmentService はEnrollmentServiceInterfaceとProgressServiceInterfaceのモック実装。
type mockEnrollmentService struct {
	enrollFn          func(ctx context.Context, p model.Principal, courseID int64) (*model.Enrollment, error)
	unenrollFn        func(ctx context.Context, p model.Principal, courseID int64) error
	listMineFn        func(ctx context.Context, p model.Principal) ([]model.EnrollmentWithDetails, error)
	listForCourseFn   func(ctx context.Context, courseID int64) ([]model.EnrollmentWithDetails, error)
	markCompletedFn   func(ctx context.Context, p model.Principal, lessonID int64) (*enrollment.CompletionResult, error)
	listProgressFn    func(ctx context.Context, p model.Principal) ([]model.ProgressWithDetails, error)
	listInCourseFn    func(ctx context.Context, p model.Principal, courseID int64) ([]model.ProgressWithDetails, error)
	studentProgressFn func(ctx context.Context, courseID, studentID int64) ([]model.ProgressWithDetails, error)
}

func (m *mockEnrollmentService) Enroll(ctx context.Context, p model.Principal, courseID int64) (*model.Enrollment, error) {
	if m.enrollFn != nil {
		return m.enrollFn(ctx, p, courseID)
	}
	return &model.Enrollment{ID: 1, CourseID: courseID}, nil
}

func (m *mockEnrollmentService) Unenroll(ctx context.Context, p model.Principal, courseID int64) error {
	if m.unenrollFn != nil {
		return m.unenrollFn(ctx, p, courseID)
	}
	return nil
}

func (m *mockEnrollmentService) ListMine(ctx context.Context, p model.Principal) ([]model.EnrollmentWithDetails, error) {
	if m.listMineFn != nil {
		return m.listMineFn(ctx, p)
	}
	return nil, nil
}

func (m *mockEnrollmentService) ListForCourse(ctx context.Context, courseID int64) ([]model.EnrollmentWithDetails, error) {
	if m.listForCourseFn != nil {
		return m.listForCourseFn(ctx, courseID)
	}
	return nil, nil
}

func (m *mockEnrollmentService) MarkLessonCompleted(ctx context.Context, p model.Principal, lessonID int64) (*enrollment.CompletionResult, error) {
	if m.markCompletedFn != nil {
		return m.markCompletedFn(ctx, p, lessonID)
	}
	return &enrollment.CompletionResult{Recorded: true}, nil
}

func (m *mockEnrollmentService) ListMyProgress(ctx context.Context, p model.Principal) ([]model.ProgressWithDetails, error) {
	if m.listProgressFn != nil {
		return m.listProgressFn(ctx, p)
	}
	return nil, nil
}

func (m *mockEnrollmentService) ListMyProgressInCourse(ctx context.Context, p model.Principal, courseID int64) ([]model.ProgressWithDetails, error) {
	if m.listInCourseFn != nil {
		return m.listInCourseFn(ctx, p, courseID)
	}
	return nil, nil
}

func (m *mockEnrollmentService) StudentProgressInCourse(ctx context.Context, courseID, studentID int64) ([]model.ProgressWithDetails, error) {
	if m.studentProgressFn != nil {
		return m.studentProgressFn(ctx, courseID, studentID)
	}
	return nil, nil
}

// stubOwnership はコースID→所有者メールの対応で判定するOwnershipChecker。
type stubOwnership struct {
	owners map[int64]string
	calls  int
}

func (s *stubOwnership) RequireCourseOwnerOrAdmin(ctx context.Context, p model.Principal, courseID int64) authz.Decision {
	s.calls++
	if !p.Authenticated() {
		return authz.DenyUnauthenticated
	}
	if p.IsAdmin() {
		return authz.Allow
	}
	if owner, ok := s.owners[courseID]; ok && owner == p.Subject {
		return authz.Allow
	}
	return authz.DenyForbidden
}

var (
	_ AuthServiceInterface       = (*mockAuthService)(nil)
	_ UserServiceInterface       = (*mockUserService)(nil)
	_ CourseServiceInterface     = (*mockCourseService)(nil)
	_ LessonServiceInterface     = (*mockCourseService)(nil)
	_ EnrollmentServiceInterface = (*mockEnrollmentService)(nil)
	_ ProgressServiceInterface   = (*mockEnrollmentService)(nil)
	_ OwnershipChecker           = (*stubOwnership)(nil)
)

// --- テストデータ ---

var (
	adminPrincipal      = model.Principal{Subject: "admin@example.com", Roles: []string{model.RoleAdmin}}
	instructorPrincipal = model.Principal{Subject: "prof@example.com", Roles: []string{model.RoleInstructor}}
	studentPrincipal    = model.Principal{Subject: "alice@example.com", Roles: []string{model.RoleStudent}}
)

var fixedTime = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newOwnership() *stubOwnership {
	return &stubOwnership{owners: map[int64]string{1: instructorPrincipal.Subject}}
}

func sampleCourse(id int64) *model.CourseWithDetails {
	return &model.CourseWithDetails{
		Course: model.Course{
			ID:           id,
			Title:        "Go Basics",
			Description:  "Learn the basics of Go",
			InstructorID: 10,
			Published:    true,
			CreatedAt:    fixedTime,
			UpdatedAt:    fixedTime,
		},
		Instructor: model.UserSummary{ID: 10, Email: "prof@example.com", FirstName: "Tom", LastName: "Tutor"},
		Lessons: []model.Lesson{
			{ID: 100, CourseID: id, Title: "Intro", OrderIndex: 1, DurationMinutes: 15},
		},
		EnrollmentCount: 3,
	}
}

func sampleLesson(courseID, lessonID int64) *model.LessonWithCourse {
	c := sampleCourse(courseID)
	return &model.LessonWithCourse{
		Lesson: model.Lesson{
			ID:              lessonID,
			CourseID:        courseID,
			Title:           "Intro",
			Content:         "Welcome to the course",
			OrderIndex:      1,
			DurationMinutes: 15,
			CreatedAt:       fixedTime,
			UpdatedAt:       fixedTime,
		},
		Course:     c.Course,
		Instructor: c.Instructor,
	}
}

// --- ヘルパー ---

// withPrincipal はテスト用に認証主体をコンテキストに注入する。
func withPrincipal(r *http.Request, p model.Principal) *http.Request {
	return r.WithContext(middleware.ContextWithPrincipal(r.Context(), p))
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
// kvはキーと値を交互に並べる。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest はJSONボディ付きのリクエストを生成する。
func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeError はエラーレスポンスをデコードする。
func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// assertStatus はレスポンスのステータスコードを検証する。
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if got := w.Result().StatusCode; got != want {
		t.Fatalf("status = %d, want %d (body: %s)", got, want, w.Body.String())
	}
}
