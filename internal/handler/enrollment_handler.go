package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/coursehub/internal/authz"
	"github.com/hitoshi/coursehub/internal/enrollment"
	"github.com/hitoshi/coursehub/internal/middleware"
	"github.com/hitoshi/coursehub/internal/model"
)

// EnrollmentServiceInterface は受講登録ハンドラーが必要とするサービスインターフェース。
type EnrollmentServiceInterface interface {
	Enroll(ctx context.Context, p model.Principal, courseID int64) (*model.Enrollment, error)
	Unenroll(ctx context.Context, p model.Principal, courseID int64) error
	ListMine(ctx context.Context, p model.Principal) ([]model.EnrollmentWithDetails, error)
	ListForCourse(ctx context.Context, courseID int64) ([]model.EnrollmentWithDetails, error)
}

// ProgressServiceInterface は進捗ハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	MarkLessonCompleted(ctx context.Context, p model.Principal, lessonID int64) (*enrollment.CompletionResult, error)
	ListMyProgress(ctx context.Context, p model.Principal) ([]model.ProgressWithDetails, error)
	ListMyProgressInCourse(ctx context.Context, p model.Principal, courseID int64) ([]model.ProgressWithDetails, error)
	StudentProgressInCourse(ctx context.Context, courseID, studentID int64) ([]model.ProgressWithDetails, error)
}

// EnrollmentHandler は受講登録と学習進捗のHTTPハンドラー。
type EnrollmentHandler struct {
	enrollments EnrollmentServiceInterface
	progress    ProgressServiceInterface
	owners      OwnershipChecker
}

// NewEnrollmentHandler はEnrollmentHandlerを生成する。
func NewEnrollmentHandler(enrollments EnrollmentServiceInterface, progress ProgressServiceInterface, owners OwnershipChecker) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollments: enrollments,
		progress:    progress,
		owners:      owners,
	}
}

// studentCourseID は学生ロールを確認し、パスのコースIDを解析する。
func studentCourseID(w http.ResponseWriter, r *http.Request) (model.Principal, int64, bool) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAnyRole(p, model.RoleStudent)) {
		return p, 0, false
	}
	courseID, err := pathID(r, "courseId")
	if err != nil {
		handleServiceError(w, r, err)
		return p, 0, false
	}
	return p, courseID, true
}

// Enroll はログイン中の学生をコースに受講登録する。
// POST /api/enrollment/courses/{courseId}
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	p, courseID, ok := studentCourseID(w, r)
	if !ok {
		return
	}

	if _, err := h.enrollments.Enroll(r.Context(), p, courseID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully enrolled in course"})
}

// Unenroll は受講登録とそのコースの進捗を削除する。
// DELETE /api/enrollment/courses/{courseId}
func (h *EnrollmentHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	p, courseID, ok := studentCourseID(w, r)
	if !ok {
		return
	}

	if err := h.enrollments.Unenroll(r.Context(), p, courseID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully unenrolled from course"})
}

// ListMyEnrollments はログイン中の学生の受講一覧を進捗率付きで返す。
// GET /api/enrollment/courses
func (h *EnrollmentHandler) ListMyEnrollments(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAnyRole(p, model.RoleStudent)) {
		return
	}

	enrollments, err := h.enrollments.ListMine(r.Context(), p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEnrollmentResponses(enrollments))
}

// ListCourseStudents はコースの受講者一覧を返す。所有者と管理者のみ。
// GET /api/enrollment/courses/{courseId}/students
func (h *EnrollmentHandler) ListCourseStudents(w http.ResponseWriter, r *http.Request) {
	courseID, ok := requireCourseOwner(w, r, h.owners, "courseId")
	if !ok {
		return
	}

	enrollments, err := h.enrollments.ListForCourse(r.Context(), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEnrollmentResponses(enrollments))
}

// MarkLessonCompleted はレッスンを完了済みにする。完了済みの場合は何もしない。
// PATCH /api/progress/lessons/{lessonId}/complete
func (h *EnrollmentHandler) MarkLessonCompleted(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAnyRole(p, model.RoleStudent)) {
		return
	}

	lessonID, err := pathID(r, "lessonId")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.progress.MarkLessonCompleted(r.Context(), p, lessonID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, completionResponse{
		Message:         "Lesson marked as completed",
		CourseCompleted: result.CourseCompleted,
	})
}

// ListMyProgress はログイン中の学生の全進捗を返す。
// GET /api/progress
func (h *EnrollmentHandler) ListMyProgress(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAnyRole(p, model.RoleStudent)) {
		return
	}

	progress, err := h.progress.ListMyProgress(r.Context(), p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProgressResponses(progress))
}

// ListMyProgressInCourse は受講中コースにおける自分の進捗を返す。
// GET /api/progress/courses/{courseId}
func (h *EnrollmentHandler) ListMyProgressInCourse(w http.ResponseWriter, r *http.Request) {
	p, courseID, ok := studentCourseID(w, r)
	if !ok {
		return
	}

	progress, err := h.progress.ListMyProgressInCourse(r.Context(), p, courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProgressResponses(progress))
}

// StudentProgressInCourse は指定学生のコース内進捗を返す。所有者と管理者のみ。
// GET /api/progress/students/{studentId}/courses/{courseId}
func (h *EnrollmentHandler) StudentProgressInCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := requireCourseOwner(w, r, h.owners, "courseId")
	if !ok {
		return
	}
	studentID, err := pathID(r, "studentId")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	progress, err := h.progress.StudentProgressInCourse(r.Context(), courseID, studentID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProgressResponses(progress))
}
