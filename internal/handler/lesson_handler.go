package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/coursehub/internal/authz"
	"github.com/hitoshi/coursehub/internal/course"
	"github.com/hitoshi/coursehub/internal/middleware"
	"github.com/hitoshi/coursehub/internal/model"
)

// LessonServiceInterface はレッスンハンドラーが必要とするサービスインターフェース。
type LessonServiceInterface interface {
	ListLessons(ctx context.Context, p model.Principal, courseID int64) ([]model.LessonWithCourse, error)
	GetLesson(ctx context.Context, p model.Principal, courseID, lessonID int64) (*model.LessonWithCourse, error)
	CreateLesson(ctx context.Context, courseID int64, in course.LessonInput) (*model.LessonWithCourse, error)
	UpdateLesson(ctx context.Context, courseID, lessonID int64, in course.LessonInput) (*model.LessonWithCourse, error)
	DeleteLesson(ctx context.Context, courseID, lessonID int64) error
}

// LessonHandler はレッスン管理のHTTPハンドラー。
type LessonHandler struct {
	service LessonServiceInterface
	owners  OwnershipChecker
}

// NewLessonHandler はLessonHandlerを生成する。
func NewLessonHandler(service LessonServiceInterface, owners OwnershipChecker) *LessonHandler {
	return &LessonHandler{
		service: service,
		owners:  owners,
	}
}

// ListLessons はコースのレッスンをorder_index順で返す。
// GET /api/courses/{courseId}/lessons
func (h *LessonHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAuthenticated(p)) {
		return
	}

	courseID, err := pathID(r, "courseId")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	lessons, err := h.service.ListLessons(r.Context(), p, courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toLessonResponses(lessons))
}

// GetLesson はコース内のレッスンを返す。
// GET /api/courses/{courseId}/lessons/{lessonId}
func (h *LessonHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAuthenticated(p)) {
		return
	}

	courseID, err := pathID(r, "courseId")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	lessonID, err := pathID(r, "lessonId")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	lesson, err := h.service.GetLesson(r.Context(), p, courseID, lessonID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toLessonResponse(lesson))
}

// CreateLesson はコースにレッスンを追加する。
// POST /api/courses/{courseId}/lessons
func (h *LessonHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	courseID, ok := requireCourseOwner(w, r, h.owners, "courseId")
	if !ok {
		return
	}

	var req lessonRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	lesson, err := h.service.CreateLesson(r.Context(), courseID, toLessonInput(req))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLessonResponse(lesson))
}

// UpdateLesson はレッスンを更新する。
// PUT /api/courses/{courseId}/lessons/{lessonId}
func (h *LessonHandler) UpdateLesson(w http.ResponseWriter, r *http.Request) {
	courseID, ok := requireCourseOwner(w, r, h.owners, "courseId")
	if !ok {
		return
	}
	lessonID, err := pathID(r, "lessonId")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req lessonRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	lesson, err := h.service.UpdateLesson(r.Context(), courseID, lessonID, toLessonInput(req))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toLessonResponse(lesson))
}

// DeleteLesson はレッスンを削除する。
// DELETE /api/courses/{courseId}/lessons/{lessonId}
func (h *LessonHandler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	courseID, ok := requireCourseOwner(w, r, h.owners, "courseId")
	if !ok {
		return
	}
	lessonID, err := pathID(r, "lessonId")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.DeleteLesson(r.Context(), courseID, lessonID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toLessonInput(req lessonRequest) course.LessonInput {
	in := course.LessonInput{
		Title:               req.Title,
		Content:             req.Content,
		VideoURL:            req.VideoURL,
		OrderIndex:          req.OrderIndex,
		AdditionalResources: req.AdditionalResources,
	}
	if req.DurationMinutes != nil {
		in.DurationMinutes = *req.DurationMinutes
	}
	return in
}
