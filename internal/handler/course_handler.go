package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/coursehub/internal/authz"
	"github.com/hitoshi/coursehub/internal/course"
	"github.com/hitoshi/coursehub/internal/middleware"
	"github.com/hitoshi/coursehub/internal/model"
)

// CourseServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	List(ctx context.Context, p model.Principal) ([]model.CourseWithDetails, error)
	Get(ctx context.Context, p model.Principal, id int64) (*model.CourseWithDetails, error)
	Create(ctx context.Context, p model.Principal, in course.CourseInput) (*model.CourseWithDetails, error)
	Update(ctx context.Context, id int64, in course.CourseInput) (*model.CourseWithDetails, error)
	Publish(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// OwnershipChecker はコース単位の操作権限を判定する。
type OwnershipChecker interface {
	RequireCourseOwnerOrAdmin(ctx context.Context, p model.Principal, courseID int64) authz.Decision
}

// CourseHandler はコース管理のHTTPハンドラー。
type CourseHandler struct {
	service CourseServiceInterface
	owners  OwnershipChecker
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface, owners OwnershipChecker) *CourseHandler {
	return &CourseHandler{
		service: service,
		owners:  owners,
	}
}

// ListCourses は閲覧可能なコース一覧を返す。トークンは任意。
// GET /api/courses
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())

	courses, err := h.service.List(r.Context(), p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseResponses(courses))
}

// GetCourse はコース詳細を返す。非公開コースは所有者と管理者のみ参照できる。
// GET /api/courses/{courseId}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAuthenticated(p)) {
		return
	}

	id, err := pathID(r, "courseId")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	c, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseResponse(c))
}

// CreateCourse はコースを非公開状態で作成する。
// POST /api/courses
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAnyRole(p, model.RoleAdmin, model.RoleInstructor)) {
		return
	}

	var req courseRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	c, err := h.service.Create(r.Context(), p, toCourseInput(req))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCourseResponse(c))
}

// UpdateCourse はコースを更新する。
// PUT /api/courses/{courseId}
func (h *CourseHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedCourseID(w, r)
	if !ok {
		return
	}

	var req courseRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	c, err := h.service.Update(r.Context(), id, toCourseInput(req))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseResponse(c))
}

// PublishCourse はコースを公開する。
// PATCH /api/courses/{courseId}/publish
func (h *CourseHandler) PublishCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedCourseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Publish(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Course published successfully"})
}

// DeleteCourse はコースと関連するレッスン・受講登録・進捗を削除する。
// DELETE /api/courses/{courseId}
func (h *CourseHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedCourseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedCourseID はパスのコースIDを解析し、所有者または管理者であることを確認する。
func (h *CourseHandler) ownedCourseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return requireCourseOwner(w, r, h.owners, "courseId")
}

// requireCourseOwner はパスパラメータparamのコースIDを解析し、所有者判定を行う。
// 未認証の判定をID解析より先に行う。
func requireCourseOwner(w http.ResponseWriter, r *http.Request, owners OwnershipChecker, param string) (int64, bool) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAuthenticated(p)) {
		return 0, false
	}

	id, err := pathID(r, param)
	if err != nil {
		handleServiceError(w, r, err)
		return 0, false
	}

	if !guard(w, r, owners.RequireCourseOwnerOrAdmin(r.Context(), p, id)) {
		return 0, false
	}
	return id, true
}

func toCourseInput(req courseRequest) course.CourseInput {
	return course.CourseInput{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
}
