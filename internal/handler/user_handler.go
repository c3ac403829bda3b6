package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/coursehub/internal/authz"
	"github.com/hitoshi/coursehub/internal/middleware"
	"github.com/hitoshi/coursehub/internal/model"
	"github.com/hitoshi/coursehub/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Me(ctx context.Context, p model.Principal) (*model.User, error)
	UpdateProfile(ctx context.Context, p model.Principal, in user.ProfileInput) (*model.User, error)
	// Withdraw は進捗、受講登録、ロール、ユーザーを一括削除する。
	// 担当コースを持つユーザーは退会できない。
	Withdraw(ctx context.Context, p model.Principal) error
	GrantRole(ctx context.Context, userID int64, roleName string) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Me はログインユーザーのプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAuthenticated(p)) {
		return
	}

	u, err := h.service.Me(r.Context(), p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// UpdateProfile はログインユーザーの氏名を更新する。
// PUT /api/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAuthenticated(p)) {
		return
	}

	var req profileRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), p, user.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAuthenticated(p)) {
		return
	}

	if err := h.service.Withdraw(r.Context(), p); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GrantRole は指定ユーザーにロールを付与する。ADMINのみ実行できる。
// POST /api/admin/users/{userId}/roles
func (h *UserHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if !guard(w, r, authz.RequireAnyRole(p, model.RoleAdmin)) {
		return
	}

	userID, err := pathID(r, "userId")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req grantRoleRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	u, err := h.service.GrantRole(r.Context(), userID, req.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}
