// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/hitoshi/coursehub/internal/auth"
	"github.com/hitoshi/coursehub/internal/logger"
	"github.com/hitoshi/coursehub/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	OAuthEnabled() bool
	GetLoginURL(state string) string
	HandleOAuthCallback(ctx context.Context, code string) (*auth.LoginResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// OAuthRedirectURI はOAuthログイン成功後にトークンを渡すフロントエンドのURL。
	OAuthRedirectURI string
	CookieSecure     bool
}

// AuthHandler はユーザー登録・ログイン・OAuthフローのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Register はローカルユーザーを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Login はメールアドレスとパスワードで認証し、アクセストークンを返す。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.ExpiresAt,
	})
}

// OAuthLogin はGoogle OAuthフローを開始する。
// GET /oauth2/authorization/google
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	state := uuid.NewString()

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// OAuthCallback はOAuthコールバックを処理し、トークン付きでフロントエンドへリダイレクトする。
// GET /oauth2/callback/google?code=xxx&state=yyy
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		logger.FromContext(r.Context()).Warn("oauth state mismatch")
		handleServiceError(w, r, model.NewOAuthFailedError("invalid state parameter"))
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		handleServiceError(w, r, model.NewOAuthFailedError("missing authorization code"))
		return
	}

	// 3. 認証処理
	result, err := h.service.HandleOAuthCallback(r.Context(), code)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// 4. フロントエンドにトークン付きでリダイレクト
	target, err := redirectWithToken(h.config.OAuthRedirectURI, result.Token)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// redirectWithToken はリダイレクト先URLにtokenクエリを付与する。
func redirectWithToken(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
