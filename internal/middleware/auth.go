package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/coursehub/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var principalContextKey = contextKey("principal")

// TokenVerifier はアクセストークンを検証して認証主体を返す。
type TokenVerifier interface {
	Verify(token string) (model.Principal, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証主体をコンテキストに格納するミドルウェアを返す。
// トークンがない、または不正な場合は匿名のまま次に渡す。
// 認証必須のルートではRequireAuthenticationを併用する。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				slog.Debug("bearer token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAuthentication は認証主体がないリクエストを401で拒否するミドルウェアを返す。
func RequireAuthentication() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !PrincipalFromContext(r.Context()).Authenticated() {
				WriteErrorResponse(w, r, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// PrincipalFromContext はコンテキストから認証主体を取得する。
// 格納されていない場合は匿名（ゼロ値）を返す。
func PrincipalFromContext(ctx context.Context) model.Principal {
	p, _ := ctx.Value(principalContextKey).(model.Principal)
	return p
}

// ContextWithPrincipal は認証主体をコンテキストに格納する。
func ContextWithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
