package middleware

import (
	"mime"
	"net/http"

	"github.com/hitoshi/coursehub/internal/model"
)

// NewJSONContentTypeMiddleware はボディを持つPOST/PUT/PATCHリクエストの
// Content-Typeがapplication/jsonであることを検証するミドルウェアを返す。
// それ以外のメディアタイプは415で拒否する。
func NewJSONContentTypeMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			ct := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || mediaType != "application/json" {
				WriteErrorResponse(w, r, http.StatusUnsupportedMediaType, model.NewUnsupportedMediaTypeError(ct))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
