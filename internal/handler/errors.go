package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/coursehub/internal/authz"
	"github.com/hitoshi/coursehub/internal/logger"
	"github.com/hitoshi/coursehub/internal/middleware"
	"github.com/hitoshi/coursehub/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外は内部エラーとしてログに記録し、一般的なメッセージのみ返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, r, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	logger.FromContext(r.Context()).Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w, r)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidParameter, model.ErrCodeEmailInUse:
		return http.StatusBadRequest
	case model.ErrCodeBadCredentials, model.ErrCodeUnauthenticated, model.ErrCodeOAuthFailed:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeNotStudent:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeRoleNotFound, model.ErrCodeCourseNotFound,
		model.ErrCodeLessonNotFound, model.ErrCodeEnrollmentNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyEnrolled, model.ErrCodeCourseNotPublished, model.ErrCodeUserOwnsCourses:
		return http.StatusConflict
	case model.ErrCodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// guard は認可判定が拒否の場合にエラーレスポンスを書き込み、falseを返す。
func guard(w http.ResponseWriter, r *http.Request, d authz.Decision) bool {
	if d.Allowed() {
		return true
	}
	handleServiceError(w, r, d.Err())
	return false
}

// writeJSON はvをJSONとしてレスポンスに書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// messageResponse は処理結果のメッセージのみを返すレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// decodeJSON はリクエストボディをdstにデコードする。
// 空ボディや不正なJSONはINVALID_PARAMETERエラーを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewInvalidParameterError("Required request body is missing")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return model.NewInvalidParameterError("Request body is too large")
		}
		return model.NewInvalidParameterError("Malformed JSON request")
	}
	return nil
}

// decodeAndValidate はリクエストボディをデコードし、validateタグで検証する。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return validateRequest(dst)
}

// pathID はURLパスパラメータを正の整数IDとして解析する。
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewInvalidParameterError(fmt.Sprintf("Invalid value for %s: %s", name, raw))
	}
	return id, nil
}
