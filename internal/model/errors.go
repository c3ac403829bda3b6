package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Codeからステータスコードが決まり、Detailsはフィールド単位の検証エラーを保持する。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, course, enrollment, system
	Details  map[string]string // フィールド名 -> エラー内容（検証エラーのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeInvalidParameter   = "INVALID_PARAMETER"
	ErrCodeEmailInUse         = "EMAIL_IN_USE"
	ErrCodeBadCredentials     = "BAD_CREDENTIALS"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeOAuthFailed        = "OAUTH_FAILED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotStudent         = "NOT_STUDENT"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeRoleNotFound       = "ROLE_NOT_FOUND"
	ErrCodeCourseNotFound     = "COURSE_NOT_FOUND"
	ErrCodeLessonNotFound     = "LESSON_NOT_FOUND"
	ErrCodeEnrollmentNotFound = "ENROLLMENT_NOT_FOUND"
	ErrCodeAlreadyEnrolled    = "ALREADY_ENROLLED"
	ErrCodeCourseNotPublished = "COURSE_NOT_PUBLISHED"
	ErrCodeUserOwnsCourses    = "USER_OWNS_COURSES"
	ErrCodeUnsupportedMedia   = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(details map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "Input validation failed",
		Category: "validation",
		Details:  details,
	}
}

// NewInvalidParameterError はパスパラメータやリクエストボディの形式不正エラーを生成する。
func NewInvalidParameterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParameter,
		Message:  reason,
		Category: "validation",
	}
}

// NewEmailInUseError はメールアドレス重複エラーを生成する。
func NewEmailInUseError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailInUse,
		Message:  fmt.Sprintf("Email is already in use: %s", email),
		Category: "validation",
	}
}

// NewBadCredentialsError は認証情報不一致エラーを生成する。
// 無効化・ロック中のユーザーにも同じエラーを返す。
func NewBadCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeBadCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Full authentication is required to access this resource",
		Category: "auth",
	}
}

// NewOAuthFailedError はOAuthログイン失敗エラーを生成する。
func NewOAuthFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeOAuthFailed,
		Message:  fmt.Sprintf("OAuth2 login failed: %s", reason),
		Category: "auth",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Access denied",
		Category: "auth",
	}
}

// NewNotStudentError は学生ロールを持たないユーザーの操作エラーを生成する。
func NewNotStudentError() *APIError {
	return &APIError{
		Code:     ErrCodeNotStudent,
		Message:  "Only students can perform this action",
		Category: "auth",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(ref string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("User not found: %s", ref),
		Category: "auth",
	}
}

// NewRoleNotFoundError はロールが見つからない場合のエラーを生成する。
func NewRoleNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeRoleNotFound,
		Message:  fmt.Sprintf("Role not found: %s", name),
		Category: "auth",
	}
}

// NewCourseNotFoundError はコースが見つからない場合のエラーを生成する。
func NewCourseNotFoundError(courseID int64) *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotFound,
		Message:  fmt.Sprintf("Course not found with id: %d", courseID),
		Category: "course",
	}
}

// NewLessonNotFoundError はレッスンが見つからない場合のエラーを生成する。
func NewLessonNotFoundError(lessonID int64) *APIError {
	return &APIError{
		Code:     ErrCodeLessonNotFound,
		Message:  fmt.Sprintf("Lesson not found with id: %d", lessonID),
		Category: "course",
	}
}

// NewLessonNotInCourseError はパスのコースに属さないレッスンを参照した場合のエラーを生成する。
func NewLessonNotInCourseError(lessonID, courseID int64) *APIError {
	return &APIError{
		Code:     ErrCodeLessonNotFound,
		Message:  fmt.Sprintf("Lesson not found with id: %d for course: %d", lessonID, courseID),
		Category: "course",
	}
}

// NewEnrollmentNotFoundError は受講登録が存在しない場合のエラーを生成する。
func NewEnrollmentNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeEnrollmentNotFound,
		Message:  "Not enrolled in this course",
		Category: "enrollment",
	}
}

// NewAlreadyEnrolledError は受講登録の重複エラーを生成する。
func NewAlreadyEnrolledError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyEnrolled,
		Message:  "Already enrolled in this course",
		Category: "enrollment",
	}
}

// NewCourseNotPublishedError は非公開コースへの受講登録エラーを生成する。
func NewCourseNotPublishedError() *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotPublished,
		Message:  "Cannot enroll in an unpublished course",
		Category: "enrollment",
	}
}

// NewUserOwnsCoursesError は担当コースを持つユーザーの退会エラーを生成する。
func NewUserOwnsCoursesError() *APIError {
	return &APIError{
		Code:     ErrCodeUserOwnsCourses,
		Message:  "User still instructs one or more courses",
		Category: "auth",
	}
}

// NewUnsupportedMediaTypeError はContent-Type不正エラーを生成する。
func NewUnsupportedMediaTypeError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMedia,
		Message:  fmt.Sprintf("Content type '%s' not supported", contentType),
		Category: "validation",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An unexpected error occurred",
		Category: "system",
	}
}
