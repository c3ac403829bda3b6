package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/coursehub/internal/enrollment"
	"github.com/hitoshi/coursehub/internal/model"
)

func newEnrollmentHandler(svc *mockEnrollmentService) *EnrollmentHandler {
	return NewEnrollmentHandler(svc, svc, newOwnership())
}

func TestEnrollmentHandler_Enroll(t *testing.T) {
	var gotCourse int64
	svc := &mockEnrollmentService{
		enrollFn: func(ctx context.Context, p model.Principal, courseID int64) (*model.Enrollment, error) {
			gotCourse = courseID
			return &model.Enrollment{ID: 1, CourseID: courseID}, nil
		},
	}
	h := newEnrollmentHandler(svc)

	req := withPrincipal(withChiURLParams(httptest.NewRequest(http.MethodPost, "/api/enrollment/courses/1", nil), "courseId", "1"), studentPrincipal)
	w := httptest.NewRecorder()
	h.Enroll(w, req)

	assertStatus(t, w, http.StatusOK)
	if gotCourse != 1 {
		t.Errorf("courseID = %d, want 1", gotCourse)
	}

	var body messageResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Message != "Successfully enrolled in course" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestEnrollmentHandler_Enroll_Errors(t *testing.T) {
	tests := []struct {
		name      string
		principal model.Principal
		svcErr    error
		want      int
	}{
		{"not a student", instructorPrincipal, nil, http.StatusForbidden},
		{"anonymous", model.Principal{}, nil, http.StatusUnauthorized},
		{"unpublished", studentPrincipal, model.NewCourseNotPublishedError(), http.StatusConflict},
		{"duplicate", studentPrincipal, model.NewAlreadyEnrolledError(), http.StatusConflict},
		{"unknown course", studentPrincipal, model.NewCourseNotFoundError(1), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockEnrollmentService{
				enrollFn: func(ctx context.Context, p model.Principal, courseID int64) (*model.Enrollment, error) {
					return nil, tt.svcErr
				},
			}
			h := newEnrollmentHandler(svc)

			req := withPrincipal(withChiURLParams(httptest.NewRequest(http.MethodPost, "/api/enrollment/courses/1", nil), "courseId", "1"), tt.principal)
			w := httptest.NewRecorder()
			h.Enroll(w, req)

			assertStatus(t, w, tt.want)
		})
	}
}

func TestEnrollmentHandler_Unenroll(t *testing.T) {
	h := newEnrollmentHandler(&mockEnrollmentService{})

	req := withPrincipal(withChiURLParams(httptest.NewRequest(http.MethodDelete, "/api/enrollment/courses/1", nil), "courseId", "1"), studentPrincipal)
	w := httptest.NewRecorder()
	h.Unenroll(w, req)

	assertStatus(t, w, http.StatusOK)
	var body messageResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Message != "Successfully unenrolled from course" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestEnrollmentHandler_Unenroll_NotEnrolled(t *testing.T) {
	svc := &mockEnrollmentService{
		unenrollFn: func(ctx context.Context, p model.Principal, courseID int64) error {
			return model.NewEnrollmentNotFoundError()
		},
	}
	h := newEnrollmentHandler(svc)

	req := withPrincipal(withChiURLParams(httptest.NewRequest(http.MethodDelete, "/api/enrollment/courses/1", nil), "courseId", "1"), studentPrincipal)
	w := httptest.NewRecorder()
	h.Unenroll(w, req)

	assertStatus(t, w, http.StatusNotFound)
}

func TestEnrollmentHandler_ListMyEnrollments(t *testing.T) {
	completed := fixedTime
	svc := &mockEnrollmentService{
		listMineFn: func(ctx context.Context, p model.Principal) ([]model.EnrollmentWithDetails, error) {
			c := sampleCourse(1)
			return []model.EnrollmentWithDetails{
				{
					Enrollment:       model.Enrollment{ID: 5, CourseID: 1, EnrolledAt: fixedTime, CompletedAt: &completed},
					Student:          model.UserSummary{ID: 2, Email: p.Subject},
					Course:           c.Course,
					Instructor:       c.Instructor,
					TotalLessons:     3,
					CompletedLessons: 1,
				},
			}, nil
		},
	}
	h := newEnrollmentHandler(svc)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/enrollment/courses", nil), studentPrincipal)
	w := httptest.NewRecorder()
	h.ListMyEnrollments(w, req)

	assertStatus(t, w, http.StatusOK)

	var body []enrollmentResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("len = %d, want 1", len(body))
	}
	if body[0].ProgressPercentage != 33.33 {
		t.Errorf("progressPercentage = %v, want 33.33", body[0].ProgressPercentage)
	}
	if body[0].Student.Email != "alice@example.com" || body[0].CompletedAt == nil {
		t.Errorf("enrollment = %+v", body[0])
	}
}

func TestEnrollmentHandler_ListMyEnrollments_EmptyIsArray(t *testing.T) {
	h := newEnrollmentHandler(&mockEnrollmentService{})

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/enrollment/courses", nil), studentPrincipal)
	w := httptest.NewRecorder()
	h.ListMyEnrollments(w, req)

	assertStatus(t, w, http.StatusOK)
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want %q", got, "[]\n")
	}
}

func TestEnrollmentHandler_ListCourseStudents_OwnerOnly(t *testing.T) {
	tests := []struct {
		name      string
		principal model.Principal
		want      int
	}{
		{"owner", instructorPrincipal, http.StatusOK},
		{"admin", adminPrincipal, http.StatusOK},
		{"student", studentPrincipal, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newEnrollmentHandler(&mockEnrollmentService{})

			req := withPrincipal(withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/enrollment/courses/1/students", nil), "courseId", "1"), tt.principal)
			w := httptest.NewRecorder()
			h.ListCourseStudents(w, req)

			assertStatus(t, w, tt.want)
		})
	}
}

func TestEnrollmentHandler_MarkLessonCompleted(t *testing.T) {
	tests := []struct {
		name   string
		result *enrollment.CompletionResult
	}{
		{"first completion", &enrollment.CompletionResult{Recorded: true}},
		{"already completed", &enrollment.CompletionResult{}},
		{"last lesson", &enrollment.CompletionResult{Recorded: true, CourseCompleted: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLesson int64
			svc := &mockEnrollmentService{
				markCompletedFn: func(ctx context.Context, p model.Principal, lessonID int64) (*enrollment.CompletionResult, error) {
					gotLesson = lessonID
					return tt.result, nil
				},
			}
			h := newEnrollmentHandler(svc)

			req := httptest.NewRequest(http.MethodPatch, "/api/progress/lessons/100/complete", nil)
			req = withPrincipal(withChiURLParams(req, "lessonId", "100"), studentPrincipal)
			w := httptest.NewRecorder()
			h.MarkLessonCompleted(w, req)

			assertStatus(t, w, http.StatusOK)
			if gotLesson != 100 {
				t.Errorf("lessonID = %d, want 100", gotLesson)
			}

			var body completionResponse
			if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Message != "Lesson marked as completed" {
				t.Errorf("message = %q", body.Message)
			}
			if body.CourseCompleted != tt.result.CourseCompleted {
				t.Errorf("courseCompleted = %v, want %v", body.CourseCompleted, tt.result.CourseCompleted)
			}
		})
	}
}

func TestEnrollmentHandler_MarkLessonCompleted_NotEnrolled(t *testing.T) {
	svc := &mockEnrollmentService{
		markCompletedFn: func(ctx context.Context, p model.Principal, lessonID int64) (*enrollment.CompletionResult, error) {
			return nil, model.NewEnrollmentNotFoundError()
		},
	}
	h := newEnrollmentHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/progress/lessons/100/complete", nil)
	req = withPrincipal(withChiURLParams(req, "lessonId", "100"), studentPrincipal)
	w := httptest.NewRecorder()
	h.MarkLessonCompleted(w, req)

	assertStatus(t, w, http.StatusNotFound)
}

func TestEnrollmentHandler_ListMyProgressInCourse(t *testing.T) {
	done := fixedTime
	svc := &mockEnrollmentService{
		listInCourseFn: func(ctx context.Context, p model.Principal, courseID int64) ([]model.ProgressWithDetails, error) {
			l := sampleLesson(courseID, 100)
			return []model.ProgressWithDetails{
				{
					Progress:   model.Progress{ID: 1, LessonID: 100, CourseID: courseID, Completed: true, CompletedAt: &done},
					Lesson:     l.Lesson,
					Course:     l.Course,
					Instructor: l.Instructor,
				},
			}, nil
		},
	}
	h := newEnrollmentHandler(svc)

	req := withPrincipal(withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/progress/courses/1", nil), "courseId", "1"), studentPrincipal)
	w := httptest.NewRecorder()
	h.ListMyProgressInCourse(w, req)

	assertStatus(t, w, http.StatusOK)

	var body []progressResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body) != 1 || !body[0].Completed || body[0].Lesson.ID != 100 || body[0].Course.ID != 1 {
		t.Errorf("progress = %+v", body)
	}
}

func TestEnrollmentHandler_StudentProgressInCourse(t *testing.T) {
	var gotCourse, gotStudent int64
	svc := &mockEnrollmentService{
		studentProgressFn: func(ctx context.Context, courseID, studentID int64) ([]model.ProgressWithDetails, error) {
			gotCourse, gotStudent = courseID, studentID
			return nil, nil
		},
	}
	h := newEnrollmentHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/progress/students/2/courses/1", nil)
	req = withPrincipal(withChiURLParams(req, "studentId", "2", "courseId", "1"), instructorPrincipal)
	w := httptest.NewRecorder()
	h.StudentProgressInCourse(w, req)

	assertStatus(t, w, http.StatusOK)
	if gotCourse != 1 || gotStudent != 2 {
		t.Errorf("StudentProgressInCourse(%d, %d)", gotCourse, gotStudent)
	}
}

func TestEnrollmentHandler_StudentProgressInCourse_OtherInstructor(t *testing.T) {
	h := newEnrollmentHandler(&mockEnrollmentService{})

	other := model.Principal{Subject: "other@example.com", Roles: []string{model.RoleInstructor}}
	req := httptest.NewRequest(http.MethodGet, "/api/progress/students/2/courses/1", nil)
	req = withPrincipal(withChiURLParams(req, "studentId", "2", "courseId", "1"), other)
	w := httptest.NewRecorder()
	h.StudentProgressInCourse(w, req)

	assertStatus(t, w, http.StatusForbidden)
}
