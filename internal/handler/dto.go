package handler

import (
	"time"

	"github.com/hitoshi/coursehub/internal/model"
)

// --- リクエスト ---

type registerRequest struct {
	Email     string `json:"email" validate:"notblank,email,max=100"`
	Password  string `json:"password" validate:"required,min=6,max=100"`
	FirstName string `json:"firstName" validate:"notblank,max=50"`
	LastName  string `json:"lastName" validate:"notblank,max=50"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	FirstName string `json:"firstName" validate:"notblank,max=50"`
	LastName  string `json:"lastName" validate:"notblank,max=50"`
}

type grantRoleRequest struct {
	Role string `json:"role" validate:"notblank"`
}

type courseRequest struct {
	Title       string  `json:"title" validate:"notblank,min=3,max=100"`
	Description string  `json:"description" validate:"notblank,min=10,max=2000"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
}

type lessonRequest struct {
	Title               string  `json:"title" validate:"notblank,min=3,max=100"`
	Content             string  `json:"content" validate:"notblank,min=10"`
	VideoURL            *string `json:"videoUrl" validate:"omitempty,url"`
	DurationMinutes     *int    `json:"durationMinutes" validate:"required,min=1"`
	OrderIndex          *int    `json:"orderIndex" validate:"omitempty,min=0"`
	AdditionalResources *string `json:"additionalResources"`
}

// --- レスポンス ---

type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Provider  string    `json:"provider"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type simpleUserDTO struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type simpleLessonDTO struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	OrderIndex      int    `json:"orderIndex"`
	DurationMinutes int    `json:"durationMinutes"`
}

type simpleCourseDTO struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Instructor  simpleUserDTO `json:"instructor"`
}

type courseResponse struct {
	ID              int64             `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	ImageURL        *string           `json:"imageUrl"`
	Published       bool              `json:"published"`
	PublishedAt     *time.Time        `json:"publishedAt"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Instructor      simpleUserDTO     `json:"instructor"`
	Lessons         []simpleLessonDTO `json:"lessons"`
	EnrollmentCount int               `json:"enrollmentCount"`
}

type lessonResponse struct {
	ID                  int64           `json:"id"`
	Title               string          `json:"title"`
	Content             string          `json:"content"`
	VideoURL            *string         `json:"videoUrl"`
	OrderIndex          int             `json:"orderIndex"`
	DurationMinutes     int             `json:"durationMinutes"`
	AdditionalResources *string         `json:"additionalResources"`
	Course              simpleCourseDTO `json:"course"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

type enrollmentResponse struct {
	ID                 int64           `json:"id"`
	Student            simpleUserDTO   `json:"student"`
	Course             simpleCourseDTO `json:"course"`
	EnrolledAt         time.Time       `json:"enrolledAt"`
	LastAccessedAt     *time.Time      `json:"lastAccessedAt"`
	CompletedAt        *time.Time      `json:"completedAt"`
	ProgressPercentage float64         `json:"progressPercentage"`
}

type progressResponse struct {
	ID          int64           `json:"id"`
	Course      simpleCourseDTO `json:"course"`
	Lesson      simpleLessonDTO `json:"lesson"`
	Completed   bool            `json:"completed"`
	CompletedAt *time.Time      `json:"completedAt"`
}

type completionResponse struct {
	Message         string `json:"message"`
	CourseCompleted bool   `json:"courseCompleted"`
}

// --- 変換 ---

func toUserResponse(u *model.User) userResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Provider:  u.Provider,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
	}
}

func toSimpleUser(u model.UserSummary) simpleUserDTO {
	return simpleUserDTO{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

func toSimpleLesson(l model.Lesson) simpleLessonDTO {
	return simpleLessonDTO{
		ID:              l.ID,
		Title:           l.Title,
		OrderIndex:      l.OrderIndex,
		DurationMinutes: l.DurationMinutes,
	}
}

func toSimpleCourse(c model.Course, instructor model.UserSummary) simpleCourseDTO {
	return simpleCourseDTO{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Instructor:  toSimpleUser(instructor),
	}
}

func toCourseResponse(c *model.CourseWithDetails) courseResponse {
	lessons := make([]simpleLessonDTO, 0, len(c.Lessons))
	for _, l := range c.Lessons {
		lessons = append(lessons, toSimpleLesson(l))
	}
	return courseResponse{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		ImageURL:        c.ImageURL,
		Published:       c.Published,
		PublishedAt:     c.PublishedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		Instructor:      toSimpleUser(c.Instructor),
		Lessons:         lessons,
		EnrollmentCount: c.EnrollmentCount,
	}
}

func toCourseResponses(courses []model.CourseWithDetails) []courseResponse {
	out := make([]courseResponse, 0, len(courses))
	for i := range courses {
		out = append(out, toCourseResponse(&courses[i]))
	}
	return out
}

func toLessonResponse(l *model.LessonWithCourse) lessonResponse {
	return lessonResponse{
		ID:                  l.ID,
		Title:               l.Title,
		Content:             l.Content,
		VideoURL:            l.VideoURL,
		OrderIndex:          l.OrderIndex,
		DurationMinutes:     l.DurationMinutes,
		AdditionalResources: l.AdditionalResources,
		Course:              toSimpleCourse(l.Course, l.Instructor),
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
}

func toLessonResponses(lessons []model.LessonWithCourse) []lessonResponse {
	out := make([]lessonResponse, 0, len(lessons))
	for i := range lessons {
		out = append(out, toLessonResponse(&lessons[i]))
	}
	return out
}

func toEnrollmentResponses(enrollments []model.EnrollmentWithDetails) []enrollmentResponse {
	out := make([]enrollmentResponse, 0, len(enrollments))
	for i := range enrollments {
		e := &enrollments[i]
		out = append(out, enrollmentResponse{
			ID:                 e.ID,
			Student:            toSimpleUser(e.Student),
			Course:             toSimpleCourse(e.Course, e.Instructor),
			EnrolledAt:         e.EnrolledAt,
			LastAccessedAt:     e.LastAccessedAt,
			CompletedAt:        e.CompletedAt,
			ProgressPercentage: e.ProgressPercentage(),
		})
	}
	return out
}

func toProgressResponses(progress []model.ProgressWithDetails) []progressResponse {
	out := make([]progressResponse, 0, len(progress))
	for _, p := range progress {
		out = append(out, progressResponse{
			ID:          p.ID,
			Course:      toSimpleCourse(p.Course, p.Instructor),
			Lesson:      toSimpleLesson(p.Lesson),
			Completed:   p.Completed,
			CompletedAt: p.CompletedAt,
		})
	}
	return out
}
