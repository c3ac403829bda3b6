package model

import "time"

// Course はインストラクターが作成するコースを表す。
// 非公開のコースは所有者と管理者以外には見えない。
type Course struct {
	ID           int64
	Title        string
	Description  string
	ImageURL     *string
	InstructorID int64
	Published    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PublishedAt  *time.Time
}

// CourseWithDetails はコースにインストラクター情報、レッスン一覧、受講者数を結合した構造体。
type CourseWithDetails struct {
	Course
	Instructor      UserSummary
	Lessons         []Lesson
	EnrollmentCount int
}

// UserSummary はレスポンスに埋め込むユーザーの要約情報。
type UserSummary struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
}

// Lesson はコースに属するレッスンを表す。
// OrderIndexはコース内の並び順で、重複は許容される。
type Lesson struct {
	ID                  int64
	CourseID            int64
	Title               string
	Content             string
	VideoURL            *string
	DurationMinutes     int
	OrderIndex          int
	AdditionalResources *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LessonWithCourse はレッスンに所属コースとそのインストラクターを結合した構造体。
type LessonWithCourse struct {
	Lesson
	Course     Course
	Instructor UserSummary
}
