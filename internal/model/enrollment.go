package model

import (
	"math"
	"time"
)

// Enrollment は学生とコースの受講関係を表す。
// (StudentID, CourseID) の組はデータベースの一意制約で1件に限られる。
type Enrollment struct {
	ID             int64
	StudentID      int64
	CourseID       int64
	EnrolledAt     time.Time
	LastAccessedAt *time.Time
	Active         bool
	CompletedAt    *time.Time
}

// EnrollmentWithDetails は受講情報に学生・コースの要約と進捗を結合した構造体。
type EnrollmentWithDetails struct {
	Enrollment
	Student          UserSummary
	Course           Course
	Instructor       UserSummary
	TotalLessons     int
	CompletedLessons int
}

// ProgressPercentage は完了レッスン数から進捗率（%）を算出する。
// 小数第2位で丸め、レッスンが0件の場合は0を返す。
func (e *EnrollmentWithDetails) ProgressPercentage() float64 {
	return ProgressPercentage(e.CompletedLessons, e.TotalLessons)
}

// ProgressPercentage は completed / total * 100 を小数第2位で丸めて返す。
func ProgressPercentage(completed, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	pct := float64(completed) / float64(total) * 100
	return math.Round(pct*100) / 100
}

// Progress は学生ごとのレッスン完了状態を表す。
// CourseIDはレッスンの所属コースを非正規化して保持する。
type Progress struct {
	ID          int64
	StudentID   int64
	LessonID    int64
	CourseID    int64
	Completed   bool
	CompletedAt *time.Time
}

// ProgressWithDetails は進捗にレッスンとコースの情報を結合した構造体。
type ProgressWithDetails struct {
	Progress
	Lesson     Lesson
	Course     Course
	Instructor UserSummary
}
