package models

// DashboardStats はダッシュボードに表示する集計値です。
type DashboardStats struct {
	EnrolledCourses     int          `json:"enrolled_courses"`
	CompletedCourses    int          `json:"completed_courses"`
	CompletedLessons    int          `json:"completed_lessons"`
	AverageQuizScore    float64      `json:"average_quiz_score"`
	ActiveLicenses      int          `json:"active_licenses"`
	UnreadNotifications int          `json:"unread_notifications"`
	OverallProgress     float64      `json:"overall_progress"`
	NextLiveSession     *LiveSession `json:"next_live_session,omitempty"`
}
