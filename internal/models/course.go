package models

import "time"

// Course はcoursesテーブルのレコードに対応する構造体です。
// Modules は詳細取得時のみ埋められます。
type Course struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	TierRequired  Tier      `json:"tier_required"`
	IsPublished   bool      `json:"is_published"`
	SortOrder     int       `json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
	Modules       []Module  `json:"modules,omitempty"`
}

// Module はcourse_modulesテーブルのレコードです。
type Module struct {
	ID          string   `json:"id"`
	CourseID    string   `json:"course_id"`
	Title       string   `json:"title"`
	SortOrder   int      `json:"sort_order"`
	IsPublished bool     `json:"is_published"`
	Lessons     []Lesson `json:"lessons,omitempty"`
}

// Lesson はlessonsテーブルのレコードです。
type Lesson struct {
	ID              string `json:"id"`
	ModuleID        string `json:"module_id"`
	Title           string `json:"title"`
	Content         string `json:"content,omitempty"`
	VideoURL        string `json:"video_url,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	SortOrder       int    `json:"sort_order"`
	IsPublished     bool   `json:"is_published"`
	TierRequired    Tier   `json:"tier_required,omitempty"`
}

// LessonCount はコースに含まれるレッスン数を返します。
func (c *Course) LessonCount() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}

// CourseListItem はコース一覧で返す要素です。Locked は閲覧者のTierで開けないことを表します。
type CourseListItem struct {
	Course
	Locked bool `json:"locked"`
}

// LessonDetail はレッスンと、それが属するコースの情報です。
type LessonDetail struct {
	Lesson
	CourseID    string `json:"course_id"`
	CourseTitle string `json:"course_title"`
	// EffectiveTier はレッスン自身のTier、無ければコースのTierです。
	EffectiveTier Tier `json:"effective_tier"`
}
