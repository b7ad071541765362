package models

import "time"

// CommunityPost はcommunity_postsテーブルのレコードです。
type CommunityPost struct {
	ID            string    `json:"id,omitempty"`
	UserID        string    `json:"user_id"`
	AuthorName    string    `json:"author_name"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Category      string    `json:"category"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	IsPinned      bool      `json:"is_pinned"`
	CreatedAt     time.Time `json:"created_at"`
}

// CommunityPostRequest は投稿作成APIのリクエストボディです。
type CommunityPostRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required,max=10000"`
	Category string `json:"category" validate:"omitempty,oneof=general analysis strategies bots wins"`
}
