package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trading-academy/academy-web/internal/models"
)

const communityPostsTable = "community_posts"

// DefaultPostLimit は投稿一覧の既定の件数です。
const DefaultPostLimit = 50

// CommunityRepository はコミュニティ投稿の操作を定義するインターフェースです。
type CommunityRepository interface {
	// ListPosts はピン留めを先頭に新しい順で投稿を返します。category が空なら全カテゴリです。
	ListPosts(ctx context.Context, category string, limit int) ([]models.CommunityPost, error)
	CreatePost(ctx context.Context, post models.CommunityPost) (*models.CommunityPost, error)
}

type communityRepositoryImpl struct {
	rest RestClient
	now  func() time.Time
}

// NewCommunityRepository はCommunityRepositoryの新しいインスタンスを作成します。
func NewCommunityRepository(rest RestClient) CommunityRepository {
	return &communityRepositoryImpl{rest: rest, now: time.Now}
}

func (r *communityRepositoryImpl) ListPosts(ctx context.Context, category string, limit int) ([]models.CommunityPost, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultPostLimit
	}
	rows, err := query(ctx, func(dest *[]models.CommunityPost) error {
		f := r.rest.From(communityPostsTable).Select("*", "", false)
		if category != "" {
			f = f.Eq("category", category)
		}
		_, err := f.Order("is_pinned", desc()).
			Order("created_at", desc()).
			Limit(limit, "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return rows, nil
}

func (r *communityRepositoryImpl) CreatePost(ctx context.Context, post models.CommunityPost) (*models.CommunityPost, error) {
	if post.Category == "" {
		post.Category = "general"
	}
	post.CreatedAt = r.now().UTC()
	rows, err := query(ctx, func(dest *[]models.CommunityPost) error {
		_, err := r.rest.From(communityPostsTable).
			Insert(post, false, "", "representation", "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return &post, nil
	}
	return &rows[0], nil
}
