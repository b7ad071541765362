package database

import (
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// PublicURLGetter は公開バケットのURLを返すストレージクライアントです。*storage_go.Client が満たします。
type PublicURLGetter interface {
	GetPublicUrl(bucketId string, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// storageThumbnails はSupabase Storageの公開バケットからサムネイルURLを組み立てます。
type storageThumbnails struct {
	storage PublicURLGetter
	bucket  string
}

// NewStorageThumbnails はThumbnailResolverの新しいインスタンスを作成します。
func NewStorageThumbnails(storage PublicURLGetter, bucket string) ThumbnailResolver {
	return &storageThumbnails{storage: storage, bucket: bucket}
}

// PublicURL は path を公開URLに変換します。既に絶対URLならそのまま返します。
func (s *storageThumbnails) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if s.storage == nil {
		return ""
	}
	return s.storage.GetPublicUrl(s.bucket, strings.TrimPrefix(path, "/")).SignedURL
}
