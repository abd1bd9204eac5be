package media

import (
	"context"

	"github.com/lakon-apparel/storefront/infra/supabase"
)

// SupabaseStore keeps images in a public Supabase Storage bucket.
type SupabaseStore struct {
	storage *supabase.StorageClient
	bucket  string
}

// NewSupabaseStore creates the store. Call EnsureBucket once at startup.
func NewSupabaseStore(client *supabase.Client, bucket string) *SupabaseStore {
	return &SupabaseStore{storage: client.Storage(), bucket: bucket}
}

// EnsureBucket creates the public bucket if needed.
func (s *SupabaseStore) EnsureBucket(ctx context.Context) error {
	return s.storage.EnsureBucket(ctx, s.bucket, true)
}

func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.storage.Upload(ctx, s.bucket, key, data, &supabase.UploadOptions{
		ContentType:  contentType,
		CacheControl: "31536000",
	})
	if err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	return s.storage.Delete(ctx, s.bucket, []string{key})
}

func (s *SupabaseStore) PublicURL(key string) string {
	return s.storage.GetPublicURL(s.bucket, key)
}
