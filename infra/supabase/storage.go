package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// StorageClient handles Supabase Storage operations.
type StorageClient struct {
	client *Client
}

// EnsureBucket creates a bucket unless it already exists.
func (s *StorageClient) EnsureBucket(ctx context.Context, bucketID string, public bool) error {
	body, err := jsonBody(map[string]interface{}{
		"id":     bucketID,
		"name":   bucketID,
		"public": public,
	})
	if err != nil {
		return err
	}

	resp, err := s.client.requestWithServiceKey(ctx, http.MethodPost, s.client.storageURL+"/bucket", body, nil)
	if err != nil {
		return err
	}
	if resp.status >= 400 {
		apiErr := parseError(resp.body, resp.status)
		// Storage reports duplicates as 400 or 409 depending on version.
		if IsConflict(apiErr) || strings.Contains(strings.ToLower(apiErr.Error()), "already exists") {
			return nil
		}
		return apiErr
	}
	return nil
}

// Upload uploads a file to storage.
func (s *StorageClient) Upload(ctx context.Context, bucketID, filePath string, data []byte, opts *UploadOptions) (*FileObject, error) {
	headers := map[string]string{"Content-Type": "application/octet-stream"}
	if opts != nil {
		if opts.ContentType != "" {
			headers["Content-Type"] = opts.ContentType
		}
		if opts.CacheControl != "" {
			headers["Cache-Control"] = opts.CacheControl
		}
		if opts.Upsert {
			headers["x-upsert"] = "true"
		}
	}

	resp, err := s.client.requestWithServiceKey(ctx, http.MethodPost, s.objectURL("object", bucketID, filePath), bytes.NewReader(data), headers)
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, parseError(resp.body, resp.status)
	}

	var result FileObject
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &result, nil
}

// Delete deletes files from a bucket.
func (s *StorageClient) Delete(ctx context.Context, bucketID string, filePaths []string) error {
	body, err := jsonBody(map[string][]string{"prefixes": filePaths})
	if err != nil {
		return err
	}

	resp, err := s.client.requestWithServiceKey(ctx, http.MethodDelete, s.client.storageURL+"/object/"+url.PathEscape(bucketID), body, nil)
	if err != nil {
		return err
	}
	if resp.status >= 400 {
		return parseError(resp.body, resp.status)
	}
	return nil
}

// GetPublicURL returns the public URL for a file in a public bucket.
func (s *StorageClient) GetPublicURL(bucketID, filePath string) string {
	return s.objectURL("object/public", bucketID, filePath)
}

func (s *StorageClient) objectURL(prefix, bucketID, filePath string) string {
	segments := strings.Split(strings.TrimLeft(filePath, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%s/%s/%s", s.client.storageURL, prefix, url.PathEscape(bucketID), strings.Join(segments, "/"))
}
