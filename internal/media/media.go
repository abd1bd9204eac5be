// Package media stores product images in object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

var (
	ErrTooLarge        = errors.New("image exceeds 5 MiB")
	ErrUnsupportedType = errors.New("image must be jpeg, png or webp")
	ErrEmpty           = errors.New("image is empty")
)

// Store is an object store with public read URLs.
type Store interface {
	// Put writes data at key and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// DetectImage sniffs data and returns its content type, rejecting anything
// other than jpeg, png or webp.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}
	ct := http.DetectContentType(data)
	if _, ok := imageExtensions[ct]; !ok {
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedType, ct)
	}
	return ct, nil
}

// ImageKey builds a unique object key for a product image.
func ImageKey(productID, contentType string) string {
	return path.Join("products", productID, uuid.NewString()+imageExtensions[contentType])
}
