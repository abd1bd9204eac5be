package media

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakon-apparel/storefront/infra/supabase"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	webpHeader = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
)

func TestDetectImage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
		err  error
	}{
		{"png", pngHeader, "image/png", nil},
		{"jpeg", jpegHeader, "image/jpeg", nil},
		{"webp", webpHeader, "image/webp", nil},
		{"empty", nil, "", ErrEmpty},
		{"text", []byte("hello, world"), "", ErrUnsupportedType},
		{"gif", []byte("GIF89a\x01\x00"), "", ErrUnsupportedType},
		{"too large", append(append([]byte(nil), pngHeader...), make([]byte, MaxImageSize)...), "", ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectImage(tt.data)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageKey(t *testing.T) {
	key := ImageKey("p1", "image/webp")
	assert.True(t, strings.HasPrefix(key, "products/p1/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))
	assert.NotEqual(t, key, ImageKey("p1", "image/webp"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("http://cdn.local/")

	u, err := m.Put(ctx, "products/p1/a.png", pngHeader, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/products/p1/a.png", u)

	obj, ok := m.Get("products/p1/a.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, m.Delete(ctx, "products/p1/a.png"))
	_, ok = m.Get("products/p1/a.png")
	assert.False(t, ok)
}

func TestSupabaseStore(t *testing.T) {
	var (
		mu       sync.Mutex
		uploaded []byte
		deleted  []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/storage/v1/object/product-images/products/p1/a.png":
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			uploaded, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"Key":"product-images/products/p1/a.png"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/storage/v1/object/product-images":
			var body struct {
				Prefixes []string `json:"prefixes"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			deleted = body.Prefixes
			_, _ = w.Write([]byte(`[]`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := supabase.New(supabase.Config{ProjectURL: server.URL, ServiceKey: "service", HTTPClient: server.Client()})
	require.NoError(t, err)
	store := NewSupabaseStore(client, "product-images")
	ctx := context.Background()

	u, err := store.Put(ctx, "products/p1/a.png", pngHeader, "image/png")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/storage/v1/object/public/product-images/products/p1/a.png", u)
	assert.True(t, bytes.Equal(pngHeader, uploaded))

	require.NoError(t, store.Delete(ctx, "products/p1/a.png"))
	assert.Equal(t, []string{"products/p1/a.png"}, deleted)
}

func TestS3Store(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method+" "+r.URL.Path)
		mu.Unlock()
		_, _ = io.Copy(io.Discard, r.Body)
		switch r.Method {
		case http.MethodPut:
			w.Header().Set("ETag", `"etag-1"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	store, err := NewS3Store(ctx, S3Config{
		Bucket:          "lakon-media",
		Region:          "ap-southeast-1",
		Endpoint:        server.URL,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PublicBaseURL:   "https://cdn.lakon.example/",
	})
	require.NoError(t, err)

	u, err := store.Put(ctx, "products/p1/a.jpg", jpegHeader, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.lakon.example/products/p1/a.jpg", u)
	require.NoError(t, store.Delete(ctx, "products/p1/a.jpg"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"PUT /lakon-media/products/p1/a.jpg",
		"DELETE /lakon-media/products/p1/a.jpg",
	}, methods)

	_, err = NewS3Store(ctx, S3Config{})
	assert.Error(t, err)

	plain, err := NewS3Store(ctx, S3Config{Bucket: "b", Region: "ap-southeast-3", AccessKeyID: "a", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "https://b.s3.ap-southeast-3.amazonaws.com/x.png", plain.PublicURL("x.png"))
}
