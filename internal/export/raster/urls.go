package raster

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"sync"

	"github.com/google/uuid"

	"resucheck/internal/shared/storage/object"
	"resucheck/internal/shared/util"
)

// URLAllocator publishes a converted image. Callers release URLs they no
// longer need.
type URLAllocator interface {
	Allocate(ctx context.Context, f *File) (string, error)
	Release(ctx context.Context, url string) error
}

// DataURLs inlines the image as a data: URL. Release is a no-op.
type DataURLs struct{}

func (DataURLs) Allocate(_ context.Context, f *File) (string, error) {
	return DataURL(f.ContentType, f.Data), nil
}

func (DataURLs) Release(context.Context, string) error { return nil }

// DataURL encodes data as a base64 data: URL.
func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// StoreURLs saves images in an object store under Prefix and hands out the
// store's URL for them. Allocate sets File.Key.
type StoreURLs struct {
	Store  object.ObjectStore
	Prefix string

	mu   sync.Mutex
	keys map[string]string
}

// NewStoreURLs returns an allocator writing under prefix.
func NewStoreURLs(store object.ObjectStore, prefix string) *StoreURLs {
	return &StoreURLs{Store: store, Prefix: prefix, keys: make(map[string]string)}
}

func (s *StoreURLs) Allocate(ctx context.Context, f *File) (string, error) {
	name, err := util.SanitizeFileName(f.Name)
	if err != nil {
		name = "page.png"
	}
	key := path.Join(s.Prefix, uuid.NewString()+"_"+name)
	if _, err := s.Store.SaveWithKey(ctx, key, f.ContentType, f.Reader()); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	u, err := s.Store.URL(ctx, key)
	if err != nil {
		_ = s.Store.Delete(ctx, key)
		return "", fmt.Errorf("image url: %w", err)
	}
	f.Key = key

	s.mu.Lock()
	if s.keys == nil {
		s.keys = make(map[string]string)
	}
	s.keys[u] = key
	s.mu.Unlock()
	return u, nil
}

// Release deletes the object behind url. Unknown URLs are ignored.
func (s *StoreURLs) Release(ctx context.Context, url string) error {
	s.mu.Lock()
	key, ok := s.keys[url]
	delete(s.keys, url)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Store.Delete(ctx, key)
}

// Keep stops tracking url so a later Release leaves the object in place.
// The caller takes ownership of the key.
func (s *StoreURLs) Keep(url string) {
	s.mu.Lock()
	delete(s.keys, url)
	s.mu.Unlock()
}
