package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotImage = errors.New("attached file is not an image")

var allowed = map[string]string{
	"image/png":  ".png",
	"image/jpg":  ".jpg",
	"image/jpeg": ".jpg",
}

type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func Allowed(contentType string) bool {
	_, ok := allowed[strings.ToLower(contentType)]
	return ok
}

type Store interface {
	Save(ctx context.Context, up Upload) (string, error)
	Delete(ctx context.Context, url string) error
}

// objectName builds a unique, timestamp-prefixed name from the client file name.
func objectName(up Upload) string {
	base := filepath.Base(strings.ReplaceAll(up.Filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image" + allowed[strings.ToLower(up.ContentType)]
	}
	base = strings.Map(func(r rune) rune {
		if r == ' ' || r == ':' {
			return '_'
		}
		return r
	}, base)
	return time.Now().UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8] + "-" + base
}

type DiskStore struct {
	Dir       string
	URLPrefix string
}

func (s *DiskStore) Save(_ context.Context, up Upload) (string, error) {
	if !Allowed(up.ContentType) {
		return "", ErrNotImage
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("image dir: %w", err)
	}

	name := objectName(up)
	f, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, up.Body); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path.Join(s.URLPrefix, name), nil
}

// Delete removes a previously saved image. A missing file is not an error.
func (s *DiskStore) Delete(_ context.Context, url string) error {
	name := strings.TrimPrefix(url, s.URLPrefix)
	name = filepath.Base(strings.TrimPrefix(name, "/"))
	if name == "" || name == "." {
		return nil
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
