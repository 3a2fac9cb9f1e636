// Package media stores uploaded product images and returns the reference
// saved on the product.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxImageSize = 1 << 20

var (
	ErrTooLarge        = errors.New("image exceeds 1 MiB")
	ErrUnsupportedType = errors.New("image must be jpeg, png, gif or webp")
	ErrForeignRef      = errors.New("image reference not owned by this store")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store persists an image and returns where clients can fetch it. Delete
// takes a reference returned by Save.
type Store interface {
	Save(ctx context.Context, img Image) (string, error)
	Delete(ctx context.Context, ref string) error
}

type Image struct {
	ContentType string
	Data        []byte
}

// Read drains r, enforcing MaxImageSize, and sniffs the content type.
func Read(r io.Reader) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return Image{}, ErrTooLarge
	}
	ct := http.DetectContentType(data)
	if _, ok := extensions[ct]; !ok {
		return Image{}, ErrUnsupportedType
	}
	return Image{ContentType: ct, Data: data}, nil
}

func (img Image) reader() io.Reader {
	return bytes.NewReader(img.Data)
}

// keyFromRef strips prefix from ref and rejects keys that leave the store.
func keyFromRef(prefix, ref string) (string, error) {
	key, ok := ref, true
	if prefix != "" {
		key, ok = strings.CutPrefix(ref, prefix+"/")
	}
	if !ok || key == "" {
		return "", ErrForeignRef
	}
	if clean := path.Clean(key); clean != key || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", ErrForeignRef
	}
	return key, nil
}

func objectKey(img Image, now time.Time) string {
	return fmt.Sprintf("products/%d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.NewString(), extensions[img.ContentType])
}
