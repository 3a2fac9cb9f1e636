package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestReadSniffsType(t *testing.T) {
	img, err := Read(bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)

	_, err = Read(strings.NewReader("just some text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestReadRejectsOversized(t *testing.T) {
	big := append(append([]byte{}, pngHeader...), make([]byte, MaxImageSize)...)
	_, err := Read(bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLocalStoreSave(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "/media/")
	require.NoError(t, err)
	s.nowFunc = func() time.Time { return time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC) }

	ref, err := s.Save(context.Background(), Image{ContentType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/media/products/2024/07/09/"), ref)
	assert.True(t, strings.HasSuffix(ref, ".png"), ref)

	onDisk := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(ref, "/media/")))
	b, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, b)
}

func TestLocalStoreDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "/media")
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Save(ctx, Image{ContentType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(ref, "/media/"))))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.NoError(t, s.Delete(ctx, ref))
	assert.ErrorIs(t, s.Delete(ctx, "/media/../secret.png"), ErrForeignRef)
	assert.ErrorIs(t, s.Delete(ctx, "https://elsewhere/products/x.png"), ErrForeignRef)
}

type fakeBucket struct {
	in      *s3.PutObjectInput
	body    []byte
	deleted []string
	err     error
}

func (f *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreSave(t *testing.T) {
	put := &fakeBucket{}
	s := newS3Store(put, S3Config{Bucket: "shop", Endpoint: "http://minio:9000/"})

	ref, err := s.Save(context.Background(), Image{ContentType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "shop", *put.in.Bucket)
	assert.Equal(t, "image/png", *put.in.ContentType)
	assert.Equal(t, pngHeader, put.body)
	assert.Equal(t, "http://minio:9000/shop/"+*put.in.Key, ref)
}

func TestS3StoreSaveError(t *testing.T) {
	put := &fakeBucket{err: errors.New("denied")}
	s := newS3Store(put, S3Config{Bucket: "shop", Region: "eu-west-1"})
	assert.Equal(t, "https://shop.s3.eu-west-1.amazonaws.com", s.publicURL)

	_, err := s.Save(context.Background(), Image{ContentType: "image/png", Data: pngHeader})
	assert.Error(t, err)
}

func TestS3StoreDelete(t *testing.T) {
	bucket := &fakeBucket{}
	s := newS3Store(bucket, S3Config{Bucket: "shop", PublicURL: "https://cdn.example.com/"})
	ctx := context.Background()

	ref, err := s.Save(ctx, Image{ContentType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, ref))
	assert.Equal(t, []string{"shop/" + *bucket.in.Key}, bucket.deleted)

	assert.ErrorIs(t, s.Delete(ctx, "/media/products/x.png"), ErrForeignRef)
}
