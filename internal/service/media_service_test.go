package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/redis"
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://media.local/parley/"

type memoryStorage struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStorage) UploadFile(_ context.Context, name string, r io.Reader, _ int64, ct string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[name] = data
	m.types[name] = ct
	return name, nil
}

func (m *memoryStorage) DeleteFile(_ context.Context, name string) error {
	delete(m.objects, name)
	return nil
}

func (m *memoryStorage) GetPublicURL(name string) string { return testBaseURL + name }

func (m *memoryStorage) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, testBaseURL)
	return key, ok && key != ""
}

type memoryTempIndex struct {
	entries map[string]redis.MediaTempMetadata
}

func (m *memoryTempIndex) Track(_ context.Context, key string, meta redis.MediaTempMetadata) error {
	m.entries[key] = meta
	return nil
}

func (m *memoryTempIndex) Attach(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestUploadImageCreatesThumbnailAndTracksTemp(t *testing.T) {
	storage := newMemoryStorage()
	temp := &memoryTempIndex{entries: map[string]redis.MediaTempMetadata{}}
	svc := NewMediaService(storage, temp, 1<<20, 64)

	out, err := svc.Upload(context.Background(), 7, fileHeader(t, "cat.jpg", testPNG(t, 256, 128)))
	require.NoError(t, err)
	require.Equal(t, "image", out.Type)
	require.Equal(t, "image/png", out.MimeType, "sniffed type wins over the file name")
	require.True(t, strings.HasPrefix(out.URL, testBaseURL+"image/"))
	require.NotEmpty(t, out.Thumbnail)
	require.Len(t, storage.objects, 2)

	key, ok := storage.KeyFromURL(out.URL)
	require.True(t, ok)
	require.Contains(t, temp.entries, key)
	require.Equal(t, uint64(7), temp.entries[key].UserID)

	media := svc.Claim(context.Background(), &dto.MediaDTO{URL: out.URL, Thumbnail: out.Thumbnail, MimeType: out.MimeType})
	require.Equal(t, key, media.Key)
	require.NotEmpty(t, media.ThumbnailKey)
	require.NotContains(t, temp.entries, key)
}

func TestUploadRejectsUnsupportedAndOversized(t *testing.T) {
	storage := newMemoryStorage()
	temp := &memoryTempIndex{entries: map[string]redis.MediaTempMetadata{}}
	svc := NewMediaService(storage, temp, 1024, 64)

	exe := append([]byte("MZ"), make([]byte, 64)...)
	_, err := svc.Upload(context.Background(), 1, fileHeader(t, "doc.pdf", exe))
	require.ErrorIs(t, err, ErrFileNotSupported)

	_, err = svc.Upload(context.Background(), 1, fileHeader(t, "big.txt", bytes.Repeat([]byte("a"), 2048)))
	require.ErrorIs(t, err, ErrFileTooLarge)
	require.Empty(t, storage.objects)
}

func TestClaimKeepsExternalURL(t *testing.T) {
	temp := &memoryTempIndex{entries: map[string]redis.MediaTempMetadata{}}
	svc := NewMediaService(newMemoryStorage(), temp, 1024, 64)

	media := svc.Claim(context.Background(), &dto.MediaDTO{URL: "https://elsewhere.example/x.png"})
	require.Equal(t, "https://elsewhere.example/x.png", media.URL)
	require.Empty(t, media.Key)
}
