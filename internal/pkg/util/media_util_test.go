package util

import (
	"Parley/internal/pkg/consts"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGetSafeContentTypeIgnoresParameters(t *testing.T) {
	mime, ext := GetSafeContentType([]byte("hello world"))
	require.Equal(t, "text/plain", mime)
	require.Equal(t, ".txt", ext)

	mime, ext = GetSafeContentType(pngBytes(t, 4, 4))
	require.Equal(t, "image/png", mime)
	require.Equal(t, ".png", ext)
}

func TestMessageTypeForMime(t *testing.T) {
	cases := map[string]string{
		"image/png":       consts.MessageTypeImage,
		"video/mp4":       consts.MessageTypeVideo,
		"audio/mpeg":      consts.MessageTypeAudio,
		"application/pdf": consts.MessageTypeDocument,
	}
	for mime, want := range cases {
		got, ok := MessageTypeForMime(mime)
		require.True(t, ok, mime)
		require.Equal(t, want, got)
	}

	_, ok := MessageTypeForMime("application/x-msdownload")
	require.False(t, ok)
}

func TestMakeThumbnailScalesDownOnly(t *testing.T) {
	out, err := MakeThumbnail(pngBytes(t, 640, 320), 160)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 160, img.Bounds().Dx())
	require.Equal(t, 80, img.Bounds().Dy())

	out, err = MakeThumbnail(pngBytes(t, 100, 50), 160)
	require.NoError(t, err)
	img, err = imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 100, img.Bounds().Dx())

	_, err = MakeThumbnail([]byte("not an image"), 160)
	require.Error(t, err)
}
