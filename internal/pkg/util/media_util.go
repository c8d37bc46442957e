package util

import (
	"Parley/internal/pkg/consts"
	"bytes"
	"fmt"
	"image"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// GetSafeContentType 按文件头识别真实类型, 返回不带参数的 MIME 与扩展名
func GetSafeContentType(data []byte) (string, string) {
	mt := mimetype.Detect(data)
	mime, _, _ := strings.Cut(mt.String(), ";")
	return mime, mt.Extension()
}

// MessageTypeForMime 上传文件对应的消息类型
func MessageTypeForMime(mime string) (string, bool) {
	switch {
	case slices.Contains(consts.AllowedImageTypes, mime):
		return consts.MessageTypeImage, true
	case slices.Contains(consts.AllowedVideoTypes, mime):
		return consts.MessageTypeVideo, true
	case slices.Contains(consts.AllowedAudioTypes, mime):
		return consts.MessageTypeAudio, true
	case slices.Contains(consts.AllowedFileTypes, mime):
		return consts.MessageTypeDocument, true
	}
	return "", false
}

// MakeThumbnail 等比缩放到指定宽度并编码为 JPEG, 原图更窄时不放大
func MakeThumbnail(data []byte, width int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var thumb image.Image = img
	if img.Bounds().Dx() > width {
		thumb = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
