package dto

// MediaUploadDTO 上传结果
type MediaUploadDTO struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
	Type      string `json:"type"` // 对应的消息类型
	Thumbnail string `json:"thumbnail,omitempty"`
}
