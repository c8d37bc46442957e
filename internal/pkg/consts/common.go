package consts

const (
	MimePrefixImage = "image"
	MimePrefixAudio = "audio"
	MimePrefixVideo = "video"
)

const (
	DefaultAvatarURL = "default_avatar.png"
	DefaultStatus    = "Hey there! I am using Parley"
)

// 消息类型
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeVideo    = "video"
	MessageTypeAudio    = "audio"
	MessageTypeDocument = "document"
)

// 会话类型, 目前只有单聊
const (
	ConversationTypeDirect int8 = 1
)

const (
	MaxMessageLength = 5000
	DefaultPageSize  = 50
	MaxPageSize      = 100
)

const UserIDKey = "user_id"

var (
	AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	AllowedVideoTypes = []string{"video/mp4", "video/webm", "video/quicktime"}
	AllowedAudioTypes = []string{"audio/mpeg", "audio/wav", "audio/ogg", "audio/webm"}
	AllowedFileTypes  = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"text/plain",
		"application/zip",
	}
)
