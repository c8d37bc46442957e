package consts

const (
	PresenceKey     = "presence:user:"
	RevokedTokenKey = "auth:revoked:"
	MediaTempKey    = "media:temp"
)
