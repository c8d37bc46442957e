package service

import (
	"Parley/internal/realtime"
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("invalid parameters")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrInvalidCredential    = errors.New("invalid or expired token")
	ErrUnknownIdentity      = errors.New("user no longer exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExist            = errors.New("user already exists")
	ErrPasswordIncorrect    = errors.New("invalid email or password")
	ErrTargetUserInvalid    = errors.New("invalid target user")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrForbidden            = errors.New("not allowed")
	ErrFileNotSupported     = errors.New("file type not supported")
	ErrFileTooLarge         = errors.New("file too large")
	UnExpectedError         = errors.New("server error, please try again later")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrUnauthenticated:      Unauthorized,
	ErrInvalidCredential:    Unauthorized,
	ErrUnknownIdentity:      Unauthorized,
	ErrUserNotFound:         NotFound,
	ErrUserExist:            BadRequest,
	ErrPasswordIncorrect:    Unauthorized,
	ErrTargetUserInvalid:    BadRequest,
	ErrConversationNotFound: NotFound,
	ErrMessageNotFound:      NotFound,
	ErrForbidden:            Forbidden,
	ErrFileNotSupported:     BadRequest,
	ErrFileTooLarge:         BadRequest,
	UnExpectedError:         InternalServerError,

	realtime.ErrMalformedFrame: BadRequest,
	realtime.ErrUnknownIntent:  BadRequest,
	realtime.ErrInvalidPayload: BadRequest,
}

// Classify 找到 err 链上的业务错误; 未知错误归为 UnExpectedError
func Classify(err error) (error, int, bool) {
	if code, ok := ErrorMap[err]; ok {
		return err, code, true
	}
	for known, code := range ErrorMap {
		if errors.Is(err, known) {
			return known, code, true
		}
	}
	return UnExpectedError, InternalServerError, false
}
