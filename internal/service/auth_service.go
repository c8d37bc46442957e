package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/es"
	"Parley/internal/pkg/security"
	"Parley/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"
)

// TokenStore 已注销 token 黑名单
type TokenStore interface {
	Revoke(ctx context.Context, signature string, ttl time.Duration) error
	IsRevoked(ctx context.Context, signature string) (bool, error)
}

// AuthService 账号与凭据校验
type AuthService interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
	Register(ctx context.Context, req *dto.RegisterDTO) (*dto.AuthDTO, error)
	Login(ctx context.Context, req *dto.CredentialDTO) (*dto.AuthDTO, error)
	Logout(ctx context.Context, token string) error
}

type authServiceImpl struct {
	userRepo   repository.UserRepo
	tokens     TokenStore
	userESRepo es.UserRepo
}

// NewAuthService tokens 与 userESRepo 可以为 nil
func NewAuthService(userRepo repository.UserRepo, tokens TokenStore, userESRepo es.UserRepo) AuthService {
	return &authServiceImpl{
		userRepo:   userRepo,
		tokens:     tokens,
		userESRepo: userESRepo,
	}
}

// Authenticate 建立连接前的身份校验, 失败时不创建任何连接状态
func (s *authServiceImpl) Authenticate(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := security.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	if s.tokens != nil {
		signature, err := security.ExtractSignature(token)
		if err != nil {
			return nil, ErrInvalidCredential
		}
		revoked, err := s.tokens.IsRevoked(ctx, signature)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrInvalidCredential
		}
	}

	user, err := s.userRepo.GetUserById(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", claims.UserID, err)
	}
	if user == nil {
		return nil, ErrUnknownIdentity
	}
	return user, nil
}

func (s *authServiceImpl) Register(ctx context.Context, req *dto.RegisterDTO) (*dto.AuthDTO, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return nil, ErrParamInvalid
	}

	existing, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExist
	}

	hashed, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:         email,
		Password:      hashed,
		Name:          name,
		Avatar:        consts.DefaultAvatarURL,
		Status:        consts.DefaultStatus,
		LastSeen:      time.Now(),
		Notifications: true,
		Sound:         true,
	}
	if err = s.userRepo.CreateUser(ctx, user); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrUserExist
		}
		return nil, err
	}

	indexUser(ctx, s.userESRepo, user)
	return s.issue(user)
}

func (s *authServiceImpl) Login(ctx context.Context, req *dto.CredentialDTO) (*dto.AuthDTO, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrPasswordIncorrect
	}

	if err = security.CheckPasswordHash(req.Password, user.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, ErrPasswordIncorrect
		}
		return nil, err
	}

	// 登录响应需要带上屏蔽列表
	full, err := s.userRepo.GetUserById(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if full == nil {
		return nil, ErrUserNotFound
	}
	return s.issue(full)
}

// Logout 签名加入黑名单直到 token 自然过期
func (s *authServiceImpl) Logout(ctx context.Context, token string) error {
	claims, err := security.ValidateToken(token)
	if err != nil {
		return ErrInvalidCredential
	}
	signature, err := security.ExtractSignature(token)
	if err != nil {
		return ErrInvalidCredential
	}
	if s.tokens == nil {
		return nil
	}
	return s.tokens.Revoke(ctx, signature, security.RemainingTTL(claims))
}

func (s *authServiceImpl) issue(user *model.User) (*dto.AuthDTO, error) {
	token, err := security.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &dto.AuthDTO{Token: token, User: toUserDTO(user)}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// indexUser ES 只是搜索副本, 写入失败不影响主流程
func indexUser(ctx context.Context, repo es.UserRepo, user *model.User) {
	if repo == nil {
		return
	}
	doc := &es.UserES{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Avatar: user.Avatar,
		Status: user.Status,
	}
	version := user.UpdatedAt.UnixMilli()
	if version <= 0 {
		version = time.Now().UnixMilli()
	}
	if err := repo.IndexUser(ctx, doc, version); err != nil {
		log.WarnContext(ctx, "failed to index user", "user_id", user.ID, "err", err)
	}
}
