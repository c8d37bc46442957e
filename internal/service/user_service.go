package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/es"
	"Parley/internal/repository"
	"context"
	log "log/slog"
	"strings"
)

type UserService interface {
	GetProfile(ctx context.Context, userID uint64) (*dto.UserDTO, error)
	GetUser(ctx context.Context, id uint64) (*dto.UserBrief, error)
	UpdateProfile(ctx context.Context, userID uint64, req *dto.UpdateProfileDTO) (*dto.UserDTO, error)
	SearchUsers(ctx context.Context, userID uint64, req *dto.SearchUserDTO) ([]*dto.UserBrief, error)
	ToggleBlock(ctx context.Context, userID, targetID uint64) (*dto.BlockDTO, error)
}

type userServiceImpl struct {
	userRepo   repository.UserRepo
	userESRepo es.UserRepo
}

// NewUserService userESRepo 为 nil 时搜索走 MySQL
func NewUserService(userRepo repository.UserRepo, userESRepo es.UserRepo) UserService {
	return &userServiceImpl{
		userRepo:   userRepo,
		userESRepo: userESRepo,
	}
}

func (s *userServiceImpl) GetProfile(ctx context.Context, userID uint64) (*dto.UserDTO, error) {
	user, err := s.userRepo.GetUserById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return toUserDTO(user), nil
}

func (s *userServiceImpl) GetUser(ctx context.Context, id uint64) (*dto.UserBrief, error) {
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return toUserBrief(user), nil
}

func (s *userServiceImpl) UpdateProfile(ctx context.Context, userID uint64, req *dto.UpdateProfileDTO) (*dto.UserDTO, error) {
	fields := make(map[string]any)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrParamInvalid
		}
		fields["name"] = name
	}
	if req.Status != nil {
		fields["status"] = strings.TrimSpace(*req.Status)
	}
	if req.Avatar != nil {
		fields["avatar"] = *req.Avatar
	}
	if req.Notifications != nil {
		fields["notifications"] = *req.Notifications
	}
	if req.Sound != nil {
		fields["sound"] = *req.Sound
	}

	if len(fields) > 0 {
		if err := s.userRepo.UpdateUser(ctx, userID, fields); err != nil {
			return nil, err
		}
	}

	user, err := s.userRepo.GetUserById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	indexUser(ctx, s.userESRepo, user)
	return toUserDTO(user), nil
}

// SearchUsers 优先 ES, 失败时退回 MySQL LIKE
func (s *userServiceImpl) SearchUsers(ctx context.Context, userID uint64, req *dto.SearchUserDTO) ([]*dto.UserBrief, error) {
	size := req.PageSize
	if size <= 0 {
		size = consts.DefaultPageSize
	}
	if size > consts.MaxPageSize {
		size = consts.MaxPageSize
	}
	from := req.Page * size
	keyword := strings.TrimSpace(req.Search)

	if s.userESRepo != nil && keyword != "" {
		ids, err := s.userESRepo.SearchUsers(ctx, keyword, userID, from, size)
		if err == nil {
			return s.loadInOrder(ctx, ids)
		}
		log.WarnContext(ctx, "user search via ES failed, falling back to MySQL", "err", err)
	}

	users, err := s.userRepo.SearchUsers(ctx, keyword, userID, from, size)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.UserBrief, 0, len(users))
	for _, u := range users {
		out = append(out, toUserBrief(u))
	}
	return out, nil
}

// ToggleBlock 仅记录, 不影响消息投递
func (s *userServiceImpl) ToggleBlock(ctx context.Context, userID, targetID uint64) (*dto.BlockDTO, error) {
	if targetID == 0 || targetID == userID {
		return nil, ErrTargetUserInvalid
	}
	target, err := s.userRepo.GetUserById(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrUserNotFound
	}
	blocked, err := s.userRepo.ToggleBlock(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	return &dto.BlockDTO{UserID: targetID, Blocked: blocked}, nil
}

func (s *userServiceImpl) loadInOrder(ctx context.Context, ids []uint64) ([]*dto.UserBrief, error) {
	users, err := s.userRepo.GetUserByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]*dto.UserBrief, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, toUserBrief(u))
		}
	}
	return out, nil
}
