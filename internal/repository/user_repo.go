package repository

import (
	"Parley/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type UserRepo interface {
	GetUserById(ctx context.Context, id uint64) (*model.User, error)
	GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, id uint64, fields map[string]any) error
	UpdatePresence(ctx context.Context, id uint64, online bool, lastSeen time.Time) error
	SearchUsers(ctx context.Context, keyword string, excludeID uint64, offset, limit int) ([]*model.User, error)
	ToggleBlock(ctx context.Context, userID, targetID uint64) (bool, error)
}

type UserRepoImpl struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepo {
	return &UserRepoImpl{db: db}
}

func (s *UserRepoImpl) GetUserById(ctx context.Context, id uint64) (*model.User, error) {
	user := &model.User{}
	result := s.db.WithContext(ctx).
		Preload("Blocks").
		First(user, id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return user, nil
}

func (s *UserRepoImpl) GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error) {
	users := make([]*model.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	result := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

func (s *UserRepoImpl) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	result := s.db.WithContext(ctx).
		Where("email = ?", email).
		First(user)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return user, nil
}

// CreateUser 邮箱冲突时返回的错误可用 IsDuplicateKey 判断
func (s *UserRepoImpl) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *UserRepoImpl) UpdateUser(ctx context.Context, id uint64, fields map[string]any) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdatePresence 只写在线状态, 不刷新 updated_at 以免干扰 ES 版本号
func (s *UserRepoImpl) UpdatePresence(ctx context.Context, id uint64, online bool, lastSeen time.Time) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"is_online": online,
			"last_seen": lastSeen,
		}).Error
}

// SearchUsers MySQL 兜底搜索
func (s *UserRepoImpl) SearchUsers(ctx context.Context, keyword string, excludeID uint64, offset, limit int) ([]*model.User, error) {
	users := make([]*model.User, 0)
	like := "%" + keyword + "%"
	result := s.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Where("name LIKE ? OR email LIKE ?", like, like).
		Order("name ASC").
		Offset(offset).
		Limit(limit).
		Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// ToggleBlock 已屏蔽则解除, 否则新增; 返回操作后的屏蔽状态
func (s *UserRepoImpl) ToggleBlock(ctx context.Context, userID, targetID uint64) (bool, error) {
	blocked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND blocked_id = ?", userID, targetID).Delete(&model.UserBlock{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		blocked = true
		return tx.Create(&model.UserBlock{UserID: userID, BlockedID: targetID}).Error
	})
	return blocked, err
}
