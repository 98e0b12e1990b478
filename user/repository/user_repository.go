package repository

import (
	"errors"

	"chat-companion/backend/user/models"

	"gorm.io/gorm"
)

type UserRepository interface {
	// Get returns nil without error when the user is unknown.
	Get(platformID int64, botID uint) (*models.User, error)
	Create(user *models.User) error
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Get(platformID int64, botID uint) (*models.User, error) {
	var user models.User
	err := r.db.Where("platform_id = ? AND bot_id = ?", platformID, botID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}
