package repository

import (
	"chat-companion/backend/conversation/models"

	"gorm.io/gorm"
)

type AwaitingRepository interface {
	Exists(chatID int64, modality models.Modality) (bool, error)
	Create(input *models.AwaitingInput) error
	// ClearChat marks all AWAITING records of the chat PROCESSED.
	ClearChat(chatID int64) error
}

type GormAwaitingRepository struct {
	db *gorm.DB
}

func NewGormAwaitingRepository(db *gorm.DB) *GormAwaitingRepository {
	return &GormAwaitingRepository{db: db}
}

func (r *GormAwaitingRepository) Exists(chatID int64, modality models.Modality) (bool, error) {
	var count int64
	err := r.db.Model(&models.AwaitingInput{}).
		Where("chat_id = ? AND modality = ? AND status = ?", chatID, modality, models.AwaitingOpen).
		Count(&count).Error
	return count > 0, err
}

func (r *GormAwaitingRepository) Create(input *models.AwaitingInput) error {
	return r.db.Create(input).Error
}

func (r *GormAwaitingRepository) ClearChat(chatID int64) error {
	return r.db.Model(&models.AwaitingInput{}).
		Where("chat_id = ? AND status = ?", chatID, models.AwaitingOpen).
		Update("status", models.AwaitingProcessed).Error
}
