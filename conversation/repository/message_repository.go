package repository

import (
	"errors"

	"chat-companion/backend/conversation/models"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(message *models.Message) error
	// Unprocessed returns all NEW messages for the chat, newest first.
	Unprocessed(chatID int64) ([]models.Message, error)
	// History returns the chat's non-superseded messages, oldest first.
	History(chatID int64, botID uint) ([]models.Message, error)
	UpdateStatus(id uint, status string) error
	UpdateContent(id uint, content string) error
	UpdateStatuses(ids []uint, status string) error
	// Supersede marks every message of the chat SUPERSEDED, starting a
	// fresh context window.
	Supersede(chatID int64) error
	// LatestPlaceholder returns the newest assistant row still holding
	// placeholder content for the chat, or nil when there is none.
	LatestPlaceholder(chatID int64) (*models.Message, error)
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(message *models.Message) error {
	return r.db.Create(message).Error
}

func (r *GormMessageRepository) Unprocessed(chatID int64) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("chat_id = ? AND status = ?", chatID, models.StatusNew).
		Order("created_at DESC").
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) History(chatID int64, botID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("chat_id = ? AND bot_id = ? AND status <> ?", chatID, botID, models.StatusSuperseded).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Message{}).Where("id = ?", id).
		Update("status", status).Error
}

func (r *GormMessageRepository) UpdateContent(id uint, content string) error {
	return r.db.Model(&models.Message{}).Where("id = ?", id).
		Update("content", content).Error
}

func (r *GormMessageRepository) UpdateStatuses(ids []uint, status string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.Message{}).Where("id IN ?", ids).
		Update("status", status).Error
}

func (r *GormMessageRepository) LatestPlaceholder(chatID int64) (*models.Message, error) {
	var message models.Message
	err := r.db.Where("chat_id = ? AND role = ? AND content = ?",
		chatID, models.RoleAssistant, models.PlaceholderContent).
		Order("id DESC").
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *GormMessageRepository) Supersede(chatID int64) error {
	return r.db.Model(&models.Message{}).Where("chat_id = ?", chatID).
		Update("status", models.StatusSuperseded).Error
}
