package repository

import (
	"chat-companion/backend/bots/models"

	"gorm.io/gorm"
)

type BotRepository interface {
	GetByID(id uint) (*models.Bot, error)
	GetByShortName(shortName string) (*models.Bot, error)
}

type GormBotRepository struct {
	db *gorm.DB
}

func NewGormBotRepository(db *gorm.DB) *GormBotRepository {
	return &GormBotRepository{db: db}
}

func (r *GormBotRepository) GetByID(id uint) (*models.Bot, error) {
	var bot models.Bot
	if err := r.db.First(&bot, id).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}

func (r *GormBotRepository) GetByShortName(shortName string) (*models.Bot, error) {
	var bot models.Bot
	if err := r.db.Where("short_name = ?", shortName).First(&bot).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}
