package models

import (
	"time"
)

// Awaiting-state values.
const (
	AwaitingOpen      = "AWAITING"
	AwaitingProcessed = "PROCESSED"
)

// AwaitingInput records that the next free-text message in a chat should
// be interpreted as a generation prompt for a specific modality instead
// of ordinary conversation.
type AwaitingInput struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatID    int64     `json:"chat_id" gorm:"index"`
	BotID     uint      `json:"bot_id"`
	UserID    int64     `json:"user_id"`
	Modality  Modality  `json:"modality"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
