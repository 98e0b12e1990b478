package models

import (
	"time"
)

// User identifies one chat-platform user as seen by one bot.
type User struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PlatformID int64     `json:"platform_id" gorm:"index:idx_users_platform_bot,unique"`
	BotID      uint      `json:"bot_id" gorm:"index:idx_users_platform_bot,unique"`
	ChatID     int64     `json:"chat_id"`
	FirstName  string    `json:"first_name"`
	Language   string    `json:"language"`
	Banned     bool      `json:"banned"`
	CreatedAt  time.Time `json:"created_at"`
}
