package models

import (
	"time"
)

// Transaction types for ledger entries.
const (
	TypeTextGen     = "TEXT_GEN"
	TypeAudioGen    = "AUDIO_GEN"
	TypePhotoGen    = "PHOTO_GEN"
	TypePayment     = "PAYMENT"
	TypeSignupBonus = "FIRST_TIME_BONUS"
)

// Entry is one immutable credit transaction. The balance for a
// (user, bot) pair is the RunningTotal of its most recent entry, not a
// sum over all rows.
type Entry struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ChatID       int64     `json:"chat_id" gorm:"index"`
	UserID       int64     `json:"user_id" gorm:"index:idx_ledger_user_bot"`
	BotID        uint      `json:"bot_id" gorm:"index:idx_ledger_user_bot"`
	Delta        int64     `json:"delta"`
	Type         string    `json:"type"`
	RunningTotal int64     `json:"running_total"`
	PaymentID    *uint     `json:"payment_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
