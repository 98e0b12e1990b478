package models

import (
	"time"
)

// Payment records one confirmed external payment. The checkout flow
// itself happens on the platform side; only the confirmation lands here,
// linked from the PAYMENT ledger entry that credits the user.
type Payment struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	ChatID           int64     `json:"chat_id" gorm:"index"`
	UserID           int64     `json:"user_id" gorm:"index"`
	BotID            uint      `json:"bot_id"`
	Currency         string    `json:"currency"`
	AmountCents      int64     `json:"amount_cents"`
	InvoicePayload   string    `json:"invoice_payload"`
	ProviderChargeID string    `json:"provider_charge_id"`
	PlatformChargeID string    `json:"platform_charge_id"`
	CreatedAt        time.Time `json:"created_at"`
}
