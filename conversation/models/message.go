package models

import (
	"time"
)

// Role of a message author.
const (
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
)

// Modality tags what kind of content a message carries. It is resolved
// once at ingestion; downstream code switches on the tag and never
// re-inspects raw payload fields.
type Modality string

const (
	ModalityText     Modality = "TEXT"
	ModalityAudio    Modality = "AUDIO"
	ModalityPhoto    Modality = "PHOTO"
	ModalityDocument Modality = "DOCUMENT"
)

// Processing status of a message. Messages are never deleted, only
// status-transitioned: NEW -> PENDING -> DONE | ERROR, and SUPERSEDED
// when a reset starts a fresh context window. Assistant placeholders are
// inserted SUPERSEDED so the turn queue never batches them; they flip to
// DONE once filled with the reply.
const (
	StatusNew        = "NEW"
	StatusPending    = "PENDING"
	StatusDone       = "DONE"
	StatusError      = "ERROR"
	StatusSuperseded = "SUPERSEDED"
)

// PlaceholderContent marks an assistant row inserted ahead of
// generation, before the reply exists.
const PlaceholderContent = "[AI PLACEHOLDER]"

// Message is one inbound or outbound unit of conversation.
type Message struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ChatID        int64     `json:"chat_id" gorm:"index:idx_messages_chat_status"`
	BotID         uint      `json:"bot_id" gorm:"index"`
	UserID        int64     `json:"user_id"`
	PlatformMsgID int64     `json:"platform_msg_id"`
	UpdateID      int64     `json:"update_id"`
	Role          string    `json:"role"`
	Modality      Modality  `json:"modality"`
	Content       string    `json:"content"`
	Status        string    `json:"status" gorm:"index:idx_messages_chat_status"`
	CreatedAt     time.Time `json:"created_at"`
}
