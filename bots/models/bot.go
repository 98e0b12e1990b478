package models

import (
	"time"
)

// Bot is the persisted configuration row for one chat-platform bot.
type Bot struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ShortName     string    `json:"short_name" gorm:"uniqueIndex"`
	Token         string    `json:"-"`
	PersonaPrompt string    `json:"persona_prompt"`
	VoiceID       string    `json:"voice_id"`
	ApologyText   string    `json:"apology_text"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Profile is the immutable per-request view of a bot. It is passed down
// through parameters; nothing mutates process-wide bot state between
// requests.
type Profile struct {
	ID            uint
	ShortName     string
	Token         string
	PersonaPrompt string
	VoiceID       string
	ApologyText   string
}

// ProfileOf derives the request-scoped value from a persisted row.
func ProfileOf(b *Bot) Profile {
	apology := b.ApologyText
	if apology == "" {
		apology = "Sorry, something went wrong. Please try again."
	}
	return Profile{
		ID:            b.ID,
		ShortName:     b.ShortName,
		Token:         b.Token,
		PersonaPrompt: b.PersonaPrompt,
		VoiceID:       b.VoiceID,
		ApologyText:   apology,
	}
}
