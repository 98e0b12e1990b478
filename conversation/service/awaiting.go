package service

import (
	"chat-companion/backend/conversation/models"
	"chat-companion/backend/conversation/repository"
	"chat-companion/backend/pkg/logger"
)

// Tracker records that a chat's next message should be treated as a
// generation request for a specific modality. Marking is single-flight:
// a chat already awaiting a modality is not marked again, so repeated
// button presses collapse into one pending request.
type Tracker struct {
	repo repository.AwaitingRepository
	log  *logger.Logger
}

func NewTracker(repo repository.AwaitingRepository, log *logger.Logger) *Tracker {
	return &Tracker{repo: repo, log: log}
}

// Mark opens an awaiting record. Returns false when the chat is already
// awaiting that modality.
func (t *Tracker) Mark(chatID, userID int64, botID uint, modality models.Modality) (bool, error) {
	exists, err := t.repo.Exists(chatID, modality)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	err = t.repo.Create(&models.AwaitingInput{
		ChatID:   chatID,
		BotID:    botID,
		UserID:   userID,
		Modality: modality,
		Status:   models.AwaitingOpen,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Pending reports the modality the chat is awaiting, if any. Audio wins
// over photo when both are somehow open.
func (t *Tracker) Pending(chatID int64) (models.Modality, bool, error) {
	for _, modality := range []models.Modality{models.ModalityAudio, models.ModalityPhoto} {
		open, err := t.repo.Exists(chatID, modality)
		if err != nil {
			return "", false, err
		}
		if open {
			return modality, true, nil
		}
	}
	return "", false, nil
}

// Clear closes every open awaiting record for the chat. Safe to call
// when none are open.
func (t *Tracker) Clear(chatID int64) error {
	return t.repo.ClearChat(chatID)
}
