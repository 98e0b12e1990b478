package service

import (
	"fmt"

	ledger "chat-companion/backend/ledger/service"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/user/models"
	"chat-companion/backend/user/repository"
)

// UserService registers chat users on first contact and answers ban checks.
type UserService struct {
	repo   repository.UserRepository
	ledger *ledger.Service
	log    *logger.Logger
}

func NewUserService(repo repository.UserRepository, ledger *ledger.Service, log *logger.Logger) *UserService {
	return &UserService{repo: repo, ledger: ledger, log: log}
}

// EnsureRegistered inserts the user on first contact and grants the
// signup bonus. Returns the user row and whether it was newly created.
func (s *UserService) EnsureRegistered(platformID int64, botID uint, chatID int64, firstName, language string) (*models.User, bool, error) {
	existing, err := s.repo.Get(platformID, botID)
	if err != nil {
		return nil, false, fmt.Errorf("look up user: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	user := &models.User{
		PlatformID: platformID,
		BotID:      botID,
		ChatID:     chatID,
		FirstName:  firstName,
		Language:   language,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	if err := s.ledger.GrantSignupBonus(chatID, platformID, botID); err != nil {
		// The account stands without the bonus. The grant only happens
		// with row creation, so a failure here is logged and not retried.
		s.log.LogError(err, "failed to grant signup bonus", "user_id", platformID, "bot_id", botID)
	} else {
		s.log.Info("new user registered", "user_id", platformID, "bot_id", botID)
	}

	return user, true, nil
}

// IsBanned reports whether the user is blocked for this bot. Unknown
// users are not banned.
func (s *UserService) IsBanned(platformID int64, botID uint) (bool, error) {
	user, err := s.repo.Get(platformID, botID)
	if err != nil {
		return false, err
	}
	return user != nil && user.Banned, nil
}
