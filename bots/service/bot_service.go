package service

import (
	"fmt"
	"time"

	"chat-companion/backend/bots/models"
	"chat-companion/backend/bots/repository"
	"chat-companion/backend/pkg/cache"
)

// ProfileService resolves bot profiles, caching the read-mostly rows so
// every webhook does not hit the database.
type ProfileService struct {
	repo  repository.BotRepository
	cache *cache.Cache
}

func NewProfileService(repo repository.BotRepository, ttl time.Duration) *ProfileService {
	return &ProfileService{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
	}
}

// ByShortName resolves a bot profile by its webhook short name.
func (s *ProfileService) ByShortName(shortName string) (models.Profile, error) {
	key := "short:" + shortName
	if v, ok := s.cache.Get(key); ok {
		return v.(models.Profile), nil
	}

	bot, err := s.repo.GetByShortName(shortName)
	if err != nil {
		return models.Profile{}, fmt.Errorf("bot %q: %w", shortName, err)
	}

	profile := models.ProfileOf(bot)
	s.cache.Set(key, profile)
	return profile, nil
}

// ByID resolves a bot profile by primary key.
func (s *ProfileService) ByID(id uint) (models.Profile, error) {
	key := fmt.Sprintf("id:%d", id)
	if v, ok := s.cache.Get(key); ok {
		return v.(models.Profile), nil
	}

	bot, err := s.repo.GetByID(id)
	if err != nil {
		return models.Profile{}, fmt.Errorf("bot %d: %w", id, err)
	}

	profile := models.ProfileOf(bot)
	s.cache.Set(key, profile)
	return profile, nil
}
