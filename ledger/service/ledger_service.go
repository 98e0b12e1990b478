package service

import (
	"fmt"
	"sync"
	"time"

	"chat-companion/backend/ledger/models"
	"chat-companion/backend/ledger/repository"
	"chat-companion/backend/pkg/logger"
)

// Service is the append-only credit ledger. The balance model follows the
// original accounting scheme: each entry carries the running total at the
// time it was inserted, and the balance is the total of the latest entry.
// The read-then-append is serialized per (user, bot) through a keyed
// mutex so two concurrent turns cannot both read the same stale total.
// The mutex map holds one entry per pair for the process lifetime; at a
// few bytes per active user that is not worth an eviction scheme.
type Service struct {
	entries  repository.LedgerRepository
	payments repository.PaymentRepository
	bonus    int64
	log      *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(entries repository.LedgerRepository, payments repository.PaymentRepository, signupBonus int64, log *logger.Logger) *Service {
	return &Service{
		entries:  entries,
		payments: payments,
		bonus:    signupBonus,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) keyLock(userID int64, botID uint) *sync.Mutex {
	key := fmt.Sprintf("%d:%d", userID, botID)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// Balance returns the current credit balance for (user, bot); zero when
// no entry exists.
func (s *Service) Balance(userID int64, botID uint) (int64, error) {
	total, _, err := s.entries.LatestTotal(userID, botID)
	return total, err
}

// Append stamps the entry's running total and appends it. The entry's
// Delta is signed: debits are negative, credits positive.
func (s *Service) Append(entry *models.Entry) error {
	lock := s.keyLock(entry.UserID, entry.BotID)
	lock.Lock()
	defer lock.Unlock()

	total, _, err := s.entries.LatestTotal(entry.UserID, entry.BotID)
	if err != nil {
		return fmt.Errorf("read latest total: %w", err)
	}

	entry.RunningTotal = total + entry.Delta
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := s.entries.Append(entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	s.log.Info("ledger entry appended",
		"user_id", entry.UserID,
		"bot_id", entry.BotID,
		"type", entry.Type,
		"delta", entry.Delta,
		"running_total", entry.RunningTotal,
	)
	return nil
}

// Debit charges a completed generation.
func (s *Service) Debit(chatID, userID int64, botID uint, cost int64, entryType string) error {
	return s.Append(&models.Entry{
		ChatID: chatID,
		UserID: userID,
		BotID:  botID,
		Delta:  cost,
		Type:   entryType,
	})
}

// GrantSignupBonus credits the one-time first-contact bonus. A no-op when
// the user already received it.
func (s *Service) GrantSignupBonus(chatID, userID int64, botID uint) error {
	granted, err := s.entries.HasEntryOfType(userID, botID, models.TypeSignupBonus)
	if err != nil {
		return err
	}
	if granted {
		return nil
	}
	return s.Append(&models.Entry{
		ChatID: chatID,
		UserID: userID,
		BotID:  botID,
		Delta:  s.bonus,
		Type:   models.TypeSignupBonus,
	})
}

// PaymentInfo carries a confirmed external payment.
type PaymentInfo struct {
	ChatID           int64
	UserID           int64
	BotID            uint
	Credits          int64
	Currency         string
	AmountCents      int64
	InvoicePayload   string
	ProviderChargeID string
	PlatformChargeID string
}

// RecordPayment persists the payment and appends the crediting PAYMENT
// entry, returning the user's new balance.
func (s *Service) RecordPayment(info PaymentInfo) (int64, error) {
	payment := &models.Payment{
		ChatID:           info.ChatID,
		UserID:           info.UserID,
		BotID:            info.BotID,
		Currency:         info.Currency,
		AmountCents:      info.AmountCents,
		InvoicePayload:   info.InvoicePayload,
		ProviderChargeID: info.ProviderChargeID,
		PlatformChargeID: info.PlatformChargeID,
	}
	if err := s.payments.Create(payment); err != nil {
		return 0, fmt.Errorf("persist payment: %w", err)
	}

	entry := &models.Entry{
		ChatID:    info.ChatID,
		UserID:    info.UserID,
		BotID:     info.BotID,
		Delta:     info.Credits,
		Type:      models.TypePayment,
		PaymentID: &payment.ID,
	}
	if err := s.Append(entry); err != nil {
		return 0, err
	}
	return entry.RunningTotal, nil
}
