package repository

import (
	"errors"

	"chat-companion/backend/ledger/models"

	"gorm.io/gorm"
)

type LedgerRepository interface {
	// LatestTotal returns the running total of the most recent entry for
	// (user, bot); found is false when no entry exists yet.
	LatestTotal(userID int64, botID uint) (total int64, found bool, err error)
	Append(entry *models.Entry) error
	HasEntryOfType(userID int64, botID uint, entryType string) (bool, error)
}

type PaymentRepository interface {
	Create(payment *models.Payment) error
}

type GormLedgerRepository struct {
	db *gorm.DB
}

func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

func (r *GormLedgerRepository) LatestTotal(userID int64, botID uint) (int64, bool, error) {
	var entry models.Entry
	err := r.db.Where("user_id = ? AND bot_id = ?", userID, botID).
		Order("id DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return entry.RunningTotal, true, nil
}

func (r *GormLedgerRepository) Append(entry *models.Entry) error {
	return r.db.Create(entry).Error
}

func (r *GormLedgerRepository) HasEntryOfType(userID int64, botID uint, entryType string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Entry{}).
		Where("user_id = ? AND bot_id = ? AND type = ?", userID, botID, entryType).
		Count(&count).Error
	return count > 0, err
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}
