// SPDX-License-Identifier: GPL-3.0-only

package history

import (
	"context"

	"gorm.io/gorm"

	"whoistel/metrics"
	"whoistel/models"
	"whoistel/phone"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Add appends r. CreatedAt and RID are filled in when empty.
func (s *Store) Add(ctx context.Context, r *models.Report) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return wrap("add", err)
	}
	metrics.ReportsTotal.WithLabelValues(Kind(r)).Inc()
	return nil
}

// SpamCount returns how many spam reports exist for number.
func (s *Store) SpamCount(ctx context.Context, number phone.Number) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("phone_number = ? AND is_spam = ?", string(number), true).
		Count(&count).Error
	if err != nil {
		return 0, wrap("spam count", err)
	}
	return count, nil
}

// Recent returns the newest reports across all numbers.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.Report, error) {
	var reports []models.Report
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&reports).Error
	if err != nil {
		return nil, wrap("recent", err)
	}
	return reports, nil
}

// ForNumber returns the newest reports about number.
func (s *Store) ForNumber(ctx context.Context, number phone.Number, limit int) ([]models.Report, error) {
	var reports []models.Report
	err := s.db.WithContext(ctx).
		Where("phone_number = ?", string(number)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&reports).Error
	if err != nil {
		return nil, wrap("for number", err)
	}
	return reports, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return min(limit, MaxRecentLimit)
}
