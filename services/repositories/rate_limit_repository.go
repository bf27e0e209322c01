package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/folio-gate/gate_api/model"
)

type RateLimitRepository struct {
	BaseRepository
}

func NewRateLimitRepository(db *gorm.DB) *RateLimitRepository {
	return &RateLimitRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *RateLimitRepository) Get(identifier, identifierType string) (*model.RateLimit, error) {
	var rateLimit model.RateLimit

	err := r.db.Where("identifier = ? AND identifier_type = ?", identifier, identifierType).
		First(&rateLimit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &rateLimit, nil
}

// Save inserts or replaces the window record for its identity.
func (r *RateLimitRepository) Save(rateLimit *model.RateLimit) error {
	if rateLimit.ID == "" {
		id, _ := uuid.NewV7()
		rateLimit.ID = id.String()
	}

	now := time.Now()
	if rateLimit.CreatedAt.IsZero() {
		rateLimit.CreatedAt = now
	}
	rateLimit.UpdatedAt = now

	return r.db.Save(rateLimit).Error
}

// OpenOrIncrementWindow lands one request on the identity's window in a
// single upsert: insert the first row, reset an expired window to the bounds
// carried by record, or increment a live one. Concurrent first requests
// conflict on the identity's unique index and collapse into the same row, so
// the quota can never be split across duplicates. Returns the row as it
// stands after this request.
func (r *RateLimitRepository) OpenOrIncrementWindow(record *model.RateLimit, now time.Time) (*model.RateLimit, error) {
	if record.ID == "" {
		id, _ := uuid.NewV7()
		record.ID = id.String()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identifier"}, {Name: "identifier_type"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count": gorm.Expr("CASE WHEN rate_limits.window_end < ? THEN 1 ELSE rate_limits.request_count + 1 END", now),
			"window_start":  gorm.Expr("CASE WHEN rate_limits.window_end < ? THEN ? ELSE rate_limits.window_start END", now, record.WindowStart),
			"window_end":    gorm.Expr("CASE WHEN rate_limits.window_end < ? THEN ? ELSE rate_limits.window_end END", now, record.WindowEnd),
			"endpoint":      record.Endpoint,
			"tier":          record.Tier,
			"updated_at":    now,
		}),
	}).Create(record).Error
	if err != nil {
		return nil, err
	}

	updated, err := r.Get(record.Identifier, record.IdentifierType)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, gorm.ErrRecordNotFound
	}

	return updated, nil
}

func (r *RateLimitRepository) Delete(identifier, identifierType string) error {
	return r.db.Where("identifier = ? AND identifier_type = ?", identifier, identifierType).
		Delete(&model.RateLimit{}).Error
}

// CleanupExpired removes windows that ended before the cutoff.
func (r *RateLimitRepository) CleanupExpired(cutoff time.Time) (int64, error) {
	result := r.db.Where("window_end < ?", cutoff).Delete(&model.RateLimit{})
	return result.RowsAffected, result.Error
}

func (r *RateLimitRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&model.RateLimit{}).Count(&total).Error
	return total, err
}

func (r *RateLimitRepository) CountActiveWindows(now time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&model.RateLimit{}).Where("window_end > ?", now).Count(&total).Error
	return total, err
}

func (r *RateLimitRepository) ListConfigs() ([]model.RateLimitConfig, error) {
	var configs []model.RateLimitConfig
	err := r.db.Order("tier").Find(&configs).Error
	return configs, err
}

// SaveConfig upserts one tier's quota configuration, keyed by tier.
func (r *RateLimitRepository) SaveConfig(config *model.RateLimitConfig) error {
	if config.ID == "" {
		id, _ := uuid.NewV7()
		config.ID = id.String()
	}

	now := time.Now()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}
	config.UpdatedAt = now

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tier"}},
		DoUpdates: clause.AssignmentColumns([]string{"daily_limit", "window_size", "description", "is_active", "updated_at"}),
	}).Create(config).Error
}
