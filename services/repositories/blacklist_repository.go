package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/folio-gate/gate_api/model"
)

type BlacklistRepository struct {
	BaseRepository
}

func NewBlacklistRepository(db *gorm.DB) *BlacklistRepository {
	return &BlacklistRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *BlacklistRepository) Get(ip string) (*model.IPBlacklistEntry, error) {
	var entry model.IPBlacklistEntry

	err := r.db.Where("ip_address = ?", ip).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

// incrementViolation lands one violation on an existing entry in a single
// UPDATE. Reports whether a row was hit.
func (r *BlacklistRepository) incrementViolation(ip, reason string, now time.Time) (bool, error) {
	result := r.db.Model(&model.IPBlacklistEntry{}).
		Where("ip_address = ?", ip).
		UpdateColumns(map[string]interface{}{
			"violation_count":   gorm.Expr("violation_count + 1"),
			"last_violation_at": now,
			"reason":            reason,
			"updated_at":        now,
		})

	return result.RowsAffected > 0, result.Error
}

// insertFirstViolation creates the entry for an IP's first offense, already
// counted. Fails with a unique-constraint error when another insert for the
// same IP got there first.
func (r *BlacklistRepository) insertFirstViolation(ip, reason, metadata string, now time.Time) error {
	id, _ := uuid.NewV7()
	entry := model.IPBlacklistEntry{
		ID:               id.String(),
		IPAddress:        ip,
		Reason:           reason,
		ViolationCount:   1,
		FirstViolationAt: now,
		LastViolationAt:  now,
		CanReinstate:     true,
		Metadata:         metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	return r.db.Create(&entry).Error
}

// RecordViolation creates the entry on first offense and increments the
// violation counter atomically on repeats. Two first offenses racing on one
// IP both count: the loser's insert hits the unique ip_address index and is
// re-applied as an increment. Once the counter crosses the threshold the
// entry is blocked; blocked_at is written at most once (guarded update),
// re-offending after reinstatement clears reinstated_at instead.
func (r *BlacklistRepository) RecordViolation(ip, reason, metadata string, threshold int) (*model.IPBlacklistEntry, error) {
	now := time.Now()

	applied, err := r.incrementViolation(ip, reason, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		if err := r.insertFirstViolation(ip, reason, metadata, now); err != nil {
			if !isDuplicateKey(err) {
				return nil, err
			}
			// Lost the insert race, the row exists now.
			if _, err := r.incrementViolation(ip, reason, now); err != nil {
				return nil, err
			}
		}
	}

	entry, err := r.Get(ip)
	if err != nil {
		return nil, err
	}

	if entry.ViolationCount >= threshold {
		if entry.BlockedAt == nil {
			err = r.db.Model(&model.IPBlacklistEntry{}).
				Where("ip_address = ? AND blocked_at IS NULL", ip).
				UpdateColumns(map[string]interface{}{
					"blocked_at": now,
					"updated_at": now,
				}).Error
		} else if entry.ReinstatedAt != nil {
			// Repeat offender after reinstatement: re-enter blocked without
			// rewriting blocked_at.
			err = r.db.Model(&model.IPBlacklistEntry{}).
				Where("ip_address = ?", ip).
				UpdateColumns(map[string]interface{}{
					"reinstated_at": nil,
					"can_reinstate": false,
					"updated_at":    now,
				}).Error
		}
		if err != nil {
			return nil, err
		}
		return r.Get(ip)
	}

	return entry, nil
}

func (r *BlacklistRepository) Reinstate(ip, by string) (*model.IPBlacklistEntry, error) {
	now := time.Now()

	result := r.db.Model(&model.IPBlacklistEntry{}).
		Where("ip_address = ? AND blocked_at IS NOT NULL AND reinstated_at IS NULL", ip).
		UpdateColumns(map[string]interface{}{
			"reinstated_at": now,
			"reinstated_by": by,
			"updated_at":    now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return r.Get(ip)
}

// AutoReinstate lifts blocks older than the cutoff for entries still marked
// reinstateable. Violation history is retained.
func (r *BlacklistRepository) AutoReinstate(cutoff time.Time) (int64, error) {
	now := time.Now()

	result := r.db.Model(&model.IPBlacklistEntry{}).
		Where("blocked_at IS NOT NULL AND blocked_at < ? AND reinstated_at IS NULL AND can_reinstate = ?", cutoff, true).
		UpdateColumns(map[string]interface{}{
			"reinstated_at": now,
			"reinstated_by": "auto",
			"updated_at":    now,
		})

	return result.RowsAffected, result.Error
}

func (r *BlacklistRepository) List(blockedOnly bool) ([]model.IPBlacklistEntry, error) {
	var entries []model.IPBlacklistEntry

	query := r.db.Order("last_violation_at DESC")
	if blockedOnly {
		query = query.Where("blocked_at IS NOT NULL AND reinstated_at IS NULL")
	}

	err := query.Find(&entries).Error
	return entries, err
}

func (r *BlacklistRepository) CountBlocked() (int64, error) {
	var total int64
	err := r.db.Model(&model.IPBlacklistEntry{}).
		Where("blocked_at IS NOT NULL AND reinstated_at IS NULL").
		Count(&total).Error
	return total, err
}
