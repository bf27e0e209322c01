package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/folio-gate/gate_api/model"
)

type ReflinkRepository struct {
	BaseRepository
}

func NewReflinkRepository(db *gorm.DB) *ReflinkRepository {
	return &ReflinkRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *ReflinkRepository) GetByCode(code string) (*model.Reflink, error) {
	var reflink model.Reflink

	err := r.db.Where("code = ?", code).First(&reflink).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &reflink, nil
}

func (r *ReflinkRepository) GetByID(id string) (*model.Reflink, error) {
	var reflink model.Reflink

	err := r.db.Where("id = ?", id).First(&reflink).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &reflink, nil
}

func (r *ReflinkRepository) Create(reflink *model.Reflink) error {
	if reflink.ID == "" {
		id, _ := uuid.NewV7()
		reflink.ID = id.String()
	}

	now := time.Now()
	reflink.CreatedAt = now
	reflink.UpdatedAt = now

	return r.db.Create(reflink).Error
}

func (r *ReflinkRepository) Update(id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()

	result := r.db.Model(&model.Reflink{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ReflinkRepository) List(activeOnly bool) ([]model.Reflink, error) {
	var reflinks []model.Reflink

	query := r.db.Order("created_at DESC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	err := query.Find(&reflinks).Error
	return reflinks, err
}

// ApplyUsage records the event and updates the ledger in one transaction.
// The ledger update is a single UPDATE expression, concurrent events against
// the same reflink serialize at the row and each applies exactly once.
func (r *ReflinkRepository) ApplyUsage(event *model.UsageEvent) (*model.Reflink, error) {
	if event.ID == "" {
		id, _ := uuid.NewV7()
		event.ID = id.String()
	}

	now := time.Now()
	event.CreatedAt = now

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		return tx.Model(&model.Reflink{}).
			Where("id = ?", event.ReflinkID).
			UpdateColumns(map[string]interface{}{
				"tokens_used":  gorm.Expr("tokens_used + ?", event.Tokens),
				"spend_used":   gorm.Expr("spend_used + ?", event.Cost),
				"last_used_at": now,
				"updated_at":   now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(event.ReflinkID)
}

func (r *ReflinkRepository) CountEvents(reflinkID string) (int64, error) {
	var total int64
	err := r.db.Model(&model.UsageEvent{}).Where("reflink_id = ?", reflinkID).Count(&total).Error
	return total, err
}
