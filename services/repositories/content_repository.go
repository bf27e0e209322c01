package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/folio-gate/gate_api/model"
)

type ContentRepository struct {
	BaseRepository
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{BaseRepository: NewBaseRepository(db)}
}

// ListActive returns active sources, optionally filtered by type.
func (r *ContentRepository) ListActive(types []string) ([]model.ContentSource, error) {
	var sources []model.ContentSource

	query := r.db.Where("is_active = ?", true).Order("priority DESC")
	if len(types) > 0 {
		query = query.Where("type IN ?", types)
	}

	err := query.Find(&sources).Error
	return sources, err
}

func (r *ContentRepository) Get(id string) (*model.ContentSource, error) {
	var source model.ContentSource

	err := r.db.Where("id = ?", id).First(&source).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &source, nil
}

func (r *ContentRepository) List() ([]model.ContentSource, error) {
	var sources []model.ContentSource

	err := r.db.Order("priority DESC").Find(&sources).Error
	return sources, err
}

func (r *ContentRepository) Create(source *model.ContentSource) error {
	if source.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		source.ID = id.String()
	}

	now := time.Now()
	source.CreatedAt = now
	source.UpdatedAt = now

	return r.db.Create(source).Error
}

func (r *ContentRepository) Update(id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()

	result := r.db.Model(&model.ContentSource{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ContentRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.ContentSource{}).Error
}
