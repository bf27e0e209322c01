package seeders

import (
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/shared"
)

// TierSeeder writes the default rate-limit tier configs.
type TierSeeder struct {
	db *gorm.DB
}

func NewTierSeeder(db *gorm.DB) *TierSeeder {
	return &TierSeeder{db: db}
}

func (s *TierSeeder) SeedTiers() error {
	log.Println("Seeding rate-limit tier configs...")

	descriptions := map[string]string{
		shared.TierBasic:     "Default quota for anonymous and session callers",
		shared.TierStandard:  "Standard reflink quota",
		shared.TierPremium:   "Premium reflink quota",
		shared.TierUnlimited: "Unmetered reflink quota",
	}

	for tier, limit := range shared.TierDailyLimits {
		var existing model.RateLimitConfig
		err := s.db.Where("tier = ?", tier).First(&existing).Error
		if err == nil {
			log.Printf("Tier config %s already present, skipping", tier)
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		now := time.Now()
		config := model.RateLimitConfig{
			ID:          id.String(),
			Tier:        tier,
			DailyLimit:  limit,
			WindowSize:  int((24 * time.Hour).Seconds()),
			Description: descriptions[tier],
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.db.Create(&config).Error; err != nil {
			return err
		}
		log.Printf("Created tier config %s (daily limit %d)", tier, limit)
	}

	return nil
}
