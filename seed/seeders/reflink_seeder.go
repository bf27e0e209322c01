package seeders

import (
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/shared"
)

// ReflinkSeeder creates a demo access link for local development.
type ReflinkSeeder struct {
	db *gorm.DB
}

func NewReflinkSeeder(db *gorm.DB) *ReflinkSeeder {
	return &ReflinkSeeder{db: db}
}

const demoCode = "demo-preview"

func (s *ReflinkSeeder) SeedReflinks() error {
	log.Println("Seeding demo reflink...")

	var existing model.Reflink
	err := s.db.Where("code = ?", demoCode).First(&existing).Error
	if err == nil {
		log.Printf("Demo reflink %q already present, skipping", demoCode)
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	tokenLimit := int64(100000)
	spendLimit := 5.0
	now := time.Now()

	reflink := model.Reflink{
		ID:             id.String(),
		Code:           demoCode,
		Tier:           shared.TierPremium,
		DailyLimit:     shared.TierDailyLimits[shared.TierPremium],
		IsActive:       true,
		TokenLimit:     &tokenLimit,
		SpendLimit:     &spendLimit,
		VoiceAI:        true,
		JobAnalysis:    true,
		WelcomeMessage: "Welcome! This is a demo access link.",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.db.Create(&reflink).Error; err != nil {
		return err
	}

	log.Printf("Created demo reflink %q (%s tier)", demoCode, reflink.Tier)
	return nil
}
