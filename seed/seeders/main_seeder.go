package seeders

import (
	"log"

	"gorm.io/gorm"
)

// MainSeeder coordinates all seeding operations
type MainSeeder struct {
	db *gorm.DB
}

func NewMainSeeder(db *gorm.DB) *MainSeeder {
	return &MainSeeder{db: db}
}

// SeedAll runs all seeders. Each seeder is idempotent, re-running against a
// populated database changes nothing.
func (s *MainSeeder) SeedAll() error {
	log.Println("Starting database seeding...")

	if err := NewTierSeeder(s.db).SeedTiers(); err != nil {
		log.Printf("Tier config seeding failed: %v", err)
		return err
	}

	if err := NewContentSeeder(s.db).SeedContent(); err != nil {
		log.Printf("Content seeding failed: %v", err)
		return err
	}

	if err := NewReflinkSeeder(s.db).SeedReflinks(); err != nil {
		log.Printf("Reflink seeding failed: %v", err)
		return err
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

func (s *MainSeeder) SeedTiersOnly() error {
	return NewTierSeeder(s.db).SeedTiers()
}

func (s *MainSeeder) SeedContentOnly() error {
	return NewContentSeeder(s.db).SeedContent()
}

func (s *MainSeeder) SeedReflinksOnly() error {
	return NewReflinkSeeder(s.db).SeedReflinks()
}
