package seeders

import (
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/shared"
)

// ContentSeeder installs starter content sources so a fresh deployment has
// something to assemble context from.
type ContentSeeder struct {
	db *gorm.DB
}

func NewContentSeeder(db *gorm.DB) *ContentSeeder {
	return &ContentSeeder{db: db}
}

func (s *ContentSeeder) SeedContent() error {
	log.Println("Seeding content sources...")

	var count int64
	if err := s.db.Model(&model.ContentSource{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Printf("Content sources already present (%d rows), skipping", count)
		return nil
	}

	sources := []model.ContentSource{
		{
			Type:     shared.ContentAbout,
			Title:    "About",
			Summary:  "Who the site owner is and what they work on.",
			Content:  "Replace this with the site owner's introduction.",
			Keywords: "about,introduction,background",
			Priority: 100,
		},
		{
			Type:     shared.ContentProject,
			Title:    "Featured Project",
			Summary:  "A representative project, shown to every visitor.",
			Content:  "Replace this with a project writeup.",
			Keywords: "project,work,portfolio",
			Priority: 50,
		},
		{
			Type:     shared.ContentProfile,
			Title:    "Professional Profile",
			Summary:  "Extended profile, visible to premium sessions only.",
			Content:  "Replace this with the extended professional profile.",
			Keywords: "profile,experience,skills",
			Priority: 80,
		},
		{
			Type:     shared.ContentResume,
			Title:    "Resume",
			Summary:  "Resume, visible to premium sessions only.",
			Keywords: "resume,cv,employment",
			Priority: 70,
		},
	}

	now := time.Now()
	for i := range sources {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		sources[i].ID = id.String()
		sources[i].IsActive = true
		sources[i].CreatedAt = now
		sources[i].UpdatedAt = now

		if err := s.db.Create(&sources[i]).Error; err != nil {
			return err
		}
		log.Printf("Created content source %q (%s)", sources[i].Title, sources[i].Type)
	}

	return nil
}
