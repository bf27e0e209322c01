package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/seed/seeders"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var (
		seedType = flag.String("type", "all", "Type of seeding: all, tiers, content, reflinks")
		help     = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	db, err := gorm.Open(postgres.Open(databaseDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&model.RateLimit{},
		&model.RateLimitConfig{},
		&model.IPBlacklistEntry{},
		&model.Reflink{},
		&model.UsageEvent{},
		&model.ContentSource{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	mainSeeder := seeders.NewMainSeeder(db)

	switch *seedType {
	case "all":
		log.Println("Running complete database seeding...")
		if err := mainSeeder.SeedAll(); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
	case "tiers":
		if err := mainSeeder.SeedTiersOnly(); err != nil {
			log.Fatalf("Failed to seed tier configs: %v", err)
		}
	case "content":
		if err := mainSeeder.SeedContentOnly(); err != nil {
			log.Fatalf("Failed to seed content: %v", err)
		}
	case "reflinks":
		if err := mainSeeder.SeedReflinksOnly(); err != nil {
			log.Fatalf("Failed to seed reflinks: %v", err)
		}
	default:
		log.Fatalf("Unknown seed type: %s. Use 'all', 'tiers', 'content', or 'reflinks'", *seedType)
	}

	log.Println("Seeding finished")
}

func databaseDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "postgres")
	password := envOr("DB_PASSWORD", "postgres")
	dbname := envOr("DB_NAME", "gate_api")
	sslmode := envOr("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func showHelp() {
	fmt.Println("Database seeder for the gate API")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  go run ./seed [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -type string   Type of seeding: all, tiers, content, reflinks (default \"all\")")
	fmt.Println("  -help          Show this help message")
	fmt.Println()
	fmt.Println("Connection comes from DATABASE_URL or the DB_* environment variables.")
}
