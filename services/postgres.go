package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/services/repositories"
	"github.com/folio-gate/gate_api/shared"
)

type PostgresService struct {
	context.DefaultService
	db *gorm.DB

	database string

	rateLimits *repositories.RateLimitRepository
	blacklist  *repositories.BlacklistRepository
	reflinks   *repositories.ReflinkRepository
	content    *repositories.ContentRepository
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

func (ds *PostgresService) RateLimits() *repositories.RateLimitRepository {
	return ds.rateLimits
}

func (ds *PostgresService) Blacklist() *repositories.BlacklistRepository {
	return ds.blacklist
}

func (ds *PostgresService) Reflinks() *repositories.ReflinkRepository {
	return ds.reflinks
}

func (ds *PostgresService) Content() *repositories.ContentRepository {
	return ds.content
}

func (ds *PostgresService) Configure(ctx *context.Context) error {
	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" {
		// Fallback to individual environment variables
		host := os.Getenv("DB_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		user := os.Getenv("DB_USER")
		if user == "" {
			user = "postgres"
		}
		password := os.Getenv("DB_PASSWORD")
		if password == "" {
			password = "postgres"
		}
		dbname := os.Getenv("DB_NAME")
		if dbname == "" {
			dbname = "gate_api"
		}
		sslmode := os.Getenv("DB_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}

		ds.database = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	return ds.DefaultService.Configure(ctx)
}

// Start opens the connection and migrates any tables that have changed
// since last runtime.
func (ds *PostgresService) Start() (err error) {
	ds.db, err = gorm.Open(postgres.Open(ds.database), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return err
	}

	models := []interface{}{
		&model.RateLimit{},
		&model.RateLimitConfig{},
		&model.IPBlacklistEntry{},
		&model.Reflink{},
		&model.UsageEvent{},
		&model.ContentSource{},
	}

	if err = ds.db.AutoMigrate(models...); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	ds.rateLimits = repositories.NewRateLimitRepository(ds.db)
	ds.blacklist = repositories.NewBlacklistRepository(ds.db)
	ds.reflinks = repositories.NewReflinkRepository(ds.db)
	ds.content = repositories.NewContentRepository(ds.db)

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *PostgresService) Shutdown() {
}

// HandleError maps storage errors onto AppErrors so the central error
// handler can answer with the right status code instead of a blanket 500.
func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var message string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound
		message = "Record not found"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict
		message = "Record already exists"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest
		message = "Invalid reference"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError
		message = "Storage error"
	default:
		if strings.Contains(err.Error(), "duplicate key value") ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") {
			statusCode = http.StatusConflict
			message = "Record already exists"
		} else {
			statusCode = http.StatusInternalServerError
			message = "Storage error"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error":       err.Error(),
	})

	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	return shared.NewAppError(statusCode, err, message)
}
