package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/services/repositories"
	"github.com/koolaai/support_api/shared"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PostgresService struct {
	appContext.DefaultService
	db *gorm.DB

	database string

	conversations *repositories.ConversationRepository
	profiles      *repositories.ProfileRepository
	abuseEvents   *repositories.AbuseEventRepository

	closed chan struct{}
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

// DSN is the connection string, shared with the pgx pool of the counter store.
func (ds PostgresService) DSN() string {
	return ds.database
}

func (ds *PostgresService) Configure(ctx *appContext.Context) error {
	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" {
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
			dbname = "support_api"
		}
		sslmode := os.Getenv("DB_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}
		timezone := os.Getenv("DB_TIMEZONE")
		if timezone == "" {
			timezone = "UTC"
		}

		ds.database = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			host, user, password, dbname, port, sslmode, timezone)
	}

	ds.closed = make(chan struct{})
	return ds.DefaultService.Configure(ctx)
}

func (ds *PostgresService) Start() (err error) {
	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("Attempting to connect to database (attempt %d/%d)...", attempt, maxRetries)

		ds.db, err = gorm.Open(postgres.Open(ds.database), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Error),
			TranslateError: true,
		})

		if err == nil {
			sqlDB, dbErr := ds.db.DB()
			if dbErr == nil {
				pingErr := sqlDB.Ping()
				if pingErr == nil {
					log.Println("Successfully connected to database")
					break
				}
				err = pingErr
			} else {
				err = dbErr
			}
		}

		if attempt == maxRetries {
			log.Printf("Failed to connect to database after %d attempts: %v", maxRetries, err)
			return err
		}

		log.Printf("Database connection failed: %v. Retrying in %v...", err, retryDelay)
		time.Sleep(retryDelay)

		retryDelay *= 2
		if retryDelay > 10*time.Second {
			retryDelay = 10 * time.Second
		}
	}

	err = ds.db.AutoMigrate(model.AllModels()...)
	if err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	ds.conversations = repositories.NewConversationRepository(ds.db)
	ds.profiles = repositories.NewProfileRepository(ds.db)
	ds.abuseEvents = repositories.NewAbuseEventRepository(ds.db)

	go ds.cleanupLoop(time.Hour)

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *PostgresService) Shutdown() {
	if ds.closed != nil {
		close(ds.closed)
	}
	if ds.db == nil {
		return
	}
	sqlDB, err := ds.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (ds *PostgresService) Conversations() *repositories.ConversationRepository {
	return ds.conversations
}

func (ds *PostgresService) Profiles() *repositories.ProfileRepository {
	return ds.profiles
}

func (ds *PostgresService) AbuseEvents() *repositories.AbuseEventRepository {
	return ds.abuseEvents
}

func (ds *PostgresService) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ds.CleanupExpiredData(); err != nil {
				log.Printf("Failed to cleanup expired data: %v", err)
			}
		case <-ds.closed:
			return
		}
	}
}

// CleanupExpiredData drops counter and abuse windows that closed more than a day ago.
func (ds *PostgresService) CleanupExpiredData() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cutoff := time.Now().Add(-24 * time.Hour)

	removed, err := ds.abuseEvents.DeleteExpired(ctx, cutoff)
	if err != nil {
		return ds.HandleError(err)
	}

	res := ds.db.WithContext(ctx).Where("window_reset_at < ?", cutoff).Delete(&model.RateLimitCounter{})
	if res.Error != nil {
		return ds.HandleError(res.Error)
	}

	log.WithFields(log.Fields{
		"abuse_events": removed,
		"counters":     res.RowsAffected,
	}).Debug("expired windows removed")
	return nil
}

// HandleError classifies a database error, logs it and returns the AppError surfaced to callers.
func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound
		errorType = "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest
		errorType = "FOREIGN_KEY_VIOLATION"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError
		errorType = "TRANSACTION_ERROR"
	default:
		if strings.Contains(err.Error(), "relation") && strings.Contains(err.Error(), "does not exist") {
			statusCode = http.StatusInternalServerError
			errorType = "SCHEMA_ERROR"
		} else if strings.Contains(err.Error(), "connection refused") {
			statusCode = http.StatusServiceUnavailable
			errorType = "DATABASE_CONNECTION_ERROR"
		} else {
			statusCode = http.StatusInternalServerError
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error_type":  errorType,
		"error":       err.Error(),
	})

	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	switch statusCode {
	case http.StatusNotFound:
		return shared.NewNotFoundError("Record not found.")
	case http.StatusServiceUnavailable:
		return shared.NewUnavailableError("Database unavailable")
	}
	return shared.NewPersistenceError(fmt.Errorf("%s: %w", errorType, err))
}
