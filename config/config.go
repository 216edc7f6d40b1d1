package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/embedpulse/survey-server/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Config holds everything read from the environment at boot.
type Config struct {
	Port      string
	JWTSecret string
	RedisURL  string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Per-IP limits on the public submission endpoint.
	SubmitPerMinute int
	SubmitBurst     int
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	// .env is a local-dev convenience; deployed instances use real env vars.
	_ = godotenv.Load()

	return Config{
		Port:            getenv("PORT", "8080"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RedisURL:        os.Getenv("REDIS_URL"),
		DBHost:          os.Getenv("DB_HOST"),
		DBPort:          getenv("DB_PORT", "5432"),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          os.Getenv("DB_NAME"),
		SubmitPerMinute: getint("SUBMIT_PER_MINUTE", 60),
		SubmitBurst:     getint("SUBMIT_BURST", 20),
	}
}

// ConnectDB opens PostgreSQL and migrates the schema.
func ConnectDB(cfg Config) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		slog.Error("failed to connect database", "err", err)
		os.Exit(1)
	}

	if err := Migrate(db); err != nil {
		slog.Error("failed to migrate", "err", err)
		os.Exit(1)
	}

	DB = db
	slog.Info("connected to PostgreSQL and migrated")
}

// Migrate creates or updates the schema. Split out so tests can run it
// against their own database handle.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.Survey{},
		&models.Question{},
		&models.QuestionOption{},
		&models.ResponseSession{},
		&models.AnswerRecord{},
		&models.AggregateCounter{},
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
