package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/koolaai/support_api/seed/seeders"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var (
		seedType = flag.String("type", "all", "Type of seeding: all, staff, demo")
		dsn      = flag.String("dsn", "", "Postgres DSN (overrides DATABASE_URL)")
		help     = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	databaseURL := *dsn
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal("DATABASE_URL or -dsn is required")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Info),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	mainSeeder := seeders.NewMainSeeder(db)

	switch *seedType {
	case "all":
		err = mainSeeder.SeedAll(ctx)
	case "staff":
		if err = mainSeeder.Migrate(); err == nil {
			err = mainSeeder.SeedStaff(ctx)
		}
	case "demo":
		if err = mainSeeder.Migrate(); err == nil {
			err = mainSeeder.SeedDemoConversation(ctx)
		}
	default:
		log.Fatalf("Unknown seed type: %s. Use 'all', 'staff', or 'demo'", *seedType)
	}
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seeding operation completed successfully!")
}

func showHelp() {
	log.Print(`
Database seeding tool for the support API

Usage: go run ./seed [flags]

Flags:
  -type string
        all, staff or demo (default "all")
  -dsn string
        Postgres DSN (overrides DATABASE_URL)
  -help
        Show this help message

Environment Variables:
  DATABASE_URL - Postgres DSN
`)
}
