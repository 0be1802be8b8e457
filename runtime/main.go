package main

import (
	"os"
	"strings"

	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/koolaai/support_api/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sirupsen/logrus"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded, using process environment")
	}

	configureLogging(os.Getenv("LOG_LEVEL"))

	ctx, err := context.NewCtx(
		&services.PostgresService{},
		&services.RedisService{},
		&services.RateLimitService{},
		&services.AbuseService{},
		&services.NotificationService{},
		&services.MinIOService{},

		&services.JWTService{},
		&services.AuthMiddleware{},
		&services.ChatService{},

		&services.MonitoringService{},
		&services.HttpService{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure services")
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err).Msg("Service stopped")
		return
	}
}

func configureLogging(level string) {
	level = strings.ToLower(level)
	if level == "" {
		level = "info"
	}

	zerologLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zerologLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(zerologLevel)

	logrusLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logrusLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logrusLevel)
	logrus.SetFormatter(&logrus.JSONFormatter{})
}
