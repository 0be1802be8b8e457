package services

import (
	"context"
	"fmt"
	"os"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/hibiken/asynq"
	"github.com/koolaai/support_api/services/notify"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	NotifyBackendDB    = "db"
	NotifyBackendAsynq = "asynq"
	NotifyBackendNATS  = "nats"
)

// NotificationService selects the outbox backend new-message notifications are appended to.
type NotificationService struct {
	appContext.DefaultService

	backend      string
	natsURL      string
	redisURL     string
	supportInbox string

	outbox   notify.Outbox
	composer *notify.Composer

	asynqClient *asynq.Client
	natsConn    *nats.Conn
}

const NOTIFICATION_SVC = "notification_svc"

func (svc NotificationService) Id() string {
	return NOTIFICATION_SVC
}

func (svc *NotificationService) Configure(ctx *appContext.Context) error {
	svc.backend = os.Getenv("NOTIFY_BACKEND")
	if svc.backend == "" {
		svc.backend = NotifyBackendDB
	}

	svc.natsURL = os.Getenv("NATS_URL")
	if svc.natsURL == "" {
		svc.natsURL = nats.DefaultURL
	}

	svc.redisURL = os.Getenv("REDIS_URL")

	svc.supportInbox = os.Getenv("SUPPORT_INBOX_EMAIL")
	if svc.supportInbox == "" {
		svc.supportInbox = "support@koolaai.com"
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *NotificationService) Start() error {
	svc.composer = notify.NewComposer(svc.supportInbox)

	switch svc.backend {
	case NotifyBackendDB:
		pgSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
		svc.outbox = notify.NewTableOutbox(pgSvc.Db())

	case NotifyBackendAsynq:
		redisURL := svc.redisURL
		if redisURL == "" {
			redisSvc, ok := svc.Service(REDIS_SVC).(*RedisService)
			if !ok {
				return fmt.Errorf("NOTIFY_BACKEND=asynq needs REDIS_URL or %s", REDIS_SVC)
			}
			redisURL = redisSvc.URL()
		}
		client, err := notify.NewAsynqClient(redisURL)
		if err != nil {
			return err
		}
		svc.asynqClient = client
		svc.outbox = notify.NewAsynqOutbox(client)

	case NotifyBackendNATS:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		nc, js, err := notify.ConnectJetStream(ctx, svc.natsURL)
		if err != nil {
			return err
		}
		svc.natsConn = nc
		svc.outbox = notify.NewNATSOutbox(js)

	default:
		return fmt.Errorf("unknown NOTIFY_BACKEND %q", svc.backend)
	}

	log.WithField("backend", svc.backend).Info("Notification outbox ready")
	return nil
}

func (svc *NotificationService) Shutdown() {
	if svc.asynqClient != nil {
		_ = svc.asynqClient.Close()
	}
	if svc.natsConn != nil {
		_ = svc.natsConn.Drain()
	}
}

func (svc *NotificationService) Outbox() notify.Outbox {
	return svc.outbox
}

func (svc *NotificationService) Composer() *notify.Composer {
	return svc.composer
}
