package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/koolaai/support_api/model"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	log "github.com/sirupsen/logrus"
)

const (
	NotificationStream  = "SUPPORT_NOTIFICATIONS"
	NotificationSubject = "support.notifications"
)

// Publisher is the part of jetstream.JetStream the outbox needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type NATSOutbox struct {
	js     Publisher
	prefix string
}

var _ Outbox = (*NATSOutbox)(nil)

func NewNATSOutbox(js Publisher) *NATSOutbox {
	return &NATSOutbox{js: js, prefix: NotificationSubject}
}

// ConnectJetStream dials url and makes sure the notification stream exists.
func ConnectJetStream(ctx context.Context, url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url, nats.Name("support-api"))
	if err != nil {
		return nil, nil, fmt.Errorf("notify: connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("notify: create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        NotificationStream,
		Description: "Outbound support notifications",
		Subjects:    []string{NotificationSubject + ".*"},
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Duplicates:  10 * time.Minute,
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("notify: ensure stream %s: %w", NotificationStream, err)
	}
	log.WithField("stream", NotificationStream).Info("NATS notification stream ready")
	return nc, js, nil
}

func (o *NATSOutbox) Enqueue(ctx context.Context, n *model.Notification) (err error) {
	defer func() { observeEnqueue("nats", err) }()

	data, err := sonic.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encode notification: %w", err)
	}

	subject := Subject(o.prefix, n)
	if _, err = o.js.Publish(ctx, subject, data, jetstream.WithMsgID(n.ID)); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", subject, err)
	}
	return nil
}
