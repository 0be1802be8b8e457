package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/hibiken/asynq"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/shared"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeOwnerMessage(t *testing.T) {
	c := NewComposer("support@koolaai.com")
	n, err := c.Compose(Event{ConversationID: "c1", SenderRole: shared.SideOwner, SenderID: "u1", RecipientUserID: ""})
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "support@koolaai.com", n.Recipient)
	assert.Equal(t, "New support chat message", n.Subject)
	assert.Equal(t, "Conversation c1 received a new user message.", n.Body)

	meta := n.Metadata.Data()
	assert.Equal(t, "c1", meta.ConversationID)
	assert.Equal(t, "owner", meta.SenderRole)
	assert.Equal(t, "u1", meta.SenderID)
}

func TestComposeOperatorReply(t *testing.T) {
	c := NewComposer("support@koolaai.com")
	n, err := c.Compose(Event{ConversationID: "c1", SenderRole: shared.SideOperator, SenderID: "agent-1", RecipientUserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "user:u1", n.Recipient)
	assert.Equal(t, "u1", n.Metadata.Data().RecipientUserID)
	assert.Equal(t, "support.notifications.operator", Subject(NotificationSubject, n))
}

type fakeEnqueuer struct {
	task *asynq.Task
	opts []asynq.Option
	err  error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.task = task
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "t1", Queue: NotificationQueue}, nil
}

func TestAsynqOutboxEnqueue(t *testing.T) {
	n, err := NewComposer("support@koolaai.com").Compose(Event{ConversationID: "c1", SenderRole: shared.SideOwner, SenderID: "u1"})
	require.NoError(t, err)

	fake := &fakeEnqueuer{}
	require.NoError(t, NewAsynqOutbox(fake).Enqueue(context.Background(), n))

	require.NotNil(t, fake.task)
	assert.Equal(t, TaskDeliverNotification, fake.task.Type())
	assert.Len(t, fake.opts, 3)

	var decoded model.Notification
	require.NoError(t, sonic.Unmarshal(fake.task.Payload(), &decoded))
	assert.Equal(t, n.ID, decoded.ID)
	assert.Equal(t, "c1", decoded.Metadata.Data().ConversationID)

	var raw struct {
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, sonic.Unmarshal(fake.task.Payload(), &raw))
	assert.Equal(t, map[string]string{"conversationId": "c1", "senderRole": "owner", "senderId": "u1"}, raw.Metadata)
}

func TestAsynqOutboxError(t *testing.T) {
	n := &model.Notification{ID: "n1"}
	fake := &fakeEnqueuer{err: errors.New("redis down")}
	err := NewAsynqOutbox(fake).Enqueue(context.Background(), n)
	assert.ErrorContains(t, err, "redis down")
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.subject = subject
	f.data = data
	if f.err != nil {
		return nil, f.err
	}
	return &jetstream.PubAck{Stream: NotificationStream, Sequence: 1}, nil
}

func TestNATSOutboxPublishesBySide(t *testing.T) {
	n, err := NewComposer("support@koolaai.com").Compose(Event{ConversationID: "c9", SenderRole: shared.SideOwner, SenderID: "u1"})
	require.NoError(t, err)

	pub := &fakePublisher{}
	require.NoError(t, NewNATSOutbox(pub).Enqueue(context.Background(), n))
	assert.Equal(t, "support.notifications.owner", pub.subject)
	assert.Contains(t, string(pub.data), `"c9"`)

	pub.err = errors.New("no responders")
	assert.Error(t, NewNATSOutbox(pub).Enqueue(context.Background(), n))
}
