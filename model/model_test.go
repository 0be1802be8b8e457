package model

import (
	"testing"
	"time"

	"github.com/koolaai/support_api/shared"
	"github.com/stretchr/testify/assert"
)

func TestAbuseEventLive(t *testing.T) {
	reset := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	event := &AbuseEvent{Count: 3, WindowResetAt: reset}

	assert.True(t, event.Live(reset.Add(-time.Second)))
	assert.False(t, event.Live(reset))
	assert.False(t, event.Live(reset.Add(time.Minute)))

	var missing *AbuseEvent
	assert.False(t, missing.Live(reset))
}

func TestConversationResetUnread(t *testing.T) {
	conv := &Conversation{UnreadCountOwner: 2, UnreadCountOperator: 3}

	conv.ResetUnread(shared.SideOperator)
	assert.Equal(t, 2, conv.UnreadCountOwner)
	assert.Zero(t, conv.UnreadCountOperator)

	conv.ResetUnread(shared.SideOwner)
	assert.Zero(t, conv.UnreadCountOwner)
}
