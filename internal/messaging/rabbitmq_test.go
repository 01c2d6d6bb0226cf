package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutConnection(t *testing.T) {
	// While a reconnect is in flight the channel is nil; publishing must
	// fail with an error instead of dereferencing it.
	p := &RabbitMQPublisher{}

	err := p.PublishResetToken(context.Background(), ResetTokenPayload{Username: "alice", Token: "tok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection is closed")
}
