package messaging

import (
	"context"
	"time"
)

const (
	ResetTokenQueue = "reset_token_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// ResetTokenPayload is consumed by the external delivery service (mail or
// otherwise); this backend only generates and queues it.
type ResetTokenPayload struct {
	Username string
	Token    string
}

type Publisher interface {
	PublishResetToken(ctx context.Context, payload ResetTokenPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
