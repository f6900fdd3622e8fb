package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightdesk/classportal/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject)

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Auth events
	OTPRequested   = "auth.otp.requested"
	OTPDenied      = "auth.otp.denied"
	LoginSucceeded = "auth.login.succeeded"
	TokensRevoked  = "auth.tokens.revoked"

	// Directory events
	UserCreated     = "user.created"
	UserRoleChanged = "user.role.changed"
	InviteIssued    = "user.invite.issued"

	// Page content events
	ExtractCompleted = "page.extract.completed"
)

// Event payloads
type OTPRequestedEvent struct {
	Identifier  string    `json:"identifier"`
	Channel     string    `json:"channel"`
	RequestedAt time.Time `json:"requested_at"`
}

type OTPDeniedEvent struct {
	Identifier string    `json:"identifier"`
	Reason     string    `json:"reason"`
	DeniedAt   time.Time `json:"denied_at"`
}

type LoginSucceededEvent struct {
	UserID       int64     `json:"user_id"`
	Identifier   string    `json:"identifier"`
	Role         string    `json:"role"`
	IP           string    `json:"ip"`
	MasterBypass bool      `json:"master_bypass"`
	LoginAt      time.Time `json:"login_at"`
}

type TokensRevokedEvent struct {
	UserID    int64     `json:"user_id"`
	Revoked   int64     `json:"revoked"`
	RevokedAt time.Time `json:"revoked_at"`
}

type UserCreatedEvent struct {
	UserID     int64     `json:"user_id"`
	Identifier string    `json:"identifier"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

type UserRoleChangedEvent struct {
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	ChangedAt time.Time `json:"changed_at"`
}

type InviteIssuedEvent struct {
	Identifier string    `json:"identifier"`
	Role       string    `json:"role"`
	ExpiresAt  time.Time `json:"expires_at"`
	IssuedAt   time.Time `json:"issued_at"`
}

type ExtractCompletedEvent struct {
	Model       string    `json:"model"`
	Attempts    int       `json:"attempts"`
	CompletedAt time.Time `json:"completed_at"`
}
