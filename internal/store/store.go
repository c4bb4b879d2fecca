package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
//
// Online and ConnID mirror the connection registry: Online is true exactly
// while a connection id is bound, and LastSeen is meaningful only offline.
type User struct {
	ID           int64
	Username     string
	Email        string // empty for chat-only users that never used the auth subsystem
	PasswordHash string
	Online       bool
	LastSeen     *time.Time
	ConnID       string
	CreatedAt    time.Time
}

// Message represents a persisted direct message.
// Immutable after creation except the read flag, which flips false->true once.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Content    string
	CreatedAt  time.Time
	Read       bool
}

// UserRef is the lightweight display metadata joined onto hydrated messages.
type UserRef struct {
	ID       int64
	Username string
	Online   bool
}

// MessageView is a Message hydrated with sender/receiver display metadata.
type MessageView struct {
	Message
	Sender   UserRef
	Receiver UserRef
}

// PaymentStatus defines the review state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Payment represents a UPI payment attempt.
type Payment struct {
	ID            string // UUID
	Amount        int64  // paise
	UpiID         string
	QRCode        string // base64 PNG data URL
	TransactionID string // UTR submitted by the payer, empty until submission
	Status        PaymentStatus
	CreatedAt     time.Time
}

// UpiSetting is a configured payee UPI id. At most one is active.
type UpiSetting struct {
	ID        int64
	UpiID     string
	IsActive  bool
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with email and hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// EnsureUser returns the user with the given username, creating it first
	// if missing. Re-registering an existing username reuses the record.
	EnsureUser(ctx context.Context, username string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers lists all users, excluding the given id when non-zero.
	// Ordered online-first, then by username.
	ListUsers(ctx context.Context, excludeID int64) ([]*User, error)

	// SetUserOnline marks a user online, clears last_seen and records the
	// bound connection id (may be empty for HTTP-only registration).
	SetUserOnline(ctx context.Context, id int64, connID string) error

	// SetUserOffline marks a user offline, clears the connection id and
	// records last_seen.
	SetUserOffline(ctx context.Context, id int64, lastSeen time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message and returns its id. The timestamp is
	// assigned by the store and is non-decreasing per insertion.
	CreateMessage(ctx context.Context, senderID, receiverID int64, content string) (int64, error)

	// GetMessageView retrieves a single message hydrated with sender and
	// receiver display metadata.
	GetMessageView(ctx context.Context, id int64) (*MessageView, error)

	// ListConversation retrieves all messages between two users in either
	// direction, ordered by timestamp ascending.
	ListConversation(ctx context.Context, userID, otherID int64) ([]*MessageView, error)

	// LastMessageBetween returns the newest message between two users, or
	// nil when the pair has no history.
	LastMessageBetween(ctx context.Context, userID, otherID int64) (*MessageView, error)

	// MarkConversationRead flips the read flag on all unread messages sent
	// by senderID to receiverID.
	MarkConversationRead(ctx context.Context, senderID, receiverID int64) error

	// MarkMessageRead flips the read flag on a single message and returns
	// the updated view.
	MarkMessageRead(ctx context.Context, id int64) (*MessageView, error)
}

// PaymentStore handles payment and UPI-setting persistence.
type PaymentStore interface {
	// CreatePayment persists a new payment record.
	CreatePayment(ctx context.Context, p *Payment) error

	// GetPayment retrieves a payment by id.
	GetPayment(ctx context.Context, id string) (*Payment, error)

	// SetPaymentTransaction attaches the payer-submitted transaction id.
	SetPaymentTransaction(ctx context.Context, id, transactionID string) error

	// SetPaymentStatus updates the review status of a payment.
	SetPaymentStatus(ctx context.Context, id string, status PaymentStatus) error

	// ListPayments lists all payments, newest first.
	ListPayments(ctx context.Context) ([]*Payment, error)

	// ActiveUpiID returns the currently active payee UPI id.
	ActiveUpiID(ctx context.Context) (string, error)

	// SetActiveUpiID deactivates all configured UPI ids and activates the
	// given one, inserting it if new.
	SetActiveUpiID(ctx context.Context, upiID string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore
	PaymentStore

	// Close closes the underlying database connection.
	Close() error
}
