package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chatline/chatline-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		online        BOOLEAN NOT NULL DEFAULT 0,
		last_seen     DATETIME,
		conn_id       TEXT,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id   INTEGER NOT NULL REFERENCES users(id),
		receiver_id INTEGER NOT NULL REFERENCES users(id),
		content     TEXT NOT NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_read     BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair
		ON messages(sender_id, receiver_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id             TEXT PRIMARY KEY,
		amount         INTEGER NOT NULL,
		upi_id         TEXT NOT NULL,
		qr_code        TEXT NOT NULL,
		transaction_id TEXT,
		status         TEXT NOT NULL DEFAULT 'pending',
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS upi_settings (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		upi_id     TEXT NOT NULL UNIQUE,
		is_active  BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

const userColumns = `id, username, COALESCE(email, ''), password_hash, online, last_seen, COALESCE(conn_id, ''), created_at`

func scanUser(row interface{ Scan(...any) error }) (*store.User, error) {
	var user store.User
	var lastSeen sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Online,
		&lastSeen,
		&user.ConnID,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		user.LastSeen = &lastSeen.Time
	}
	return &user, nil
}

// CreateUser creates a new user with email and hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES (?, NULLIF(?, ''), ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// EnsureUser returns the user with the given username, creating it if missing.
func (s *SQLiteStore) EnsureUser(ctx context.Context, username string) (*store.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	query := `INSERT INTO users (username) VALUES (?)`
	result, err := s.db.ExecContext(ctx, query, username)
	if err != nil {
		// Lost a race with a concurrent registration for the same name.
		if existing, getErr := s.GetUserByUsername(ctx, username); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", email, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// ListUsers lists all users, excluding the given id when non-zero.
func (s *SQLiteStore) ListUsers(ctx context.Context, excludeID int64) ([]*store.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id != ?
		ORDER BY online DESC, username ASC
	`
	rows, err := s.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetUserOnline marks a user online and records the connection id.
func (s *SQLiteStore) SetUserOnline(ctx context.Context, id int64, connID string) error {
	query := `
		UPDATE users
		SET online = 1, last_seen = NULL, conn_id = NULLIF(?, '')
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, connID, id)
	if err != nil {
		return fmt.Errorf("set user online: %w", err)
	}
	return requireRow(result, id)
}

// SetUserOffline marks a user offline and records last_seen.
func (s *SQLiteStore) SetUserOffline(ctx context.Context, id int64, lastSeen time.Time) error {
	query := `
		UPDATE users
		SET online = 0, last_seen = ?, conn_id = NULL
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, lastSeen.UTC(), id)
	if err != nil {
		return fmt.Errorf("set user offline: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// ==== MessageStore implementation ====

const messageViewQuery = `
	SELECT m.id, m.sender_id, m.receiver_id, m.content, m.created_at, m.is_read,
	       su.username, su.online,
	       ru.username, ru.online
	FROM messages m
	JOIN users su ON su.id = m.sender_id
	JOIN users ru ON ru.id = m.receiver_id
`

func scanMessageView(row interface{ Scan(...any) error }) (*store.MessageView, error) {
	var v store.MessageView
	err := row.Scan(
		&v.ID,
		&v.SenderID,
		&v.ReceiverID,
		&v.Content,
		&v.CreatedAt,
		&v.Read,
		&v.Sender.Username,
		&v.Sender.Online,
		&v.Receiver.Username,
		&v.Receiver.Online,
	)
	if err != nil {
		return nil, err
	}
	v.Sender.ID = v.SenderID
	v.Receiver.ID = v.ReceiverID
	return &v, nil
}

// CreateMessage persists a message and returns its id.
func (s *SQLiteStore) CreateMessage(ctx context.Context, senderID, receiverID int64, content string) (int64, error) {
	query := `
		INSERT INTO messages (sender_id, receiver_id, content)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, senderID, receiverID, content)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// GetMessageView retrieves a single hydrated message.
func (s *SQLiteStore) GetMessageView(ctx context.Context, id int64) (*store.MessageView, error) {
	row := s.db.QueryRowContext(ctx, messageViewQuery+` WHERE m.id = ?`, id)
	v, err := scanMessageView(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return v, nil
}

// ListConversation retrieves all messages between two users, oldest first.
func (s *SQLiteStore) ListConversation(ctx context.Context, userID, otherID int64) ([]*store.MessageView, error) {
	query := messageViewQuery + `
		WHERE (m.sender_id = ? AND m.receiver_id = ?)
		   OR (m.sender_id = ? AND m.receiver_id = ?)
		ORDER BY m.created_at ASC, m.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, otherID, otherID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.MessageView, 0)
	for rows.Next() {
		v, err := scanMessageView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, v)
	}
	return messages, rows.Err()
}

// LastMessageBetween returns the newest message between two users, nil if none.
func (s *SQLiteStore) LastMessageBetween(ctx context.Context, userID, otherID int64) (*store.MessageView, error) {
	query := messageViewQuery + `
		WHERE (m.sender_id = ? AND m.receiver_id = ?)
		   OR (m.sender_id = ? AND m.receiver_id = ?)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, userID, otherID, otherID, userID)
	v, err := scanMessageView(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query last message: %w", err)
	}
	return v, nil
}

// MarkConversationRead flips the read flag on unread messages from sender to receiver.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, senderID, receiverID int64) error {
	query := `
		UPDATE messages
		SET is_read = 1
		WHERE sender_id = ? AND receiver_id = ? AND is_read = 0
	`
	if _, err := s.db.ExecContext(ctx, query, senderID, receiverID); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	return nil
}

// MarkMessageRead flips the read flag on a single message.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id int64) (*store.MessageView, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("mark message read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return s.GetMessageView(ctx, id)
}

// ==== PaymentStore implementation ====

func scanPayment(row interface{ Scan(...any) error }) (*store.Payment, error) {
	var p store.Payment
	err := row.Scan(
		&p.ID,
		&p.Amount,
		&p.UpiID,
		&p.QRCode,
		&p.TransactionID,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const paymentColumns = `id, amount, upi_id, qr_code, COALESCE(transaction_id, ''), status, created_at`

// CreatePayment persists a new payment record.
func (s *SQLiteStore) CreatePayment(ctx context.Context, p *store.Payment) error {
	query := `
		INSERT INTO payments (id, amount, upi_id, qr_code, status)
		VALUES (?, ?, ?, ?, ?)
	`
	status := p.Status
	if status == "" {
		status = store.PaymentStatusPending
	}
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Amount, p.UpiID, p.QRCode, status); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by id.
func (s *SQLiteStore) GetPayment(ctx context.Context, id string) (*store.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return p, nil
}

// SetPaymentTransaction attaches the payer-submitted transaction id.
func (s *SQLiteStore) SetPaymentTransaction(ctx context.Context, id, transactionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE payments SET transaction_id = ? WHERE id = ?`, transactionID, id)
	if err != nil {
		return fmt.Errorf("set payment transaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payment %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// SetPaymentStatus updates the review status of a payment.
func (s *SQLiteStore) SetPaymentStatus(ctx context.Context, id string, status store.PaymentStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payment %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListPayments lists all payments, newest first.
func (s *SQLiteStore) ListPayments(ctx context.Context) ([]*store.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*store.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ActiveUpiID returns the currently active payee UPI id.
func (s *SQLiteStore) ActiveUpiID(ctx context.Context) (string, error) {
	var upiID string
	err := s.db.QueryRowContext(ctx,
		`SELECT upi_id FROM upi_settings WHERE is_active = 1 LIMIT 1`).Scan(&upiID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("active upi id: %w", store.ErrNotFound)
		}
		return "", fmt.Errorf("query upi setting: %w", err)
	}
	return upiID, nil
}

// SetActiveUpiID deactivates all UPI ids and activates the given one.
func (s *SQLiteStore) SetActiveUpiID(ctx context.Context, upiID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE upi_settings SET is_active = 0`); err != nil {
		return fmt.Errorf("deactivate upi ids: %w", err)
	}
	query := `
		INSERT INTO upi_settings (upi_id, is_active) VALUES (?, 1)
		ON CONFLICT(upi_id) DO UPDATE SET is_active = 1
	`
	if _, err := tx.ExecContext(ctx, query, upiID); err != nil {
		return fmt.Errorf("activate upi id: %w", err)
	}
	return tx.Commit()
}
