package database

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/quickgpt/quickgpt-server/models"
	"github.com/quickgpt/quickgpt-server/utils"
)

const uniqueViolation = "23505"

// Store carries the SQL behind settlement and the metered message gateway.
// Handlers depend on the narrow interfaces they consume, so tests substitute
// in-memory fakes for everything here.
type Store struct {
	DB *sql.DB
}

func (s *Store) BeginSettlement(ctx context.Context) (utils.SettlementTx, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &settlementTx{tx: tx}, nil
}

type settlementTx struct {
	tx *sql.Tx
}

func (t *settlementTx) MarkSessionPaid(ctx context.Context, sessionID string) (string, int, error) {
	return t.markPaid(ctx, `
		UPDATE transactions
		SET paid = TRUE
		WHERE session_id = $1 AND paid = FALSE
		RETURNING user_id, credits
	`, sessionID)
}

func (t *settlementTx) MarkTransactionPaid(ctx context.Context, transactionID string) (string, int, error) {
	return t.markPaid(ctx, `
		UPDATE transactions
		SET paid = TRUE
		WHERE id = $1 AND paid = FALSE
		RETURNING user_id, credits
	`, transactionID)
}

func (t *settlementTx) markPaid(ctx context.Context, query, arg string) (string, int, error) {
	var userID string
	var credits int
	err := t.tx.QueryRowContext(ctx, query, arg).Scan(&userID, &credits)
	return userID, credits, err
}

func (t *settlementTx) GrantCredits(ctx context.Context, userID string, credits int) (int, error) {
	var balance int
	err := t.tx.QueryRowContext(ctx, `
		UPDATE users
		SET credits = credits + $1
		WHERE uuid = $2
		RETURNING credits
	`, credits, userID).Scan(&balance)
	return balance, err
}

func (t *settlementTx) Commit() error   { return t.tx.Commit() }
func (t *settlementTx) Rollback() error { return t.tx.Rollback() }

func (s *Store) UserCredits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := s.DB.QueryRowContext(ctx, `SELECT credits FROM users WHERE uuid = $1`, userID).Scan(&credits)
	return credits, err
}

func (s *Store) ChatOwned(ctx context.Context, chatID, userID string) error {
	var exists bool
	return s.DB.QueryRowContext(ctx, `
		SELECT TRUE FROM chats WHERE id = $1 AND user_id = $2
	`, chatID, userID).Scan(&exists)
}

// DebitCredits is a conditional decrement; sql.ErrNoRows means the balance was
// below cost and nothing changed. Credits never go negative.
func (s *Store) DebitCredits(ctx context.Context, userID string, cost int) (int, error) {
	var balance int
	err := s.DB.QueryRowContext(ctx, `
		UPDATE users
		SET credits = credits - $1
		WHERE uuid = $2 AND credits >= $1
		RETURNING credits
	`, cost, userID).Scan(&balance)
	return balance, err
}

// AppendExchange writes the prompt/reply pair and bumps the chat's updated_at
// in one transaction. Positions are dense per chat and unique; a concurrent
// send to the same chat can take the computed slot, so one retry recomputes
// past it.
func (s *Store) AppendExchange(ctx context.Context, chatID, prompt string, reply *models.Message) error {
	return withPositionRetry(func() error {
		return s.appendExchange(ctx, chatID, prompt, reply)
	})
}

func withPositionRetry(fn func() error) error {
	err := fn()
	if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == uniqueViolation {
		err = fn()
	}
	return err
}

func (s *Store) appendExchange(ctx context.Context, chatID, prompt string, reply *models.Message) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var position int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0) FROM messages WHERE chat_id = $1
	`, chatID).Scan(&position)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (chat_id, position, role, content, is_image)
		VALUES ($1, $2, $3, $4, FALSE)
	`, chatID, position, models.RoleUser, prompt)
	if err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (chat_id, position, role, content, is_image, is_published)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, chatID, position+1, reply.Role, reply.Content, reply.IsImage, reply.IsPublished).Scan(&reply.ID, &reply.Timestamp)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, chatID); err != nil {
		return err
	}

	return tx.Commit()
}
