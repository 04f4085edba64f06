package utils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// SettlementResult reports the outcome of a settlement attempt. Settled is
// false when no unpaid transaction exists for the reference, which covers both
// duplicate webhook delivery and the verify/webhook race losing side.
type SettlementResult struct {
	Settled  bool
	UserID   string
	Credited int
	Balance  int
}

// SettlementTx is the transactional scope of one settlement attempt. The Mark
// methods apply the conditional paid = FALSE -> TRUE flip and return
// sql.ErrNoRows when no unpaid transaction matches, so the caller can tell a
// lost race apart from a failure.
type SettlementTx interface {
	MarkSessionPaid(ctx context.Context, sessionID string) (userID string, credits int, err error)
	MarkTransactionPaid(ctx context.Context, transactionID string) (userID string, credits int, err error)
	GrantCredits(ctx context.Context, userID string, credits int) (balance int, err error)
	Commit() error
	Rollback() error
}

// SettlementStore opens settlement transactions against the backing database.
type SettlementStore interface {
	BeginSettlement(ctx context.Context) (SettlementTx, error)
}

// SettleCheckoutSession applies the Pending -> Paid transition for the
// transaction bound to sessionID and grants its credits to the owning user.
// Both reconciliation paths (webhook delivery and client verification) must go
// through settlement and nothing else may flip the paid flag.
func SettleCheckoutSession(ctx context.Context, store SettlementStore, sessionID string) (*SettlementResult, error) {
	return settle(ctx, store, "session "+sessionID, func(tx SettlementTx) (string, int, error) {
		return tx.MarkSessionPaid(ctx, sessionID)
	})
}

// SettleTransaction settles by the transaction row id. The webhook path uses
// this, since checkout metadata carries the id from the moment the session is
// created; it does not depend on the session id having been persisted yet.
func SettleTransaction(ctx context.Context, store SettlementStore, transactionID string) (*SettlementResult, error) {
	return settle(ctx, store, "transaction "+transactionID, func(tx SettlementTx) (string, int, error) {
		return tx.MarkTransactionPaid(ctx, transactionID)
	})
}

// settle runs the flip-then-grant protocol inside one transaction. The
// conditional update is the concurrency guard: two concurrent attempts
// serialize on the transaction row, the loser scans zero rows and returns a
// no-op result instead of double-crediting.
func settle(ctx context.Context, store SettlementStore, ref string, mark func(SettlementTx) (string, int, error)) (*SettlementResult, error) {
	tx, err := store.BeginSettlement(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin DB transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	userID, credits, err := mark(tx)
	if err == sql.ErrNoRows {
		err = nil
		_ = tx.Rollback()
		return &SettlementResult{Settled: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to flag transaction as paid: %w", err)
	}

	balance, err := tx.GrantCredits(ctx, userID, credits)
	if err != nil {
		return nil, fmt.Errorf("failed to credit user %s: %w", userID, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	log.Printf("Settled %s: +%d credits for user %s (balance %d)", ref, credits, userID, balance)

	return &SettlementResult{
		Settled:  true,
		UserID:   userID,
		Credited: credits,
		Balance:  balance,
	}, nil
}
