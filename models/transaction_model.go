package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is one purchase attempt. Rows are append-only: the only mutation
// ever applied is the single paid=false -> true flip during settlement.
type Transaction struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	PlanID    string    `db:"plan_id" json:"plan_id"`
	Amount    int       `db:"amount" json:"amount"`
	Credits   int       `db:"credits" json:"credits"`
	SessionID string    `db:"session_id" json:"session_id"`
	Paid      bool      `db:"paid" json:"paid"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
