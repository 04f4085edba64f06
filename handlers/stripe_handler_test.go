package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v82"

	"github.com/quickgpt/quickgpt-server/utils"
)

func TestAppIDDefault(t *testing.T) {
	os.Unsetenv("STRIPE_APP_ID")
	if got := appID(); got != "quickgpt" {
		t.Fatalf("unexpected default app id %q", got)
	}
}

func TestAppIDFromEnv(t *testing.T) {
	os.Setenv("STRIPE_APP_ID", "quickgpt-staging")
	t.Cleanup(func() { os.Unsetenv("STRIPE_APP_ID") })

	if got := appID(); got != "quickgpt-staging" {
		t.Fatalf("unexpected app id %q", got)
	}
}

// An unsigned payload must be rejected at the boundary before any business
// logic runs; the nil DB would panic if settlement were ever reached.
func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	os.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Cleanup(func() { os.Unsetenv("STRIPE_WEBHOOK_SECRET") })

	h := &StripeHandler{DB: nil}

	body := `{"type":"checkout.session.completed","data":{"object":{"id":"cs_test_123"}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestHandleWebhookRejectsMissingSignature(t *testing.T) {
	os.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Cleanup(func() { os.Unsetenv("STRIPE_WEBHOOK_SECRET") })

	h := &StripeHandler{DB: nil}

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

type stubSettlementLedger struct {
	transactions []string
	sessions     []string
}

func (s *stubSettlementLedger) BeginSettlement(ctx context.Context) (utils.SettlementTx, error) {
	return &stubSettlementTx{ledger: s}, nil
}

type stubSettlementTx struct {
	ledger *stubSettlementLedger
}

func (t *stubSettlementTx) MarkSessionPaid(ctx context.Context, sessionID string) (string, int, error) {
	t.ledger.sessions = append(t.ledger.sessions, sessionID)
	return "u1", 100, nil
}

func (t *stubSettlementTx) MarkTransactionPaid(ctx context.Context, transactionID string) (string, int, error) {
	t.ledger.transactions = append(t.ledger.transactions, transactionID)
	return "u1", 100, nil
}

func (t *stubSettlementTx) GrantCredits(ctx context.Context, userID string, credits int) (int, error) {
	return 120, nil
}

func (t *stubSettlementTx) Commit() error   { return nil }
func (t *stubSettlementTx) Rollback() error { return nil }

// The transaction id travels in metadata from the moment the checkout session
// is created, so the webhook must settle by it and stay independent of the
// session-id write that happens after session creation.
func TestSettleCompletedCheckoutUsesTransactionMetadata(t *testing.T) {
	os.Unsetenv("STRIPE_APP_ID")

	ledger := &stubSettlementLedger{}
	h := &StripeHandler{Settlements: ledger}

	sess := &stripe.CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"appId": "quickgpt", "transactionId": "tx_1", "userId": "u1"},
	}

	if err := h.settleCompletedCheckout(context.Background(), sess); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(ledger.transactions) != 1 || ledger.transactions[0] != "tx_1" {
		t.Fatalf("expected settlement by transaction tx_1, got %v", ledger.transactions)
	}
	if len(ledger.sessions) != 0 {
		t.Fatalf("unexpected session settlements %v", ledger.sessions)
	}
}

func TestSettleCompletedCheckoutFallsBackToSessionID(t *testing.T) {
	os.Unsetenv("STRIPE_APP_ID")

	ledger := &stubSettlementLedger{}
	h := &StripeHandler{Settlements: ledger}

	sess := &stripe.CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"appId": "quickgpt"},
	}

	if err := h.settleCompletedCheckout(context.Background(), sess); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(ledger.sessions) != 1 || ledger.sessions[0] != "cs_1" {
		t.Fatalf("expected settlement by session cs_1, got %v", ledger.sessions)
	}
}

func TestSettleCompletedCheckoutIgnoresForeignApp(t *testing.T) {
	os.Unsetenv("STRIPE_APP_ID")

	ledger := &stubSettlementLedger{}
	h := &StripeHandler{Settlements: ledger}

	sess := &stripe.CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"appId": "someone-else", "transactionId": "tx_1"},
	}

	if err := h.settleCompletedCheckout(context.Background(), sess); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(ledger.transactions) != 0 || len(ledger.sessions) != 0 {
		t.Fatalf("foreign-app event must not settle anything")
	}
}
