package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	middleware "github.com/quickgpt/quickgpt-server/middlewares"
	"github.com/quickgpt/quickgpt-server/models"
	"github.com/quickgpt/quickgpt-server/utils"
)

const checkoutSessionTTL = 30 * time.Minute

type StripeHandler struct {
	DB          *sql.DB
	Settlements utils.SettlementStore
}

// appID tags checkout metadata so the webhook can discard events belonging to
// other deployments sharing the same Stripe account.
func appID() string {
	if id := os.Getenv("STRIPE_APP_ID"); id != "" {
		return id
	}
	return "quickgpt"
}

func (h *StripeHandler) GetPlans(w http.ResponseWriter, r *http.Request) {
	utils.RespondSuccess(w, http.StatusOK, models.Plans)
}

// PurchasePlan records a pending transaction and opens a checkout session
// bound to it, returning the processor-hosted redirect URL.
func (h *StripeHandler) PurchasePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDContextKey).(string)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	plan, ok := models.FindPlan(body.PlanID)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid plan selected")
		return
	}

	var transactionID string
	err := h.DB.QueryRow(`
		INSERT INTO transactions (user_id, plan_id, amount, credits, paid)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id
	`, userID, plan.ID, plan.Price, plan.Credits).Scan(&transactionID)
	if err != nil {
		utils.RespondInternal(w, err, "Unable to create transaction")
		return
	}

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:5173"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(frontendURL + "/credits?success=true&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(frontendURL + "/credits?canceled=true"),
		ExpiresAt:  stripe.Int64(time.Now().Add(checkoutSessionTTL).Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(plan.Name),
						Description: stripe.String(fmt.Sprintf("%d credits for QuickGPT", plan.Credits)),
					},
					UnitAmount: stripe.Int64(int64(plan.Price) * 100),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("transactionId", transactionID)
	params.AddMetadata("userId", userID)
	params.AddMetadata("appId", appID())

	result, err := session.New(params)
	if err != nil {
		utils.RespondInternal(w, err, "Unable to create checkout session")
		return
	}

	_, err = h.DB.Exec(`UPDATE transactions SET session_id = $1 WHERE id = $2`, result.ID, transactionID)
	if err != nil {
		utils.RespondInternal(w, err, "Unable to persist checkout session")
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]string{"url": result.URL})
}

// VerifyPayment is the client-triggered reconciliation path. After the browser
// is redirected back it polls this endpoint; if the processor reports the
// session as paid we run the same settlement the webhook uses. When the live
// session query itself fails we do NOT assume the redirect implied payment:
// the caller gets an error and can retry, and the webhook remains the backstop.
func (h *StripeHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	sess, err := session.Get(sessionID, nil)
	if err != nil {
		log.Printf("Verify failed: unable to fetch session %s: %v", sessionID, err)
		utils.RespondError(w, http.StatusBadGateway, "Unable to verify payment with processor, please retry")
		return
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid || sess.Status != stripe.CheckoutSessionStatusComplete {
		utils.RespondError(w, http.StatusBadRequest, fmt.Sprintf("Payment not completed. Status: %s", sess.PaymentStatus))
		return
	}

	result, err := utils.SettleCheckoutSession(r.Context(), h.Settlements, sessionID)
	if err != nil {
		utils.RespondInternal(w, err, "Payment verification failed")
		return
	}

	if !result.Settled {
		// The webhook won the race (or the client polled twice). Report the
		// current balance without crediting again.
		balance, err := h.balanceForSession(sessionID)
		if err == sql.ErrNoRows {
			utils.RespondError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		if err != nil {
			utils.RespondInternal(w, err, "Unable to read balance")
			return
		}
		utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{
			"message": "Payment already verified",
			"credits": balance,
		})
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"message":       "Payment verified successfully",
		"credits":       result.Balance,
		"added_credits": result.Credited,
	})
}

func (h *StripeHandler) balanceForSession(sessionID string) (int, error) {
	var balance int
	err := h.DB.QueryRow(`
		SELECT u.credits FROM users u
		JOIN transactions t ON t.user_id = u.uuid
		WHERE t.session_id = $1
	`, sessionID).Scan(&balance)
	return balance, err
}

// HandleWebhook is the asynchronous reconciliation path. Signature
// verification happens before anything else; an unsigned or tampered payload
// never reaches settlement. Business no-ops (duplicate delivery, foreign
// appId, unknown session) are acknowledged with 200 so Stripe stops retrying.
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), os.Getenv("STRIPE_WEBHOOK_SECRET"))
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		utils.RespondError(w, http.StatusBadRequest, "Invalid webhook signature")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Printf("Failed to parse checkout.session.completed: %v", err)
			utils.RespondError(w, http.StatusBadRequest, "Malformed event payload")
			return
		}

		if err := h.settleCompletedCheckout(r.Context(), &sess); err != nil {
			utils.RespondInternal(w, err, "Failed to settle session")
			return
		}

	default:
		log.Printf("Unhandled event type: %s", event.Type)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"received":true}`)
}

// settleCompletedCheckout settles by the transaction id carried in checkout
// metadata, so delivery order against the post-creation session-id write does
// not matter; events without it settle by session id. Foreign-app events and
// already-settled sessions are acknowledged no-ops.
func (h *StripeHandler) settleCompletedCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.Metadata["appId"] != appID() {
		log.Printf("Ignored checkout event for session %s: foreign appId %q", sess.ID, sess.Metadata["appId"])
		return nil
	}

	var (
		result *utils.SettlementResult
		err    error
	)
	if transactionID := sess.Metadata["transactionId"]; transactionID != "" {
		result, err = utils.SettleTransaction(ctx, h.Settlements, transactionID)
	} else {
		result, err = utils.SettleCheckoutSession(ctx, h.Settlements, sess.ID)
	}
	if err != nil {
		return err
	}
	if !result.Settled {
		log.Printf("Session %s already settled or unknown, webhook no-op", sess.ID)
	}
	return nil
}
