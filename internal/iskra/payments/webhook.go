package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// SignatureHeader carries the gateway's base64 HMAC-SHA256 digest of the
// raw request body.
const SignatureHeader = "X-Payment-Signature"

// eventPaymentSucceeded is the only event type that mutates state.
const eventPaymentSucceeded = "payment.succeeded"

// maxBodyBytes caps inbound webhook request bodies to prevent memory
// exhaustion from oversized payloads.
const maxBodyBytes = 256 * 1024

// grantStore is the minimal interface the webhook handler needs from the Store.
type grantStore interface {
	ConsumePendingOrder(ctx context.Context, orderID string) (int64, bool, error)
	GetGrant(ctx context.Context, userID int64) (time.Time, bool, error)
	SetGrant(ctx context.Context, userID int64, expiresAt time.Time) error
}

// userNotifier sends the post-payment confirmation to the user. In private
// Telegram chats the chat ID equals the user ID.
type userNotifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// WebhookHandler verifies and applies payment confirmations.
//
// A valid payment.succeeded event extends the paying user's access grant by
// GrantDays, counted from the later of now and the current expiry, so paying
// early never shortens access.
type WebhookHandler struct {
	store    grantStore
	notifier userNotifier
	secret   []byte

	// GrantDays is the access period added per confirmed payment.
	// Defaults to DefaultGrantDays.
	GrantDays int

	// now is injectable for tests.
	now func() time.Time
}

// NewWebhookHandler creates a webhook handler using the given shared secret.
func NewWebhookHandler(store grantStore, notifier userNotifier, secret string) *WebhookHandler {
	return &WebhookHandler{
		store:     store,
		notifier:  notifier,
		secret:    []byte(secret),
		GrantDays: DefaultGrantDays,
		now:       time.Now,
	}
}

// RegisterRoutes mounts the webhook endpoint on the given router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payments/webhook", h.ServeHTTP)
}

// --- webhook wire types ---

type webhookEvent struct {
	Event  string `json:"event"`
	Object struct {
		ID       string `json:"id"`
		Metadata struct {
			OrderID string `json:"order_id"`
			UserID  string `json:"user_id"`
		} `json:"metadata"`
	} `json:"object"`
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "cannot read request body", http.StatusBadRequest)
		return
	}

	if !h.validSignature(r.Header.Get(SignatureHeader), body) {
		slog.Warn("payment webhook rejected: invalid signature", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	if event.Event != eventPaymentSucceeded {
		// Authentic but irrelevant — acknowledge without state change.
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	orderID := event.Object.Metadata.OrderID

	userID, found, err := h.store.ConsumePendingOrder(ctx, orderID)
	if err != nil {
		slog.Error("payment webhook: consume pending order", "order_id", orderID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		// Unknown or already-consumed order. Acknowledge so the gateway stops
		// redelivering; there is nothing left to apply.
		slog.Warn("payment webhook: unknown order, acknowledged as no-op", "order_id", orderID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.extendGrant(ctx, userID); err != nil {
		slog.Error("payment webhook: extend grant", "user_id", userID, "order_id", orderID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("payment confirmed", "user_id", userID, "order_id", orderID, "days", h.GrantDays)

	if h.notifier != nil {
		msg := "Оплата получена. Безлимитный доступ открыт — продолжаем."
		if err := h.notifier.SendText(ctx, userID, msg); err != nil {
			// The grant is already persisted; a failed notification is not a
			// reason to make the gateway redeliver.
			slog.Warn("payment webhook: notify user", "user_id", userID, "err", err)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// extendGrant adds GrantDays to the user's grant, counting from the later of
// now and the current expiry.
func (h *WebhookHandler) extendGrant(ctx context.Context, userID int64) error {
	now := h.now()
	base := now

	current, ok, err := h.store.GetGrant(ctx, userID)
	if err != nil {
		return err
	}
	if ok && current.After(base) {
		base = current
	}

	return h.store.SetGrant(ctx, userID, base.AddDate(0, 0, h.GrantDays))
}

// validSignature recomputes the body's HMAC-SHA256 digest under the shared
// secret and compares it to the header in constant time.
func (h *WebhookHandler) validSignature(header string, body []byte) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header), []byte(expected))
}
