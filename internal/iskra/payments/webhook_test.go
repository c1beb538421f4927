package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testSecret = "whsec_test"

type fakeGrantStore struct {
	orders map[string]int64
	grants map[int64]time.Time

	setGrantCalls int
}

func newFakeGrantStore() *fakeGrantStore {
	return &fakeGrantStore{
		orders: make(map[string]int64),
		grants: make(map[int64]time.Time),
	}
}

func (f *fakeGrantStore) ConsumePendingOrder(ctx context.Context, orderID string) (int64, bool, error) {
	userID, ok := f.orders[orderID]
	if !ok {
		return 0, false, nil
	}
	delete(f.orders, orderID)
	return userID, true, nil
}

func (f *fakeGrantStore) GetGrant(ctx context.Context, userID int64) (time.Time, bool, error) {
	t, ok := f.grants[userID]
	return t, ok, nil
}

func (f *fakeGrantStore) SetGrant(ctx context.Context, userID int64, expiresAt time.Time) error {
	f.setGrantCalls++
	f.grants[userID] = expiresAt
	return nil
}

type fakeNotifier struct {
	sent []int64
}

func (f *fakeNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, chatID)
	return nil
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func succeededEvent(orderID string, userID int64) string {
	return fmt.Sprintf(
		`{"event":"payment.succeeded","object":{"id":"pay-1","metadata":{"order_id":%q,"user_id":"%d"}}}`,
		orderID, userID)
}

func newTestHandler(t *testing.T, store *fakeGrantStore, notifier *fakeNotifier, now time.Time) *WebhookHandler {
	t.Helper()
	// Avoid handing the handler a typed nil through the interface.
	var n userNotifier
	if notifier != nil {
		n = notifier
	}
	h := NewWebhookHandler(store, n, testSecret)
	h.now = func() time.Time { return now }
	return h
}

func post(h http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	store := newFakeGrantStore()
	store.orders["order-1"] = 42
	h := newTestHandler(t, store, nil, time.Now())

	body := succeededEvent("order-1", 42)

	for name, sig := range map[string]string{
		"missing": "",
		"garbage": "not-a-signature",
		"wrong":   sign(body + "tampered"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(h, body, sig)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}

	// Nothing was consumed or granted.
	if _, ok := store.orders["order-1"]; !ok {
		t.Error("pending order was consumed despite bad signature")
	}
	if store.setGrantCalls != 0 {
		t.Errorf("SetGrant calls: got %d, want 0", store.setGrantCalls)
	}
}

func TestWebhook_GrantsFromNow(t *testing.T) {
	store := newFakeGrantStore()
	store.orders["order-1"] = 42
	notifier := &fakeNotifier{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newTestHandler(t, store, notifier, now)

	body := succeededEvent("order-1", 42)
	rec := post(h, body, sign(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	want := now.AddDate(0, 0, DefaultGrantDays)
	got, ok := store.grants[42]
	if !ok {
		t.Fatal("expected a grant to be set")
	}
	if !got.Equal(want) {
		t.Errorf("expiry: got %v, want %v", got, want)
	}

	if len(notifier.sent) != 1 || notifier.sent[0] != 42 {
		t.Errorf("notifications: got %v, want [42]", notifier.sent)
	}
}

func TestWebhook_ExtendsUnexpiredGrant(t *testing.T) {
	store := newFakeGrantStore()
	store.orders["order-1"] = 42
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now.AddDate(0, 0, 10) // 10 days of access left
	store.grants[42] = current
	h := newTestHandler(t, store, nil, now)

	body := succeededEvent("order-1", 42)
	post(h, body, sign(body))

	// Paying early extends from the current expiry, not from now.
	want := current.AddDate(0, 0, DefaultGrantDays)
	if got := store.grants[42]; !got.Equal(want) {
		t.Errorf("expiry: got %v, want %v", got, want)
	}
}

func TestWebhook_UnknownOrderIsAcknowledgedNoOp(t *testing.T) {
	store := newFakeGrantStore()
	h := newTestHandler(t, store, nil, time.Now())

	body := succeededEvent("missing-order", 42)
	rec := post(h, body, sign(body))

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if store.setGrantCalls != 0 {
		t.Errorf("SetGrant calls: got %d, want 0", store.setGrantCalls)
	}
}

func TestWebhook_RedeliveryIsNoOp(t *testing.T) {
	store := newFakeGrantStore()
	store.orders["order-1"] = 42
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newTestHandler(t, store, nil, now)

	body := succeededEvent("order-1", 42)
	post(h, body, sign(body))
	post(h, body, sign(body))

	if store.setGrantCalls != 1 {
		t.Errorf("SetGrant calls after redelivery: got %d, want 1", store.setGrantCalls)
	}
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	store := newFakeGrantStore()
	store.orders["order-1"] = 42
	h := newTestHandler(t, store, nil, time.Now())

	body := `{"event":"payment.canceled","object":{"id":"pay-1","metadata":{"order_id":"order-1","user_id":"42"}}}`
	rec := post(h, body, sign(body))

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if _, ok := store.orders["order-1"]; !ok {
		t.Error("pending order was consumed by a non-success event")
	}
}

func TestWebhook_RejectsInvalidJSON(t *testing.T) {
	h := newTestHandler(t, newFakeGrantStore(), nil, time.Now())

	body := "{not json"
	rec := post(h, body, sign(body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
