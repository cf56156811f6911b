package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"storefront-service/internal/catalog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header for the payload using the
// documented scheme: HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedSessionPayload(productIds string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_123",
				"object": "checkout.session",
				"metadata": {"product_ids": %q}
			}
		}
	}`, stripe.APIVersion, productIds))
}

func postWebhook(t *testing.T, store *MockStore, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	router := newTestRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_InvalidSignature(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	store := &MockStore{Content: []byte(catalogFixture), SHA: "sha-1"}

	payload := completedSessionPayload("A,B")
	w := postWebhook(t, store, payload, signPayload(payload, "whsec_wrong_secret"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	// A forged delivery must not reach the catalog store at all.
	assert.Equal(t, 0, store.GetCalls)
	assert.Equal(t, 0, store.PutCalls)
}

func TestWebhook_MissingSignatureHeader(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	store := &MockStore{Content: []byte(catalogFixture), SHA: "sha-1"}

	w := postWebhook(t, store, completedSessionPayload("A"), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.GetCalls)
}

func TestWebhook_MissingSecretIsConfigError(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	store := &MockStore{Content: []byte(catalogFixture), SHA: "sha-1"}

	payload := completedSessionPayload("A")
	w := postWebhook(t, store, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, store.GetCalls)
}

func TestWebhook_CompletedSessionMarksProductsSold(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	store := &MockStore{Content: []byte(catalogFixture), SHA: "sha-1"}

	payload := completedSessionPayload("A,B")
	w := postWebhook(t, store, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())

	require.Equal(t, 1, store.PutCalls)
	assert.Equal(t, "sha-1", store.PutSHA)

	var written []catalog.Product
	require.NoError(t, json.Unmarshal(store.PutContent, &written))
	require.Len(t, written, 3)
	assert.False(t, written[0].IsAvailable())
	assert.False(t, written[1].IsAvailable())
	assert.True(t, written[2].IsAvailable())
}

func TestWebhook_SecondDeliveryIsIdempotent(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	store := &MockStore{Content: []byte(catalogFixture), SHA: "sha-1"}

	payload := completedSessionPayload("A,B")
	w := postWebhook(t, store, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, store.PutCalls)

	// Stripe redelivers the identical event; the catalog now already has
	// both products marked sold.
	store.Content = store.PutContent
	store.SHA = "sha-2"

	w = postWebhook(t, store, payload, signPayload(payload, testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())
	assert.Equal(t, 1, store.PutCalls)

	var final []catalog.Product
	require.NoError(t, json.Unmarshal(store.PutContent, &final))
	assert.False(t, final[0].IsAvailable())
	assert.False(t, final[1].IsAvailable())
	assert.True(t, final[2].IsAvailable())
}

func TestWebhook_UnknownProductIDSkipsWrite(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	store := &MockStore{Content: []byte(catalogFixture), SHA: "sha-1"}

	payload := completedSessionPayload("ZZZ")
	w := postWebhook(t, store, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, store.PutCalls)
}

func TestWebhook_EmptyMetadataIsAcknowledgedNoOp(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	store := &MockStore{Content: []byte(catalogFixture), SHA: "sha-1"}

	payload := completedSessionPayload("")
	w := postWebhook(t, store, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())
	assert.Equal(t, 0, store.GetCalls)
	assert.Equal(t, 0, store.PutCalls)
}

func TestWebhook_ConflictingWriteIsServerError(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	store := &MockStore{
		Content: []byte(catalogFixture),
		SHA:     "sha-1",
		PutErr:  fmt.Errorf("commit rejected: stale sha"),
	}

	payload := completedSessionPayload("A")
	w := postWebhook(t, store, payload, signPayload(payload, testWebhookSecret))

	// A lost update must surface as an error so Stripe redelivers.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook_UnhandledEventTypeIsAcknowledged(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	store := &MockStore{Content: []byte(catalogFixture), SHA: "sha-1"}

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_2",
		"object": "event",
		"api_version": %q,
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "object": "payment_intent"}}
	}`, stripe.APIVersion))
	w := postWebhook(t, store, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())
	assert.Equal(t, 0, store.GetCalls)
	assert.Equal(t, 0, store.PutCalls)
}

func TestWebhook_WrongVerb(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	store := &MockStore{Content: []byte(catalogFixture), SHA: "sha-1"}
	router := newTestRouter(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/webhook", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSplitProductIDs(t *testing.T) {
	assert.Nil(t, splitProductIDs(""))
	assert.Equal(t, []string{"A"}, splitProductIDs("A"))
	assert.Equal(t, []string{"A", "B"}, splitProductIDs("A,B"))
	assert.Equal(t, []string{"A", "B"}, splitProductIDs(" A , B ,"))
}
