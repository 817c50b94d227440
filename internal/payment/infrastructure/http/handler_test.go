package http_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentpay/agentpay-backend/internal/auth"
	"github.com/agentpay/agentpay-backend/internal/payment/application"
	paymenthttp "github.com/agentpay/agentpay-backend/internal/payment/infrastructure/http"
	"github.com/agentpay/agentpay-backend/internal/payment/infrastructure/memory"
	"github.com/agentpay/agentpay-backend/pkg/idempotency"
	"github.com/agentpay/agentpay-backend/pkg/keylock"
	"github.com/agentpay/agentpay-backend/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret        = "test-jwt-secret"
	testWebhookSecret = "test-webhook-secret"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	svc := application.NewService(memory.New(), idempotency.NewMemoryStore(), keylock.New())
	handler := paymenthttp.NewHandler(logging.New(), svc, "dev", testWebhookSecret)
	verifier := auth.NewVerifier(testSecret)

	r := chi.NewRouter()
	r.Mount("/webhooks", handler.WebhookRoutes())
	r.Route("/api", func(api chi.Router) {
		api.Use(verifier.Middleware)
		api.Mount("/payments", handler.PaymentRoutes())
		api.Mount("/simulations", handler.SimulationRoutes())
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"sub":     userID + "@example.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, method, url, token string, body any, extraHeaders map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestCreateSimulateComplete(t *testing.T) {
	srv := newServer(t)
	token := bearerToken(t, "user_1")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payments", token, map[string]any{
		"amount":      10000,
		"source":      "acc_bank_1",
		"destination": "acc_card_1",
		"description": "card payoff",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "pending", body["status"])
	assert.NotContains(t, body, "source_settlement_date")

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/payments/"+id+"/simulate", token,
		map[string]string{"status": "processing"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "processing", body["status"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/simulations/payments/"+id, token,
		map[string]string{"status": "completed"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	assert.NotEmpty(t, body["source_settlement_date"])
	assert.NotEmpty(t, body["destination_settlement_date"])

	// Terminal record rejects further simulation with 422.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/payments/"+id+"/simulate", token,
		map[string]string{"status": "processing"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestErrorStatusCodes(t *testing.T) {
	srv := newServer(t)
	token := bearerToken(t, "user_1")

	// 400 invalid amount
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/payments", token, map[string]any{
		"amount": 0, "source": "acc_bank_1", "destination": "acc_card_1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 400 same source and destination
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/payments", token, map[string]any{
		"amount": 100, "source": "acc_bank_1", "destination": "acc_bank_1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 404 unknown payment
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/payments/pmt_missing", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// 400 unknown target status
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/payments/pmt_x/simulate", token,
		map[string]string{"status": "reversed"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 401 without a token
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/payments", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// 401 with an expired token
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user_1",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/payments", signed, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIdempotencyKeyHeader(t *testing.T) {
	srv := newServer(t)
	token := bearerToken(t, "user_1")

	req := map[string]any{
		"amount": 5000, "source": "acc_bank_1", "destination": "acc_card_1",
	}
	headers := map[string]string{"Idempotency-Key": "retry-1"}

	resp, first := doJSON(t, http.MethodPost, srv.URL+"/api/payments", token, req, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, second := doJSON(t, http.MethodPost, srv.URL+"/api/payments", token, req, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, first["id"], second["id"])

	resp, list := doJSON(t, http.MethodGet, srv.URL+"/api/payments", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = list
}

func TestListPayments_StatusFilter(t *testing.T) {
	srv := newServer(t)
	token := bearerToken(t, "user_1")

	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/payments", token, map[string]any{
			"amount": 1000 + i, "source": "acc_bank_1", "destination": "acc_card_1",
		}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/payments?status=pending&limit=2", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	assert.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, "pending", v["status"])
	}
}

func TestProviderWebhook(t *testing.T) {
	srv := newServer(t)
	token := bearerToken(t, "user_1")

	_, created := doJSON(t, http.MethodPost, srv.URL+"/api/payments", token, map[string]any{
		"amount": 2500, "source": "acc_bank_1", "destination": "acc_card_1",
	}, nil)
	id := created["id"].(string)

	payload, err := json.Marshal(map[string]string{"payment_id": id, "new_status": "processing"})
	require.NoError(t, err)

	// Unsigned body is rejected when a webhook secret is configured.
	resp, err := http.Post(srv.URL+"/webhooks/method", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/method", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("X-Method-Signature", signature)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "processing", body["status"])
}
