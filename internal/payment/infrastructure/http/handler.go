package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/agentpay/agentpay-backend/internal/auth"
	"github.com/agentpay/agentpay-backend/internal/payment/application"
	"github.com/agentpay/agentpay-backend/internal/payment/domain"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	log           *slog.Logger
	service       *application.Service
	tracer        trace.Tracer
	environment   string
	webhookSecret string
}

func NewHandler(log *slog.Logger, service *application.Service, environment, webhookSecret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		tracer:        otel.Tracer("payment-http"),
		environment:   environment,
		webhookSecret: webhookSecret,
	}
}

// PaymentRoutes are the JWT-guarded payment API, mounted under /api/payments.
func (h *Handler) PaymentRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.createPayment)
	r.Get("/", h.listPayments)
	r.Get("/{id}", h.getPayment)
	r.Post("/{id}/simulate", h.simulatePayment)
	return r
}

// SimulationRoutes keep the original /api/simulations surface as an alias.
func (h *Handler) SimulationRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/payments/{id}", h.simulatePayment)
	r.Get("/status", h.simulationStatus)
	return r
}

// WebhookRoutes are unauthenticated; the provider signs the body instead.
func (h *Handler) WebhookRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/method", h.providerWebhook)
	return r
}

type createPaymentReq struct {
	Amount      int64  `json:"amount"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Description string `json:"description"`
}

type simulateReq struct {
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
}

type webhookReq struct {
	PaymentID                 string     `json:"payment_id"`
	NewStatus                 string     `json:"new_status"`
	ErrorCode                 string     `json:"error_code"`
	SourceSettlementDate      *time.Time `json:"source_settlement_date"`
	DestinationSettlementDate *time.Time `json:"destination_settlement_date"`
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreatePayment")
	defer span.End()

	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Reason: "invalid body"})
		return
	}
	ownerID, _ := auth.UserID(ctx)

	p, err := h.service.CreatePayment(ctx, application.CreateRequest{
		OwnerID:        ownerID,
		AmountCents:    req.Amount,
		Source:         req.Source,
		Destination:    req.Destination,
		Description:    req.Description,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toView(p))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayment")
	defer span.End()

	p, err := h.service.GetPayment(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(p))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListPayments")
	defer span.End()

	ownerID, _ := auth.UserID(ctx)
	filter := application.ListFilter{OwnerID: ownerID}

	if s := r.URL.Query().Get("status"); s != "" {
		status, err := domain.ParseStatus(s)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Status = status
	}
	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	payments, err := h.service.ListPayments(ctx, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, toView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) simulatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SimulatePayment")
	defer span.End()

	if h.environment != "dev" {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "simulation endpoints are only available in the dev environment",
		})
		return
	}

	var req simulateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Reason: "invalid body"})
		return
	}
	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.service.Simulate(ctx, chi.URLParam(r, "id"), target, application.TransitionMeta{ErrorCode: req.ErrorCode})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(p))
}

func (h *Handler) simulationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"environment":          h.environment,
		"simulation_available": h.environment == "dev",
		"endpoints": map[string]string{
			"payments": "/api/payments/{payment_id}/simulate",
			"webhooks": "/webhooks/method",
		},
	})
}

func (h *Handler) providerWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProviderWebhook")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, &domain.ValidationError{Reason: "unreadable body"})
		return
	}
	if h.webhookSecret != "" && !validSignature(body, r.Header.Get("X-Method-Signature"), h.webhookSecret) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad signature"})
		return
	}

	var req webhookReq
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, &domain.ValidationError{Reason: "invalid body"})
		return
	}
	target, err := domain.ParseStatus(req.NewStatus)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.service.Simulate(ctx, req.PaymentID, target, application.TransitionMeta{
		ErrorCode:                 req.ErrorCode,
		SourceSettlementDate:      req.SourceSettlementDate,
		DestinationSettlementDate: req.DestinationSettlementDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.log.Info("provider webhook applied", "payment_id", p.ID, "status", p.Status)
	writeJSON(w, http.StatusOK, toView(p))
}

func validSignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
