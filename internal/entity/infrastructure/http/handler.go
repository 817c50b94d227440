package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentpay/agentpay-backend/internal/auth"
	"github.com/agentpay/agentpay-backend/internal/entity/application"
	"github.com/agentpay/agentpay-backend/internal/entity/domain"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	log         *slog.Logger
	service     *application.Service
	tracer      trace.Tracer
	environment string
}

func NewHandler(log *slog.Logger, service *application.Service, environment string) *Handler {
	return &Handler{
		log:         log,
		service:     service,
		tracer:      otel.Tracer("entity-http"),
		environment: environment,
	}
}

// EntityRoutes is mounted under /api/entities.
func (h *Handler) EntityRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.createEntity)
	r.Get("/me", h.getMyEntity)
	return r
}

// AccountRoutes is mounted under /api/accounts.
func (h *Handler) AccountRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.listAccounts)
	r.Post("/simulate/card", h.simulateCard)
	r.Post("/simulate/cards", h.simulateCards)
	r.Post("/simulate/bank", h.simulateBank)
	return r
}

type createEntityReq struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateEntity")
	defer span.End()

	var req createEntityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Reason: "invalid body"})
		return
	}
	userID, _ := auth.UserID(ctx)

	e, err := h.service.CreateEntity(ctx, userID, req.FullName, req.Email, req.Phone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntityView(e))
}

func (h *Handler) getMyEntity(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetMyEntity")
	defer span.End()

	userID, _ := auth.UserID(ctx)
	e, err := h.service.GetEntity(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityView(e))
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListAccounts")
	defer span.End()

	userID, _ := auth.UserID(ctx)
	accounts, err := h.service.ListAccounts(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, toAccountView(a))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) simulateCard(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SimulateCard")
	defer span.End()
	if !h.devOnly(w) {
		return
	}

	var req struct {
		Brand string `json:"brand"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	userID, _ := auth.UserID(ctx)
	a, err := h.service.ConnectSimulatedCard(ctx, userID, req.Brand)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountView(a))
}

func (h *Handler) simulateCards(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SimulateCards")
	defer span.End()
	if !h.devOnly(w) {
		return
	}

	userID, _ := auth.UserID(ctx)
	accounts, err := h.service.ConnectSimulatedCards(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, toAccountView(a))
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cards": views, "total": len(views)})
}

func (h *Handler) simulateBank(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SimulateBank")
	defer span.End()
	if !h.devOnly(w) {
		return
	}

	var req struct {
		AccountType string `json:"account_type"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	userID, _ := auth.UserID(ctx)
	a, err := h.service.ConnectSimulatedBank(ctx, userID, req.AccountType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountView(a))
}

func (h *Handler) devOnly(w http.ResponseWriter) bool {
	if h.environment != "dev" {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "simulation endpoints are only available in the dev environment",
		})
		return false
	}
	return true
}

type entityView struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type accountView struct {
	ID             string            `json:"id"`
	EntityID       string            `json:"entity_id"`
	Type           string            `json:"type"`
	Status         string            `json:"status"`
	Name           string            `json:"name"`
	Brand          string            `json:"brand,omitempty"`
	LastFour       string            `json:"last_four,omitempty"`
	Balance        int64             `json:"balance"`
	ExpMonth       int               `json:"exp_month,omitempty"`
	ExpYear        int               `json:"exp_year,omitempty"`
	Liability      *domain.Liability `json:"liability,omitempty"`
	BankName       string            `json:"bank_name,omitempty"`
	RoutingNumber  string            `json:"routing_number,omitempty"`
	AccountSubtype string            `json:"account_subtype,omitempty"`
	Simulated      bool              `json:"simulated"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

func toEntityView(e domain.Entity) entityView {
	return entityView{
		ID:        e.ID,
		Type:      e.Type,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Email:     e.Email,
		Phone:     e.Phone,
		Status:    e.Status,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
	}
}

func toAccountView(a domain.Account) accountView {
	return accountView{
		ID:             a.ID,
		EntityID:       a.EntityID,
		Type:           string(a.Type),
		Status:         a.Status,
		Name:           a.Name,
		Brand:          a.Brand,
		LastFour:       a.LastFour,
		Balance:        a.BalanceCents,
		ExpMonth:       a.ExpMonth,
		ExpYear:        a.ExpYear,
		Liability:      a.Liability,
		BankName:       a.BankName,
		RoutingNumber:  a.RoutingNumber,
		AccountSubtype: a.AccountSubtype,
		Simulated:      a.Simulated,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		exists     *domain.AlreadyExistsError
		notFound   *domain.NotFoundError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation), errors.As(err, &exists):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
