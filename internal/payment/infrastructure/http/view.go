package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/agentpay/agentpay-backend/internal/payment/domain"
)

type paymentView struct {
	ID                        string `json:"id"`
	Amount                    int64  `json:"amount"`
	Source                    string `json:"source"`
	Destination               string `json:"destination"`
	Description               string `json:"description"`
	Status                    string `json:"status"`
	ErrorCode                 string `json:"error_code,omitempty"`
	SourceSettlementDate      string `json:"source_settlement_date,omitempty"`
	DestinationSettlementDate string `json:"destination_settlement_date,omitempty"`
	CreatedAt                 string `json:"created_at"`
	UpdatedAt                 string `json:"updated_at"`
}

func toView(p domain.Payment) paymentView {
	v := paymentView{
		ID:          p.ID,
		Amount:      p.AmountCents,
		Source:      p.Source,
		Destination: p.Destination,
		Description: p.Description,
		Status:      string(p.Status),
		ErrorCode:   p.ErrorCode,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
	if p.SourceSettlementDate != nil {
		v.SourceSettlementDate = p.SourceSettlementDate.Format(time.RFC3339)
	}
	if p.DestinationSettlementDate != nil {
		v.DestinationSettlementDate = p.DestinationSettlementDate.Format(time.RFC3339)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps each domain error kind onto its own status code.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		conflict   *domain.ConflictError
		illegal    *domain.IllegalTransitionError
		timeout    *domain.TimeoutError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict):
		status = http.StatusConflict
	case errors.As(err, &illegal):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &timeout):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
