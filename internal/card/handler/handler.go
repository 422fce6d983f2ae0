// Package handler exposes the card registry endpoints. Every route here is
// authenticated; unauthenticated disclosure goes through the OTP gate.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Coritp27/sysga-sub001/internal/card"
	cardservice "github.com/Coritp27/sysga-sub001/internal/card/service"
	"github.com/Coritp27/sysga-sub001/internal/platform/metrics"
	"github.com/Coritp27/sysga-sub001/internal/platform/middleware"
	"github.com/Coritp27/sysga-sub001/internal/transport/http/shared"
	dErrors "github.com/Coritp27/sysga-sub001/pkg/domain-errors"
	"github.com/Coritp27/sysga-sub001/pkg/requestcontext"
)

// Service is the slice of the card service the handler needs.
type Service interface {
	CreateCard(ctx context.Context, input cardservice.CreateCardInput) (*card.WithRef, error)
	Get(ctx context.Context, cardNumber string) (*card.WithRef, error)
	UpdateStatus(ctx context.Context, cardNumber string, status card.Status) error
	UpdateDependents(ctx context.Context, cardNumber string, hasDependent bool, count int) error
}

type Handler struct {
	logger       *slog.Logger
	cards        Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(cards Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		cards:        cards,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the card routes. CreateCard can legitimately block for the
// whole ledger-confirmation window, so its subtree gets a wider timeout than
// the rest of the API.
func (h *Handler) Register(r chi.Router) {
	cardRouter := chi.NewRouter()
	cardRouter.Use(middleware.Timeout(150 * time.Second))
	cardRouter.Use(middleware.ContentTypeJSON)
	cardRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	cardRouter.Post("/", h.handleCreate)
	cardRouter.Get("/{cardNumber}", h.handleGet)
	cardRouter.Patch("/{cardNumber}/status", h.handleUpdateStatus)
	cardRouter.Patch("/{cardNumber}/dependents", h.handleUpdateDependents)

	r.Mount("/cards", cardRouter)
}

type createCardRequest struct {
	CardNumber      string    `json:"card_number"`
	HolderFirstName string    `json:"holder_first_name"`
	HolderLastName  string    `json:"holder_last_name"`
	NationalID      string    `json:"national_id"`
	PolicyNumber    int64     `json:"policy_number"`
	DateOfBirth     time.Time `json:"date_of_birth"`
	EffectiveDate   time.Time `json:"effective_date"`
	ValidUntil      time.Time `json:"valid_until"`
	OrganizationID  int64     `json:"organization_id"`
	HasDependent    bool      `json:"has_dependent"`
	DependentCount  int       `json:"dependent_count"`
	Phone           string    `json:"phone,omitempty"`
	Email           string    `json:"email,omitempty"`
}

type cardResponse struct {
	ID              int64        `json:"id"`
	CardNumber      string       `json:"card_number"`
	HolderFirstName string       `json:"holder_first_name"`
	HolderLastName  string       `json:"holder_last_name"`
	NationalID      string       `json:"national_id,omitempty"`
	PolicyNumber    int64        `json:"policy_number"`
	DateOfBirth     time.Time    `json:"date_of_birth"`
	EffectiveDate   time.Time    `json:"effective_date"`
	ValidUntil      time.Time    `json:"valid_until"`
	Status          card.Status  `json:"status"`
	OrganizationID  int64        `json:"organization_id"`
	HasDependent    bool         `json:"has_dependent"`
	DependentCount  int          `json:"dependent_count"`
	CreatedBy       string       `json:"created_by"`
	CreatedAt       time.Time    `json:"created_at"`
	LedgerRef       *refResponse `json:"ledger_reference,omitempty"`
}

type refResponse struct {
	LedgerID            int64  `json:"ledger_id"`
	TxHash              string `json:"tx_hash"`
	Status              string `json:"status"`
	OrganizationAddress string `json:"organization_address"`
	IssuedOn            int64  `json:"issued_on"`
}

func toCardResponse(record *card.WithRef) cardResponse {
	response := cardResponse{
		ID:              record.Card.ID,
		CardNumber:      record.Card.CardNumber,
		HolderFirstName: record.Card.HolderFirstName,
		HolderLastName:  record.Card.HolderLastName,
		NationalID:      record.Card.NationalID,
		PolicyNumber:    record.Card.PolicyNumber,
		DateOfBirth:     record.Card.DateOfBirth,
		EffectiveDate:   record.Card.EffectiveDate,
		ValidUntil:      record.Card.ValidUntil,
		Status:          record.Card.Status,
		OrganizationID:  record.Card.OrganizationID,
		HasDependent:    record.Card.HasDependent,
		DependentCount:  record.Card.DependentCount,
		CreatedBy:       record.Card.CreatedBy,
		CreatedAt:       record.Card.CreatedAt,
	}
	if record.Ref != nil {
		response.LedgerRef = &refResponse{
			LedgerID:            record.Ref.LedgerID,
			TxHash:              record.Ref.TxHash,
			Status:              record.Ref.Status,
			OrganizationAddress: record.Ref.OrganizationAddress,
			IssuedOn:            record.Ref.IssuedOn,
		}
	}
	return response
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.cards.CreateCard(ctx, cardservice.CreateCardInput{
		CardNumber:      req.CardNumber,
		HolderFirstName: req.HolderFirstName,
		HolderLastName:  req.HolderLastName,
		NationalID:      req.NationalID,
		PolicyNumber:    req.PolicyNumber,
		DateOfBirth:     req.DateOfBirth,
		EffectiveDate:   req.EffectiveDate,
		ValidUntil:      req.ValidUntil,
		OrganizationID:  req.OrganizationID,
		HasDependent:    req.HasDependent,
		DependentCount:  req.DependentCount,
		Phone:           req.Phone,
		Email:           req.Email,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "card creation failed",
			"card_number", req.CardNumber,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toCardResponse(record))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.cards.Get(r.Context(), chi.URLParam(r, "cardNumber"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toCardResponse(record))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	status, ok := card.ParseStatus(req.Status)
	if !ok {
		shared.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", req.Status))
		return
	}

	if err := h.cards.UpdateStatus(r.Context(), chi.URLParam(r, "cardNumber"), status); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateDependents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HasDependent   bool `json:"has_dependent"`
		DependentCount int  `json:"dependent_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.cards.UpdateDependents(r.Context(), chi.URLParam(r, "cardNumber"), req.HasDependent, req.DependentCount); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
