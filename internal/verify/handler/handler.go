// Package handler exposes the reconciliation endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Coritp27/sysga-sub001/internal/platform/metrics"
	"github.com/Coritp27/sysga-sub001/internal/platform/middleware"
	"github.com/Coritp27/sysga-sub001/internal/transport/http/shared"
	"github.com/Coritp27/sysga-sub001/internal/verify"
	dErrors "github.com/Coritp27/sysga-sub001/pkg/domain-errors"
)

// Service is the slice of the verifier the handler needs.
type Service interface {
	Verify(ctx context.Context, term string, scope verify.Scope) (*verify.Report, error)
	Reconcile(ctx context.Context, organizationID int64) (*verify.ReconciliationReport, error)
}

type Handler struct {
	logger       *slog.Logger
	verifier     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(verifier Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		verifier:     verifier,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the verification routes. Reconciliation walks a whole
// organization against one ledger listing, so its timeout is wider than the
// single-card check.
func (h *Handler) Register(r chi.Router) {
	verifyRouter := chi.NewRouter()
	verifyRouter.Use(middleware.Timeout(60 * time.Second))
	verifyRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	verifyRouter.Get("/", h.handleVerify)
	verifyRouter.Get("/report", h.handleReconcile)
	verifyRouter.Get("/report/{organizationID}", h.handleReconcile)

	r.Mount("/verification", verifyRouter)
}

type verifyResponse struct {
	Verdict     verify.Verdict    `json:"verdict"`
	Reason      string            `json:"reason,omitempty"`
	CardNumber  string            `json:"card_number"`
	CardStatus  string            `json:"card_status"`
	LedgerEntry *ledgerEntryShape `json:"ledger_entry,omitempty"`
}

type ledgerEntryShape struct {
	ID         int64  `json:"id"`
	CardNumber string `json:"card_number"`
	IssuedOn   int64  `json:"issued_on"`
	Status     string `json:"status"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	scope := verify.ScopeAll
	if r.URL.Query().Get("scope") == string(verify.ScopeOrganization) {
		scope = verify.ScopeOrganization
	}

	report, err := h.verifier.Verify(r.Context(), term, scope)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	response := verifyResponse{
		Verdict:    report.Verdict,
		Reason:     report.Reason,
		CardNumber: report.Card.Card.CardNumber,
		CardStatus: string(report.Card.Card.Status),
	}
	if report.LedgerEntry != nil {
		response.LedgerEntry = &ledgerEntryShape{
			ID:         report.LedgerEntry.ID,
			CardNumber: report.LedgerEntry.CardNumber,
			IssuedOn:   report.LedgerEntry.IssuedOn,
			Status:     report.LedgerEntry.Status,
		}
	}
	shared.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var organizationID int64
	if raw := chi.URLParam(r, "organizationID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			shared.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "invalid organization id %q", raw))
			return
		}
		organizationID = parsed
	}

	report, err := h.verifier.Reconcile(r.Context(), organizationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}
