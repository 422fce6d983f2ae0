// Package handler exposes the disclosure gate. These are the only
// unauthenticated endpoints in the API: the one-time code is the credential.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	otpservice "github.com/Coritp27/sysga-sub001/internal/otp/service"
	"github.com/Coritp27/sysga-sub001/internal/platform/middleware"
	"github.com/Coritp27/sysga-sub001/internal/transport/http/shared"
	dErrors "github.com/Coritp27/sysga-sub001/pkg/domain-errors"
	"github.com/Coritp27/sysga-sub001/pkg/requestcontext"
)

// Service is the slice of the OTP gate the handler needs.
type Service interface {
	Generate(ctx context.Context, cardNumber, destination string) (*otpservice.Issued, error)
	Verify(ctx context.Context, cardNumber, code string) (*otpservice.Disclosure, error)
}

type Handler struct {
	logger *slog.Logger
	gate   Service
}

func New(gate Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, gate: gate}
}

// Register mounts the OTP routes without RequireAuth.
func (h *Handler) Register(r chi.Router) {
	otpRouter := chi.NewRouter()
	otpRouter.Use(middleware.Timeout(30 * time.Second))
	otpRouter.Use(middleware.ContentTypeJSON)
	otpRouter.Post("/generate", h.handleGenerate)
	otpRouter.Post("/verify", h.handleVerify)

	r.Mount("/otp", otpRouter)
}

type generateRequest struct {
	CardNumber  string `json:"card_number"`
	Destination string `json:"destination"`
}

type verifyRequest struct {
	CardNumber string `json:"card_number"`
	Code       string `json:"code"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	issued, err := h.gate.Generate(ctx, req.CardNumber, req.Destination)
	if err != nil {
		h.logger.WarnContext(ctx, "otp generation rejected",
			"card_number", req.CardNumber,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, issued)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	disclosure, err := h.gate.Verify(ctx, req.CardNumber, req.Code)
	if err != nil {
		// Rejections are expected traffic here; log at info to keep brute
		// force visible without paging anyone.
		h.logger.InfoContext(ctx, "otp verification rejected",
			"card_number", req.CardNumber,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, disclosure)
}
