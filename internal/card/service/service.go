// Package service implements the dual-write coordinator: a card must land on
// the append-only ledger first, then in the registry, or fail cleanly without
// a silently inconsistent state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Coritp27/sysga-sub001/internal/audit"
	"github.com/Coritp27/sysga-sub001/internal/card"
	"github.com/Coritp27/sysga-sub001/internal/ledger"
	"github.com/Coritp27/sysga-sub001/internal/platform/metrics"
	dErrors "github.com/Coritp27/sysga-sub001/pkg/domain-errors"
	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
	"github.com/Coritp27/sysga-sub001/pkg/requestcontext"
)

const defaultConfirmTimeout = 120 * time.Second

// Service orchestrates the two-phase card creation protocol and the
// registry-only administrative mutations.
type Service struct {
	store          card.Store
	ledger         ledger.Client
	auditPublisher audit.Publisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	confirmTimeout time.Duration
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConfirmTimeout bounds the on-chain confirmation wait.
func WithConfirmTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.confirmTimeout = d
		}
	}
}

func New(store card.Store, ledgerClient ledger.Client, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("card store is required")
	}
	if ledgerClient == nil {
		return nil, errors.New("ledger client is required")
	}

	svc := &Service{
		store:          store,
		ledger:         ledgerClient,
		logger:         slog.Default(),
		confirmTimeout: defaultConfirmTimeout,
		tracer:         otel.Tracer("sysga/card"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateCardInput carries everything needed to issue a card.
type CreateCardInput struct {
	CardNumber      string
	HolderFirstName string
	HolderLastName  string
	NationalID      string
	PolicyNumber    int64
	DateOfBirth     time.Time
	EffectiveDate   time.Time
	ValidUntil      time.Time
	OrganizationID  int64
	HasDependent    bool
	DependentCount  int
	Phone           string
	Email           string
}

// CreateCard runs the two-phase protocol:
//
//  1. Ledger phase: append the card on-chain (the wallet holder signs) and
//     wait for confirmation, bounded by the confirmation timeout. On timeout
//     or revert nothing has been written to the registry and nothing will be:
//     the error return consumes the operation, and no goroutine is left
//     holding a confirmation that could trigger a late write.
//  2. Registry phase: persist the card and its ledger reference in one
//     transaction.
//
// A registry failure after ledger confirmation leaves an orphaned ledger
// entry. The ledger cannot be rolled back; the error is surfaced as
// CodeRegistryInconsistent and the orphan is reported for reconciliation.
func (s *Service) CreateCard(ctx context.Context, input CreateCardInput) (*card.WithRef, error) {
	principal := requestcontext.Principal(ctx)
	if principal == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}

	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	// Duplicate numbers are rejected before any ledger interaction. The
	// registry's unique constraint remains the authoritative guard; this
	// check only keeps doomed appends off the chain.
	exists, err := s.store.ExistsByNumber(ctx, input.CardNumber)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check card number")
	}
	if exists {
		return nil, dErrors.Newf(dErrors.CodeConflict, "card number %s already exists", input.CardNumber)
	}

	org, err := s.store.Organization(ctx, input.OrganizationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown organization %d", input.OrganizationID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	if org.LedgerAddress == "" {
		return nil, dErrors.Newf(dErrors.CodeLedgerNotConfigured,
			"organization %q has no ledger address configured", org.Name)
	}

	issuedOn := requestcontext.Now(ctx).Unix()
	ledgerStatus := strings.ToLower(string(card.StatusActive))

	conf, err := s.appendAndConfirm(ctx, input.CardNumber, issuedOn, ledgerStatus, org.LedgerAddress)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "card.registry_phase",
		trace.WithAttributes(attribute.String("card.number", input.CardNumber)))
	defer span.End()

	newCard := &card.Card{
		CardNumber:      input.CardNumber,
		HolderFirstName: input.HolderFirstName,
		HolderLastName:  input.HolderLastName,
		NationalID:      input.NationalID,
		PolicyNumber:    input.PolicyNumber,
		DateOfBirth:     input.DateOfBirth,
		EffectiveDate:   input.EffectiveDate,
		ValidUntil:      input.ValidUntil,
		Status:          card.StatusActive,
		OrganizationID:  input.OrganizationID,
		HasDependent:    input.HasDependent,
		DependentCount:  input.DependentCount,
		Phone:           input.Phone,
		Email:           input.Email,
		CreatedBy:       principal,
	}
	ref := &card.LedgerReference{
		LedgerID:            conf.LedgerID,
		CardNumber:          input.CardNumber,
		IssuedOn:            issuedOn,
		Status:              ledgerStatus,
		OrganizationAddress: org.LedgerAddress,
		TxHash:              conf.TxHash,
	}

	record, err := s.store.CreateWithRef(ctx, newCard, ref)
	if err != nil {
		// The ledger entry exists and cannot be removed. Surface the orphan
		// loudly; the reconciliation verifier will keep reporting it until
		// an operator resolves it.
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "registry write failed after ledger confirmation",
			"card_number", input.CardNumber,
			"ledger_id", conf.LedgerID,
			"tx_hash", conf.TxHash,
			"error", err,
		)
		audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
			Action:     audit.ActionLedgerOrphan,
			CardNumber: input.CardNumber,
			TxHash:     conf.TxHash,
			Detail:     "registry write failed after ledger confirmation",
		})
		return nil, dErrors.Wrap(err, dErrors.CodeRegistryInconsistent,
			"ledger holds entry with no registry counterpart")
	}

	if s.metrics != nil {
		s.metrics.CardsCreated.Inc()
	}
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     audit.ActionCardCreated,
		CardNumber: input.CardNumber,
		TxHash:     conf.TxHash,
	})
	return record, nil
}

// appendAndConfirm runs the ledger phase. The returned error is already a
// domain error; callers must not write to the registry when it is non-nil.
func (s *Service) appendAndConfirm(ctx context.Context, cardNumber string, issuedOn int64, status, orgAddress string) (ledger.Confirmation, error) {
	ctx, span := s.tracer.Start(ctx, "card.ledger_phase",
		trace.WithAttributes(attribute.String("card.number", cardNumber)))
	defer span.End()

	pending, err := s.ledger.Append(ctx, cardNumber, issuedOn, status, orgAddress)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, ledger.ErrRejected):
			s.countLedgerError("rejected")
			return ledger.Confirmation{}, dErrors.Wrap(err, dErrors.CodeWalletRejected,
				"wallet holder declined the signature")
		case errors.Is(err, ledger.ErrReverted):
			s.countLedgerError("reverted")
			return ledger.Confirmation{}, dErrors.Wrap(err, dErrors.CodeLedgerReverted, "ledger append reverted")
		default:
			s.countLedgerError("unreachable")
			return ledger.Confirmation{}, dErrors.Wrap(err, dErrors.CodeLedgerUnreachable, "ledger append failed")
		}
	}

	confirmCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	start := time.Now()
	conf, err := s.ledger.WaitConfirmed(confirmCtx, pending)
	if s.metrics != nil {
		s.metrics.ObserveLedgerConfirm(time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			s.countLedgerError("timeout")
			return ledger.Confirmation{}, dErrors.Wrap(err, dErrors.CodeLedgerTimeout,
				"ledger confirmation timed out")
		case errors.Is(err, ledger.ErrReverted):
			s.countLedgerError("reverted")
			return ledger.Confirmation{}, dErrors.Wrap(err, dErrors.CodeLedgerReverted, "ledger append reverted")
		default:
			s.countLedgerError("unreachable")
			return ledger.Confirmation{}, dErrors.Wrap(err, dErrors.CodeLedgerUnreachable,
				"ledger confirmation failed")
		}
	}
	return conf, nil
}

// UpdateStatus moves a card between ACTIVE, INACTIVE and REVOKED. Transitions
// are unconstrained; REVOKED is terminal by convention only.
func (s *Service) UpdateStatus(ctx context.Context, cardNumber string, status card.Status) error {
	if requestcontext.Principal(ctx) == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	if cardNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "card number is required")
	}
	if _, ok := card.ParseStatus(string(status)); !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown status %q", status)
	}

	if err := s.store.UpdateStatus(ctx, cardNumber, status); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "card %s not found", cardNumber)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update card status")
	}

	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     audit.ActionCardStatusChange,
		CardNumber: cardNumber,
		Detail:     string(status),
	})
	return nil
}

// UpdateDependents replaces a card's dependent flag and count.
func (s *Service) UpdateDependents(ctx context.Context, cardNumber string, hasDependent bool, count int) error {
	if requestcontext.Principal(ctx) == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	if cardNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "card number is required")
	}
	if count < 0 {
		return dErrors.New(dErrors.CodeValidation, "dependent count cannot be negative")
	}
	if !hasDependent && count > 0 {
		return dErrors.New(dErrors.CodeValidation, "dependent count requires the dependent flag")
	}

	if err := s.store.UpdateDependents(ctx, cardNumber, hasDependent, count); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "card %s not found", cardNumber)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update dependents")
	}
	return nil
}

// Get returns a card and its optional ledger reference.
func (s *Service) Get(ctx context.Context, cardNumber string) (*card.WithRef, error) {
	record, err := s.store.GetByNumber(ctx, cardNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "card %s not found", cardNumber)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load card")
	}
	return record, nil
}

func (s *Service) countLedgerError(kind string) {
	if s.metrics != nil {
		s.metrics.LedgerAppendErrors.WithLabelValues(kind).Inc()
	}
}

func validateCreateInput(input CreateCardInput) error {
	switch {
	case strings.TrimSpace(input.CardNumber) == "":
		return dErrors.New(dErrors.CodeValidation, "card number is required")
	case strings.TrimSpace(input.HolderFirstName) == "" || strings.TrimSpace(input.HolderLastName) == "":
		return dErrors.New(dErrors.CodeValidation, "holder name is required")
	case input.PolicyNumber <= 0:
		return dErrors.New(dErrors.CodeValidation, "policy number is required")
	case input.DateOfBirth.IsZero():
		return dErrors.New(dErrors.CodeValidation, "date of birth is required")
	case input.EffectiveDate.IsZero() || input.ValidUntil.IsZero():
		return dErrors.New(dErrors.CodeValidation, "policy effective and end dates are required")
	case input.ValidUntil.Before(input.EffectiveDate):
		return dErrors.New(dErrors.CodeValidation, "validity end date precedes effective date")
	case input.OrganizationID <= 0:
		return dErrors.New(dErrors.CodeValidation, "issuing organization is required")
	case input.DependentCount < 0:
		return dErrors.New(dErrors.CodeValidation, "dependent count cannot be negative")
	}
	return nil
}
