// Package service implements the disclosure gate: rate-limited issuance and
// single-use verification of short-lived codes that release one card's data
// to a caller without a full session.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/Coritp27/sysga-sub001/internal/audit"
	"github.com/Coritp27/sysga-sub001/internal/card"
	"github.com/Coritp27/sysga-sub001/internal/otp"
	"github.com/Coritp27/sysga-sub001/internal/otp/ratelimit"
	"github.com/Coritp27/sysga-sub001/internal/otp/sender"
	"github.com/Coritp27/sysga-sub001/internal/platform/config"
	"github.com/Coritp27/sysga-sub001/internal/platform/metrics"
	dErrors "github.com/Coritp27/sysga-sub001/pkg/domain-errors"
	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
	"github.com/Coritp27/sysga-sub001/pkg/requestcontext"
)

// Issued is the caller-visible outcome of Generate. The code itself never
// appears here; it travels only through the dispatch channel.
type Issued struct {
	Method           otp.Method `json:"method"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ExpiresInSeconds int        `json:"expires_in_seconds"`
}

// Disclosure is the full card payload released after a successful
// verification.
type Disclosure struct {
	Card         card.Card             `json:"card"`
	Organization *card.Organization    `json:"organization,omitempty"`
	LedgerRef    *card.LedgerReference `json:"ledger_reference,omitempty"`
}

type Service struct {
	challenges     otp.Store
	cards          card.Store
	limiter        ratelimit.Limiter
	dispatcher     sender.Sender
	cfg            config.OTPConfig
	auditPublisher audit.Publisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
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

// WithConfig overrides the gate's bounds (TTL, attempt ceiling, issuance
// window).
func WithConfig(cfg config.OTPConfig) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func New(challenges otp.Store, cards card.Store, limiter ratelimit.Limiter, dispatcher sender.Sender, opts ...Option) (*Service, error) {
	if challenges == nil {
		return nil, errors.New("challenge store is required")
	}
	if cards == nil {
		return nil, errors.New("card store is required")
	}
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if dispatcher == nil {
		return nil, errors.New("sender is required")
	}

	svc := &Service{
		challenges: challenges,
		cards:      cards,
		limiter:    limiter,
		dispatcher: dispatcher,
		cfg: config.OTPConfig{
			CodeTTL:         5 * time.Minute,
			MaxAttempts:     3,
			GenerateLimit:   3,
			GenerateWindow:  time.Hour,
			DispatchTimeout: 10 * time.Second,
		},
		logger: slog.Default(),
		tracer: otel.Tracer("sysga/otp"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Generate issues a fresh code for the card and dispatches it to the
// destination. Issuance is all-or-nothing: if dispatch fails the new
// challenge is deleted and the caller sees one failure.
func (s *Service) Generate(ctx context.Context, cardNumber, destination string) (*Issued, error) {
	if cardNumber == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "card number is required")
	}

	ctx, span := s.tracer.Start(ctx, "otp.generate",
		trace.WithAttributes(attribute.String("card.number", cardNumber)))
	defer span.End()

	if _, err := s.cards.GetByNumber(ctx, cardNumber); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "card %s not found", cardNumber)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "card lookup failed")
	}

	dest, method, err := otp.ParseDestination(destination)
	if err != nil {
		return nil, err
	}

	allowed, err := s.limiter.Allow(ctx, cardNumber, s.cfg.GenerateLimit, s.cfg.GenerateWindow)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limiter unavailable")
	}
	if !allowed.Allowed {
		s.reject("rate_limited")
		return nil, dErrors.Newf(dErrors.CodeRateLimited,
			"too many codes requested for this card, retry after %s",
			allowed.ResetAt.Format(time.RFC3339))
	}

	code, err := randomCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "code generation failed")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "code hashing failed")
	}

	now := requestcontext.Now(ctx)
	challenge := &otp.Challenge{
		CardNumber:  cardNumber,
		Destination: dest,
		Method:      method,
		CodeHash:    string(hash),
		ExpiresAt:   now.Add(s.cfg.CodeTTL),
		MaxAttempts: s.cfg.MaxAttempts,
	}
	// Delete-then-create: the new challenge supersedes every prior one.
	if _, err := s.challenges.Replace(ctx, challenge); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "challenge persist failed")
	}

	if err := s.dispatch(ctx, method, dest, code); err != nil {
		if cleanupErr := s.challenges.DeleteByCard(ctx, cardNumber); cleanupErr != nil {
			s.logger.Error("orphaned challenge after failed dispatch",
				"card_number", cardNumber, "error", cleanupErr)
		}
		s.reject("send_failed")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OTPIssued.Inc()
	}
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     audit.ActionOTPIssued,
		CardNumber: cardNumber,
		Detail:     string(method),
	})

	return &Issued{
		Method:           method,
		ExpiresAt:        challenge.ExpiresAt,
		ExpiresInSeconds: int(s.cfg.CodeTTL / time.Second),
	}, nil
}

// Verify redeems a code. Wrong, expired and already-used codes all fail with
// the same generic error; only attempt exhaustion is reported distinctly,
// since it says nothing about the secret.
func (s *Service) Verify(ctx context.Context, cardNumber, code string) (*Disclosure, error) {
	if cardNumber == "" || code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "card number and code are required")
	}

	ctx, span := s.tracer.Start(ctx, "otp.verify",
		trace.WithAttributes(attribute.String("card.number", cardNumber)))
	defer span.End()

	rows, err := s.challenges.ListByCard(ctx, cardNumber)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "challenge lookup failed")
	}

	for _, row := range rows {
		if row.Attempts >= row.MaxAttempts {
			return nil, s.locked(ctx, cardNumber)
		}
	}

	now := requestcontext.Now(ctx)
	match := findMatch(rows, code, now)
	if match == nil {
		return nil, s.failedAttempt(ctx, cardNumber)
	}

	if err := s.challenges.MarkUsed(ctx, match.ID); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// Lost a race with a concurrent redemption of the same code.
			return nil, s.failedAttempt(ctx, cardNumber)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "challenge consume failed")
	}

	disclosure, err := s.buildDisclosure(ctx, cardNumber)
	if err != nil {
		return nil, err
	}

	// Cleanup, not just invalidation: every row for the card goes.
	if err := s.challenges.DeleteByCard(ctx, cardNumber); err != nil {
		s.logger.Error("challenge cleanup failed after disclosure",
			"card_number", cardNumber, "error", err)
	}

	if s.metrics != nil {
		s.metrics.OTPVerified.Inc()
	}
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     audit.ActionOTPVerified,
		CardNumber: cardNumber,
	})
	return disclosure, nil
}

func (s *Service) dispatch(ctx context.Context, method otp.Method, destination, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	var (
		ok  bool
		err error
	)
	switch method {
	case otp.MethodEmail:
		ok, err = s.dispatcher.SendEmail(ctx, destination, code)
	default:
		ok, err = s.dispatcher.SendSMS(ctx, destination, code)
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeSendFailed, "code dispatch failed")
	}
	if !ok {
		return dErrors.New(dErrors.CodeSendFailed, "code dispatch failed")
	}
	return nil
}

// failedAttempt applies the coarse per-card throttle and picks the error the
// caller may see.
func (s *Service) failedAttempt(ctx context.Context, cardNumber string) error {
	attempts, err := s.challenges.IncrementAttempts(ctx, cardNumber)
	if err != nil {
		s.logger.Error("attempt increment failed", "card_number", cardNumber, "error", err)
	}
	if attempts >= s.cfg.MaxAttempts && attempts > 0 {
		return s.locked(ctx, cardNumber)
	}

	s.reject("invalid_or_expired")
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     audit.ActionOTPRejected,
		CardNumber: cardNumber,
	})
	return dErrors.New(dErrors.CodeInvalidCode, "invalid or expired code")
}

func (s *Service) locked(ctx context.Context, cardNumber string) error {
	s.reject("too_many_attempts")
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     audit.ActionOTPLocked,
		CardNumber: cardNumber,
	})
	return dErrors.New(dErrors.CodeTooManyAttempts, "too many attempts, request a new code")
}

func (s *Service) buildDisclosure(ctx context.Context, cardNumber string) (*Disclosure, error) {
	record, err := s.cards.GetByNumber(ctx, cardNumber)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "card lookup failed")
	}

	disclosure := &Disclosure{Card: record.Card, LedgerRef: record.Ref}
	org, err := s.cards.Organization(ctx, record.Card.OrganizationID)
	if err != nil {
		s.logger.Warn("organization lookup failed during disclosure",
			"card_number", cardNumber, "error", err)
	} else {
		disclosure.Organization = org
	}
	return disclosure, nil
}

func (s *Service) reject(reason string) {
	if s.metrics != nil {
		s.metrics.OTPRejected.WithLabelValues(reason).Inc()
	}
}

func findMatch(rows []otp.Challenge, code string, now time.Time) *otp.Challenge {
	for i := range rows {
		row := &rows[i]
		if !row.Live(now) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(row.CodeHash), []byte(code)) == nil {
			return row
		}
	}
	return nil
}

// randomCode draws a uniform 6-digit code from crypto/rand.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
