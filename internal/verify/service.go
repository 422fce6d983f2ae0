package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Coritp27/sysga-sub001/internal/audit"
	"github.com/Coritp27/sysga-sub001/internal/card"
	"github.com/Coritp27/sysga-sub001/internal/ledger"
	"github.com/Coritp27/sysga-sub001/internal/platform/metrics"
	dErrors "github.com/Coritp27/sysga-sub001/pkg/domain-errors"
	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
	"github.com/Coritp27/sysga-sub001/pkg/requestcontext"
)

// Service runs reconciliation checks. Reads only; the ledger listing is a
// point-in-time read with no retries, and a failed read is surfaced as
// "ledger unreachable", never as a NOT_FOUND verdict.
type Service struct {
	store          card.Store
	ledger         ledger.Client
	equivalence    Equivalence
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

// WithEquivalence replaces the status equivalence table.
func WithEquivalence(e Equivalence) Option {
	return func(s *Service) {
		if e != nil {
			s.equivalence = e
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
		store:       store,
		ledger:      ledgerClient,
		equivalence: DefaultEquivalence(),
		logger:      slog.Default(),
		tracer:      otel.Tracer("sysga/verify"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Verify resolves a free-text term to the best-matching registry card and
// compares it against the organization's ledger listing.
func (s *Service) Verify(ctx context.Context, term string, scope Scope) (*Report, error) {
	if term == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "search term is required")
	}

	var organizationID int64
	if scope == ScopeOrganization {
		organizationID = requestcontext.OrganizationID(ctx)
		if organizationID == 0 {
			return nil, dErrors.New(dErrors.CodeUnauthorized,
				"organization scope requires an authenticated caller")
		}
	}

	ctx, span := s.tracer.Start(ctx, "verify.card",
		trace.WithAttributes(attribute.String("verify.term", term)))
	defer span.End()

	record, err := s.store.Search(ctx, term, organizationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no card matches %q", term)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "registry search failed")
	}

	report, err := s.reportFor(ctx, record, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncVerification(string(report.Verdict))
	}
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     audit.ActionVerification,
		CardNumber: record.Card.CardNumber,
		Detail:     string(report.Verdict),
	})
	return report, nil
}

// reportFor computes the verdict for one card. When entries is nil the
// organization's ledger listing is fetched; bulk callers pass a pre-fetched
// listing so one run issues a single chain read.
func (s *Service) reportFor(ctx context.Context, record *card.WithRef, entries []ledger.Entry) (*Report, error) {
	report := &Report{Card: *record}

	if record.Ref == nil {
		report.Verdict = VerdictNotFound
		report.Reason = "card has no ledger reference"
		return report, nil
	}

	if entries == nil {
		var err error
		entries, err = s.ledger.List(ctx, record.Ref.OrganizationAddress)
		if err != nil {
			// A failed read must never be reported as absence.
			return nil, dErrors.Wrap(err, dErrors.CodeLedgerUnreachable, "ledger listing failed")
		}
	}

	entry := findEntry(entries, record.Ref.LedgerID)
	if entry == nil {
		report.Verdict = VerdictNotFound
		report.Reason = fmt.Sprintf("ledger reference %d points at no ledger entry", record.Ref.LedgerID)
		return report, nil
	}
	report.LedgerEntry = entry

	switch {
	case entry.CardNumber != record.Card.CardNumber:
		report.Verdict = VerdictMismatch
		report.Reason = fmt.Sprintf("card number differs: registry %q, ledger %q",
			record.Card.CardNumber, entry.CardNumber)
	case !s.equivalence.Matches(entry.Status, record.Card.Status):
		report.Verdict = VerdictMismatch
		report.Reason = fmt.Sprintf("status differs: registry %q, ledger %q",
			record.Card.Status, entry.Status)
	default:
		report.Verdict = VerdictVerified
	}
	return report, nil
}

// Reconcile re-runs the verifier across one organization's whole registry
// against one point-in-time ledger listing, reporting per-card verdicts and
// both orphan directions. This is the recovery mechanism for the dual-write
// protocol's accepted failure mode.
func (s *Service) Reconcile(ctx context.Context, organizationID int64) (*ReconciliationReport, error) {
	if organizationID == 0 {
		organizationID = requestcontext.OrganizationID(ctx)
	}
	if organizationID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized,
			"reconciliation requires an organization scope")
	}

	ctx, span := s.tracer.Start(ctx, "verify.reconcile",
		trace.WithAttributes(attribute.Int64("organization.id", organizationID)))
	defer span.End()

	org, err := s.store.Organization(ctx, organizationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown organization %d", organizationID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	if org.LedgerAddress == "" {
		return nil, dErrors.Newf(dErrors.CodeLedgerNotConfigured,
			"organization %q has no ledger address configured", org.Name)
	}

	// Registry and ledger views are independent reads; fetch both at once.
	var (
		records []card.WithRef
		entries []ledger.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.store.ListByOrganization(gctx, organizationID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "registry listing failed")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		entries, err = s.ledger.List(gctx, org.LedgerAddress)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeLedgerUnreachable, "ledger listing failed")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := &ReconciliationReport{
		OrganizationID: organizationID,
		GeneratedAt:    requestcontext.Now(ctx),
	}

	referenced := make(map[int64]bool, len(records))
	for i := range records {
		record := &records[i]
		if record.Ref != nil {
			referenced[record.Ref.LedgerID] = true
		}
		cardReport, err := s.reportFor(ctx, record, entries)
		if err != nil {
			return nil, err
		}
		report.Results = append(report.Results, CardResult{
			CardNumber: record.Card.CardNumber,
			Verdict:    cardReport.Verdict,
			Reason:     cardReport.Reason,
		})
		if s.metrics != nil {
			s.metrics.IncVerification(string(cardReport.Verdict))
		}
	}

	for _, entry := range entries {
		if referenced[entry.ID] {
			continue
		}
		report.LedgerOrphans = append(report.LedgerOrphans, entry)
		audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
			Action:     audit.ActionLedgerOrphan,
			CardNumber: entry.CardNumber,
			Detail:     fmt.Sprintf("ledger entry %d has no registry counterpart", entry.ID),
		})
	}
	return report, nil
}

func findEntry(entries []ledger.Entry, ledgerID int64) *ledger.Entry {
	for i := range entries {
		if entries[i].ID == ledgerID {
			return &entries[i]
		}
	}
	return nil
}
