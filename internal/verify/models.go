// Package verify compares the registry's view of a card with the on-chain
// ledger and produces a verdict. It never mutates either store: divergence is
// reported, not repaired.
package verify

import (
	"strings"
	"time"

	"github.com/Coritp27/sysga-sub001/internal/card"
	"github.com/Coritp27/sysga-sub001/internal/ledger"
)

// Verdict is the terminal outcome of one reconciliation check.
type Verdict string

const (
	// VerdictPending is the transient pre-check state. It exists for API
	// clients rendering progress; Verify never returns it.
	VerdictPending Verdict = "PENDING"
	// VerdictVerified means a ledger entry was found and card number and
	// normalized status both match.
	VerdictVerified Verdict = "VERIFIED"
	// VerdictMismatch means a ledger entry was found but card number or
	// normalized status differ.
	VerdictMismatch Verdict = "MISMATCH"
	// VerdictNotFound means the card has no ledger reference, or the
	// reference points at an entry the ledger does not contain.
	VerdictNotFound Verdict = "NOT_FOUND"
)

// Scope restricts which organizations a search may match.
type Scope string

const (
	ScopeAll          Scope = "all"
	ScopeOrganization Scope = "organization"
)

// Equivalence maps a normalized (lowercased, trimmed) ledger status to the
// registry statuses it may match. Ledger statuses outside the table are
// mismatches, never silently coerced.
type Equivalence map[string][]card.Status

// DefaultEquivalence pairs each ledger vocabulary entry with its registry
// counterpart one-to-one. Cross-matches (a revoked ledger entry against an
// INACTIVE card) stay mismatches unless a deployment configures them in.
func DefaultEquivalence() Equivalence {
	return Equivalence{
		"active":   {card.StatusActive},
		"inactive": {card.StatusInactive},
		"revoked":  {card.StatusRevoked},
	}
}

// Matches reports whether a raw ledger status may stand for the registry
// status.
func (e Equivalence) Matches(ledgerStatus string, registryStatus card.Status) bool {
	allowed, ok := e[strings.ToLower(strings.TrimSpace(ledgerStatus))]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == registryStatus {
			return true
		}
	}
	return false
}

// Report is the outcome of verifying one card.
type Report struct {
	Card        card.WithRef
	LedgerEntry *ledger.Entry
	Verdict     Verdict
	Reason      string
}

// CardResult is one row of a bulk reconciliation run.
type CardResult struct {
	CardNumber string  `json:"card_number"`
	Verdict    Verdict `json:"verdict"`
	Reason     string  `json:"reason,omitempty"`
}

// ReconciliationReport covers one organization: per-card verdicts plus both
// orphan directions.
type ReconciliationReport struct {
	OrganizationID int64          `json:"organization_id"`
	GeneratedAt    time.Time      `json:"generated_at"`
	Results        []CardResult   `json:"results"`
	LedgerOrphans  []ledger.Entry `json:"ledger_orphans,omitempty"`
}
