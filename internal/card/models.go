// Package card holds the registry-side data model for insurance cards and
// the store interfaces over it.
package card

import (
	"strings"
	"time"
)

// Status is the registry status enum. The on-chain status is free text with
// its own vocabulary; never compare the two without normalization.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusRevoked  Status = "REVOKED"
)

// ParseStatus maps arbitrary input onto the enum.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, true
	case StatusInactive:
		return StatusInactive, true
	case StatusRevoked:
		return StatusRevoked, true
	}
	return "", false
}

// Card is one issued insurance card. Cards are never hard-deleted; lifecycle
// ends in a status change (REVOKED is terminal by convention only).
type Card struct {
	ID              int64     `json:"id"`
	CardNumber      string    `json:"card_number"`
	HolderFirstName string    `json:"holder_first_name"`
	HolderLastName  string    `json:"holder_last_name"`
	NationalID      string    `json:"national_id,omitempty"`
	PolicyNumber    int64     `json:"policy_number"`
	DateOfBirth     time.Time `json:"date_of_birth"`
	EffectiveDate   time.Time `json:"effective_date"`
	ValidUntil      time.Time `json:"valid_until"`
	Status          Status    `json:"status"`
	OrganizationID  int64     `json:"organization_id"`
	HasDependent    bool      `json:"has_dependent"`
	DependentCount  int       `json:"dependent_count"`
	Phone           string    `json:"phone,omitempty"`
	Email           string    `json:"email,omitempty"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// LedgerReference is the registry's copy of the confirmed on-chain record.
// Immutable after insert; reconciliation never mutates it.
type LedgerReference struct {
	ID                  int64     `json:"id"`
	CardID              int64     `json:"card_id"`
	LedgerID            int64     `json:"ledger_id"`
	CardNumber          string    `json:"card_number"`
	IssuedOn            int64     `json:"issued_on"`
	Status              string    `json:"status"`
	OrganizationAddress string    `json:"organization_address"`
	TxHash              string    `json:"tx_hash"`
	CreatedAt           time.Time `json:"created_at"`
}

// Organization is the issuing insurer, as far as the core needs it. A nil
// ledger address means the organization cannot write on-chain.
type Organization struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LedgerAddress string `json:"ledger_address,omitempty"`
}

// WithRef joins a card with its optional ledger reference.
type WithRef struct {
	Card Card
	Ref  *LedgerReference
}
