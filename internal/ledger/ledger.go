// Package ledger defines the narrow port over the on-chain card contract.
//
// The contract itself is an external dependency with a fixed ABI: append a
// card record, list all records for an issuing organization. Adapters talk to
// the signing bridge (which owns the wallet interaction); nothing in this
// repository re-implements contract storage.
package ledger

import (
	"context"
	"errors"
)

//go:generate mockgen -source=ledger.go -destination=mocks/ledger_mock.go -package=mocks

// Entry is one on-chain card record. Status is free text; its vocabulary and
// casing differ from the registry enum and must be normalized before any
// comparison.
type Entry struct {
	ID           int64  `json:"id"`
	CardNumber   string `json:"card_number"`
	IssuedOn     int64  `json:"issued_on"`
	Status       string `json:"status"`
	Organization string `json:"organization"`
}

// PendingTx is the handle returned by a submitted append, before the chain
// has confirmed it.
type PendingTx struct {
	Hash string
}

// Confirmation reports an included append: the ledger-assigned sequential id
// and the final transaction hash.
type Confirmation struct {
	LedgerID int64
	TxHash   string
}

// Client is the port consumed by the dual-write coordinator and the
// reconciliation verifier.
type Client interface {
	// Append submits the card fields for signing and inclusion. The wallet
	// holder may refuse to sign; that surfaces as ErrRejected.
	Append(ctx context.Context, cardNumber string, issuedOn int64, status string, orgAddress string) (PendingTx, error)

	// WaitConfirmed blocks until the transaction is included or the context
	// deadline expires. A reverted transaction surfaces as ErrReverted.
	WaitConfirmed(ctx context.Context, tx PendingTx) (Confirmation, error)

	// List returns every entry recorded for the organization address. This is
	// a point-in-time read; callers must not retry here (a failed read means
	// "ledger unreachable", never "ledger confirms absence").
	List(ctx context.Context, orgAddress string) ([]Entry, error)
}

// Adapter-level outcomes the coordinator maps to domain errors.
var (
	// ErrRejected means the wallet holder declined to sign the transaction.
	ErrRejected = errors.New("ledger: signature rejected")
	// ErrReverted means the chain included and reverted the transaction.
	ErrReverted = errors.New("ledger: transaction reverted")
)
