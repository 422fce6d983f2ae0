package card

import "context"

// Store is the registry port. Implementations are pure I/O; the dual-write
// protocol and all domain decisions live in the service layer.
//
// Uniqueness of card numbers is enforced by the storage layer itself (a
// unique constraint), not by check-then-insert: CreateWithRef returns
// sentinel.ErrConflict when the number already exists, whatever the caller
// checked beforehand.
type Store interface {
	// CreateWithRef persists a card and, when ref is non-nil, its ledger
	// reference in one atomic unit.
	CreateWithRef(ctx context.Context, c *Card, ref *LedgerReference) (*WithRef, error)

	// ExistsByNumber reports whether a card with this number exists. Used to
	// reject duplicates before any ledger interaction.
	ExistsByNumber(ctx context.Context, cardNumber string) (bool, error)

	// GetByNumber returns the card and its optional reference, or
	// sentinel.ErrNotFound.
	GetByNumber(ctx context.Context, cardNumber string) (*WithRef, error)

	// Search returns the best match for a free-text term against card number,
	// holder first/last name or national identifier (case-insensitive
	// substring). organizationID 0 searches all organizations. Ties break
	// most-recent-first so results are deterministic.
	Search(ctx context.Context, term string, organizationID int64) (*WithRef, error)

	// ListByOrganization returns every card of one organization, most recent
	// first. Bulk reconciliation walks this.
	ListByOrganization(ctx context.Context, organizationID int64) ([]WithRef, error)

	// UpdateStatus moves a card to a new status.
	UpdateStatus(ctx context.Context, cardNumber string, status Status) error

	// UpdateDependents replaces the dependent flag and count.
	UpdateDependents(ctx context.Context, cardNumber string, hasDependent bool, count int) error

	// Organization loads an issuing organization or sentinel.ErrNotFound.
	Organization(ctx context.Context, organizationID int64) (*Organization, error)
}
