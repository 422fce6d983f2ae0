package card

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
)

// PostgresStore persists cards, ledger references and organizations in
// PostgreSQL. Pure I/O; protocol decisions belong to the service layer.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed card store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const withRefColumns = `
	c.id, c.card_number, c.holder_first_name, c.holder_last_name, c.national_id,
	c.policy_number, c.date_of_birth, c.effective_date, c.valid_until, c.status,
	c.organization_id, c.has_dependent, c.dependent_count, c.phone, c.email,
	c.created_by, c.created_at,
	r.id, r.ledger_id, r.card_number, r.issued_on, r.status, r.organization_address,
	r.tx_hash, r.created_at
`

func (s *PostgresStore) CreateWithRef(ctx context.Context, c *Card, ref *LedgerReference) (*WithRef, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create card: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insertCard := `
		INSERT INTO cards (card_number, holder_first_name, holder_last_name, national_id,
			policy_number, date_of_birth, effective_date, valid_until, status,
			organization_id, has_dependent, dependent_count, phone, email, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, insertCard,
		c.CardNumber, c.HolderFirstName, c.HolderLastName, c.NationalID,
		c.PolicyNumber, c.DateOfBirth, c.EffectiveDate, c.ValidUntil, c.Status,
		c.OrganizationID, c.HasDependent, c.DependentCount, c.Phone, c.Email, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("card %s: %w", c.CardNumber, sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("insert card: %w", err)
	}

	result := &WithRef{Card: *c}

	if ref != nil {
		ref.CardID = c.ID
		insertRef := `
			INSERT INTO ledger_references (card_id, ledger_id, card_number, issued_on,
				status, organization_address, tx_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at
		`
		err = tx.QueryRowContext(ctx, insertRef,
			ref.CardID, ref.LedgerID, ref.CardNumber, ref.IssuedOn,
			ref.Status, ref.OrganizationAddress, ref.TxHash,
		).Scan(&ref.ID, &ref.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert ledger reference: %w", err)
		}
		refCopy := *ref
		result.Ref = &refCopy
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create card: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) ExistsByNumber(ctx context.Context, cardNumber string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM cards WHERE card_number = $1)`, cardNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("card exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetByNumber(ctx context.Context, cardNumber string) (*WithRef, error) {
	query := `
		SELECT ` + withRefColumns + `
		FROM cards c
		LEFT JOIN ledger_references r ON r.card_id = c.id
		WHERE c.card_number = $1
	`
	record, err := scanWithRef(s.db.QueryRowContext(ctx, query, cardNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("card %s: %w", cardNumber, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get card: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Search(ctx context.Context, term string, organizationID int64) (*WithRef, error) {
	// ILIKE substring match across the searchable text fields; most recent
	// card wins ties so the result is deterministic.
	query := `
		SELECT ` + withRefColumns + `
		FROM cards c
		LEFT JOIN ledger_references r ON r.card_id = c.id
		WHERE (c.card_number ILIKE $1
			OR c.holder_first_name ILIKE $1
			OR c.holder_last_name ILIKE $1
			OR c.national_id ILIKE $1)
			AND ($2 = 0 OR c.organization_id = $2)
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT 1
	`
	pattern := "%" + term + "%"
	record, err := scanWithRef(s.db.QueryRowContext(ctx, query, pattern, organizationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no card matching %q: %w", term, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("search cards: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByOrganization(ctx context.Context, organizationID int64) ([]WithRef, error) {
	query := `
		SELECT ` + withRefColumns + `
		FROM cards c
		LEFT JOIN ledger_references r ON r.card_id = c.id
		WHERE c.organization_id = $1
		ORDER BY c.created_at DESC, c.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var records []WithRef
	for rows.Next() {
		record, err := scanWithRef(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card row: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate card rows: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, cardNumber string, status Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE cards SET status = $2 WHERE card_number = $1`, cardNumber, status)
	if err != nil {
		return fmt.Errorf("update card status: %w", err)
	}
	return requireOneRow(result, cardNumber)
}

func (s *PostgresStore) UpdateDependents(ctx context.Context, cardNumber string, hasDependent bool, count int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE cards SET has_dependent = $2, dependent_count = $3 WHERE card_number = $1`,
		cardNumber, hasDependent, count)
	if err != nil {
		return fmt.Errorf("update card dependents: %w", err)
	}
	return requireOneRow(result, cardNumber)
}

func (s *PostgresStore) Organization(ctx context.Context, organizationID int64) (*Organization, error) {
	var org Organization
	var ledgerAddress sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, ledger_address FROM organizations WHERE id = $1`, organizationID,
	).Scan(&org.ID, &org.Name, &ledgerAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization %d: %w", organizationID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if ledgerAddress.Valid {
		org.LedgerAddress = ledgerAddress.String
	}
	return &org, nil
}

func requireOneRow(result sql.Result, cardNumber string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("card %s: %w", cardNumber, sentinel.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type row interface {
	Scan(dest ...any) error
}

func scanWithRef(r row) (*WithRef, error) {
	var record WithRef
	var (
		refID      sql.NullInt64
		ledgerID   sql.NullInt64
		refNumber  sql.NullString
		issuedOn   sql.NullInt64
		refStatus  sql.NullString
		refOrg     sql.NullString
		txHash     sql.NullString
		refCreated sql.NullTime
	)
	err := r.Scan(
		&record.Card.ID, &record.Card.CardNumber, &record.Card.HolderFirstName,
		&record.Card.HolderLastName, &record.Card.NationalID, &record.Card.PolicyNumber,
		&record.Card.DateOfBirth, &record.Card.EffectiveDate, &record.Card.ValidUntil,
		&record.Card.Status, &record.Card.OrganizationID, &record.Card.HasDependent,
		&record.Card.DependentCount, &record.Card.Phone, &record.Card.Email,
		&record.Card.CreatedBy, &record.Card.CreatedAt,
		&refID, &ledgerID, &refNumber, &issuedOn, &refStatus, &refOrg, &txHash, &refCreated,
	)
	if err != nil {
		return nil, err
	}
	if refID.Valid {
		record.Ref = &LedgerReference{
			ID:                  refID.Int64,
			CardID:              record.Card.ID,
			LedgerID:            ledgerID.Int64,
			CardNumber:          refNumber.String,
			IssuedOn:            issuedOn.Int64,
			Status:              refStatus.String,
			OrganizationAddress: refOrg.String,
			TxHash:              txHash.String,
			CreatedAt:           refCreated.Time,
		}
	}
	return &record, nil
}
