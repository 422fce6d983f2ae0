package otp

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
)

// PostgresStore persists challenges in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed challenge store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const challengeColumns = `
	id, card_number, destination, method, code_hash, created_at, expires_at,
	attempts, max_attempts, used
`

func (s *PostgresStore) Replace(ctx context.Context, challenge *Challenge) (*Challenge, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace challenge: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE card_number = $1`, challenge.CardNumber)
	if err != nil {
		return nil, fmt.Errorf("delete prior challenges: %w", err)
	}

	insert := `
		INSERT INTO otp_challenges (card_number, destination, method, code_hash,
			expires_at, attempts, max_attempts, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, insert,
		challenge.CardNumber, challenge.Destination, challenge.Method, challenge.CodeHash,
		challenge.ExpiresAt, challenge.Attempts, challenge.MaxAttempts, challenge.Used,
	).Scan(&challenge.ID, &challenge.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace challenge: %w", err)
	}
	out := *challenge
	return &out, nil
}

func (s *PostgresStore) ListByCard(ctx context.Context, cardNumber string) ([]Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM otp_challenges
		WHERE card_number = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, cardNumber)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []Challenge
	for rows.Next() {
		var c Challenge
		err := rows.Scan(&c.ID, &c.CardNumber, &c.Destination, &c.Method, &c.CodeHash,
			&c.CreatedAt, &c.ExpiresAt, &c.Attempts, &c.MaxAttempts, &c.Used)
		if err != nil {
			return nil, fmt.Errorf("scan challenge row: %w", err)
		}
		challenges = append(challenges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate challenge rows: %w", err)
	}
	return challenges, nil
}

func (s *PostgresStore) MarkUsed(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE otp_challenges SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
	if err != nil {
		return fmt.Errorf("mark challenge used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("challenge %d: %w", id, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) IncrementAttempts(ctx context.Context, cardNumber string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE card_number = $1 RETURNING attempts`,
		cardNumber)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	defer rows.Close()

	var highest int
	for rows.Next() {
		var attempts int
		if err := rows.Scan(&attempts); err != nil {
			return 0, fmt.Errorf("scan attempts: %w", err)
		}
		if attempts > highest {
			highest = attempts
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate attempts: %w", err)
	}
	return highest, nil
}

func (s *PostgresStore) DeleteByCard(ctx context.Context, cardNumber string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE card_number = $1`, cardNumber)
	if err != nil {
		return fmt.Errorf("delete challenges: %w", err)
	}
	return nil
}
