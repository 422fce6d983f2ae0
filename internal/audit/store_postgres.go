package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists audit events for the compliance trail queries the
// API exposes. Kafka remains the export path; this is the local copy.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (timestamp, action, principal, card_number,
			tx_hash, client_ip, device, request_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, event.Timestamp, event.Action, event.Principal, event.CardNumber,
		event.TxHash, event.ClientIP, event.Device, event.RequestID, event.Detail)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCard(ctx context.Context, cardNumber string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, action, principal, card_number, tx_hash, client_ip,
			device, request_id, detail
		FROM audit_events
		WHERE card_number = $1
		ORDER BY timestamp DESC, id DESC
	`, cardNumber)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		err := rows.Scan(&e.Timestamp, &e.Action, &e.Principal, &e.CardNumber,
			&e.TxHash, &e.ClientIP, &e.Device, &e.RequestID, &e.Detail)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
