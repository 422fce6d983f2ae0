package audit

import "time"

// Action names are stable; dashboards and retention policies key on them.
const (
	ActionCardCreated      = "card_created"
	ActionCardStatusChange = "card_status_changed"
	ActionLedgerOrphan     = "ledger_orphan_detected"
	ActionVerification     = "card_verified"
	ActionOTPIssued        = "otp_issued"
	ActionOTPVerified      = "otp_verified"
	ActionOTPRejected      = "otp_rejected"
	ActionOTPLocked        = "otp_locked"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	Principal  string    `json:"principal,omitempty"`
	CardNumber string    `json:"card_number,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	ClientIP   string    `json:"client_ip,omitempty"`
	Device     string    `json:"device,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}
