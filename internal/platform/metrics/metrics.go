package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the card core.
type Metrics struct {
	CardsCreated        prometheus.Counter
	LedgerAppendErrors  *prometheus.CounterVec
	LedgerConfirmTime   prometheus.Histogram
	VerificationResults *prometheus.CounterVec
	OTPIssued           prometheus.Counter
	OTPVerified         prometheus.Counter
	OTPRejected         *prometheus.CounterVec
	HandlerLatency      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CardsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sysga_cards_created_total",
			Help: "Total number of cards written to both ledgers",
		}),
		LedgerAppendErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sysga_ledger_append_errors_total",
			Help: "Ledger phase failures by kind (timeout, reverted, rejected)",
		}, []string{"kind"}),
		LedgerConfirmTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sysga_ledger_confirm_seconds",
			Help:    "Time spent waiting for on-chain confirmation",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		VerificationResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sysga_verifications_total",
			Help: "Reconciliation verdicts by outcome",
		}, []string{"verdict"}),
		OTPIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sysga_otp_issued_total",
			Help: "One-time codes issued",
		}),
		OTPVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sysga_otp_verified_total",
			Help: "Successful disclosure verifications",
		}),
		OTPRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sysga_otp_rejected_total",
			Help: "Rejected OTP operations by reason",
		}, []string{"reason"}),
		HandlerLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sysga_http_request_duration_seconds",
			Help:    "HTTP handler latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
	}
}

// ObserveLedgerConfirm records the time a CreateCard call spent waiting for
// the ledger.
func (m *Metrics) ObserveLedgerConfirm(d time.Duration) {
	m.LedgerConfirmTime.Observe(d.Seconds())
}

// IncVerification records one reconciliation verdict.
func (m *Metrics) IncVerification(verdict string) {
	m.VerificationResults.WithLabelValues(verdict).Inc()
}
