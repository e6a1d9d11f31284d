package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Session
	// ============================================
	SessionUnlocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletd_session_unlocked",
		Help: "Session state (1=unlocked, 0=locked)",
	})

	UnlockAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_unlock_attempts_total",
			Help: "Total number of unlock attempts",
		},
		[]string{"result"}, // success, auth_error, storage_error
	)

	SessionLocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_session_locks_total",
			Help: "Total number of session lock events",
		},
		[]string{"reason"}, // user, teardown, token
	)

	// ============================================
	// Wallets
	// ============================================
	WalletsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_wallets_created_total",
			Help: "Total number of wallets created or imported",
		},
		[]string{"source"}, // generated, private_key, seed_phrase
	)

	// ============================================
	// Fees and submissions
	// ============================================
	FeeQuotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_fee_quotes_total",
			Help: "Total number of fee quotes produced",
		},
		[]string{"network", "kind", "speed"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_submissions_total",
			Help: "Total number of transfer submissions by outcome",
		},
		[]string{"network", "outcome"},
	)

	SubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletd_submission_duration_seconds",
			Help:    "Time from submission start to result",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network"},
	)

	// ============================================
	// RPC
	// ============================================
	RPCErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_rpc_errors_total",
			Help: "Total number of RPC errors by translated kind",
		},
		[]string{"network", "kind"},
	)

	// ============================================
	// NATS and WebSocket
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletd_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"subject", "result"},
	)

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletd_websocket_connections",
		Help: "Number of connected WebSocket clients",
	})

	// ============================================
	// HTTP
	// ============================================
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
