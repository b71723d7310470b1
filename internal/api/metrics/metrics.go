// Package metrics defines and registers all custom Prometheus metrics for the
// auth service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto; /metrics exposes them alongside the HTTP
// request metrics recorded by echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// ── Credential flow metrics ───────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - outcome: "success", "invalid_credentials", "validation_error" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// RegistrationsTotal counts registration attempts.
// Label:
//   - outcome: "success", "conflict", "validation_error" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by outcome.",
	},
	[]string{"outcome"},
)

// PasswordHashDuration measures bcrypt hash and verify latency.
// Label:
//   - op: "hash" or "verify"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hashing and verification.",
		Buckets:   []float64{.01, .05, .1, .2, .3, .5, 1, 2},
	},
	[]string{"op"},
)

// ── Session metrics ──────────────────────────────────────────────────────────

// ResolveFailuresTotal counts rejected token resolutions.
// Label:
//   - reason: internal reason, e.g. "token_expired", "session_revoked"
var ResolveFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolve_failures_total",
		Help:      "Total number of requests whose bearer token could not be resolved to a principal.",
	},
	[]string{"reason"},
)

// GateDenialsTotal counts authenticated requests rejected by a role gate.
var GateDenialsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_denials_total",
		Help:      "Total number of requests denied for insufficient role.",
	},
)

// SessionsRevokedTotal counts sessions removed by logout or forced logout.
// Label:
//   - cause: "logout", "logout_all", "role_change", "deactivation", "deletion"
var SessionsRevokedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_revoked_total",
		Help:      "Total number of sessions revoked, by cause.",
	},
	[]string{"cause"},
)

// SessionsSweptTotal counts expired sessions physically removed by the sweeper.
var SessionsSweptTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_swept_total",
		Help:      "Total number of expired sessions removed by the periodic sweep.",
	},
)

// SessionSweepErrorsTotal counts failed sweep runs.
var SessionSweepErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_sweep_errors_total",
		Help:      "Total number of session sweep runs that failed.",
	},
)

// ── Audit metrics ────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the number of events waiting in each audit worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of auth events pending in each audit worker channel.",
	},
	[]string{"worker_id"},
)

// AuditEventsDroppedTotal counts events discarded because a shard was full.
var AuditEventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Total number of auth events dropped because the audit queue was full.",
	},
)
