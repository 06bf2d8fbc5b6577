// Package metrics declares the Prometheus collectors of the bingo server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RoomsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bingo_rooms_created_total",
			Help: "Total rooms created",
		},
	)
	PlayersJoined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bingo_players_joined_total",
			Help: "Total successful room joins",
		},
	)
	NumbersDrawn = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bingo_numbers_drawn_total",
			Help: "Total numbers called across all rooms",
		},
	)
	GamesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_games_completed_total",
			Help: "Total games completed by outcome",
		},
		[]string{"outcome"},
	)
	ActiveCallers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bingo_active_callers",
			Help: "Number-call loops currently running in this process",
		},
	)
	LedgerTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_ledger_transactions_total",
			Help: "Ledger transactions by type and final status",
		},
		[]string{"type", "status"},
	)
	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bingo_notifications_dropped_total",
			Help: "Notifications dropped because the queue was full",
		},
	)
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_events_dropped_total",
			Help: "Change events dropped for slow subscribers",
		},
		[]string{"topic_kind"},
	)
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
	PaymentCallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_payment_events_total",
			Help: "Gateway checkout and verification outcomes",
		},
		[]string{"result"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bingo_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bingo_ws_connections",
			Help: "Open websocket connections",
		},
	)
)

// Outcome labels for GamesCompleted.
const (
	OutcomeWinner    = "winner"
	OutcomeExhausted = "exhausted"
)

func init() {
	prometheus.MustRegister(
		RoomsCreated,
		PlayersJoined,
		NumbersDrawn,
		GamesCompleted,
		ActiveCallers,
		LedgerTransactions,
		NotificationsDropped,
		EventsDropped,
		RateLimited,
		PaymentCallbacks,
		HTTPRequests,
		HTTPDuration,
		WSConnections,
	)
}
