// Package metrics — Prometheus-метрики сервиса комментариев.
// Регистрируются в DefaultRegisterer и отдаются через /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения метки kind у CommentsCreated.
const (
	KindReview      = "review"
	KindOwnerReview = "owner_review"
	KindReply       = "reply"
)

// Значения метки result у RatingSyncs.
const (
	SyncOK          = "ok"
	SyncReadFailed  = "read_failed"
	SyncWriteFailed = "write_failed"
)

var (
	CommentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comments_created_total",
			Help: "Total number of comments created",
		},
		[]string{"kind"},
	)

	CommentsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comments_deleted_total",
			Help: "Total number of comment records deleted, cascade included",
		},
	)

	RatingSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_sync_total",
			Help: "Total number of recipe rating recomputations by result",
		},
		[]string{"result"},
	)

	CascadePartial = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cascade_partial_total",
			Help: "Total number of cascade deletes that stopped part way",
		},
	)

	FeedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_subscribers",
			Help: "Current number of active change feed subscriptions",
		},
	)

	// 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state by name",
		},
		[]string{"name"},
	)

	FeedSnapshotsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_snapshots_dropped_total",
			Help: "Snapshots replaced by a newer one before a slow subscriber consumed them",
		},
	)
)
