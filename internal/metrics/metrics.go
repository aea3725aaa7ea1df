// Package metrics регистрирует счётчики Prometheus для операций леджера.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConsumeOutcomes считает исходы списаний по фиче и результату:
	// ok, no_credit, conflict.
	ConsumeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_ledger_consume_total",
		Help: "Consume outcomes by feature and result",
	}, []string{"feature", "outcome"})

	// ConflictRetries считает проигранные условные обновления.
	ConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credit_ledger_conflict_retries_total",
		Help: "Conditional updates lost to a concurrent request",
	})

	// GrantIssueFailures считает выдачи, ушедшие в очередь сверки.
	GrantIssueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credit_ledger_grant_issue_failures_total",
		Help: "Purchases whose grant creation failed and was queued for reconciliation",
	})
)
