package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts every request the pipeline issues, labeled by
	// retailer and final outcome (success, not_found, other, retry_exhausted).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeharvester_requests_total",
			Help: "Total HTTP requests issued by the fetch pipeline",
		},
		[]string{"retailer", "outcome"},
	)

	// RetriesTotal counts pipeline retry attempts, labeled by the status
	// code or error class that triggered the retry.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeharvester_retries_total",
			Help: "Total request retries issued by the fetch pipeline",
		},
		[]string{"retailer", "reason"},
	)

	// PacerBackoffsTotal counts exponential backoff waits the pacer applies
	// in response to 429/403 responses.
	PacerBackoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeharvester_pacer_backoffs_total",
			Help: "Total exponential backoff waits applied after a rate-limit response",
		},
		[]string{"retailer"},
	)

	// RunOutcomesTotal counts terminal run states, labeled by retailer and
	// status (complete, failed, canceled).
	RunOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeharvester_run_outcomes_total",
			Help: "Total terminal run outcomes by retailer and status",
		},
		[]string{"retailer", "status"},
	)

	// StoresScraped tracks the most recent run's store count per retailer.
	StoresScraped = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storeharvester_stores_scraped",
			Help: "Store count from the most recently completed run, by retailer",
		},
		[]string{"retailer"},
	)

	// ControlAPIRateLimitRejections counts requests the control API's
	// per-IP token bucket rejected with 429.
	ControlAPIRateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeharvester_control_api_rate_limit_rejections_total",
			Help: "Total control API requests rejected by the per-IP rate limiter",
		},
		[]string{"path"},
	)
)
