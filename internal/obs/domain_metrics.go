package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesPricedTotal counts pricing pipeline runs by outcome.
	QuotesPricedTotal *prometheus.CounterVec
	// PackingWarningsTotal counts packing runs that produced warnings.
	PackingWarningsTotal prometheus.Counter
	// RateLookupsTotal counts rate grid lookups by result.
	RateLookupsTotal *prometheus.CounterVec
	// GroupsCreatedTotal counts shipment group creations.
	GroupsCreatedTotal prometheus.Counter
	// GroupsDissolvedTotal counts shipment group dissolutions.
	GroupsDissolvedTotal prometheus.Counter
	// SuggestionRefreshTotal counts grouping suggestion refresh jobs by outcome.
	SuggestionRefreshTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal tracks webhook delivery outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookAttemptLatency records delivery attempt latency in milliseconds.
	WebhookAttemptLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesPricedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_priced_total",
			Help:      "Count of quote pricing runs by outcome.",
		}, []string{"result"})
		PackingWarningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packing_warnings_total",
			Help:      "Count of packing runs that fell back to the default carton or failed.",
		})
		RateLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_lookups_total",
			Help:      "Count of rate grid lookups by result.",
		}, []string{"result"})
		GroupsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_created_total",
			Help:      "Count of shipment groups created.",
		})
		GroupsDissolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_dissolved_total",
			Help:      "Count of shipment groups dissolved.",
		})
		SuggestionRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestion_refresh_total",
			Help:      "Count of grouping suggestion refresh jobs by outcome.",
		}, []string{"result"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook delivery outcomes.",
		}, []string{"result"})
		WebhookAttemptLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_attempt_duration_ms",
			Help:      "Latency for webhook delivery attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})

		mustRegisterCollector(reg, QuotesPricedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuotesPricedTotal = v
			}
		})
		mustRegisterCollector(reg, PackingWarningsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PackingWarningsTotal = v
			}
		})
		mustRegisterCollector(reg, RateLookupsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateLookupsTotal = v
			}
		})
		mustRegisterCollector(reg, GroupsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				GroupsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, GroupsDissolvedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				GroupsDissolvedTotal = v
			}
		})
		mustRegisterCollector(reg, SuggestionRefreshTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SuggestionRefreshTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookDeliveriesTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookAttemptLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				WebhookAttemptLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
