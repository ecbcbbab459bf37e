// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package device

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors one Device exposes: draw/dispatch/flip
// counts and the resource cache's hit rate, grouped under the gnmd namespace
// the same way the control plane's gfd-extender groups its own collectors.
type Metrics struct {
	draws      prometheus.Counter
	dispatches prometheus.Counter
	flips      prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	ringUtilization *prometheus.GaugeVec
	tilerSlotsInUse prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		draws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnmd",
			Name:      "draws_total",
			Help:      "Total DRAW_* packets dispatched to the resource cache and scheduler.",
		}),
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnmd",
			Name:      "dispatches_total",
			Help:      "Total DISPATCH_* packets dispatched to the resource cache and scheduler.",
		}),
		flips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnmd",
			Name:      "flips_total",
			Help:      "Total IT_FLIP requests observed.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnmd",
			Name:      "cache_hits_total",
			Help:      "Resource cache lookups served from an existing entry.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnmd",
			Name:      "cache_misses_total",
			Help:      "Resource cache lookups that built a new entry.",
		}),
		ringUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gnmd",
			Name:      "ring_utilization_ratio",
			Help:      "Fraction of each pipe's ring currently holding undecoded packets.",
		}, []string{"pipe"}),
		tilerSlotsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gnmd",
			Name:      "tiler_slots_in_use",
			Help:      "Tile/detile descriptor slots currently checked out.",
		}),
	}
}

// Collectors returns every collector a caller (cmd/gnmd) should register
// against its own prometheus.Registry.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.draws, m.dispatches, m.flips,
		m.cacheHits, m.cacheMisses,
		m.ringUtilization, m.tilerSlotsInUse,
	}
}
