/*
Package monitoring provides Prometheus metrics for the exchange core.

# Overview

Metrics cover the per-round protocol: rounds started and deferred by
backpressure, buffer cache rebuilds, boundaries packed and unpacked, null
sends for unallocated variables, phase wall times, and the live channel
count of the current topology epoch.

# Usage

	metrics := monitoring.NewMetrics(nil)
	m := exchange.NewManager(set, tr, rank, exchange.WithMetrics(metrics))

Expose them via the standard Prometheus handler:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	http.Handle("/metrics", promhttp.Handler())
*/
package monitoring
