// Package metrics exposes Prometheus counters and histograms for candidate
// fits, fallbacks, final forecasts and pipeline runs. Collector satisfies the
// pipeline recorder interface.
package metrics
