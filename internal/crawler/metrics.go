package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesFetchedTotal tracks pages fetched and extracted successfully.
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitescope_pages_fetched_total",
		Help: "The total number of pages fetched and extracted.",
	})
	// bytesFetchedTotal tracks response body bytes received.
	bytesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitescope_bytes_fetched_total",
		Help: "The total number of response body bytes fetched.",
	})
	// fetchErrorsTotal tracks fetches that failed and pruned their branch.
	fetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitescope_fetch_errors_total",
		Help: "The total number of failed fetches.",
	})
	// skipsTotal tracks URLs pruned without fetching, by reason.
	skipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitescope_skips_total",
		Help: "The total number of URLs pruned by the traversal, labeled by reason.",
	}, []string{"reason"})
	// activeCrawls tracks seeds currently being traversed.
	activeCrawls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sitescope_active_crawls",
		Help: "Number of seed crawls currently running.",
	})
	// sitesPersistedTotal tracks document set writes by outcome.
	sitesPersistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitescope_sites_persisted_total",
		Help: "Document sets handed to the store, labeled by result.",
	}, []string{"result"})
)
