// Package metrics holds the Prometheus collectors exported by grabber.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImagesTotal counts processed image URLs by outcome.
	ImagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grabber",
			Name:      "images_total",
			Help:      "Image URLs processed, by outcome.",
		},
		[]string{"outcome"}, // saved, filtered, failed
	)

	ListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grabber",
			Name:      "listings_total",
			Help:      "Listings processed, by status.",
		},
		[]string{"status"}, // ok, empty, error
	)

	ListingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "grabber",
			Name:      "listing_duration_seconds",
			Help:      "Time spent extracting and saving one listing.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
)
