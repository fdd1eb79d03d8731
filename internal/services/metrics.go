package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// inspectionsSubmitted counts stored inspections by severity.
	inspectionsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaktrack_inspections_submitted_total",
			Help: "Total number of inspections submitted.",
		},
		[]string{"severity"},
	)

	// repairsSubmitted counts stored repairs by outcome.
	repairsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaktrack_repairs_submitted_total",
			Help: "Total number of repairs submitted.",
		},
		[]string{"repair_status"},
	)

	// photoUploadFailures counts repair photos that could not be stored.
	photoUploadFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leaktrack_photo_upload_failures_total",
			Help: "Total number of repair photo uploads that failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(inspectionsSubmitted, repairsSubmitted, photoUploadFailures)
}
