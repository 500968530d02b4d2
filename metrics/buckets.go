package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DurationBuckets covers per-record work, from microseconds to seconds.
	DurationBuckets = []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

	// CountBuckets covers queue depths and batch sizes.
	CountBuckets = prometheus.ExponentialBuckets(1, 2, 12)

	// SizeBuckets covers record sizes in bytes.
	SizeBuckets = prometheus.ExponentialBuckets(64, 4, 10)

	// LifetimeBuckets covers how long a manager or connection lived.
	LifetimeBuckets = []float64{0.1, 1, 10, 60, 300, 1800, 3600, 21600, 86400}
)
