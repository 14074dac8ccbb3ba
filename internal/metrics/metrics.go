// Package metrics holds the Prometheus instruments shared by the
// recorder, buffer and scheduler. Collectors are created with
// promauto against prometheus.DefaultRegisterer the way the teacher's
// internal/metrics package does, so a binary only needs to mount
// promhttp.Handler() to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EntriesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdrlog_entries_written_total",
			Help: "Entries appended to the active log file, by plugin.",
		},
		[]string{"plugin"},
	)

	BytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdrlog_bytes_written_total",
			Help: "Payload bytes handed to the buffer, by plugin.",
		},
		[]string{"plugin"},
	)

	FlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fdrlog_buffer_flushes_total",
		Help: "Number of times the buffer pipeline compressed and wrote a block.",
	})

	FlushBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fdrlog_buffer_flush_bytes",
		Help:    "Size in bytes of each compressed block written.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 10),
	})

	RotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdrlog_rotations_total",
			Help: "Number of file rotations, by reason.",
		},
		[]string{"reason"},
	)

	FilesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdrlog_files_deleted_total",
			Help: "Rotated files deleted to satisfy quota, by flight state.",
		},
		[]string{"flight"},
	)

	TickOverruns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdrlog_source_tick_overruns_total",
			Help: "Recorder ticks whose scheduler pass took longer than the tick period.",
		},
		[]string{"plugin", "name"},
	)

	OpenFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fdrlog_open",
		Help: "1 while the recorder's active file is open, 0 otherwise.",
	})

	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdrlog_reader_decode_errors_total",
			Help: "Scheduler source poll failures other than KindSource skips, by kind.",
		},
		[]string{"kind"},
	)
)
