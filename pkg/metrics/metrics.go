// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package metrics holds the Prometheus instrumentation for the
// ingestion pipeline: job lifecycle counters, work unit throughput,
// cascade propagation, and phase durations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type ingestMetrics struct {
	once sync.Once

	jobsCreated   prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter

	workUnitsClaimed   prometheus.Counter
	workUnitsCompleted prometheus.Counter
	workUnitsFailed    prometheus.Counter
	workUnitsReclaimed prometheus.Counter

	recordsStaged   prometheus.Counter
	recordsFailed   prometheus.Counter
	recordsPromoted prometheus.Counter

	cascadeDependentsBumped prometheus.Counter
	cascadeFailures         prometheus.Counter

	downloadBytes prometheus.Counter

	downloadDuration prometheus.Histogram
	parseDuration    prometheus.Histogram
	storeDuration    prometheus.Histogram
	pipelineDuration prometheus.Histogram
}

var m ingestMetrics

func (i *ingestMetrics) init() {
	i.once.Do(func() {
		i.jobsCreated = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_jobs_created_total", Help: "Ingestion jobs created"})
		i.jobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_jobs_completed_total", Help: "Ingestion jobs completed"})
		i.jobsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_jobs_failed_total", Help: "Ingestion jobs terminally failed"})

		i.workUnitsClaimed = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_work_units_claimed_total", Help: "Work units claimed by a worker"})
		i.workUnitsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_work_units_completed_total", Help: "Work units completed"})
		i.workUnitsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_work_units_failed_total", Help: "Work units terminally failed"})
		i.workUnitsReclaimed = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_work_units_reclaimed_total", Help: "Work units reclaimed from a stale heartbeat"})

		i.recordsStaged = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_records_staged_total", Help: "Records staged by parsing"})
		i.recordsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_records_failed_total", Help: "Records that failed parsing"})
		i.recordsPromoted = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_records_promoted_total", Help: "Staged records promoted to destination tables"})

		i.cascadeDependentsBumped = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_cascade_dependents_bumped_total", Help: "Dependent versions created by cascade propagation"})
		i.cascadeFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_cascade_failures_total", Help: "Cascade hops that failed and were skipped"})

		i.downloadBytes = prometheus.NewCounter(prometheus.CounterOpts{Name: "bdp_ingest_download_bytes_total", Help: "Bytes downloaded from upstream sources"})

		buckets := []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600}
		i.downloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bdp_ingest_download_seconds", Help: "Duration of the download phase", Buckets: buckets})
		i.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bdp_ingest_parse_seconds", Help: "Duration of a work unit's parse phase", Buckets: buckets})
		i.storeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bdp_ingest_store_seconds", Help: "Duration of the store phase", Buckets: buckets})
		i.pipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bdp_ingest_pipeline_seconds", Help: "Duration of an end-to-end pipeline run", Buckets: buckets})

		prometheus.MustRegister(
			i.jobsCreated, i.jobsCompleted, i.jobsFailed,
			i.workUnitsClaimed, i.workUnitsCompleted, i.workUnitsFailed, i.workUnitsReclaimed,
			i.recordsStaged, i.recordsFailed, i.recordsPromoted,
			i.cascadeDependentsBumped, i.cascadeFailures,
			i.downloadBytes,
			i.downloadDuration, i.parseDuration, i.storeDuration, i.pipelineDuration,
		)
	})
}

func JobCreated()   { m.init(); m.jobsCreated.Inc() }
func JobCompleted() { m.init(); m.jobsCompleted.Inc() }
func JobFailed()    { m.init(); m.jobsFailed.Inc() }

func WorkUnitClaimed()   { m.init(); m.workUnitsClaimed.Inc() }
func WorkUnitCompleted() { m.init(); m.workUnitsCompleted.Inc() }
func WorkUnitFailed()    { m.init(); m.workUnitsFailed.Inc() }
func WorkUnitsReclaimed(n int64) {
	m.init()
	if n > 0 {
		m.workUnitsReclaimed.Add(float64(n))
	}
}

func RecordsStaged(n int)   { m.init(); m.recordsStaged.Add(float64(n)) }
func RecordsFailed(n int)   { m.init(); m.recordsFailed.Add(float64(n)) }
func RecordsPromoted(n int) { m.init(); m.recordsPromoted.Add(float64(n)) }

func CascadeDependentBumped() { m.init(); m.cascadeDependentsBumped.Inc() }
func CascadeFailure()         { m.init(); m.cascadeFailures.Inc() }

func DownloadBytes(n int64) { m.init(); m.downloadBytes.Add(float64(n)) }

func ObserveDownloadDuration(seconds float64) { m.init(); m.downloadDuration.Observe(seconds) }
func ObserveParseDuration(seconds float64)    { m.init(); m.parseDuration.Observe(seconds) }
func ObserveStoreDuration(seconds float64)    { m.init(); m.storeDuration.Observe(seconds) }
func ObservePipelineDuration(seconds float64) { m.init(); m.pipelineDuration.Observe(seconds) }
