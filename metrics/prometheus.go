package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "burrow"

var (
	recordsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "queue", "records_total"),
		"Records by lifecycle event.",
		[]string{"event", "instance_id", "storage_backend"}, nil,
	)
	pendingDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "queue", "records_pending"),
		"Records currently held by the queue.",
		[]string{"instance_id", "storage_backend"}, nil,
	)
	submissionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "submission", "attempts_total"),
		"Submission attempts by outcome status.",
		[]string{"status", "instance_id", "client"}, nil,
	)
	failuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "background", "failures_total"),
		"Swallowed background failures by component.",
		[]string{"component", "instance_id"}, nil,
	)
	breadcrumbsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "breadcrumbs", "lines_total"),
		"Breadcrumb lines by outcome.",
		[]string{"outcome", "instance_id"}, nil,
	)
)

var _ prometheus.Collector = (*Collector)(nil)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- recordsDesc
	ch <- pendingDesc
	ch <- submissionsDesc
	ch <- failuresDesc
	ch <- breadcrumbsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()
	counter := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	for event, v := range map[string]int64{
		"added":   s.RecordsAdded,
		"merged":  s.RecordsMerged,
		"evicted": s.RecordsEvicted,
		"sent":    s.RecordsSent,
		"dropped": s.RecordsDropped,
		"flushed": s.RecordsFlushed,
	} {
		counter(recordsDesc, v, event, s.InstanceID, s.StorageBackend)
	}
	ch <- prometheus.MustNewConstMetric(pendingDesc, prometheus.GaugeValue,
		float64(s.RecordsPending), s.InstanceID, s.StorageBackend)

	for status, v := range s.Submissions {
		counter(submissionsDesc, v, status, s.InstanceID, s.Submission)
	}

	counter(failuresDesc, s.StorageFailures, "storage", s.InstanceID)
	counter(failuresDesc, s.ArchiveFailures, "archive", s.InstanceID)

	counter(breadcrumbsDesc, s.BreadcrumbsWritten, "written", s.InstanceID)
	counter(breadcrumbsDesc, s.BreadcrumbsDropped, "dropped", s.InstanceID)
}
