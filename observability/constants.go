package observability

// Metric name prefixes
const (
	MetricPrefix = "herald"
)

// Metric names
const (
	DatabaseQueriesTotal  = MetricPrefix + ".database.queries_total"
	DatabaseQueryDuration = MetricPrefix + ".database.query_duration"
)

// Label keys
const (
	LabelRepository = "repository"
	LabelMethod     = "method"
	LabelStatus     = "status"
)

// Status values
const (
	StatusOK    = "ok"
	StatusError = "error"
)
