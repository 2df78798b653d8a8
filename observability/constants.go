package observability

// Metric name prefixes
const (
	MetricPrefix = "arcade"
)

// Metric names
const (
	// Command metrics
	CommandsHandledTotal = MetricPrefix + ".commands.handled_total"
	CommandFailuresTotal = MetricPrefix + ".commands.failures_total"

	// Session metrics
	SessionsStartedTotal  = MetricPrefix + ".sessions.started_total"
	SessionsFinishedTotal = MetricPrefix + ".sessions.finished_total"

	// Scheduler metrics
	ActionsFiredTotal = MetricPrefix + ".scheduler.actions_fired_total"
	SweepDuration     = MetricPrefix + ".scheduler.sweep_duration"

	// Event metrics
	EventsPublishedTotal = MetricPrefix + ".events.published_total"
)

// Label keys
const (
	LabelCommand   = "command"
	LabelVariant   = "variant"
	LabelAction    = "action"
	LabelEventType = "event_type"
	LabelErrorKind = "error_kind"
)
