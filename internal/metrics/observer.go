package metrics

import "time"

// JobObserver records orchestrator events into the collectors declared in
// metrics.go.
type JobObserver struct{}

// NewJobObserver creates an observer with the conversion state initialized
// to idle.
func NewJobObserver() *JobObserver {
	o := &JobObserver{}
	o.StateChanged("idle")
	return o
}

func (o *JobObserver) JobStarted(string) {
	JobsInFlight.Inc()
}

func (o *JobObserver) JobFinished(kind, outcome string, elapsed time.Duration) {
	JobsInFlight.Dec()
	JobsTotal.WithLabelValues(kind, outcome).Inc()
	JobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (o *JobObserver) StateChanged(state string) {
	for _, s := range conversionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		ConversionState.WithLabelValues(s).Set(value)
	}
}
