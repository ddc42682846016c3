package metrics

import coremetrics "github.com/Tiimber/ev-smart-charger/core/metrics"

// MultiSink fans cycle samples out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the sample to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCycle(c coremetrics.CycleSample) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(c); err != nil {
			return err
		}
	}
	return nil
}
