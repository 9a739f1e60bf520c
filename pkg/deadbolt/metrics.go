package deadbolt

// Recorder receives decision telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordDecision(constraint string, allowed bool)
	RecordEvaluationError(constraint string)
	RecordPreAuthShortCircuit(constraint string)
	RecordViewTimeout()
	RecordPatternCompile(ok bool)
}

type NoopRecorder struct{}

func (NoopRecorder) RecordDecision(string, bool) {}
func (NoopRecorder) RecordEvaluationError(string) {}
func (NoopRecorder) RecordPreAuthShortCircuit(string) {}
func (NoopRecorder) RecordViewTimeout() {}
func (NoopRecorder) RecordPatternCompile(bool) {}
