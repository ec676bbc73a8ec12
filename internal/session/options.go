package session

// RunOptions tunes a single Run call. The zero value is valid.
type RunOptions struct {
	// Tag labels the run in logs and profiling events.
	Tag string
	// TerminateOnError marks the session invalid on any execution
	// failure, not just device loss.
	TerminateOnError bool
}
