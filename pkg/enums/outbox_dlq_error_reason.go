package enums

// OutboxDLQErrorReason records why the audit relay stopped retrying an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: the sink kept failing until the attempt budget ran out.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the row itself is unusable (unknown type, bad payload).
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
