package domain

// OutcomeKind classifies the result of one job attempt
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTransient
	OutcomePermanent
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Outcome is returned by job handlers instead of raising retries themselves.
// The worker runtime decides what happens next from Kind alone.
type Outcome struct {
	Kind   OutcomeKind
	BlobID string
	Err    error
}

// Succeeded reports a completed attempt. blobID may be empty.
func Succeeded(blobID string) Outcome {
	return Outcome{Kind: OutcomeSuccess, BlobID: blobID}
}

// Transient reports a failure worth retrying
func Transient(err error) Outcome {
	return Outcome{Kind: OutcomeTransient, Err: err}
}

// Permanent reports a failure that retrying will not fix
func Permanent(err error) Outcome {
	return Outcome{Kind: OutcomePermanent, Err: err}
}
