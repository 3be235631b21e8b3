package session

import "fmt"

// Phase is the position in the startup sequence. It only moves forward.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseProfileLoading
	PhaseProfileReady
	PhaseTestsReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseProfileLoading:
		return "profile-loading"
	case PhaseProfileReady:
		return "profile-ready"
	case PhaseTestsReady:
		return "tests-ready"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Outcome classifies a load.
type Outcome int

const (
	// OutcomeEmpty means the load succeeded and found nothing, or was not
	// attempted because no identity is known yet.
	OutcomeEmpty Outcome = iota
	// OutcomeLoaded means data was found and placed in the container.
	OutcomeLoaded
	// OutcomeFailed means storage failed; the container was left as is.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeLoaded:
		return "loaded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// LoadResult reports a load. Err is set only for OutcomeFailed.
type LoadResult struct {
	Outcome Outcome
	Err     error
}

// Failed reports whether storage failed.
func (r LoadResult) Failed() bool { return r.Outcome == OutcomeFailed }

// StartupReport is the result of Start.
type StartupReport struct {
	Profile LoadResult
	Tests   LoadResult
}
