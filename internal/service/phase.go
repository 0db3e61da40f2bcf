package service

// Phase is the state of a submission. The UI is busy whenever the phase is
// not Idle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuilding
	PhasePreparing
	PhaseAwaitingSignature
	PhaseSubmitting
	PhaseAwaitingConfirmation
	PhaseConfirmed
	PhaseFailed
	PhaseTimedOut
)

var phaseNames = [...]string{
	PhaseIdle:                 "idle",
	PhaseBuilding:             "building",
	PhasePreparing:            "preparing",
	PhaseAwaitingSignature:    "awaiting_signature",
	PhaseSubmitting:           "submitting",
	PhaseAwaitingConfirmation: "awaiting_confirmation",
	PhaseConfirmed:            "confirmed",
	PhaseFailed:               "failed",
	PhaseTimedOut:             "timed_out",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether no further transition follows p within a flow.
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseFailed || p == PhaseTimedOut
}

// Step is the in-flight message shown while a submission is in p. Idle and
// terminal phases have none.
func (p Phase) Step() string {
	switch p {
	case PhaseBuilding:
		return "Building transaction..."
	case PhasePreparing:
		return "Preparing transaction..."
	case PhaseAwaitingSignature:
		return "Please sign in your wallet..."
	case PhaseSubmitting:
		return "Submitting transaction..."
	case PhaseAwaitingConfirmation:
		return "Waiting for confirmation..."
	default:
		return ""
	}
}

// Direction is the contract function a submission calls.
type Direction int

const (
	Deposit Direction = iota
	Withdraw
)

func (d Direction) String() string {
	if d == Withdraw {
		return "withdraw"
	}
	return "deposit"
}

func (d Direction) pastTense() string {
	if d == Withdraw {
		return "withdrew"
	}
	return "deposited"
}
