package scraper

import (
	"fmt"

	"rera_crawler/browser"
)

// State is a position in the per-term navigation state machine.
type State int

const (
	StateInit State = iota
	StateFiltered
	StateListing
	StateDetailOpen
	StateExtracting
	StateReturned
	StateTermDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFiltered:
		return "filtered"
	case StateListing:
		return "listing"
	case StateDetailOpen:
		return "detail_open"
	case StateExtracting:
		return "extracting"
	case StateReturned:
		return "returned"
	case StateTermDone:
		return "term_done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	StateInit:       {StateFiltered},
	StateFiltered:   {StateListing, StateInit},
	StateListing:    {StateDetailOpen, StateReturned, StateTermDone, StateListing, StateInit},
	StateDetailOpen: {StateExtracting, StateReturned},
	StateExtracting: {StateReturned},
	StateReturned:   {StateListing, StateTermDone},
	StateTermDone:   {StateFiltered, StateListing, StateInit},
	StateFailed:     {StateFiltered, StateInit},
}

// CanTransition reports whether to may follow from. Any state may fail.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Status int

const (
	StatusOK Status = iota
	StatusRecoverable
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRecoverable:
		return "recoverable"
	case StatusFatal:
		return "fatal"
	}
	return "unknown"
}

// Outcome is the result of one stage. Recoverable outcomes carry the error
// kind that decides the recovery; fatal ones end the run.
type Outcome struct {
	Status Status
	Kind   browser.Kind
	Err    error
}

func OK() Outcome {
	return Outcome{Status: StatusOK}
}

func Recoverable(err error) Outcome {
	return Outcome{Status: StatusRecoverable, Kind: browser.KindOf(err), Err: err}
}

func Fatal(err error) Outcome {
	return Outcome{Status: StatusFatal, Kind: browser.KindSessionFatal, Err: err}
}

// outcomeOf classifies err: nil is OK, session loss and cancellation are
// fatal, everything else is recoverable.
func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OK()
	case browser.IsFatal(err), isCanceled(err):
		return Fatal(err)
	default:
		return Recoverable(err)
	}
}

func (o Outcome) IsOK() bool    { return o.Status == StatusOK }
func (o Outcome) IsFatal() bool { return o.Status == StatusFatal }

func (o Outcome) String() string {
	if o.Status == StatusOK {
		return "ok"
	}
	return fmt.Sprintf("%s %s: %v", o.Status, o.Kind, o.Err)
}
