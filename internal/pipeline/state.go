package pipeline

import (
	"context"

	"github.com/dvloznov/unbilled-sync/internal/logger"
)

// State is a position in a bank run:
//
//	Idle → SessionReady → LoggedIn → Navigated → Extracted → Published → LoggedOut → Closed
//
// Failed is reachable from every non-terminal state.
type State int

const (
	Idle State = iota
	SessionReady
	LoggedIn
	Navigated
	Extracted
	Published
	LoggedOut
	Closed
	Failed
)

var stateNames = [...]string{
	Idle:         "Idle",
	SessionReady: "SessionReady",
	LoggedIn:     "LoggedIn",
	Navigated:    "Navigated",
	Extracted:    "Extracted",
	Published:    "Published",
	LoggedOut:    "LoggedOut",
	Closed:       "Closed",
	Failed:       "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}

func (st *RunState) transition(ctx context.Context, to State) {
	if st.Current == to {
		return
	}
	log := logger.FromContext(ctx)
	log.Info().Str("from", st.Current.String()).Str("to", to.String()).Msg("State transition")
	st.Current = to
}
