package monitor

import (
	"context"
	"errors"

	"github.com/yegors/approach-monitor/internal/adsb"
)

var (
	// ErrSourceUnavailable marks a telemetry or weather fetch that failed or timed out
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrPersistenceFailure marks a cycle the sink rejected and rolled back
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Action is what the cycle loop does about an error
type Action string

const (
	ActionUseDefault Action = "use_default" // substitute an empty list or zeroed snapshot
	ActionSkip       Action = "skip"        // drop the record
	ActionContinue   Action = "continue"    // rolled back, next cycle tries again
	ActionShutdown   Action = "shutdown"    // close sinks and exit
)

// Policy maps an error to its recovery action. Nothing short of an interrupt
// stops the loop.
func Policy(err error) Action {
	switch {
	case errors.Is(err, context.Canceled):
		return ActionShutdown
	case errors.Is(err, adsb.ErrMalformedRecord):
		return ActionSkip
	case errors.Is(err, ErrPersistenceFailure):
		return ActionContinue
	default:
		return ActionUseDefault
	}
}
