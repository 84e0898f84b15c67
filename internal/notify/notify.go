package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/pkg/logger"
)

const appName = "Approach Monitor"

// SendFunc delivers a single desktop notification. An empty icon uses the default.
type SendFunc func(title, message, icon string) error

// Notifier raises a desktop alert when a callsign enters the emergency state.
// A callsign alerts once per episode and re-arms after it leaves emergency.
type Notifier struct {
	send   SendFunc
	active map[string]bool
	mu     sync.Mutex
	logger *logger.Logger
}

// NewNotifier creates a notifier backed by beeep.
func NewNotifier(log *logger.Logger) *Notifier {
	beeep.AppName = appName //nolint:reassign // This is the only way to set app name in beeep.
	send := func(title, message, icon string) error {
		return beeep.Notify(title, message, icon)
	}
	return NewNotifierWithSender(send, log)
}

// NewNotifierWithSender creates a notifier with a custom delivery function.
func NewNotifierWithSender(send SendFunc, log *logger.Logger) *Notifier {
	return &Notifier{
		send:   send,
		active: make(map[string]bool),
		logger: log.Named("notify"),
	}
}

// Process alerts on new emergencies in the report and returns how many were sent.
func (n *Notifier) Process(report *inference.Report) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	current := make(map[string]bool)
	sent := 0

	for _, ap := range report.Airports {
		for _, f := range ap.Flights {
			if !f.Emergency {
				continue
			}
			current[f.Callsign] = true
			if n.active[f.Callsign] {
				continue
			}

			title := fmt.Sprintf("Emergency profile: %s", f.Callsign)
			msg := fmt.Sprintf("%s to %s, %.0f km out at %.0f ft, %.0f fpm",
				f.Callsign, ap.Airport.ICAO, f.DistanceKm, f.AltitudeFt, f.VerticalRateFpm)

			if err := n.send(title, msg, ""); err != nil {
				// Stay armed so the next cycle tries again
				n.logger.Warn("Failed to send desktop notification",
					logger.String("callsign", f.Callsign),
					logger.Error(err))
				delete(current, f.Callsign)
				continue
			}
			sent++
		}
	}

	n.active = current
	return sent
}
