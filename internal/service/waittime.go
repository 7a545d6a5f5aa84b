package service

import (
	"fmt"
	"math"
	"time"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
)

const unknownWait = "unknown"

// maxWaitSeconds is the longest estimate a time.Duration holds. Longer
// estimates saturate at math.MaxInt64.
const maxWaitSeconds = float64(math.MaxInt64 / int64(time.Second))

// EstimateWait derives the expected wait from the automatic release rate:
// visitorsAhead / (automaticQuantity / automatic). It reports false when no
// automatic release is configured. A queue deadline that comes sooner caps
// the estimate.
func EstimateWait(cfg *models.QueueConfig, visitorsAhead int64, now time.Time) (time.Duration, bool) {
	if !cfg.AutomaticEnabled() || cfg.AutomaticQuantity <= 0 {
		return 0, false
	}

	if visitorsAhead < 0 {
		visitorsAhead = 0
	}

	secs := float64(visitorsAhead) / float64(cfg.AutomaticQuantity) * cfg.Automatic.Seconds()
	wait := time.Duration(math.MaxInt64)
	if secs < maxWaitSeconds {
		wait = time.Duration(secs * float64(time.Second))
	}

	if cfg.Expires != nil {
		if remaining := cfg.Expires.Sub(now); remaining < wait {
			wait = max(remaining, 0)
		}
	}

	return wait, true
}

// FormatWait renders an estimate for the wait page.
func FormatWait(wait time.Duration, known bool) string {
	secs := int64(wait / time.Second)
	if !known || wait < 0 || secs > 86400 {
		return unknownWait
	}

	if secs > 3600 {
		return fmt.Sprintf("%d hours, %d minutes, and %d seconds", secs/3600, (secs/60)%60, secs%60)
	}
	return fmt.Sprintf("%d minutes, and %d seconds", secs/60, secs%60)
}
