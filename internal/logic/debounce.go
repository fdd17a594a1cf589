package logic

import "time"

// debounce handles debounce logic for a single input channel.
// Returns true if the stable level changed.
func debounce(ch *ChannelState, newLevel Level, now time.Time, duration time.Duration) bool {
	// First time seeing this channel
	if !ch.Baselined {
		if ch.Pending != newLevel {
			// Start observing, or level changed during baseline: restart
			ch.Pending = newLevel
			ch.PendingSince = now
			return false
		}

		// Check if debounce period has passed
		if now.Sub(ch.PendingSince) >= duration {
			ch.Stable = newLevel
			ch.Baselined = true
			ch.Pending = ""
		}
		return false
	}

	// Already baselined - detect changes
	if newLevel == ch.Stable {
		// No change from stable level, clear any pending
		ch.Pending = ""
		return false
	}

	// Level differs from stable
	if ch.Pending != newLevel {
		ch.Pending = newLevel
		ch.PendingSince = now
		return false
	}

	// Same pending level, check debounce
	if now.Sub(ch.PendingSince) >= duration {
		ch.Stable = newLevel
		ch.Pending = ""
		return true
	}
	return false
}

func boolToLevel(b bool) Level {
	if b {
		return LevelHigh
	}
	return LevelLow
}
