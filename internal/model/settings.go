package model

// PacingSettings controls inter-message delay growth during a campaign run.
// Values come from per-company settings rows, falling back to the defaults
// below. A nonzero FixedMessageInterval overrides the random interval
// entirely. Settings are read once per campaign run; a change never affects
// an in-flight campaign.
type PacingSettings struct {
	RandomMessageInterval int `json:"random_message_interval"` // seconds, jitter upper bound (exclusive)
	LongerIntervalAfter   int `json:"longer_interval_after"`   // messages between cooldowns
	GreaterInterval       int `json:"greater_interval"`        // seconds, cooldown size
	FixedMessageInterval  int `json:"fixed_message_interval"`  // seconds, 0 = use random
}

// DefaultPacing returns the static pacing defaults.
func DefaultPacing() PacingSettings {
	return PacingSettings{
		RandomMessageInterval: 20,
		LongerIntervalAfter:   20,
		GreaterInterval:       60,
		FixedMessageInterval:  0,
	}
}
