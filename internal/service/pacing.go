package service

import (
	"math/rand"
	"time"

	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

// Seconds converts a whole-second pacing value to scheduler time. Every delay
// handed to the queue goes through here so all layers agree on units.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// NextRecipientDelay advances the running campaign delay for the recipient at
// the given 1-based index, relative to the previous recipient's delay.
//
// Every LongerIntervalAfter-th recipient absorbs the GreaterInterval cooldown.
// Otherwise the gap is FixedMessageInterval when configured nonzero, else a
// uniformly random integer number of seconds in [0, RandomMessageInterval).
// intn supplies the randomness so tests can pin it.
func NextRecipientDelay(prev time.Duration, index int, p model.PacingSettings, intn func(int) int) time.Duration {
	if p.LongerIntervalAfter > 0 && index%p.LongerIntervalAfter == 0 {
		return prev + Seconds(p.GreaterInterval)
	}
	if p.FixedMessageInterval > 0 {
		return prev + Seconds(p.FixedMessageInterval)
	}
	if p.RandomMessageInterval <= 0 {
		return prev
	}
	if intn == nil {
		intn = rand.Intn
	}
	return prev + Seconds(intn(p.RandomMessageInterval))
}
