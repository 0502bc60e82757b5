package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

func TestNextRecipientDelayCooldownEveryNth(t *testing.T) {
	p := model.DefaultPacing()
	intn := func(n int) int { return 7 }

	// Walk the first 21 recipients and track each one's delay.
	delays := map[int]time.Duration{1: 0}
	d := time.Duration(0)
	for i := 2; i <= 21; i++ {
		d = NextRecipientDelay(d, i, p, intn)
		delays[i] = d
	}

	// The 20th recipient absorbs the full cooldown over the 19th.
	assert.Equal(t, 60*time.Second, delays[20]-delays[19])
	// Ordinary gaps stay under the random interval bound.
	assert.Equal(t, 7*time.Second, delays[19]-delays[18])
	assert.Equal(t, 7*time.Second, delays[21]-delays[20])
}

func TestNextRecipientDelayMonotone(t *testing.T) {
	p := model.DefaultPacing()
	intn := func(n int) int { return 3 }

	prev := time.Duration(0)
	for i := 2; i <= 50; i++ {
		next := NextRecipientDelay(prev, i, p, intn)
		assert.GreaterOrEqual(t, next, prev, "delay must never move backwards at index %d", i)
		prev = next
	}
}

func TestNextRecipientDelayFixedIntervalWins(t *testing.T) {
	p := model.PacingSettings{
		RandomMessageInterval: 20,
		LongerIntervalAfter:   20,
		GreaterInterval:       60,
		FixedMessageInterval:  12,
	}
	intn := func(n int) int {
		t.Fatal("random interval must not be consulted when a fixed interval is set")
		return 0
	}

	got := NextRecipientDelay(10*time.Second, 5, p, intn)
	assert.Equal(t, 22*time.Second, got)
}

func TestNextRecipientDelayZeroSettings(t *testing.T) {
	p := model.PacingSettings{}
	got := NextRecipientDelay(time.Minute, 20, p, func(int) int { return 9 })
	assert.Equal(t, time.Minute, got, "all-zero pacing must leave the delay unchanged")
}
