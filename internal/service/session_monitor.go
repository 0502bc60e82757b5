package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferreiralabs/zapcrm-backend/internal/report"
	"github.com/ferreiralabs/zapcrm-backend/internal/repository"
)

// staleAfter is how long a user may go without activity before the sweep
// flips them offline.
const staleAfter = 5 * time.Minute

// SessionMonitor reconciles user presence: agents that stopped heartbeating
// are flipped offline so routing does not assign conversations to ghosts.
type SessionMonitor struct {
	Users    repository.UserRepositoryInterface
	Reporter report.Reporter
	Log      zerolog.Logger
}

// SweepOnline flips every stale online user offline. Per-user failures are
// reported and do not block the rest of the sweep.
func (m *SessionMonitor) SweepOnline(ctx context.Context) error {
	cutoff := time.Now().Add(-staleAfter)
	users, err := m.Users.ListStaleOnline(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale online users: %w", err)
	}

	for _, u := range users {
		if err := m.Users.SetOffline(ctx, u.ID); err != nil {
			m.Reporter.Capture(err, map[string]string{"user": strconv.Itoa(u.ID), "stage": "presence"})
			continue
		}
		m.Log.Debug().Int("user", u.ID).Msg("stale user set offline")
	}
	return nil
}
