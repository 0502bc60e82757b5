package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

func TestSweepOnlineFlipsStaleUsers(t *testing.T) {
	now := time.Now()
	repo := &mockUserRepo{users: []model.User{
		{ID: 1, CompanyID: 1, Name: "Ana", Online: true, UpdatedAt: now.Add(-10 * time.Minute)},
		{ID: 2, CompanyID: 1, Name: "Bruno", Online: true, UpdatedAt: now.Add(-time.Minute)},
		{ID: 3, CompanyID: 2, Name: "Carla", Online: false, UpdatedAt: now.Add(-time.Hour)},
	}}
	monitor := &SessionMonitor{Users: repo, Reporter: &mockReporter{}, Log: zerolog.Nop()}

	require.NoError(t, monitor.SweepOnline(context.Background()))

	assert.Equal(t, []int{1}, repo.offline, "only stale online users are flipped")
	assert.False(t, repo.users[0].Online)
	assert.True(t, repo.users[1].Online)
}
