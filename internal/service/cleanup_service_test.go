package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/movienight/internal/collab"
	"github.com/user/movienight/internal/repository"
)

func TestCleanupRunOnceRemovesStalePresence(t *testing.T) {
	ctx := context.Background()
	backend := repository.NewMemoryCollabRepository()
	now := time.Now()

	require.NoError(t, backend.Attach(ctx, "room", collab.PresenceRecord{ClientID: "crashed", Identity: DemoUsers[0], SeenAt: now.Add(-10 * time.Minute)}))
	require.NoError(t, backend.Attach(ctx, "room", collab.PresenceRecord{ClientID: "alive", Identity: DemoUsers[1], SeenAt: now}))

	svc := NewCleanupService(backend, "room", 90*time.Second, "")
	svc.now = func() time.Time { return now }

	assert.Equal(t, 1, svc.RunOnce(ctx))

	roster, err := backend.Roster(ctx, "room")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "alive", roster[0].ClientID)
}

func TestCleanupStartRejectsBadSchedule(t *testing.T) {
	svc := NewCleanupService(repository.NewMemoryCollabRepository(), "room", time.Minute, "not a schedule")
	assert.Error(t, svc.Start())
	svc.Stop()
}

func TestCleanupStartStop(t *testing.T) {
	svc := NewCleanupService(repository.NewMemoryCollabRepository(), "room", time.Minute, "@every 1h")
	require.NoError(t, svc.Start())
	svc.Stop()
}
