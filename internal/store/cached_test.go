package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/voyagen/epgvault/internal/cache"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/store"
	"github.com/voyagen/epgvault/internal/store/mocks"
)

func newRedis(t *testing.T) *cache.Redis {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	r, err := cache.Open(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestCachedStore_ServesReadsFromCacheUntilWrite(t *testing.T) {
	r := newRedis(t)
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockStore(ctrl)
	cs := store.NewCachedStore(inner, r)
	ctx := context.Background()

	first := []models.Channel{{ID: "mts-1", Name: "A"}}
	second := []models.Channel{{ID: "mts-2", Name: "B"}}

	gomock.InOrder(
		inner.EXPECT().ListChannels(gomock.Any(), gomock.Any()).Return(first, nil).Times(1),
		inner.EXPECT().Drop(gomock.Any(), store.KindChannels).Return(nil),
		inner.EXPECT().InsertChannels(gomock.Any(), second).Return(1, nil),
		inner.EXPECT().ListChannels(gomock.Any(), gomock.Any()).Return(second, nil).Times(1),
	)

	got, err := cs.ListChannels(ctx, store.ChannelFilter{})
	require.NoError(t, err)
	require.Equal(t, "mts-1", got[0].ID)

	got, err = cs.ListChannels(ctx, store.ChannelFilter{})
	require.NoError(t, err)
	require.Equal(t, "mts-1", got[0].ID)

	require.NoError(t, cs.Drop(ctx, store.KindChannels))
	n, err := cs.InsertChannels(ctx, second)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err = cs.ListChannels(ctx, store.ChannelFilter{})
	require.NoError(t, err)
	require.Equal(t, "mts-2", got[0].ID)
}

func TestCachedStore_NotFoundIsNotCached(t *testing.T) {
	r := newRedis(t)
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockStore(ctrl)
	cs := store.NewCachedStore(inner, r)
	ctx := context.Background()

	inner.EXPECT().GetChannel(gomock.Any(), "sk-9").Return(nil, store.ErrNotFound).Times(2)

	_, err := cs.GetChannel(ctx, "sk-9")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = cs.GetChannel(ctx, "sk-9")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCachedStore_RunsBypassCache(t *testing.T) {
	r := newRedis(t)
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockStore(ctrl)
	cs := store.NewCachedStore(inner, r)
	ctx := context.Background()

	run := &models.Run{ID: "r1", Phase: models.RunPhaseCompleted}
	inner.EXPECT().LatestRun(gomock.Any()).Return(run, nil).Times(2)
	for i := 0; i < 2; i++ {
		got, err := cs.LatestRun(ctx)
		require.NoError(t, err)
		require.Equal(t, "r1", got.ID)
	}
}
