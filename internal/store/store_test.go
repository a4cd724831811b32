package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind_Validate(t *testing.T) {
	require.NoError(t, KindChannels.Validate())
	require.NoError(t, KindDates.Validate())
	require.Error(t, Kind("runs").Validate())
	require.Error(t, Kind("channels; DROP TABLE runs").Validate())
}

func TestChannelFilter_Normalize(t *testing.T) {
	tests := []struct {
		in   ChannelFilter
		want ChannelFilter
	}{
		{ChannelFilter{}, ChannelFilter{Limit: defaultLimit}},
		{ChannelFilter{Limit: 10, Offset: 5}, ChannelFilter{Limit: 10, Offset: 5}},
		{ChannelFilter{Limit: 10000, Offset: -3}, ChannelFilter{Limit: maxLimit}},
		{ChannelFilter{Provider: "mts", Category: "Sport"}, ChannelFilter{Provider: "mts", Category: "Sport", Limit: defaultLimit}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.in.Normalize())
	}
}

func TestFilterHash(t *testing.T) {
	a := filterHash(ChannelFilter{Provider: "mts", Limit: 10})
	require.Equal(t, a, filterHash(ChannelFilter{Provider: "mts", Limit: 10}))
	require.NotEqual(t, a, filterHash(ChannelFilter{Provider: "sbb", Limit: 10}))
	require.NotEqual(t, a, filterHash(ChannelFilter{Provider: "mts", Limit: 10, Offset: 10}))
}

func TestDatabaseFromURI(t *testing.T) {
	require.Equal(t, "epg", databaseFromURI("mongodb://localhost:27017"))
	require.Equal(t, "epg", databaseFromURI("mongodb://localhost:27017/"))
	require.Equal(t, "guide", databaseFromURI("mongodb://u:p@host:27017/guide?authSource=admin"))
}

func TestMigrationsURL(t *testing.T) {
	require.Equal(t, "file://migrations", MigrationsURL("migrations"))
	require.Equal(t, "file:///srv/migrations", MigrationsURL("/srv/migrations"))
	require.Equal(t, "github://org/repo/migrations", MigrationsURL("github://org/repo/migrations"))
}
