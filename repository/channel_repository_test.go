package repository

import (
	"context"
	"testing"

	"herald/repository/testutil"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateSchema(t *testing.T) {
	t.Parallel()
	store, testDB := newTestStore(t, 0, 1)
	ctx := context.Background()

	// Tables already exist from migrations; bootstrap must be a no-op
	require.NoError(t, store.CreateSchema(ctx))
	require.NoError(t, store.CreateSchema(ctx))

	for _, table := range []string{
		"channels", "settings", "item_notifications", "type_notifications",
		"pings", "channel_permissions", "guild_permissions",
	} {
		assert.Equal(t, 0, testDB.CountRows(t, table, ""), table)
	}
}

func TestChannelRepository_Registry(t *testing.T) {
	t.Parallel()
	store, testDB := newTestStore(t, 0, 1)
	ctx := context.Background()

	t.Run("add guild inserts text channels only", func(t *testing.T) {
		testDB.Truncate(t)
		guild := testutil.CreateTestGuild("100", "101", "102")

		require.NoError(t, store.AddGuild(ctx, guild))
		require.NoError(t, store.AddGuild(ctx, guild))

		assert.Equal(t, 2, testDB.CountRows(t, "channels", "guild_id = $1", int64(100)))
		ids, err := store.GetGuildChannelIDs(ctx, "100")
		require.NoError(t, err)
		assert.Equal(t, []string{"101", "102"}, ids)
	})

	t.Run("add guild without text channels is a no-op", func(t *testing.T) {
		testDB.Truncate(t)
		guild := &discordgo.Guild{ID: "200"}

		require.NoError(t, store.AddGuild(ctx, guild))
		assert.Equal(t, 0, testDB.CountRows(t, "channels", ""))
	})

	t.Run("add text channel is idempotent", func(t *testing.T) {
		testDB.Truncate(t)
		ch := testutil.CreateTestTextChannel("301", "300")

		require.NoError(t, store.AddGuildTextChannel(ctx, ch))
		require.NoError(t, store.AddGuildTextChannel(ctx, ch))

		assert.Equal(t, 1, testDB.CountRows(t, "channels", "id = $1", int64(301)))
	})

	t.Run("dm channel has no guild", func(t *testing.T) {
		testDB.Truncate(t)
		ch := testutil.CreateTestDMChannel("401")

		require.NoError(t, store.AddDMChannel(ctx, ch))
		require.NoError(t, store.AddDMChannel(ctx, ch))

		stored, err := store.GetChannel(ctx, "401")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Nil(t, stored.GuildID)
		assert.True(t, stored.IsDM())
	})

	t.Run("invalid id is rejected", func(t *testing.T) {
		err := store.AddDMChannel(ctx, &discordgo.Channel{ID: "not-a-snowflake", Type: discordgo.ChannelTypeDM})
		assert.ErrorIs(t, err, ErrInvalidSnowflake)
	})

	t.Run("delete channel and guild", func(t *testing.T) {
		testDB.Truncate(t)
		guild := testutil.CreateTestGuild("500", "501", "502")
		require.NoError(t, store.AddGuild(ctx, guild))

		require.NoError(t, store.DeleteChannel(ctx, guild.Channels[0]))
		assert.Equal(t, 1, testDB.CountRows(t, "channels", ""))

		require.NoError(t, store.DeleteGuild(ctx, guild))
		assert.Equal(t, 0, testDB.CountRows(t, "channels", ""))
	})

	t.Run("unknown channel is nil", func(t *testing.T) {
		testDB.Truncate(t)
		stored, err := store.GetChannel(ctx, "999")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("webhook set and cleared", func(t *testing.T) {
		testDB.Truncate(t)
		ch := testutil.CreateTestTextChannel("601", "600")
		require.NoError(t, store.AddGuildTextChannel(ctx, ch))

		require.NoError(t, store.SetChannelWebhook(ctx, ch, "https://discord.com/api/webhooks/1/abc"))
		stored, err := store.GetChannel(ctx, "601")
		require.NoError(t, err)
		require.NotNil(t, stored.Webhook)
		assert.Equal(t, "https://discord.com/api/webhooks/1/abc", *stored.Webhook)
		require.NotNil(t, stored.GuildID)
		assert.Equal(t, "600", *stored.GuildID)

		require.NoError(t, store.SetChannelWebhook(ctx, ch, ""))
		stored, err = store.GetChannel(ctx, "601")
		require.NoError(t, err)
		assert.Nil(t, stored.Webhook)
	})
}

func TestChannelRepository_EnsureData(t *testing.T) {
	t.Parallel()
	store, testDB := newTestStore(t, 0, 1)
	ctx := context.Background()

	guilds := []*discordgo.Guild{
		testutil.CreateTestGuild("100", "101", "102"),
		testutil.CreateTestGuild("200", "201"),
		// A malformed guild fails on its own without stopping the others
		{ID: "broken", Channels: []*discordgo.Channel{testutil.CreateTestTextChannel("301", "broken")}},
		nil,
	}

	assert.NotPanics(t, func() {
		store.EnsureData(ctx, guilds)
	})

	assert.Equal(t, 3, testDB.CountRows(t, "channels", ""))

	// Second pass changes nothing
	store.EnsureData(ctx, guilds)
	assert.Equal(t, 3, testDB.CountRows(t, "channels", ""))
}

func TestChannelRepository_RemoveGuild(t *testing.T) {
	t.Parallel()
	store, testDB := newTestStore(t, 0, 1)
	ctx := context.Background()

	doomed := testutil.CreateTestGuild("100", "101", "102")
	kept := testutil.CreateTestGuild("200", "201")
	require.NoError(t, store.AddGuild(ctx, doomed))
	require.NoError(t, store.AddGuild(ctx, kept))

	// A stored channel the platform object no longer lists
	stale := testutil.CreateTestTextChannel("103", "100")
	require.NoError(t, store.AddGuildTextChannel(ctx, stale))

	for _, guild := range []*discordgo.Guild{doomed, kept} {
		ch := guild.Channels[0]
		require.NoError(t, store.TrackItem(ctx, ch, "nitain"))
		require.NoError(t, store.TrackEventType(ctx, ch, "alert"))
		require.NoError(t, store.SetChannelPermissionForRole(ctx, ch, "7", "ping", false))
		require.NoError(t, store.SetGuildPermissionForRole(ctx, guild, "7", "ping", false))
		require.NoError(t, store.SetPing(ctx, guild, "alert", "hey"))
	}
	require.NoError(t, store.TrackItem(ctx, stale, "forma"))

	require.NoError(t, store.RemoveGuild(ctx, doomed))

	assert.Equal(t, 0, testDB.CountRows(t, "channels", "guild_id = $1", int64(100)))
	assert.Equal(t, 0, testDB.CountRows(t, "item_notifications", "channel_id IN (101, 103)"))
	assert.Equal(t, 0, testDB.CountRows(t, "channel_permissions", "channel_id = 101"))
	assert.Equal(t, 0, testDB.CountRows(t, "guild_permissions", "guild_id = 100"))
	assert.Equal(t, 0, testDB.CountRows(t, "pings", "guild_id = 100"))

	// Event type subscriptions are not part of guild removal
	assert.Equal(t, 1, testDB.CountRows(t, "type_notifications", "channel_id = 101"))

	// The other guild is untouched
	assert.Equal(t, 1, testDB.CountRows(t, "channels", "guild_id = $1", int64(200)))
	assert.Equal(t, 1, testDB.CountRows(t, "item_notifications", "channel_id = 201"))
	assert.Equal(t, 1, testDB.CountRows(t, "channel_permissions", "channel_id = 201"))
	assert.Equal(t, 1, testDB.CountRows(t, "guild_permissions", "guild_id = 200"))
	assert.Equal(t, 1, testDB.CountRows(t, "pings", "guild_id = 200"))
}

func TestChannelRepository_RemoveGuildRollsBack(t *testing.T) {
	t.Parallel()
	store, testDB := newTestStore(t, 0, 1)
	ctx := context.Background()

	guild := testutil.CreateTestGuild("100", "101")
	ch := guild.Channels[0]
	require.NoError(t, store.AddGuild(ctx, guild))
	require.NoError(t, store.TrackItem(ctx, ch, "nitain"))
	require.NoError(t, store.SetChannelPermissionForRole(ctx, ch, "7", "ping", false))
	require.NoError(t, store.SetGuildPermissionForRole(ctx, guild, "7", "ping", false))
	require.NoError(t, store.SetPing(ctx, guild, "nitain", "hey"))

	// Permissions and subscriptions are deleted before pings, so this fails
	// after those deletions have already run
	_, err := testDB.DB.Exec(ctx, `ALTER TABLE pings RENAME TO pings_moved`)
	require.NoError(t, err)

	err = store.RemoveGuild(ctx, guild)
	require.Error(t, err)

	assert.Equal(t, 1, testDB.CountRows(t, "channel_permissions", "channel_id = 101"))
	assert.Equal(t, 1, testDB.CountRows(t, "item_notifications", "channel_id = 101"))
	assert.Equal(t, 1, testDB.CountRows(t, "guild_permissions", "guild_id = 100"))
	assert.Equal(t, 1, testDB.CountRows(t, "pings_moved", "guild_id = 100"))
	assert.Equal(t, 1, testDB.CountRows(t, "channels", "guild_id = 100"))

	_, err = testDB.DB.Exec(ctx, `ALTER TABLE pings_moved RENAME TO pings`)
	require.NoError(t, err)

	require.NoError(t, store.RemoveGuild(ctx, guild))
	assert.Equal(t, 0, testDB.CountRows(t, "channel_permissions", "channel_id = 101"))
	assert.Equal(t, 0, testDB.CountRows(t, "pings", "guild_id = 100"))
	assert.Equal(t, 0, testDB.CountRows(t, "channels", "guild_id = 100"))
}
