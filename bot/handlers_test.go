package bot

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestBot(t *testing.T) (*Bot, *discordgo.Session, *MockStore) {
	t.Helper()
	session, err := discordgo.New("Bot test-token")
	require.NoError(t, err)

	store := new(MockStore)
	return newBot(Config{ShardID: 0, ShardCount: 1}, session, store), session, store
}

func textChannel(id, guildID string) *discordgo.Channel {
	return &discordgo.Channel{ID: id, GuildID: guildID, Type: discordgo.ChannelTypeGuildText}
}

func TestHandleReady(t *testing.T) {
	t.Run("uses state guilds", func(t *testing.T) {
		bot, session, store := newTestBot(t)
		guild := &discordgo.Guild{ID: "100", Channels: []*discordgo.Channel{textChannel("101", "100")}}
		require.NoError(t, session.State.GuildAdd(guild))

		store.On("EnsureData", mock.Anything, mock.MatchedBy(func(guilds []*discordgo.Guild) bool {
			return len(guilds) == 1 && guilds[0].ID == "100"
		})).Return().Once()

		bot.handleReady(session, &discordgo.Ready{})

		store.AssertExpectations(t)
	})

	t.Run("falls back to ready payload", func(t *testing.T) {
		bot, session, store := newTestBot(t)
		ready := &discordgo.Ready{Guilds: []*discordgo.Guild{{ID: "200"}, {ID: "300"}}}

		store.On("EnsureData", mock.Anything, ready.Guilds).Return().Once()

		bot.handleReady(session, ready)

		store.AssertExpectations(t)
	})
}

func TestHandleGuildCreate(t *testing.T) {
	bot, session, store := newTestBot(t)
	guild := &discordgo.Guild{ID: "100"}

	store.On("AddGuild", mock.Anything, guild).Return(errors.New("boom")).Once()

	assert.NotPanics(t, func() {
		bot.handleGuildCreate(session, &discordgo.GuildCreate{Guild: guild})
	})
	bot.handleGuildCreate(session, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "200", Unavailable: true}})

	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "AddGuild", 1)
}

func TestHandleGuildDelete(t *testing.T) {
	t.Run("outage keeps data", func(t *testing.T) {
		bot, session, store := newTestBot(t)

		bot.handleGuildDelete(session, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "100", Unavailable: true}})

		store.AssertNotCalled(t, "RemoveGuild", mock.Anything, mock.Anything)
	})

	t.Run("removal prefers the cached guild", func(t *testing.T) {
		bot, session, store := newTestBot(t)
		cached := &discordgo.Guild{ID: "100", Channels: []*discordgo.Channel{textChannel("101", "100")}}

		store.On("RemoveGuild", mock.Anything, cached).Return(nil).Once()

		bot.handleGuildDelete(session, &discordgo.GuildDelete{
			Guild:        &discordgo.Guild{ID: "100"},
			BeforeDelete: cached,
		})

		store.AssertExpectations(t)
	})

	t.Run("removal without cache", func(t *testing.T) {
		bot, session, store := newTestBot(t)
		guild := &discordgo.Guild{ID: "100"}

		store.On("RemoveGuild", mock.Anything, guild).Return(errors.New("boom")).Once()

		bot.handleGuildDelete(session, &discordgo.GuildDelete{Guild: guild})

		store.AssertExpectations(t)
	})
}

func TestHandleChannelCreate(t *testing.T) {
	tests := []struct {
		name    string
		channel *discordgo.Channel
		method  string
	}{
		{"text", textChannel("101", "100"), "AddGuildTextChannel"},
		{"news", &discordgo.Channel{ID: "102", GuildID: "100", Type: discordgo.ChannelTypeGuildNews}, "AddGuildTextChannel"},
		{"dm", &discordgo.Channel{ID: "103", Type: discordgo.ChannelTypeDM}, "AddDMChannel"},
		{"group dm", &discordgo.Channel{ID: "104", Type: discordgo.ChannelTypeGroupDM}, "AddDMChannel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, session, store := newTestBot(t)
			store.On(tt.method, mock.Anything, tt.channel).Return(nil).Once()

			bot.handleChannelCreate(session, &discordgo.ChannelCreate{Channel: tt.channel})

			store.AssertExpectations(t)
		})
	}

	t.Run("voice is ignored", func(t *testing.T) {
		bot, session, store := newTestBot(t)

		bot.handleChannelCreate(session, &discordgo.ChannelCreate{
			Channel: &discordgo.Channel{ID: "105", GuildID: "100", Type: discordgo.ChannelTypeGuildVoice},
		})

		store.AssertNotCalled(t, "AddGuildTextChannel", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "AddDMChannel", mock.Anything, mock.Anything)
	})
}

func TestHandleChannelDelete(t *testing.T) {
	bot, session, store := newTestBot(t)
	ch := textChannel("101", "100")

	store.On("DeleteChannel", mock.Anything, ch).Return(nil).Once()

	bot.handleChannelDelete(session, &discordgo.ChannelDelete{Channel: ch})

	store.AssertExpectations(t)
}
