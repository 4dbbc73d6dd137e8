package testutil

import (
	"github.com/bwmarrin/discordgo"
)

// GuildIDForShard returns a guild id that hashes to shard n: (id >> 22) % count == n
func GuildIDForShard(seq, n, count int64) int64 {
	return (seq*count + n) << 22
}

// CreateTestTextChannel creates a guild text channel
func CreateTestTextChannel(id, guildID string) *discordgo.Channel {
	return &discordgo.Channel{
		ID:      id,
		GuildID: guildID,
		Type:    discordgo.ChannelTypeGuildText,
		Name:    "general-" + id,
	}
}

// CreateTestDMChannel creates a direct message channel
func CreateTestDMChannel(id string) *discordgo.Channel {
	return &discordgo.Channel{
		ID:   id,
		Type: discordgo.ChannelTypeDM,
	}
}

// CreateTestGuild creates a guild with a text channel per id plus one voice channel
func CreateTestGuild(id string, channelIDs ...string) *discordgo.Guild {
	guild := &discordgo.Guild{
		ID:   id,
		Name: "guild-" + id,
	}
	for _, channelID := range channelIDs {
		guild.Channels = append(guild.Channels, CreateTestTextChannel(channelID, id))
	}
	guild.Channels = append(guild.Channels, &discordgo.Channel{
		ID:      id + "9",
		GuildID: id,
		Type:    discordgo.ChannelTypeGuildVoice,
		Name:    "voice",
	})
	return guild
}

// CreateTestMember creates a guild member holding the given roles
func CreateTestMember(userID, guildID string, roleIDs ...string) *discordgo.Member {
	return &discordgo.Member{
		GuildID: guildID,
		User:    &discordgo.User{ID: userID, Username: "user-" + userID},
		Roles:   roleIDs,
	}
}
