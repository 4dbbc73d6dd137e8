package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// handleReady registers the channels of every guild the shard starts with.
// At READY the gateway usually sends unavailable guild stubs without channels,
// so this pass mostly covers cached state on reconnect; the GUILD_CREATE that
// follows for each guild does the full registration.
func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	guilds := stateGuilds(s)
	if len(guilds) == 0 {
		guilds = r.Guilds
	}

	b.logger.WithField("guilds", len(guilds)).Info("Ready, registering guild channels")
	b.store.EnsureData(ctx, guilds)
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := b.store.AddGuild(ctx, g.Guild); err != nil {
		b.logger.WithFields(log.Fields{
			"guild_id": g.ID,
			"error":    err,
		}).Error("Failed to add guild")
	}
}

// handleGuildDelete removes a guild's data when the bot leaves it.
// An outage also arrives as a delete, flagged unavailable; that keeps the data.
func (b *Bot) handleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Guild == nil || g.Unavailable {
		return
	}

	guild := g.Guild
	if g.BeforeDelete != nil {
		guild = g.BeforeDelete
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := b.store.RemoveGuild(ctx, guild); err != nil {
		b.logger.WithFields(log.Fields{
			"guild_id": g.ID,
			"error":    err,
		}).Error("Failed to remove guild")
		return
	}

	b.logger.WithField("guild_id", g.ID).Info("Removed guild")
}

func (b *Bot) handleChannelCreate(s *discordgo.Session, c *discordgo.ChannelCreate) {
	if c.Channel == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var err error
	switch {
	case isDM(c.Channel):
		err = b.store.AddDMChannel(ctx, c.Channel)
	case isText(c.Channel):
		err = b.store.AddGuildTextChannel(ctx, c.Channel)
	default:
		return
	}

	if err != nil {
		b.logger.WithFields(log.Fields{
			"channel_id": c.ID,
			"error":      err,
		}).Error("Failed to add channel")
	}
}

func (b *Bot) handleChannelDelete(s *discordgo.Session, c *discordgo.ChannelDelete) {
	if c.Channel == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := b.store.DeleteChannel(ctx, c.Channel); err != nil {
		b.logger.WithFields(log.Fields{
			"channel_id": c.ID,
			"error":      err,
		}).Error("Failed to delete channel")
	}
}

// stateGuilds copies the guild list out of the session state
func stateGuilds(s *discordgo.Session) []*discordgo.Guild {
	if s == nil || s.State == nil {
		return nil
	}
	s.State.RLock()
	defer s.State.RUnlock()

	guilds := make([]*discordgo.Guild, len(s.State.Guilds))
	copy(guilds, s.State.Guilds)
	return guilds
}

func isDM(ch *discordgo.Channel) bool {
	return ch.Type == discordgo.ChannelTypeDM || ch.Type == discordgo.ChannelTypeGroupDM
}

func isText(ch *discordgo.Channel) bool {
	return ch.Type == discordgo.ChannelTypeGuildText || ch.Type == discordgo.ChannelTypeGuildNews
}
