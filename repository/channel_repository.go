package repository

import (
	"context"
	"fmt"
	"sync"

	"herald/models"
	"herald/observability"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// transactor runs fn inside a transaction; *database.DB implements it
type transactor interface {
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// ChannelRepository registers and removes the channels the bot can see
type ChannelRepository struct {
	q       Queryable
	tx      transactor
	metrics *observability.MetricsProvider
	logger  log.FieldLogger
}

func newChannelRepository(q Queryable, tx transactor, metrics *observability.MetricsProvider, logger log.FieldLogger) *ChannelRepository {
	return &ChannelRepository{q: q, tx: tx, metrics: metrics, logger: logger}
}

// EnsureData registers every text channel of every guild concurrently.
// Failures are logged per guild and never abort the others.
func (r *ChannelRepository) EnsureData(ctx context.Context, guilds []*discordgo.Guild) {
	var wg sync.WaitGroup
	for _, guild := range guilds {
		if guild == nil {
			continue
		}
		wg.Add(1)
		go func(g *discordgo.Guild) {
			defer wg.Done()
			if err := r.AddGuild(ctx, g); err != nil {
				r.logger.WithFields(log.Fields{
					"guild_id": g.ID,
					"error":    err,
				}).Error("Failed to register guild channels")
			}
		}(guild)
	}
	wg.Wait()

	r.logger.WithField("guilds", len(guilds)).Debug("Guild channel registration pass complete")
}

// AddGuild inserts one row per text channel of the guild, skipping rows that exist
func (r *ChannelRepository) AddGuild(ctx context.Context, guild *discordgo.Guild) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "channels", "AddGuild")(&err)

	guildID, err := parseSnowflake(guild.ID)
	if err != nil {
		return err
	}

	var ids []string
	for _, ch := range guildTextChannels(guild) {
		ids = append(ids, ch.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	channelIDs, err := parseSnowflakes(ids)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO channels (id, guild_id)
		SELECT channel_id, $2 FROM unnest($1::bigint[]) AS channel_id
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, channelIDs, guildID); err != nil {
		return fmt.Errorf("failed to add channels for guild %s: %w", guild.ID, err)
	}

	return nil
}

// AddGuildTextChannel registers a single guild channel
func (r *ChannelRepository) AddGuildTextChannel(ctx context.Context, ch *discordgo.Channel) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "channels", "AddGuildTextChannel")(&err)

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return err
	}
	guildID, err := parseSnowflake(ch.GuildID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO channels (id, guild_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, channelID, guildID); err != nil {
		return fmt.Errorf("failed to add channel %s: %w", ch.ID, err)
	}

	return nil
}

// AddDMChannel registers a direct or group message channel, which has no guild
func (r *ChannelRepository) AddDMChannel(ctx context.Context, ch *discordgo.Channel) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "channels", "AddDMChannel")(&err)

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO channels (id, guild_id)
		VALUES ($1, NULL)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, channelID); err != nil {
		return fmt.Errorf("failed to add DM channel %s: %w", ch.ID, err)
	}

	return nil
}

// registerChannel picks the DM or guild path by channel kind
func (r *ChannelRepository) registerChannel(ctx context.Context, ch *discordgo.Channel) error {
	if isDMChannel(ch) {
		return r.AddDMChannel(ctx, ch)
	}
	return r.AddGuildTextChannel(ctx, ch)
}

// DeleteGuild deletes the channel rows of a guild. Dependent rows are left
// in place; RemoveGuild cleans those up.
func (r *ChannelRepository) DeleteGuild(ctx context.Context, guild *discordgo.Guild) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "channels", "DeleteGuild")(&err)

	guildID, err := parseSnowflake(guild.ID)
	if err != nil {
		return err
	}

	if _, err := r.q.Exec(ctx, `DELETE FROM channels WHERE guild_id = $1`, guildID); err != nil {
		return fmt.Errorf("failed to delete channels for guild %s: %w", guild.ID, err)
	}

	return nil
}

// DeleteChannel deletes one channel row
func (r *ChannelRepository) DeleteChannel(ctx context.Context, ch *discordgo.Channel) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "channels", "DeleteChannel")(&err)

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return err
	}

	if _, err := r.q.Exec(ctx, `DELETE FROM channels WHERE id = $1`, channelID); err != nil {
		return fmt.Errorf("failed to delete channel %s: %w", ch.ID, err)
	}

	return nil
}

// RemoveGuild deletes everything stored for a guild in one transaction:
// channel permissions and item subscriptions of its channels, its guild
// permissions and pings, then its channel rows. Channels are taken both from
// the platform object and from the stored rows. On failure nothing is deleted.
func (r *ChannelRepository) RemoveGuild(ctx context.Context, guild *discordgo.Guild) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "channels", "RemoveGuild")(&err)

	guildID, err := parseSnowflake(guild.ID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(guild.Channels))
	for _, ch := range guild.Channels {
		if ch != nil {
			ids = append(ids, ch.ID)
		}
	}
	channelIDs, err := parseSnowflakes(ids)
	if err != nil {
		return err
	}

	steps := []struct {
		name  string
		query string
		args  []any
	}{
		{
			name: "channel permissions",
			query: `DELETE FROM channel_permissions
				WHERE channel_id = ANY($1::bigint[])
				   OR channel_id IN (SELECT id FROM channels WHERE guild_id = $2)`,
			args: []any{channelIDs, guildID},
		},
		{
			name: "item notifications",
			query: `DELETE FROM item_notifications
				WHERE channel_id = ANY($1::bigint[])
				   OR channel_id IN (SELECT id FROM channels WHERE guild_id = $2)`,
			args: []any{channelIDs, guildID},
		},
		{
			name:  "guild permissions",
			query: `DELETE FROM guild_permissions WHERE guild_id = $1`,
			args:  []any{guildID},
		},
		{
			name:  "pings",
			query: `DELETE FROM pings WHERE guild_id = $1`,
			args:  []any{guildID},
		},
		{
			name:  "channels",
			query: `DELETE FROM channels WHERE guild_id = $1 OR id = ANY($2::bigint[])`,
			args:  []any{guildID, channelIDs},
		},
	}

	err = r.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, step := range steps {
			tag, err := tx.Exec(ctx, step.query, step.args...)
			if err != nil {
				return fmt.Errorf("failed to delete %s for guild %s: %w", step.name, guild.ID, err)
			}
			r.logger.WithFields(log.Fields{
				"guild_id": guild.ID,
				"table":    step.name,
				"rows":     tag.RowsAffected(),
			}).Debug("Removed guild data")
		}
		return nil
	})
	if err != nil {
		r.logger.WithFields(log.Fields{
			"guild_id": guild.ID,
			"error":    err,
		}).Error("Failed to remove guild data")
		return err
	}

	return nil
}

// GetChannel returns the stored channel row, or nil if the channel is not registered
func (r *ChannelRepository) GetChannel(ctx context.Context, id string) (channel *models.Channel, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "channels", "GetChannel")(&err)

	channelID, err := parseSnowflake(id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, guild_id, webhook, platform
		FROM channels
		WHERE id = $1
	`

	var (
		storedID int64
		guildID  *int64
		result   models.Channel
	)
	err = r.q.QueryRow(ctx, query, channelID).Scan(
		&storedID,
		&guildID,
		&result.Webhook,
		&result.Platform,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel %s: %w", id, err)
	}

	result.ID = formatSnowflake(storedID)
	if guildID != nil {
		g := formatSnowflake(*guildID)
		result.GuildID = &g
	}

	return &result, nil
}

// SetChannelWebhook stores the webhook reference used to deliver notifications.
// An empty webhook clears it.
func (r *ChannelRepository) SetChannelWebhook(ctx context.Context, ch *discordgo.Channel, webhook string) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "channels", "SetChannelWebhook")(&err)

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return err
	}

	var value *string
	if webhook != "" {
		value = &webhook
	}

	if _, err := r.q.Exec(ctx, `UPDATE channels SET webhook = $2 WHERE id = $1`, channelID, value); err != nil {
		return fmt.Errorf("failed to set webhook for channel %s: %w", ch.ID, err)
	}

	return nil
}

// GetGuildChannelIDs returns the ids of the stored channels of a guild
func (r *ChannelRepository) GetGuildChannelIDs(ctx context.Context, guildID string) (ids []string, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "channels", "GetGuildChannelIDs")(&err)

	id, err := parseSnowflake(guildID)
	if err != nil {
		return nil, err
	}

	rows, err := r.q.Query(ctx, `SELECT id FROM channels WHERE guild_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get channels for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var channelID int64
		if err := rows.Scan(&channelID); err != nil {
			return nil, fmt.Errorf("failed to scan channel id: %w", err)
		}
		ids = append(ids, formatSnowflake(channelID))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate channels: %w", err)
	}

	return ids, nil
}
