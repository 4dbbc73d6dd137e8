package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"herald/models"
	"herald/observability"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5"
)

// SettingsRepository stores per-channel settings. Missing rows read as the
// configured defaults.
type SettingsRepository struct {
	q        Queryable
	channels *ChannelRepository
	defaults models.Defaults
	metrics  *observability.MetricsProvider
}

func newSettingsRepository(q Queryable, channels *ChannelRepository, defaults models.Defaults, metrics *observability.MetricsProvider) *SettingsRepository {
	return &SettingsRepository{q: q, channels: channels, defaults: defaults, metrics: metrics}
}

// GetChannelSetting returns the stored value of a setting. When no row exists
// the channel is registered and the default is returned.
func (r *SettingsRepository) GetChannelSetting(ctx context.Context, ch *discordgo.Channel, name models.SettingName) (value string, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "settings", "GetChannelSetting")(&err)

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return "", err
	}

	query := `
		SELECT val
		FROM settings
		WHERE channel_id = $1 AND setting = $2
	`

	err = r.q.QueryRow(ctx, query, channelID, string(name)).Scan(&value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to get setting %s for channel %s: %w", name, ch.ID, err)
	}

	if err := r.channels.registerChannel(ctx, ch); err != nil {
		return "", fmt.Errorf("failed to register channel %s: %w", ch.ID, err)
	}

	return r.defaults.Value(name), nil
}

// SetChannelSetting writes a setting, replacing any previous value
func (r *SettingsRepository) SetChannelSetting(ctx context.Context, ch *discordgo.Channel, name models.SettingName, value string) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "settings", "SetChannelSetting")(&err)

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO settings (channel_id, setting, val)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, setting) DO UPDATE SET val = EXCLUDED.val
	`

	if _, err := r.q.Exec(ctx, query, channelID, string(name), value); err != nil {
		return fmt.Errorf("failed to set setting %s for channel %s: %w", name, ch.ID, err)
	}

	return nil
}

// SetGuildSetting writes a setting on every text channel of the guild.
// Every channel is attempted; the joined per-channel errors are returned.
func (r *SettingsRepository) SetGuildSetting(ctx context.Context, guild *discordgo.Guild, name models.SettingName, value string) error {
	var errs []error
	for _, ch := range guildTextChannels(guild) {
		if err := r.SetChannelSetting(ctx, ch, name, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *SettingsRepository) getBool(ctx context.Context, ch *discordgo.Channel, name models.SettingName) (bool, error) {
	value, err := r.GetChannelSetting(ctx, ch, name)
	if err != nil {
		return false, err
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("setting %s for channel %s is not a boolean: %q", name, ch.ID, value)
	}
	return parsed, nil
}

// GetChannelPrefix returns the command prefix of a channel
func (r *SettingsRepository) GetChannelPrefix(ctx context.Context, ch *discordgo.Channel) (string, error) {
	return r.GetChannelSetting(ctx, ch, models.SettingPrefix)
}

// SetChannelPrefix sets the command prefix of a channel
func (r *SettingsRepository) SetChannelPrefix(ctx context.Context, ch *discordgo.Channel, prefix string) error {
	return r.SetChannelSetting(ctx, ch, models.SettingPrefix, prefix)
}

// ResetChannelPrefix restores the bot-global prefix on a channel
func (r *SettingsRepository) ResetChannelPrefix(ctx context.Context, ch *discordgo.Channel) error {
	return r.SetChannelSetting(ctx, ch, models.SettingPrefix, r.defaults.Prefix)
}

// SetGuildPrefix sets the command prefix on every text channel of a guild
func (r *SettingsRepository) SetGuildPrefix(ctx context.Context, guild *discordgo.Guild, prefix string) error {
	return r.SetGuildSetting(ctx, guild, models.SettingPrefix, prefix)
}

// ResetGuildPrefix restores the bot-global prefix on every channel of a guild
func (r *SettingsRepository) ResetGuildPrefix(ctx context.Context, guild *discordgo.Guild) error {
	return r.SetGuildSetting(ctx, guild, models.SettingPrefix, r.defaults.Prefix)
}

// GetChannelLanguage returns the response language of a channel
func (r *SettingsRepository) GetChannelLanguage(ctx context.Context, ch *discordgo.Channel) (string, error) {
	return r.GetChannelSetting(ctx, ch, models.SettingLanguage)
}

// SetChannelLanguage sets the response language of a channel
func (r *SettingsRepository) SetChannelLanguage(ctx context.Context, ch *discordgo.Channel, language string) error {
	return r.SetChannelSetting(ctx, ch, models.SettingLanguage, language)
}

// GetChannelPlatform returns the lower-cased platform of a channel
func (r *SettingsRepository) GetChannelPlatform(ctx context.Context, ch *discordgo.Channel) (string, error) {
	platform, err := r.GetChannelSetting(ctx, ch, models.SettingPlatform)
	if err != nil {
		return "", err
	}
	return strings.ToLower(platform), nil
}

// SetChannelPlatform stores the platform lower-cased
func (r *SettingsRepository) SetChannelPlatform(ctx context.Context, ch *discordgo.Channel, platform string) error {
	return r.SetChannelSetting(ctx, ch, models.SettingPlatform, strings.ToLower(platform))
}

// GetChannelResponseToSettings reports whether settings commands get a reply
func (r *SettingsRepository) GetChannelResponseToSettings(ctx context.Context, ch *discordgo.Channel) (bool, error) {
	return r.getBool(ctx, ch, models.SettingRespondToSettings)
}

// SetChannelResponseToSettings sets whether settings commands get a reply
func (r *SettingsRepository) SetChannelResponseToSettings(ctx context.Context, ch *discordgo.Channel, respond bool) error {
	return r.SetChannelSetting(ctx, ch, models.SettingRespondToSettings, strconv.FormatBool(respond))
}

// GetChannelDeleteAfterResponse reports whether commands are deleted once answered
func (r *SettingsRepository) GetChannelDeleteAfterResponse(ctx context.Context, ch *discordgo.Channel) (bool, error) {
	return r.getBool(ctx, ch, models.SettingDeleteAfterRespond)
}

// SetChannelDeleteAfterResponse sets whether commands are deleted once answered
func (r *SettingsRepository) SetChannelDeleteAfterResponse(ctx context.Context, ch *discordgo.Channel, deleteAfter bool) error {
	return r.SetChannelSetting(ctx, ch, models.SettingDeleteAfterRespond, strconv.FormatBool(deleteAfter))
}
