package repository

import (
	"context"
	"errors"
	"fmt"

	"herald/models"
	"herald/observability"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5"
)

// Two fixed variants of the fan-out query, chosen by whether items were given.
// Parameters: $1 event type, $2 platform, $3 default platform, $4 shard count,
// $5 shard id, $6 items (item variant only).
const (
	notificationsByTypeQuery = `
		SELECT c.id, c.webhook,
		       COALESCE(string_agg(DISTINCT p.text, E'\n' ORDER BY p.text), '') AS ping
		FROM channels c
		JOIN type_notifications tn ON tn.channel_id = c.id AND tn.type = $1
		LEFT JOIN settings ps ON ps.channel_id = c.id AND ps.setting = 'platform'
		LEFT JOIN pings p ON p.guild_id = c.guild_id
		                 AND tn.ping
		                 AND p.item_or_type = tn.type
		WHERE LOWER(COALESCE(ps.val, $3)) = LOWER($2)
		  AND (c.guild_id IS NULL OR c.guild_id = 0 OR (c.guild_id >> 22) % $4 = $5)
		GROUP BY c.id, c.webhook
		ORDER BY c.id
	`

	notificationsByTypeOrItemsQuery = `
		SELECT c.id, c.webhook,
		       COALESCE(string_agg(DISTINCT p.text, E'\n' ORDER BY p.text), '') AS ping
		FROM channels c
		LEFT JOIN type_notifications tn ON tn.channel_id = c.id AND tn.type = $1
		LEFT JOIN item_notifications inot ON inot.channel_id = c.id AND inot.item = ANY($6::text[])
		LEFT JOIN settings ps ON ps.channel_id = c.id AND ps.setting = 'platform'
		LEFT JOIN pings p ON p.guild_id = c.guild_id
		                 AND ((tn.ping AND p.item_or_type = tn.type)
		                   OR (inot.ping AND p.item_or_type = inot.item))
		WHERE (tn.channel_id IS NOT NULL OR inot.channel_id IS NOT NULL)
		  AND LOWER(COALESCE(ps.val, $3)) = LOWER($2)
		  AND (c.guild_id IS NULL OR c.guild_id = 0 OR (c.guild_id >> 22) % $4 = $5)
		GROUP BY c.id, c.webhook
		ORDER BY c.id
	`
)

// notificationsQuery selects the statement variant and its arguments
func notificationsQuery(eventType, platform, defaultPlatform string, shardCount, shardID int64, items []string) (string, []any) {
	args := []any{eventType, platform, defaultPlatform, shardCount, shardID}
	if len(items) == 0 {
		return notificationsByTypeQuery, args
	}
	return notificationsByTypeOrItemsQuery, append(args, items)
}

// NotificationRepository stores item and event-type subscriptions and guild ping texts
type NotificationRepository struct {
	q               Queryable
	defaultPlatform string
	shardID         int64
	shardCount      int64
	metrics         *observability.MetricsProvider
}

func newNotificationRepository(q Queryable, defaultPlatform string, shardID, shardCount int, metrics *observability.MetricsProvider) *NotificationRepository {
	return &NotificationRepository{
		q:               q,
		defaultPlatform: defaultPlatform,
		shardID:         int64(shardID),
		shardCount:      int64(shardCount),
		metrics:         metrics,
	}
}

// exec runs a single-channel statement with the channel id as $1
func (r *NotificationRepository) exec(ctx context.Context, method, query string, ch *discordgo.Channel, args ...any) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "notifications", method)(&err)

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return err
	}

	if _, err := r.q.Exec(ctx, query, append([]any{channelID}, args...)...); err != nil {
		return fmt.Errorf("failed to %s for channel %s: %w", method, ch.ID, err)
	}

	return nil
}

// TrackItem subscribes a channel to an item
func (r *NotificationRepository) TrackItem(ctx context.Context, ch *discordgo.Channel, item string) error {
	query := `
		INSERT INTO item_notifications (channel_id, item)
		VALUES ($1, $2)
		ON CONFLICT (channel_id, item) DO NOTHING
	`
	return r.exec(ctx, "TrackItem", query, ch, item)
}

// UntrackItem removes an item subscription of a channel
func (r *NotificationRepository) UntrackItem(ctx context.Context, ch *discordgo.Channel, item string) error {
	query := `DELETE FROM item_notifications WHERE channel_id = $1 AND item = $2`
	return r.exec(ctx, "UntrackItem", query, ch, item)
}

// TrackEventType subscribes a channel to an event type
func (r *NotificationRepository) TrackEventType(ctx context.Context, ch *discordgo.Channel, eventType string) error {
	query := `
		INSERT INTO type_notifications (channel_id, type)
		VALUES ($1, $2)
		ON CONFLICT (channel_id, type) DO NOTHING
	`
	return r.exec(ctx, "TrackEventType", query, ch, eventType)
}

// UntrackEventType removes an event type subscription of a channel
func (r *NotificationRepository) UntrackEventType(ctx context.Context, ch *discordgo.Channel, eventType string) error {
	query := `DELETE FROM type_notifications WHERE channel_id = $1 AND type = $2`
	return r.exec(ctx, "UntrackEventType", query, ch, eventType)
}

// SetItemPing toggles pinging for an existing item subscription; no row, no change
func (r *NotificationRepository) SetItemPing(ctx context.Context, ch *discordgo.Channel, item string, ping bool) error {
	query := `UPDATE item_notifications SET ping = $3 WHERE channel_id = $1 AND item = $2`
	return r.exec(ctx, "SetItemPing", query, ch, item, ping)
}

// SetEventTypePing toggles pinging for an existing event type subscription; no row, no change
func (r *NotificationRepository) SetEventTypePing(ctx context.Context, ch *discordgo.Channel, eventType string, ping bool) error {
	query := `UPDATE type_notifications SET ping = $3 WHERE channel_id = $1 AND type = $2`
	return r.exec(ctx, "SetEventTypePing", query, ch, eventType, ping)
}

// StopTracking removes every event type subscription of a channel.
// Item subscriptions are kept.
func (r *NotificationRepository) StopTracking(ctx context.Context, ch *discordgo.Channel) error {
	return r.exec(ctx, "StopTracking", `DELETE FROM type_notifications WHERE channel_id = $1`, ch)
}

// GetTrackedItems lists the items a channel is subscribed to
func (r *NotificationRepository) GetTrackedItems(ctx context.Context, ch *discordgo.Channel) ([]string, error) {
	return r.listNames(ctx, "GetTrackedItems", `SELECT item FROM item_notifications WHERE channel_id = $1`, ch)
}

// GetTrackedEventTypes lists the event types a channel is subscribed to
func (r *NotificationRepository) GetTrackedEventTypes(ctx context.Context, ch *discordgo.Channel) ([]string, error) {
	return r.listNames(ctx, "GetTrackedEventTypes", `SELECT type FROM type_notifications WHERE channel_id = $1`, ch)
}

func (r *NotificationRepository) listNames(ctx context.Context, method, query string, ch *discordgo.Channel) (names []string, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "notifications", method)(&err)

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return nil, err
	}

	rows, err := r.q.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to %s for channel %s: %w", method, ch.ID, err)
	}
	defer rows.Close()

	names = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate names: %w", err)
	}

	return names, nil
}

// SetPing stores the text shown when itemOrType fires in a guild
func (r *NotificationRepository) SetPing(ctx context.Context, guild *discordgo.Guild, itemOrType, text string) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "notifications", "SetPing")(&err)

	guildID, err := parseSnowflake(guild.ID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pings (guild_id, item_or_type, text)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, item_or_type) DO UPDATE SET text = EXCLUDED.text
	`

	if _, err := r.q.Exec(ctx, query, guildID, itemOrType, text); err != nil {
		return fmt.Errorf("failed to set ping %s for guild %s: %w", itemOrType, guild.ID, err)
	}

	return nil
}

// RemovePing deletes the ping text for itemOrType in a guild
func (r *NotificationRepository) RemovePing(ctx context.Context, guild *discordgo.Guild, itemOrType string) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "notifications", "RemovePing")(&err)

	guildID, err := parseSnowflake(guild.ID)
	if err != nil {
		return err
	}

	if _, err := r.q.Exec(ctx, `DELETE FROM pings WHERE guild_id = $1 AND item_or_type = $2`, guildID, itemOrType); err != nil {
		return fmt.Errorf("failed to remove ping %s for guild %s: %w", itemOrType, guild.ID, err)
	}

	return nil
}

// GetPing returns the ping text for itemOrType, or "" if none is set
func (r *NotificationRepository) GetPing(ctx context.Context, guild *discordgo.Guild, itemOrType string) (text string, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "notifications", "GetPing")(&err)

	guildID, err := parseSnowflake(guild.ID)
	if err != nil {
		return "", err
	}

	query := `SELECT text FROM pings WHERE guild_id = $1 AND item_or_type = $2`
	err = r.q.QueryRow(ctx, query, guildID, itemOrType).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get ping %s for guild %s: %w", itemOrType, guild.ID, err)
	}

	return text, nil
}

// GetPings lists every ping text configured in a guild
func (r *NotificationRepository) GetPings(ctx context.Context, guild *discordgo.Guild) (pings []models.Ping, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "notifications", "GetPings")(&err)

	guildID, err := parseSnowflake(guild.ID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT item_or_type, text
		FROM pings
		WHERE guild_id = $1
		ORDER BY item_or_type
	`

	rows, err := r.q.Query(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pings for guild %s: %w", guild.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		ping := models.Ping{GuildID: guild.ID}
		if err := rows.Scan(&ping.ItemOrType, &ping.Text); err != nil {
			return nil, fmt.Errorf("failed to scan ping: %w", err)
		}
		pings = append(pings, ping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pings: %w", err)
	}

	return pings, nil
}

// GetNotifications returns each channel on this shard that should receive an
// event of eventType for platform, once, with its matching ping texts joined
// by newlines. With items, channels tracking any of them are included too.
// Channels outside any guild are on every shard.
func (r *NotificationRepository) GetNotifications(ctx context.Context, eventType, platform string, items []string) (notifications []models.Notification, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "notifications", "GetNotifications")(&err)

	query, args := notificationsQuery(eventType, platform, r.defaultPlatform, r.shardCount, r.shardID, items)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications for %s on %s: %w", eventType, platform, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			channelID    int64
			notification models.Notification
		)
		if err := rows.Scan(&channelID, &notification.Webhook, &notification.Ping); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notification.ChannelID = formatSnowflake(channelID)
		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}
