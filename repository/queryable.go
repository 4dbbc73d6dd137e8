package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryable is satisfied by both *pgxpool.Pool and pgx.Tx
type Queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	// ErrPermissionNotFound is returned by member permission lookups with no stored override
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrInvalidSnowflake is returned when an id is not a decimal 64-bit integer
	ErrInvalidSnowflake = errors.New("invalid snowflake")
)

// parseSnowflake converts a platform id string to the BIGINT it is stored as
func parseSnowflake(id string) (int64, error) {
	value, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSnowflake, id)
	}
	return value, nil
}

func parseSnowflakes(ids []string) ([]int64, error) {
	values := make([]int64, 0, len(ids))
	for _, id := range ids {
		value, err := parseSnowflake(id)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func formatSnowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

// isDMChannel reports whether a channel lives outside any guild
func isDMChannel(ch *discordgo.Channel) bool {
	return ch.Type == discordgo.ChannelTypeDM || ch.Type == discordgo.ChannelTypeGroupDM || ch.GuildID == ""
}

// isTextChannel reports whether a guild channel can receive bot messages
func isTextChannel(ch *discordgo.Channel) bool {
	return ch.Type == discordgo.ChannelTypeGuildText || ch.Type == discordgo.ChannelTypeGuildNews
}

// guildTextChannels returns the text channels of a guild as seen by the platform
func guildTextChannels(guild *discordgo.Guild) []*discordgo.Channel {
	var channels []*discordgo.Channel
	for _, ch := range guild.Channels {
		if ch != nil && isTextChannel(ch) {
			channels = append(channels, ch)
		}
	}
	return channels
}
