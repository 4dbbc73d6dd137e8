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

// PermissionRepository stores command allow/deny overrides for users and
// roles at channel and guild scope.
//
// Precedence is channel override, then guild override, then allowed.
// Member lookups fail with ErrPermissionNotFound when nothing is stored;
// role lookups default to allowed.
type PermissionRepository struct {
	q       Queryable
	metrics *observability.MetricsProvider
}

func newPermissionRepository(q Queryable, metrics *observability.MetricsProvider) *PermissionRepository {
	return &PermissionRepository{q: q, metrics: metrics}
}

// permissionTable maps a scope to its table and scope column
func permissionTable(scope models.PermissionScope) (table, column string) {
	if scope == models.ScopeGuild {
		return "guild_permissions", "guild_id"
	}
	return "channel_permissions", "channel_id"
}

func (r *PermissionRepository) set(ctx context.Context, method string, scope models.PermissionScope, scopeID, targetID string, isUser bool, commandID string, allowed bool) (err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "permissions", method)(&err)

	scopeValue, err := parseSnowflake(scopeID)
	if err != nil {
		return err
	}
	targetValue, err := parseSnowflake(targetID)
	if err != nil {
		return err
	}

	table, column := permissionTable(scope)
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, target_id, is_user, command_id, allowed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (%[2]s, target_id, command_id)
		DO UPDATE SET is_user = EXCLUDED.is_user, allowed = EXCLUDED.allowed
	`, table, column)

	if _, err := r.q.Exec(ctx, query, scopeValue, targetValue, isUser, commandID, allowed); err != nil {
		return fmt.Errorf("failed to set %s permission for %s in %s: %w", scope, targetID, scopeID, err)
	}

	return nil
}

// get looks up one override. found is false when no row exists.
func (r *PermissionRepository) get(ctx context.Context, method string, scope models.PermissionScope, scopeID, targetID string, isUser bool, commandID string) (allowed, found bool, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "permissions", method)(&err)

	scopeValue, err := parseSnowflake(scopeID)
	if err != nil {
		return false, false, err
	}
	targetValue, err := parseSnowflake(targetID)
	if err != nil {
		return false, false, err
	}

	table, column := permissionTable(scope)
	query := fmt.Sprintf(`
		SELECT allowed
		FROM %s
		WHERE %s = $1 AND target_id = $2 AND is_user = $3 AND command_id = $4
	`, table, column)

	err = r.q.QueryRow(ctx, query, scopeValue, targetValue, isUser, commandID).Scan(&allowed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to get %s permission for %s in %s: %w", scope, targetID, scopeID, err)
	}

	return allowed, true, nil
}

// SetChannelPermissionForMember stores a member override for a command in a channel
func (r *PermissionRepository) SetChannelPermissionForMember(ctx context.Context, ch *discordgo.Channel, userID, commandID string, allowed bool) error {
	return r.set(ctx, "SetChannelPermissionForMember", models.ScopeChannel, ch.ID, userID, true, commandID, allowed)
}

// SetChannelPermissionForRole stores a role override for a command in a channel
func (r *PermissionRepository) SetChannelPermissionForRole(ctx context.Context, ch *discordgo.Channel, roleID, commandID string, allowed bool) error {
	return r.set(ctx, "SetChannelPermissionForRole", models.ScopeChannel, ch.ID, roleID, false, commandID, allowed)
}

// SetGuildPermissionForMember stores a member override for a command in a guild
func (r *PermissionRepository) SetGuildPermissionForMember(ctx context.Context, guild *discordgo.Guild, userID, commandID string, allowed bool) error {
	return r.set(ctx, "SetGuildPermissionForMember", models.ScopeGuild, guild.ID, userID, true, commandID, allowed)
}

// SetGuildPermissionForRole stores a role override for a command in a guild
func (r *PermissionRepository) SetGuildPermissionForRole(ctx context.Context, guild *discordgo.Guild, roleID, commandID string, allowed bool) error {
	return r.set(ctx, "SetGuildPermissionForRole", models.ScopeGuild, guild.ID, roleID, false, commandID, allowed)
}

// GetChannelPermissionForMember returns ErrPermissionNotFound when the member has no override in the channel
func (r *PermissionRepository) GetChannelPermissionForMember(ctx context.Context, ch *discordgo.Channel, userID, commandID string) (bool, error) {
	allowed, found, err := r.get(ctx, "GetChannelPermissionForMember", models.ScopeChannel, ch.ID, userID, true, commandID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("%w: channel %s member %s command %s", ErrPermissionNotFound, ch.ID, userID, commandID)
	}
	return allowed, nil
}

// GetGuildPermissionForMember returns ErrPermissionNotFound when the member has no override in the guild
func (r *PermissionRepository) GetGuildPermissionForMember(ctx context.Context, guild *discordgo.Guild, userID, commandID string) (bool, error) {
	allowed, found, err := r.get(ctx, "GetGuildPermissionForMember", models.ScopeGuild, guild.ID, userID, true, commandID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("%w: guild %s member %s command %s", ErrPermissionNotFound, guild.ID, userID, commandID)
	}
	return allowed, nil
}

// GetChannelPermissionForRole returns true when the role has no override in the channel
func (r *PermissionRepository) GetChannelPermissionForRole(ctx context.Context, ch *discordgo.Channel, roleID, commandID string) (bool, error) {
	allowed, found, err := r.get(ctx, "GetChannelPermissionForRole", models.ScopeChannel, ch.ID, roleID, false, commandID)
	if err != nil || !found {
		return true, err
	}
	return allowed, nil
}

// GetGuildPermissionForRole returns true when the role has no override in the guild
func (r *PermissionRepository) GetGuildPermissionForRole(ctx context.Context, guild *discordgo.Guild, roleID, commandID string) (bool, error) {
	allowed, found, err := r.get(ctx, "GetGuildPermissionForRole", models.ScopeGuild, guild.ID, roleID, false, commandID)
	if err != nil || !found {
		return true, err
	}
	return allowed, nil
}

// GetChannelPermissionForUserRoles resolves a command for a member through the
// roles they hold, including the guild's @everyone role. Candidates are the
// channel overrides of those roles plus the guild overrides that no channel
// override replaces. Any denying candidate denies; no candidate allows.
func (r *PermissionRepository) GetChannelPermissionForUserRoles(ctx context.Context, ch *discordgo.Channel, member *discordgo.Member, commandID string) (allowed bool, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "permissions", "GetChannelPermissionForUserRoles")(&err)

	if isDMChannel(ch) {
		return true, nil
	}

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return false, err
	}
	guildID, err := parseSnowflake(ch.GuildID)
	if err != nil {
		return false, err
	}

	roles := []int64{guildID}
	if member != nil {
		memberRoles, err := parseSnowflakes(member.Roles)
		if err != nil {
			return false, err
		}
		roles = append(roles, memberRoles...)
	}

	query := `
		SELECT bool_and(allowed)
		FROM (
			SELECT cp.allowed
			FROM channel_permissions cp
			WHERE cp.channel_id = $1
			  AND cp.command_id = $3
			  AND cp.is_user = FALSE
			  AND cp.target_id = ANY($4::bigint[])
			UNION ALL
			SELECT gp.allowed
			FROM guild_permissions gp
			WHERE gp.guild_id = $2
			  AND gp.command_id = $3
			  AND gp.is_user = FALSE
			  AND gp.target_id = ANY($4::bigint[])
			  AND NOT EXISTS (
				SELECT 1
				FROM channel_permissions cpo
				WHERE cpo.channel_id = $1
				  AND cpo.target_id = gp.target_id
				  AND cpo.command_id = gp.command_id
			  )
		) AS candidates
	`

	var result *bool
	if err := r.q.QueryRow(ctx, query, channelID, guildID, commandID, roles).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to resolve role permission for command %s in channel %s: %w", commandID, ch.ID, err)
	}

	if result == nil {
		return true, nil
	}
	return *result, nil
}

// GetChannelPermissions lists every override stored for a channel
func (r *PermissionRepository) GetChannelPermissions(ctx context.Context, ch *discordgo.Channel) (permissions []models.Permission, err error) {
	defer r.metrics.MeasureDatabaseQuery(ctx, "permissions", "GetChannelPermissions")(&err)

	channelID, err := parseSnowflake(ch.ID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT target_id, is_user, command_id, allowed
		FROM channel_permissions
		WHERE channel_id = $1
		ORDER BY command_id, target_id
	`

	rows, err := r.q.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions for channel %s: %w", ch.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var targetID int64
		permission := models.Permission{Scope: models.ScopeChannel, ScopeID: ch.ID}
		if err := rows.Scan(&targetID, &permission.IsUser, &permission.CommandID, &permission.Allowed); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permission.TargetID = formatSnowflake(targetID)
		permissions = append(permissions, permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	return permissions, nil
}
