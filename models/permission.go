package models

// PermissionScope selects which override table a permission lives in
type PermissionScope string

const (
	ScopeChannel PermissionScope = "channel"
	ScopeGuild   PermissionScope = "guild"
)

// Permission is an allow/deny override of one command for a user or role,
// scoped to a channel or a whole guild.
type Permission struct {
	Scope     PermissionScope `db:"-"`
	ScopeID   string          `db:"channel_or_guild_id"`
	TargetID  string          `db:"target_id"`
	IsUser    bool            `db:"is_user"`
	CommandID string          `db:"command_id"`
	Allowed   bool            `db:"allowed"`
}
