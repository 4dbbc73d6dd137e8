package models

// Channel is a registered message venue. GuildID is nil for direct and group messages.
type Channel struct {
	ID       string  `db:"id"`
	GuildID  *string `db:"guild_id"`
	Webhook  *string `db:"webhook"`  // Nullable - webhook reference used for notification delivery
	Platform *string `db:"platform"` // Nullable - falls back to the platform setting, then the default
}

// IsDM reports whether the channel belongs to no guild
func (c *Channel) IsDM() bool {
	return c.GuildID == nil || *c.GuildID == "" || *c.GuildID == "0"
}
