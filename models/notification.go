package models

// Notification is one channel that should receive an event, with the
// newline-joined ping texts configured for it. Ping is "" when nothing should be pinged.
type Notification struct {
	ChannelID string  `db:"id"`
	Webhook   *string `db:"webhook"`
	Ping      string  `db:"ping"`
}

// Ping is custom text shown when a notification fires for an item or event type in a guild
type Ping struct {
	GuildID    string `db:"guild_id"`
	ItemOrType string `db:"item_or_type"`
	Text       string `db:"text"`
}
