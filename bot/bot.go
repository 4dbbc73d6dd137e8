package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// handlerTimeout bounds the store work done for a single gateway event
const handlerTimeout = 30 * time.Second

// Store is the part of the persistence layer the gateway handlers drive
type Store interface {
	EnsureData(ctx context.Context, guilds []*discordgo.Guild)
	AddGuild(ctx context.Context, guild *discordgo.Guild) error
	RemoveGuild(ctx context.Context, guild *discordgo.Guild) error
	AddGuildTextChannel(ctx context.Context, ch *discordgo.Channel) error
	AddDMChannel(ctx context.Context, ch *discordgo.Channel) error
	DeleteChannel(ctx context.Context, ch *discordgo.Channel) error
}

// Config holds bot configuration
type Config struct {
	Token      string
	ShardID    int
	ShardCount int
}

type Bot struct {
	session *discordgo.Session
	store   Store
	logger  log.FieldLogger
}

// New opens a gateway session for one shard and keeps the channel registry
// in step with the guilds and channels it sees.
func New(config Config, store Store) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages
	if config.ShardCount > 1 {
		dg.ShardID = config.ShardID
		dg.ShardCount = config.ShardCount
	}

	bot := newBot(config, dg, store)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	bot.logger.Info("Gateway connection opened")
	return bot, nil
}

func newBot(config Config, session *discordgo.Session, store Store) *Bot {
	bot := &Bot{
		session: session,
		store:   store,
		logger: log.WithFields(log.Fields{
			"shard_id":    config.ShardID,
			"shard_count": config.ShardCount,
		}),
	}

	session.AddHandler(bot.handleReady)
	session.AddHandler(bot.handleGuildCreate)
	session.AddHandler(bot.handleGuildDelete)
	session.AddHandler(bot.handleChannelCreate)
	session.AddHandler(bot.handleChannelDelete)

	return bot
}

// Close closes the gateway connection
func (b *Bot) Close() error {
	return b.session.Close()
}
