package bot

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"arcade/events"
	"arcade/service"

	"github.com/bwmarrin/discordgo"
)

// Config holds bot configuration
type Config struct {
	Token string
	// GuildID scopes command registration to a single guild when set. An
	// empty value registers the commands globally, which Discord rolls out
	// slowly.
	GuildID string
}

// Bot is the Discord facade over the engine. It holds no game or economy
// state of its own: every command resolves to an engine operation and every
// reply is rendered from that operation's result, so a restart loses nothing
// beyond in-flight interactions.
type Bot struct {
	config   Config
	session  *discordgo.Session
	engine   *service.Engine
	handlers map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)
}

// New creates the Discord session, opens the gateway connection and registers
// the slash commands. The engine must already be rehydrated and started.
func New(config Config, engine *service.Engine) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentMessageContent

	bot := &Bot{
		config:  config,
		session: dg,
		engine:  engine,
	}
	bot.handlers = bot.commandHandlers()

	// Register slash command handlers
	dg.AddHandler(bot.handleCommands)

	// Counting runs on plain channel messages, giveaway entries and
	// self-roles on reactions
	dg.AddHandler(bot.handleMessage)
	dg.AddHandler(bot.handleReactionAdd)
	dg.AddHandler(bot.handleReactionRemove)

	// Open websocket connection
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	// Register slash commands with Discord
	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	bot.subscribeAnnouncements()

	log.WithField("username", dg.State.User.Username).Info("Bot connected")
	return bot, nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// handleCommands routes an application command to its registered handler.
func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	handler, ok := b.handlers[name]
	if !ok {
		log.WithField("command", name).Warn("Received command with no handler")
		return
	}
	handler(s, i)
}

// subscribeAnnouncements relays engine events back into Discord. The engine
// emits these from timer fires as well as from commands, so announcements
// still happen when nobody triggered the operation interactively.
func (b *Bot) subscribeAnnouncements() {
	b.engine.Bus.Subscribe(events.EventTypeGiveawayEnded, func(ctx context.Context, event events.Event) {
		if ended, ok := event.(events.GiveawayEndedEvent); ok {
			b.announceGiveawayEnded(ended)
		}
	})
	b.engine.Bus.Subscribe(events.EventTypeCountMilestone, func(ctx context.Context, event events.Event) {
		if milestone, ok := event.(events.CountMilestoneEvent); ok {
			b.announceCountMilestone(milestone)
		}
	})
	b.engine.Bus.Subscribe(events.EventTypeCooldownElapsed, func(ctx context.Context, event events.Event) {
		if elapsed, ok := event.(events.CooldownElapsedEvent); ok {
			b.notifyCooldownElapsed(elapsed)
		}
	})
}
