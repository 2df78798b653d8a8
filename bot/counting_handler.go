package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"arcade/events"
	"arcade/models"
)

func (b *Bot) handleCounting(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		b.respondWithError(s, i, "Please specify a subcommand: channel, strict, policy or status")
		return
	}

	switch options[0].Name {
	case "channel":
		b.handleCountingChannel(s, i, options[0].Options)
	case "strict":
		b.handleCountingStrict(s, i, options[0].Options)
	case "policy":
		b.handleCountingPolicy(s, i, options[0].Options)
	case "status":
		b.handleCountingStatus(s, i)
	default:
		b.respondWithError(s, i, "Unknown subcommand")
	}
}

func (b *Bot) handleCountingChannel(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	var channelID int64
	if opt, ok := optionMap(options)["channel"]; ok {
		channel := opt.ChannelValue(s)
		if channel == nil {
			b.respondWithError(s, i, "Invalid channel.")
			return
		}
		if channelID, err = parseSnowflake(channel.ID); err != nil {
			log.WithError(err).Error("Error parsing channel ID")
			b.respondWithError(s, i, "Unable to process request. Please try again.")
			return
		}
	}

	if err := b.engine.Counting.SetChannel(ctx, guildID, channelID); err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	if channelID == 0 {
		b.respondEphemeral(s, i, "Counting disabled.")
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("Counting now runs in %s. The chain starts over at **1**.", channelMention(channelID)))
}

func (b *Bot) handleCountingStrict(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	strict := optionMap(options)["enabled"].BoolValue()
	if err := b.engine.Counting.SetStrict(ctx, guildID, strict); err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	if strict {
		b.respondEphemeral(s, i, "Strict mode on. The same member can no longer count twice in a row.")
		return
	}
	b.respondEphemeral(s, i, "Strict mode off. Solo counting is allowed.")
}

func (b *Bot) handleCountingPolicy(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	policy := models.FailPolicy(optionMap(options)["policy"].StringValue())
	if err := b.engine.Counting.SetPolicy(ctx, guildID, policy); err != nil {
		b.respondServiceError(s, i, err)
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("Fail policy set to **%s**.", policy))
}

func (b *Bot) handleCountingStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	counting, boundChannel, err := b.engine.Counting.Status(ctx, guildID)
	if err != nil {
		log.WithError(err).Error("Error loading counting status")
		b.respondWithError(s, i, "Unable to load the counting state. Please try again.")
		return
	}

	channel := "not set"
	if boundChannel != 0 {
		channel = channelMention(boundChannel)
	}
	strict := "off"
	if counting.Strict {
		strict = "on"
	}

	embed := &discordgo.MessageEmbed{
		Title: "🔢 Counting",
		Color: 0x9b59b6,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Channel", Value: channel, Inline: true},
			{Name: "Next number", Value: fmt.Sprintf("**%d**", counting.Count+1), Inline: true},
			{Name: "High score", Value: fmt.Sprintf("%d", counting.HighScore), Inline: true},
			{Name: "Strict mode", Value: strict, Inline: true},
			{Name: "Fail policy", Value: string(counting.Policy), Inline: true},
		},
	}
	b.respondEmbed(s, i, embed)
}

// handleMessage feeds channel messages into the counting chain. Non-count
// chatter is ignored by the engine, so this fires on every guild message.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	guildID, err := parseSnowflake(m.GuildID)
	if err != nil {
		return
	}
	channelID, err := parseSnowflake(m.ChannelID)
	if err != nil {
		return
	}
	userID, err := parseSnowflake(m.Author.ID)
	if err != nil {
		return
	}

	ctx := context.Background()
	outcome, handled, err := b.engine.Counting.HandleMessage(ctx, guildID, channelID, userID, m.Content)
	if err != nil {
		log.WithError(err).WithField("guild", guildID).Error("Error handling counting message")
		return
	}
	if !handled {
		return
	}

	reaction := "✅"
	if !outcome.Accepted {
		reaction = "❌"
	}
	if err := s.MessageReactionAdd(m.ChannelID, m.ID, reaction); err != nil {
		log.WithError(err).Debug("Cannot react to counting message")
	}

	if outcome.Announce {
		text := fmt.Sprintf("💥 %s broke the chain! The count starts over at **1**.", m.Author.Mention())
		if _, err := s.ChannelMessageSend(m.ChannelID, text); err != nil {
			log.WithError(err).Debug("Cannot announce counting break")
		}
	}
}

// announceCountMilestone celebrates milestone counts in the counting channel.
func (b *Bot) announceCountMilestone(event events.CountMilestoneEvent) {
	text := fmt.Sprintf("🎉 %s just hit **%d**!", mention(event.UserID), event.Count)
	if event.NewHighScore {
		text += " A new server record!"
	}
	if _, err := b.session.ChannelMessageSend(formatSnowflake(event.ChannelID), text); err != nil {
		log.WithError(err).WithField("channel", event.ChannelID).Error("Error announcing count milestone")
	}
}
