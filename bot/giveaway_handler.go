package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"arcade/events"
	"arcade/models"
)

// giveawayEmoji is the reaction members use to enter a giveaway.
const giveawayEmoji = "🎉"

func (b *Bot) handleGiveaway(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		b.respondWithError(s, i, "Please specify a subcommand: start, end, reroll or cancel")
		return
	}

	switch options[0].Name {
	case "start":
		b.handleGiveawayStart(s, i, options[0].Options)
	case "end":
		b.handleGiveawayEnd(s, i, options[0].Options)
	case "reroll":
		b.handleGiveawayReroll(s, i, options[0].Options)
	case "cancel":
		b.handleGiveawayCancel(s, i, options[0].Options)
	default:
		b.respondWithError(s, i, "Unknown subcommand")
	}
}

// handleGiveawayStart posts the announcement message first because its ID
// keys the giveaway, then opens the giveaway against that ID.
func (b *Bot) handleGiveawayStart(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, channelID, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	opts := optionMap(options)
	prize := opts["prize"].StringValue()
	winners := int(opts["winners"].IntValue())
	minutes := opts["minutes"].IntValue()

	if winners < 1 || winners > models.MaxGiveawayWinners {
		b.respondWithError(s, i, fmt.Sprintf("Winner count must be between 1 and %d.", models.MaxGiveawayWinners))
		return
	}
	if minutes < 1 {
		b.respondWithError(s, i, "The giveaway must run for at least a minute.")
		return
	}
	duration := time.Duration(minutes) * time.Minute

	announcement, err := s.ChannelMessageSendEmbed(i.ChannelID, &discordgo.MessageEmbed{
		Title: "🎉 Giveaway!",
		Color: 0xe91e63,
		Description: fmt.Sprintf("**%s**\nReact with %s to enter!\nWinners: **%d**. Ends %s.",
			prize, giveawayEmoji, winners, FormatDiscordTimestamp(time.Now().Add(duration), "R")),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Hosted by %s", GetDisplayName(s, i.GuildID, interactionUser(i).ID)),
		},
	})
	if err != nil {
		log.WithError(err).Error("Error posting giveaway announcement")
		b.respondWithError(s, i, "Unable to post the giveaway. Please try again.")
		return
	}

	messageID, err := parseSnowflake(announcement.ID)
	if err != nil {
		log.WithError(err).Error("Error parsing announcement message ID")
		b.respondWithError(s, i, "Unable to start the giveaway. Please try again.")
		return
	}

	if _, err := b.engine.Giveaways.Start(ctx, guildID, channelID, messageID, userID, prize, winners, duration); err != nil {
		// The announcement is orphaned without a giveaway behind it.
		if delErr := s.ChannelMessageDelete(i.ChannelID, announcement.ID); delErr != nil {
			log.WithError(delErr).Warn("Error removing orphaned giveaway announcement")
		}
		b.respondServiceError(s, i, err)
		return
	}

	if err := s.MessageReactionAdd(i.ChannelID, announcement.ID, giveawayEmoji); err != nil {
		log.WithError(err).Warn("Error seeding giveaway reaction")
	}

	b.respondEphemeral(s, i, fmt.Sprintf("Giveaway started. End it early with `/giveaway end message:%s`.", announcement.ID))
}

func (b *Bot) handleGiveawayEnd(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	messageID, err := parseSnowflake(optionMap(options)["message"].StringValue())
	if err != nil {
		b.respondWithError(s, i, "That doesn't look like a message ID.")
		return
	}

	// The winner announcement rides on the giveaway-ended event.
	if _, err := b.engine.Giveaways.End(ctx, guildID, messageID); err != nil {
		b.respondServiceError(s, i, err)
		return
	}
	b.respondEphemeral(s, i, "Giveaway ended, winners drawn.")
}

func (b *Bot) handleGiveawayReroll(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	messageID, err := parseSnowflake(optionMap(options)["message"].StringValue())
	if err != nil {
		b.respondWithError(s, i, "That doesn't look like a message ID.")
		return
	}

	if _, err := b.engine.Giveaways.Reroll(ctx, guildID, messageID); err != nil {
		b.respondServiceError(s, i, err)
		return
	}
	b.respondEphemeral(s, i, "Winners rerolled.")
}

func (b *Bot) handleGiveawayCancel(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	messageID, err := parseSnowflake(optionMap(options)["message"].StringValue())
	if err != nil {
		b.respondWithError(s, i, "That doesn't look like a message ID.")
		return
	}

	if err := b.engine.Giveaways.Cancel(ctx, guildID, messageID); err != nil {
		b.respondServiceError(s, i, err)
		return
	}
	b.respond(s, i, "🚫 Giveaway cancelled. Nothing was drawn.")
}

// announceGiveawayEnded posts the winners into the giveaway's channel. Fired
// from the event bus, so timer-driven endings announce exactly like manual
// ones.
func (b *Bot) announceGiveawayEnded(event events.GiveawayEndedEvent) {
	var message string
	switch {
	case len(event.Winners) == 0:
		message = fmt.Sprintf("🎉 The giveaway for **%s** ended with no entrants. Nobody wins.", event.Prize)
	case event.Rerolled:
		message = fmt.Sprintf("🎲 Rerolled! Congratulations %s, you now win **%s**!", mentionList(event.Winners), event.Prize)
	default:
		message = fmt.Sprintf("🎉 Congratulations %s! You won **%s**!", mentionList(event.Winners), event.Prize)
	}

	if _, err := b.session.ChannelMessageSend(formatSnowflake(event.ChannelID), message); err != nil {
		log.WithError(err).WithField("channel", event.ChannelID).Error("Error announcing giveaway result")
	}
}
