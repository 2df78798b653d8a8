package bot

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"arcade/models"
)

// respond sends a plain channel-visible interaction response.
func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
	if err != nil {
		log.WithError(err).Error("Error sending interaction response")
	}
}

// respondEphemeral sends a response only the invoker can see.
func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.WithError(err).Error("Error sending ephemeral response")
	}
}

// respondEmbed sends an embed as the interaction response.
func (b *Bot) respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
	if err != nil {
		log.WithError(err).Error("Error sending embed response")
	}
}

func (b *Bot) respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "❌ " + message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.WithError(err).Error("Error sending error response")
	}
}

// respondServiceError translates an engine failure into an ephemeral reply.
func (b *Bot) respondServiceError(s *discordgo.Session, i *discordgo.InteractionCreate, opErr error) {
	log.WithError(opErr).WithField("command", i.ApplicationCommandData().Name).Debug("Command rejected")
	b.respondWithError(s, i, userError(opErr))
}

// userError maps engine errors onto player-facing sentences. Unknown errors
// deliberately stay vague so internals never leak into chat.
func userError(err error) string {
	var cooldown *models.CooldownError
	switch {
	case errors.As(err, &cooldown):
		return fmt.Sprintf("You need to wait **%s** before doing that again.", formatDuration(cooldown.Remaining))
	case errors.Is(err, models.ErrInsufficientFunds):
		return "You don't have enough coins for that."
	case errors.Is(err, models.ErrUnknownItem):
		return "That item is not in the shop."
	case errors.Is(err, models.ErrAlreadyOwned):
		return "You already own that item."
	case errors.Is(err, models.ErrSessionConflict):
		return "A game is already running in this channel. Finish or abort it first."
	case errors.Is(err, models.ErrNoActiveSession):
		return "Nothing like that is running here."
	case errors.Is(err, models.ErrIllegalAction):
		return "You can't do that."
	default:
		return "Something went wrong. Please try again."
	}
}

// parseSnowflake converts a Discord string ID to int64.
func parseSnowflake(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

func formatSnowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

// interactionUser returns the invoking user for both guild and DM
// interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

// interactionIDs parses the guild, channel and invoker IDs of a guild
// interaction.
func interactionIDs(i *discordgo.InteractionCreate) (guildID, channelID, userID int64, err error) {
	if i.GuildID == "" {
		return 0, 0, 0, fmt.Errorf("interaction outside a guild")
	}
	if guildID, err = parseSnowflake(i.GuildID); err != nil {
		return 0, 0, 0, fmt.Errorf("bad guild id %q: %w", i.GuildID, err)
	}
	if channelID, err = parseSnowflake(i.ChannelID); err != nil {
		return 0, 0, 0, fmt.Errorf("bad channel id %q: %w", i.ChannelID, err)
	}
	user := interactionUser(i)
	if user == nil {
		return 0, 0, 0, fmt.Errorf("interaction without a user")
	}
	if userID, err = parseSnowflake(user.ID); err != nil {
		return 0, 0, 0, fmt.Errorf("bad user id %q: %w", user.ID, err)
	}
	return guildID, channelID, userID, nil
}

// optionMap indexes interaction options by name.
func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}
