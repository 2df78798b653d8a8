package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"arcade/models"
)

func (b *Bot) handleAdmin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		b.respondWithError(s, i, "Please specify a subcommand")
		return
	}

	switch options[0].Name {
	case "coins":
		b.handleAdminCoins(s, i, options[0].Options)
	case "mute":
		b.handleAdminMute(s, i, options[0].Options)
	case "unmute":
		b.handleAdminUnmute(s, i, options[0].Options)
	case "bind":
		b.handleAdminBind(s, i, options[0].Options)
	case "selfrole":
		b.handleAdminSelfrole(s, i, options[0].Options)
	default:
		b.respondWithError(s, i, "Unknown subcommand")
	}
}

// handleAdminCoins dispatches the coins subcommand group.
func (b *Bot) handleAdminCoins(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}
	if len(options) == 0 {
		b.respondWithError(s, i, "Please specify a coins subcommand")
		return
	}

	sub := options[0]
	opts := optionMap(sub.Options)

	if sub.Name == "giveall" {
		amount := opts["amount"].IntValue()
		credited, err := b.engine.Ledger.GiveAll(ctx, guildID, amount)
		if err != nil {
			b.respondServiceError(s, i, err)
			return
		}
		b.respondEphemeral(s, i, fmt.Sprintf("✅ Gave **%s coins** to %d members.", FormatBalance(amount), credited))
		return
	}

	target := opts["user"].UserValue(s)
	if target == nil {
		b.respondWithError(s, i, "Invalid user.")
		return
	}
	targetID, err := parseSnowflake(target.ID)
	if err != nil {
		log.WithError(err).Error("Error parsing target user ID")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}
	amount := opts["amount"].IntValue()
	name := GetDisplayName(s, i.GuildID, target.ID)

	var balance int64
	var verb string
	switch sub.Name {
	case "add":
		balance, err = b.engine.Ledger.AddCoins(ctx, guildID, targetID, amount)
		verb = fmt.Sprintf("Added **%s coins** to", FormatBalance(amount))
	case "remove":
		balance, err = b.engine.Ledger.RemoveCoins(ctx, guildID, targetID, amount)
		verb = fmt.Sprintf("Removed **%s coins** from", FormatBalance(amount))
	case "set":
		balance, err = b.engine.Ledger.SetBalance(ctx, guildID, targetID, amount)
		verb = "Set the balance of"
	default:
		b.respondWithError(s, i, "Unknown coins subcommand")
		return
	}
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	b.respondEphemeral(s, i, fmt.Sprintf("✅ %s **%s**. New balance: **%s coins**.", verb, name, FormatBalance(balance)))
}

// handleAdminMute records the mute in the engine, which schedules the expiry,
// and mirrors it as a Discord timeout so the member actually goes quiet.
func (b *Bot) handleAdminMute(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	opts := optionMap(options)
	target := opts["user"].UserValue(s)
	minutes := opts["minutes"].IntValue()
	if target == nil {
		b.respondWithError(s, i, "Invalid user.")
		return
	}
	if minutes < 1 {
		b.respondWithError(s, i, "The mute must last at least a minute.")
		return
	}

	targetID, err := parseSnowflake(target.ID)
	if err != nil {
		log.WithError(err).Error("Error parsing target user ID")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	expiry, err := b.engine.Guilds.Mute(ctx, guildID, targetID, time.Duration(minutes)*time.Minute)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	if err := s.GuildMemberTimeout(i.GuildID, target.ID, &expiry); err != nil {
		log.WithError(err).WithField("user", targetID).Warn("Error applying Discord timeout")
	}

	b.respondEphemeral(s, i, fmt.Sprintf("🔇 **%s** is muted until %s.",
		GetDisplayName(s, i.GuildID, target.ID), FormatDiscordTimestamp(expiry, "f")))
}

func (b *Bot) handleAdminUnmute(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	target := optionMap(options)["user"].UserValue(s)
	if target == nil {
		b.respondWithError(s, i, "Invalid user.")
		return
	}
	targetID, err := parseSnowflake(target.ID)
	if err != nil {
		log.WithError(err).Error("Error parsing target user ID")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	lifted, err := b.engine.Guilds.Unmute(ctx, guildID, targetID)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}
	if !lifted {
		b.respondEphemeral(s, i, "They are not muted.")
		return
	}

	if err := s.GuildMemberTimeout(i.GuildID, target.ID, nil); err != nil {
		log.WithError(err).WithField("user", targetID).Warn("Error clearing Discord timeout")
	}
	b.respondEphemeral(s, i, fmt.Sprintf("🔊 **%s** can speak again.", GetDisplayName(s, i.GuildID, target.ID)))
}

func (b *Bot) handleAdminBind(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	opts := optionMap(options)
	kind := models.ChannelKind(opts["feature"].StringValue())

	var channelID int64
	if opt, ok := opts["channel"]; ok {
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

	if err := b.engine.Guilds.BindChannel(ctx, guildID, kind, channelID); err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	if channelID == 0 {
		b.respondEphemeral(s, i, fmt.Sprintf("Cleared the %s channel.", kind))
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("Bound %s to %s.", kind, channelMention(channelID)))
}

// handleAdminSelfrole dispatches the selfrole subcommand group.
func (b *Bot) handleAdminSelfrole(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}
	if len(options) == 0 {
		b.respondWithError(s, i, "Please specify a selfrole subcommand")
		return
	}

	sub := options[0]
	opts := optionMap(sub.Options)

	messageID, err := parseSnowflake(opts["message"].StringValue())
	if err != nil {
		b.respondWithError(s, i, "That doesn't look like a message ID.")
		return
	}

	switch sub.Name {
	case "add":
		emoji := opts["emoji"].StringValue()
		role := opts["role"].RoleValue(s, i.GuildID)
		if role == nil {
			b.respondWithError(s, i, "Invalid role.")
			return
		}
		roleID, err := parseSnowflake(role.ID)
		if err != nil {
			log.WithError(err).Error("Error parsing role ID")
			b.respondWithError(s, i, "Unable to process request. Please try again.")
			return
		}
		if err := b.engine.Guilds.BindSelfRole(ctx, guildID, messageID, emoji, roleID); err != nil {
			b.respondServiceError(s, i, err)
			return
		}
		b.respondEphemeral(s, i, fmt.Sprintf("Reacting with %s on that message now grants %s.", emoji, roleMention(roleID)))

	case "remove":
		emoji := ""
		if opt, ok := opts["emoji"]; ok {
			emoji = opt.StringValue()
		}
		removed, err := b.engine.Guilds.UnbindSelfRole(ctx, guildID, messageID, emoji)
		if err != nil {
			b.respondServiceError(s, i, err)
			return
		}
		if !removed {
			b.respondEphemeral(s, i, "No such binding.")
			return
		}
		if emoji == "" {
			b.respondEphemeral(s, i, "Cleared every reaction role on that message.")
			return
		}
		b.respondEphemeral(s, i, fmt.Sprintf("Removed the %s binding.", emoji))

	default:
		b.respondWithError(s, i, "Unknown selfrole subcommand")
	}
}
