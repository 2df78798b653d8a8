package bot

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"arcade/models"
)

// handleReactionAdd feeds reactions into giveaway entries and self-roles.
// The same emoji may serve both, so a failed giveaway lookup falls through to
// the self-role check.
func (b *Bot) handleReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" || r.UserID == s.State.User.ID {
		return
	}

	guildID, messageID, userID, ok := reactionIDs(r.MessageReaction)
	if !ok {
		return
	}
	ctx := context.Background()

	if r.Emoji.Name == giveawayEmoji {
		entered, err := b.engine.Giveaways.Enter(ctx, guildID, messageID, userID)
		switch {
		case err == nil:
			if entered {
				log.WithFields(log.Fields{"user": userID, "message": messageID}).Debug("Giveaway entry")
			}
			return
		case errors.Is(err, models.ErrNoActiveSession):
			// Not a giveaway message, maybe a self-role one.
		default:
			log.WithError(err).WithField("message", messageID).Error("Error entering giveaway")
			return
		}
	}

	roleID, bound, err := b.engine.Guilds.ReactionRole(ctx, guildID, messageID, r.Emoji.Name)
	if err != nil {
		log.WithError(err).WithField("message", messageID).Error("Error resolving reaction role")
		return
	}
	if !bound {
		return
	}
	if err := s.GuildMemberRoleAdd(r.GuildID, r.UserID, formatSnowflake(roleID)); err != nil {
		log.WithError(err).WithFields(log.Fields{"user": userID, "role": roleID}).Error("Error granting self-role")
	}
}

// handleReactionRemove mirrors handleReactionAdd: leaving the giveaway and
// revoking the self-role.
func (b *Bot) handleReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.GuildID == "" || r.UserID == s.State.User.ID {
		return
	}

	guildID, messageID, userID, ok := reactionIDs(r.MessageReaction)
	if !ok {
		return
	}
	ctx := context.Background()

	if r.Emoji.Name == giveawayEmoji {
		withdrawn, err := b.engine.Giveaways.Withdraw(ctx, guildID, messageID, userID)
		switch {
		case err == nil:
			if withdrawn {
				log.WithFields(log.Fields{"user": userID, "message": messageID}).Debug("Giveaway withdrawal")
			}
			return
		case errors.Is(err, models.ErrNoActiveSession):
			// Not a giveaway message, maybe a self-role one.
		default:
			log.WithError(err).WithField("message", messageID).Error("Error withdrawing from giveaway")
			return
		}
	}

	roleID, bound, err := b.engine.Guilds.ReactionRole(ctx, guildID, messageID, r.Emoji.Name)
	if err != nil {
		log.WithError(err).WithField("message", messageID).Error("Error resolving reaction role")
		return
	}
	if !bound {
		return
	}
	if err := s.GuildMemberRoleRemove(r.GuildID, r.UserID, formatSnowflake(roleID)); err != nil {
		log.WithError(err).WithFields(log.Fields{"user": userID, "role": roleID}).Error("Error revoking self-role")
	}
}

// reactionIDs parses the int64 IDs off a reaction event.
func reactionIDs(r *discordgo.MessageReaction) (guildID, messageID, userID int64, ok bool) {
	var err error
	if guildID, err = parseSnowflake(r.GuildID); err != nil {
		return 0, 0, 0, false
	}
	if messageID, err = parseSnowflake(r.MessageID); err != nil {
		return 0, 0, 0, false
	}
	if userID, err = parseSnowflake(r.UserID); err != nil {
		return 0, 0, 0, false
	}
	return guildID, messageID, userID, true
}
