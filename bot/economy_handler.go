package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"arcade/events"
	"arcade/models"
	"arcade/service"
)

// handleBalance shows a member's wallet, inventory and claim timers.
func (b *Bot) handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, _, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	targetID := userID
	targetUser := interactionUser(i)
	if opt, ok := optionMap(i.ApplicationCommandData().Options)["user"]; ok {
		targetUser = opt.UserValue(s)
		if targetID, err = parseSnowflake(targetUser.ID); err != nil {
			log.WithError(err).Error("Error parsing target user ID")
			b.respondWithError(s, i, "Unable to process request. Please try again.")
			return
		}
	}

	account, err := b.engine.Ledger.Balance(ctx, guildID, targetID)
	if err != nil {
		log.WithError(err).WithField("user", targetID).Error("Error loading account")
		b.respondWithError(s, i, "Unable to retrieve balance. Please try again.")
		return
	}

	displayName := GetDisplayName(s, i.GuildID, targetUser.ID)
	now := time.Now().UTC()

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("💰 %s", displayName),
		Color: 0x3498db,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Balance",
				Value:  fmt.Sprintf("**%s coins**", FormatBalance(account.Balance)),
				Inline: true,
			},
			{
				Name:   "Daily",
				Value:  claimStatus(account.DailyRemaining(now, service.DailyCooldown), now),
				Inline: true,
			},
			{
				Name:   "Work",
				Value:  claimStatus(account.WorkRemaining(now, service.WorkCooldown), now),
				Inline: true,
			},
		},
	}

	if account.LuckyActive(now) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "🍀 Lucky charm",
			Value:  "Active until " + FormatDiscordTimestamp(*account.LuckyUntil, "f"),
			Inline: false,
		})
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Inventory",
		Value:  b.inventoryList(account),
		Inline: false,
	})

	b.respondEmbed(s, i, embed)
}

// claimStatus renders a claim as ready now or ready at a future moment.
func claimStatus(remaining time.Duration, now time.Time) string {
	if remaining <= 0 {
		return "Ready"
	}
	return "Ready " + FormatDiscordTimestamp(now.Add(remaining), "R")
}

// inventoryList renders owned items by their catalog names.
func (b *Bot) inventoryList(account *models.Account) string {
	if len(account.Inventory) == 0 {
		return "Empty"
	}
	names := make([]string, 0, len(account.Inventory))
	for _, id := range account.Inventory {
		if item, ok := b.engine.Catalog.Item(id); ok {
			names = append(names, item.Name)
		} else {
			names = append(names, id)
		}
	}
	return strings.Join(names, ", ")
}

func (b *Bot) handleDaily(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, _, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	result, err := b.engine.Ledger.ClaimDaily(ctx, guildID, userID)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	b.respond(s, i, fmt.Sprintf("✅ You claimed your daily **%s coins**! New balance: **%s coins**. Next claim %s.",
		FormatBalance(result.Amount), FormatBalance(result.NewBalance), FormatDiscordTimestamp(result.NextClaim, "R")))
}

func (b *Bot) handleWork(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, _, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	result, err := b.engine.Ledger.ClaimWork(ctx, guildID, userID)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	b.respond(s, i, fmt.Sprintf("💼 You %s and earned **%s coins**! New balance: **%s coins**. You can work again %s.",
		result.Job, FormatBalance(result.Amount), FormatBalance(result.NewBalance), FormatDiscordTimestamp(result.NextClaim, "R")))
}

func (b *Bot) handleGamble(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, _, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	amount := optionMap(i.ApplicationCommandData().Options)["amount"].IntValue()
	if amount <= 0 {
		b.respondWithError(s, i, "Stake must be positive.")
		return
	}

	result, err := b.engine.Ledger.Gamble(ctx, guildID, userID, amount)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	var message string
	switch result.Outcome {
	case models.GambleWin:
		message = fmt.Sprintf("🎉 You rolled **%d** and won **%s coins**! New balance: **%s coins**",
			result.Roll, FormatBalance(result.Delta), FormatBalance(result.NewBalance))
		if result.Lucky {
			message += " 🍀"
		}
	case models.GamblePush:
		message = fmt.Sprintf("😐 You rolled **%d**. Push, you keep your stake. Balance: **%s coins**",
			result.Roll, FormatBalance(result.NewBalance))
	default:
		message = fmt.Sprintf("😔 You rolled **%d** and lost **%s coins**. New balance: **%s coins**",
			result.Roll, FormatBalance(-result.Delta), FormatBalance(result.NewBalance))
	}
	b.respond(s, i, message)
}

func (b *Bot) handleGive(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, _, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	options := optionMap(i.ApplicationCommandData().Options)
	recipient := options["user"].UserValue(s)
	amount := options["amount"].IntValue()

	if amount <= 0 {
		b.respondWithError(s, i, "Amount must be positive.")
		return
	}
	if recipient == nil {
		b.respondWithError(s, i, "Invalid recipient user.")
		return
	}
	if recipient.Bot {
		b.respondWithError(s, i, "Bots have no use for coins.")
		return
	}

	toID, err := parseSnowflake(recipient.ID)
	if err != nil {
		log.WithError(err).Error("Error parsing recipient ID")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}
	if toID == userID {
		b.respondWithError(s, i, "You cannot give coins to yourself.")
		return
	}

	result, err := b.engine.Ledger.Transfer(ctx, guildID, userID, toID, amount)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	senderName := GetDisplayName(s, i.GuildID, interactionUser(i).ID)
	recipientName := GetDisplayName(s, i.GuildID, recipient.ID)
	b.respond(s, i, fmt.Sprintf("✅ **%s** gave **%s coins** to **%s**. You have **%s coins** left.",
		senderName, FormatBalance(amount), recipientName, FormatBalance(result.FromBalance)))
}

func (b *Bot) handleShop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	embed := &discordgo.MessageEmbed{
		Title: "🛍️ Item Shop",
		Color: 0xf1c40f,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Buy with /buy",
		},
	}

	for _, item := range b.engine.Catalog.Items {
		value := item.Description
		switch item.Kind {
		case models.ItemKindConsumable:
			value += fmt.Sprintf("\nPays out %s to %s coins on purchase.",
				FormatBalance(item.PayoutMin), FormatBalance(item.PayoutMax))
		case models.ItemKindTimed:
			value += fmt.Sprintf("\nLasts %d hours per purchase.", item.DurationHours)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s · %s coins", item.Name, FormatBalance(item.Price)),
			Value: value,
		})
	}

	b.respondEmbed(s, i, embed)
}

func (b *Bot) handleBuy(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, _, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	itemID := optionMap(i.ApplicationCommandData().Options)["item"].StringValue()

	result, err := b.engine.Ledger.Buy(ctx, guildID, userID, itemID)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	var message string
	switch {
	case result.Payout > 0:
		message = fmt.Sprintf("🎁 You opened a **%s** and found **%s coins** inside! New balance: **%s coins**",
			result.Item.Name, FormatBalance(result.Payout), FormatBalance(result.NewBalance))
	case result.ActiveUntil != nil:
		message = fmt.Sprintf("🍀 **%s** is active until %s. New balance: **%s coins**",
			result.Item.Name, FormatDiscordTimestamp(*result.ActiveUntil, "f"), FormatBalance(result.NewBalance))
	default:
		message = fmt.Sprintf("✅ You bought **%s** for **%s coins**. New balance: **%s coins**",
			result.Item.Name, FormatBalance(result.Item.Price), FormatBalance(result.NewBalance))
	}
	b.respond(s, i, message)
}

// handleLeaderboard displays the guild's richest members
func (b *Bot) handleLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, _, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	count := 10
	if opt, ok := optionMap(i.ApplicationCommandData().Options)["count"]; ok {
		count = int(opt.IntValue())
	}
	if count < 1 {
		count = 1
	} else if count > 25 {
		count = 25
	}

	accounts, err := b.engine.Ledger.Leaderboard(ctx, guildID, count)
	if err != nil {
		log.WithError(err).Error("Error getting leaderboard")
		b.respondWithError(s, i, "Unable to retrieve leaderboard. Please try again.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "🏆 Richest Members",
		Color: 0x00ff00,
	}

	if len(accounts) == 0 {
		embed.Description = "Nobody has a wallet yet. Claim a /daily to get started."
	} else {
		var tableContent strings.Builder
		tableContent.WriteString("```\n")
		tableContent.WriteString(fmt.Sprintf("%-4s %-20s %s\n", "Rank", "Member", "Balance"))
		tableContent.WriteString(strings.Repeat("-", 36) + "\n")

		for idx, account := range accounts {
			rank := idx + 1
			rankStr := fmt.Sprintf("#%d", rank)
			switch rank {
			case 1:
				rankStr = "🥇"
			case 2:
				rankStr = "🥈"
			case 3:
				rankStr = "🥉"
			}

			displayName := GetDisplayNameInt64(s, i.GuildID, account.UserID)
			if len(displayName) > 18 {
				displayName = displayName[:15] + "..."
			}

			tableContent.WriteString(fmt.Sprintf("%-4s %-20s %s\n",
				rankStr, displayName, FormatBalance(account.Balance)))
		}

		tableContent.WriteString("```")
		embed.Description = tableContent.String()
	}

	b.respondEmbed(s, i, embed)
}

// notifyCooldownElapsed DMs a member when a claim cooldown runs out. Closed
// DMs are common, so delivery failures are only logged at debug.
func (b *Bot) notifyCooldownElapsed(event events.CooldownElapsedEvent) {
	channel, err := b.session.UserChannelCreate(formatSnowflake(event.UserID))
	if err != nil {
		log.WithError(err).WithField("user", event.UserID).Debug("Cannot open DM channel")
		return
	}

	what := "daily reward"
	if event.Claim == "work" {
		what = "work shift"
	}
	if _, err := b.session.ChannelMessageSend(channel.ID, fmt.Sprintf("⏰ Your %s is ready to claim!", what)); err != nil {
		log.WithError(err).WithField("user", event.UserID).Debug("Cannot DM member")
	}
}
