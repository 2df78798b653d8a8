package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"arcade/models"
)

func (b *Bot) handleRPS(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, channelID, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	move := optionMap(i.ApplicationCommandData().Options)["move"].StringValue()

	result, err := b.engine.Sessions.PlayRPS(ctx, guildID, channelID, userID, move)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	var verdict string
	switch result.Outcome {
	case models.RPSWin:
		verdict = "You win! 🎉"
	case models.RPSLose:
		verdict = "I win! 😎"
	default:
		verdict = "It's a tie. 🤝"
	}
	b.respond(s, i, fmt.Sprintf("You threw **%s**, I threw **%s**. %s", result.PlayerMove, result.BotMove, verdict))
}

func (b *Bot) handleTicTacToe(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		b.respondWithError(s, i, "Please specify a subcommand: challenge or move")
		return
	}

	switch options[0].Name {
	case "challenge":
		b.handleTicTacToeChallenge(s, i, options[0].Options)
	case "move":
		b.handleTicTacToeMove(s, i, options[0].Options)
	default:
		b.respondWithError(s, i, "Unknown subcommand")
	}
}

func (b *Bot) handleTicTacToeChallenge(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, channelID, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	opponent := optionMap(options)["opponent"].UserValue(s)
	if opponent == nil {
		b.respondWithError(s, i, "Invalid opponent.")
		return
	}
	if opponent.Bot {
		b.respondWithError(s, i, "You can't challenge a bot. Try /rps instead.")
		return
	}
	opponentID, err := parseSnowflake(opponent.ID)
	if err != nil {
		log.WithError(err).Error("Error parsing opponent ID")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	sess, err := b.engine.Sessions.StartTicTacToe(ctx, guildID, channelID, userID, opponentID)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	b.respond(s, i, fmt.Sprintf("⭕ %s challenged %s to tic-tac-toe!\n%s\n%s plays **X** and goes first. Move with `/tictactoe move`.",
		mention(userID), mention(opponentID), renderBoard(sess.TicTacToe.Board), mention(sess.TicTacToe.Turn)))
}

func (b *Bot) handleTicTacToeMove(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, channelID, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	opts := optionMap(options)
	row := int(opts["row"].IntValue())
	col := int(opts["col"].IntValue())

	result, err := b.engine.Sessions.PlayMove(ctx, guildID, channelID, userID, row, col)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	board := renderBoard(result.Board)
	switch {
	case result.Done && result.Draw:
		b.respond(s, i, fmt.Sprintf("%s\n🤝 It's a draw!", board))
	case result.Done:
		b.respond(s, i, fmt.Sprintf("%s\n🏆 %s wins!", board, mention(result.Winner)))
	default:
		b.respond(s, i, fmt.Sprintf("%s\n%s is up.", board, mention(result.NextTurn)))
	}
}

func (b *Bot) handleGuess(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		b.respondWithError(s, i, "Please specify a subcommand: start or number")
		return
	}

	switch options[0].Name {
	case "start":
		b.handleGuessStart(s, i, options[0].Options)
	case "number":
		b.handleGuessNumber(s, i, options[0].Options)
	default:
		b.respondWithError(s, i, "Unknown subcommand")
	}
}

func (b *Bot) handleGuessStart(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, channelID, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	max := 0
	if opt, ok := optionMap(options)["max"]; ok {
		max = int(opt.IntValue())
	}

	sess, err := b.engine.Sessions.StartNumberGuess(ctx, guildID, channelID, userID, max)
	if err != nil {
		if errors.Is(err, models.ErrIllegalAction) {
			b.respondWithError(s, i, fmt.Sprintf("The upper bound must be between %d and %d.",
				models.NumberGuessMinMax, models.NumberGuessMaxMax))
			return
		}
		b.respondServiceError(s, i, err)
		return
	}

	game := sess.NumberGuess
	b.respond(s, i, fmt.Sprintf("🔢 I picked a number between 1 and **%d**. The channel has **%d** guesses. Guess with `/guess number`.",
		game.Max, game.Remaining))
}

func (b *Bot) handleGuessNumber(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, channelID, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	value := int(optionMap(options)["value"].IntValue())

	result, err := b.engine.Sessions.GuessNumber(ctx, guildID, channelID, userID, value)
	if err != nil {
		if errors.Is(err, models.ErrIllegalAction) {
			b.respondWithError(s, i, "That guess is outside the range. It costs no attempt, try again.")
			return
		}
		b.respondServiceError(s, i, err)
		return
	}

	switch {
	case result.Won:
		b.respond(s, i, fmt.Sprintf("🎉 **%d** is correct! %s got it.", result.Secret, mention(userID)))
	case result.Done:
		b.respond(s, i, fmt.Sprintf("💀 Out of guesses! The number was **%d**.", result.Secret))
	case result.Feedback == models.GuessHigher:
		b.respond(s, i, fmt.Sprintf("📈 Higher than **%d**. %d guesses left.", value, result.Remaining))
	default:
		b.respond(s, i, fmt.Sprintf("📉 Lower than **%d**. %d guesses left.", value, result.Remaining))
	}
}

func (b *Bot) handleHangman(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		b.respondWithError(s, i, "Please specify a subcommand: start or letter")
		return
	}

	switch options[0].Name {
	case "start":
		b.handleHangmanStart(s, i)
	case "letter":
		b.handleHangmanLetter(s, i, options[0].Options)
	default:
		b.respondWithError(s, i, "Unknown subcommand")
	}
}

func (b *Bot) handleHangmanStart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, channelID, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	sess, err := b.engine.Sessions.StartHangman(ctx, guildID, channelID, userID)
	if err != nil {
		b.respondServiceError(s, i, err)
		return
	}

	game := sess.Hangman
	b.respond(s, i, fmt.Sprintf("🪢 Hangman started! The word has **%d** letters.\n`%s`\nGuess with `/hangman letter`. %d wrong guesses lose.",
		len(game.Word), game.Revealed(), game.MaxWrong))
}

func (b *Bot) handleHangmanLetter(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	guildID, channelID, userID, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	letter := optionMap(options)["letter"].StringValue()

	result, err := b.engine.Sessions.GuessHangmanLetter(ctx, guildID, channelID, userID, letter)
	if err != nil {
		if errors.Is(err, models.ErrIllegalAction) {
			b.respondWithError(s, i, "Guess a single letter you haven't tried yet.")
			return
		}
		b.respondServiceError(s, i, err)
		return
	}

	switch {
	case result.Won:
		b.respond(s, i, fmt.Sprintf("🎉 `%s` completes the word! It was **%s**. Wrong guesses: %d/%d.",
			strings.ToLower(letter), result.Word, result.Wrong, result.MaxWrong))
	case result.Done:
		b.respond(s, i, fmt.Sprintf("💀 `%s` was one wrong guess too many. The word was **%s**.",
			strings.ToLower(letter), result.Word))
	case result.Correct:
		b.respond(s, i, fmt.Sprintf("✅ `%s` is in there!\n`%s`\nWrong guesses: %d/%d.",
			strings.ToLower(letter), result.Revealed, result.Wrong, result.MaxWrong))
	default:
		b.respond(s, i, fmt.Sprintf("❌ No `%s`.\n`%s`\nWrong guesses: %d/%d.",
			strings.ToLower(letter), result.Revealed, result.Wrong, result.MaxWrong))
	}
}

func (b *Bot) handleGame(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		b.respondWithError(s, i, "Please specify a subcommand: show or abort")
		return
	}

	switch options[0].Name {
	case "show":
		b.handleGameShow(s, i)
	case "abort":
		b.handleGameAbort(s, i)
	default:
		b.respondWithError(s, i, "Unknown subcommand")
	}
}

func (b *Bot) handleGameShow(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, channelID, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	sess, found, err := b.engine.Sessions.State(ctx, guildID, channelID)
	if err != nil {
		log.WithError(err).Error("Error loading session")
		b.respondWithError(s, i, "Unable to load the game. Please try again.")
		return
	}
	if !found {
		b.respondEphemeral(s, i, "No game is running in this channel.")
		return
	}

	switch sess.Variant {
	case models.VariantTicTacToe:
		game := sess.TicTacToe
		b.respond(s, i, fmt.Sprintf("⭕ Tic-tac-toe: %s (X) vs %s (O).\n%s\n%s is up.",
			mention(game.XPlayer), mention(game.OPlayer), renderBoard(game.Board), mention(game.Turn)))
	case models.VariantNumberGuess:
		game := sess.NumberGuess
		b.respond(s, i, fmt.Sprintf("🔢 Number guess between 1 and **%d**. %d guesses left.",
			game.Max, game.Remaining))
	case models.VariantHangman:
		game := sess.Hangman
		tried := "none yet"
		if len(game.Guessed) > 0 {
			tried = strings.Join(game.Guessed, " ")
		}
		b.respond(s, i, fmt.Sprintf("🪢 Hangman.\n`%s`\nTried: %s. Wrong guesses: %d/%d.",
			game.Revealed(), tried, game.Wrong, game.MaxWrong))
	default:
		b.respondWithError(s, i, "Unknown game variant.")
	}
}

func (b *Bot) handleGameAbort(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	guildID, channelID, _, err := interactionIDs(i)
	if err != nil {
		log.WithError(err).Error("Error parsing interaction IDs")
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	if err := b.engine.Sessions.Abort(ctx, guildID, channelID); err != nil {
		b.respondServiceError(s, i, err)
		return
	}
	b.respond(s, i, "🛑 Game aborted. The channel is free again.")
}

// renderBoard draws a 3x3 board as a code block. Free cells show a dot so
// column widths stay stable in monospace.
func renderBoard(board [9]string) string {
	var sb strings.Builder
	sb.WriteString("```\n")
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			mark := board[row*3+col]
			if mark == "" {
				mark = "·"
			}
			sb.WriteString(" " + mark + " ")
			if col < 2 {
				sb.WriteString("|")
			}
		}
		sb.WriteString("\n")
		if row < 2 {
			sb.WriteString("---+---+---\n")
		}
	}
	sb.WriteString("```")
	return sb.String()
}
