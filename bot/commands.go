package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// adminPermission gates a command to members who can manage the server.
var adminPermission = int64(discordgo.PermissionManageServer)

// commandHandlers maps command names to their handlers. Every definition in
// commandDefinitions has exactly one entry here.
func (b *Bot) commandHandlers() map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"balance":     b.handleBalance,
		"daily":       b.handleDaily,
		"work":        b.handleWork,
		"gamble":      b.handleGamble,
		"give":        b.handleGive,
		"shop":        b.handleShop,
		"buy":         b.handleBuy,
		"leaderboard": b.handleLeaderboard,
		"rps":         b.handleRPS,
		"tictactoe":   b.handleTicTacToe,
		"guess":       b.handleGuess,
		"hangman":     b.handleHangman,
		"game":        b.handleGame,
		"giveaway":    b.handleGiveaway,
		"counting":    b.handleCounting,
		"admin":       b.handleAdmin,
	}
}

// commandDefinitions builds the slash command tree. The buy choices are
// generated from the loaded catalog so the shop and the command stay in sync.
func (b *Bot) commandDefinitions() []*discordgo.ApplicationCommand {
	buyChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(b.engine.Catalog.Items))
	for _, item := range b.engine.Catalog.Items {
		buyChoices = append(buyChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s (%d coins)", item.Name, item.Price),
			Value: item.ID,
		})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "balance",
			Description: "Check a wallet and inventory",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to look up (defaults to you)",
					Required:    false,
				},
			},
		},
		{
			Name:        "daily",
			Description: "Claim your daily coins",
		},
		{
			Name:        "work",
			Description: "Do an odd job for some coins",
		},
		{
			Name:        "gamble",
			Description: "Stake coins on a dice roll",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Coins to stake",
					Required:    true,
				},
			},
		},
		{
			Name:        "give",
			Description: "Give coins to another member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to give coins to",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Coins to give",
					Required:    true,
				},
			},
		},
		{
			Name:        "shop",
			Description: "Browse the item shop",
		},
		{
			Name:        "buy",
			Description: "Buy an item from the shop",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "item",
					Description: "Item to buy",
					Required:    true,
					Choices:     buyChoices,
				},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Show the richest members",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "How many places to show (default 10)",
					Required:    false,
				},
			},
		},
		{
			Name:        "rps",
			Description: "Play rock-paper-scissors against the bot",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "move",
					Description: "Your throw",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "rock", Value: "rock"},
						{Name: "paper", Value: "paper"},
						{Name: "scissors", Value: "scissors"},
					},
				},
			},
		},
		{
			Name:        "tictactoe",
			Description: "Play tic-tac-toe in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "challenge",
					Description: "Challenge another member",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionUser,
							Name:        "opponent",
							Description: "Member to challenge",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "move",
					Description: "Place your mark",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "row",
							Description: "Row (0 to 2)",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "col",
							Description: "Column (0 to 2)",
							Required:    true,
						},
					},
				},
			},
		},
		{
			Name:        "guess",
			Description: "Play a number guessing game in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "start",
					Description: "Start a new game",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "max",
							Description: "Upper bound of the secret number (default 100)",
							Required:    false,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "number",
					Description: "Guess the secret number",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "value",
							Description: "Your guess",
							Required:    true,
						},
					},
				},
			},
		},
		{
			Name:        "hangman",
			Description: "Play hangman in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "start",
					Description: "Start a new game",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "letter",
					Description: "Guess a letter",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "letter",
							Description: "A single letter",
							Required:    true,
						},
					},
				},
			},
		},
		{
			Name:        "game",
			Description: "Manage the game running in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "Show the current game",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "abort",
					Description: "Abort the current game",
				},
			},
		},
		{
			Name:                     "giveaway",
			Description:              "Run giveaways",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "start",
					Description: "Start a giveaway in this channel",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "prize",
							Description: "What the winners get",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "winners",
							Description: "Number of winners",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "minutes",
							Description: "How long the giveaway runs",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "end",
					Description: "End a giveaway early and draw winners",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "message",
							Description: "Message ID of the giveaway announcement",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "reroll",
					Description: "Redraw the winners of an ended giveaway",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "message",
							Description: "Message ID of the giveaway announcement",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "cancel",
					Description: "Cancel a running giveaway without drawing",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "message",
							Description: "Message ID of the giveaway announcement",
							Required:    true,
						},
					},
				},
			},
		},
		{
			Name:                     "counting",
			Description:              "Configure the counting game",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "channel",
					Description: "Set or clear the counting channel",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        "channel",
							Description: "Counting channel (omit to disable counting)",
							Required:    false,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "strict",
					Description: "Toggle the no-double-counting rule",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "enabled",
							Description: "Forbid the same member counting twice in a row",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "policy",
					Description: "Choose what happens when the chain breaks",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "policy",
							Description: "Fail policy",
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "reset and announce", Value: "reset-message"},
								{Name: "reset silently", Value: "restart"},
								{Name: "keep the chain", Value: "continue"},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show the counting state",
				},
			},
		},
		{
			Name:                     "admin",
			Description:              "Server administration",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "coins",
					Description: "Adjust member balances",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Add coins to a member",
							Options: []*discordgo.ApplicationCommandOption{
								{
									Type:        discordgo.ApplicationCommandOptionUser,
									Name:        "user",
									Description: "Member to credit",
									Required:    true,
								},
								{
									Type:        discordgo.ApplicationCommandOptionInteger,
									Name:        "amount",
									Description: "Coins to add",
									Required:    true,
								},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "remove",
							Description: "Remove coins from a member",
							Options: []*discordgo.ApplicationCommandOption{
								{
									Type:        discordgo.ApplicationCommandOptionUser,
									Name:        "user",
									Description: "Member to debit",
									Required:    true,
								},
								{
									Type:        discordgo.ApplicationCommandOptionInteger,
									Name:        "amount",
									Description: "Coins to remove",
									Required:    true,
								},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "set",
							Description: "Set a member's balance",
							Options: []*discordgo.ApplicationCommandOption{
								{
									Type:        discordgo.ApplicationCommandOptionUser,
									Name:        "user",
									Description: "Member to update",
									Required:    true,
								},
								{
									Type:        discordgo.ApplicationCommandOptionInteger,
									Name:        "amount",
									Description: "New balance",
									Required:    true,
								},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "giveall",
							Description: "Give coins to every known member",
							Options: []*discordgo.ApplicationCommandOption{
								{
									Type:        discordgo.ApplicationCommandOptionInteger,
									Name:        "amount",
									Description: "Coins each member receives",
									Required:    true,
								},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "mute",
					Description: "Time a member out",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionUser,
							Name:        "user",
							Description: "Member to mute",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "minutes",
							Description: "How long the mute lasts",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "unmute",
					Description: "Lift a member's mute early",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionUser,
							Name:        "user",
							Description: "Member to unmute",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "bind",
					Description: "Bind a feature to a channel",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "feature",
							Description: "Feature to bind",
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "economy", Value: "economy"},
								{Name: "games", Value: "games"},
								{Name: "music", Value: "music"},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        "channel",
							Description: "Channel to bind (omit to clear)",
							Required:    false,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "selfrole",
					Description: "Manage reaction roles",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Grant a role when members react to a message",
							Options: []*discordgo.ApplicationCommandOption{
								{
									Type:        discordgo.ApplicationCommandOptionString,
									Name:        "message",
									Description: "Message ID members react to",
									Required:    true,
								},
								{
									Type:        discordgo.ApplicationCommandOptionString,
									Name:        "emoji",
									Description: "Emoji that grants the role",
									Required:    true,
								},
								{
									Type:        discordgo.ApplicationCommandOptionRole,
									Name:        "role",
									Description: "Role to grant",
									Required:    true,
								},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "remove",
							Description: "Remove a reaction role binding",
							Options: []*discordgo.ApplicationCommandOption{
								{
									Type:        discordgo.ApplicationCommandOptionString,
									Name:        "message",
									Description: "Message ID of the binding",
									Required:    true,
								},
								{
									Type:        discordgo.ApplicationCommandOptionString,
									Name:        "emoji",
									Description: "Emoji of the binding (omit to clear the whole message)",
									Required:    false,
								},
							},
						},
					},
				},
			},
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	for _, cmd := range b.commandDefinitions() {
		_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.config.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
	}
	return nil
}
