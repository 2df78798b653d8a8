package bot

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/config"
	"arcade/events"
	"arcade/random"
	"arcade/service"
	"arcade/store"
)

// testBot builds a Bot with a live engine but no Discord session. Handler
// wiring and command definitions never touch the session.
func testBot(t *testing.T) *Bot {
	t.Helper()
	catalog, err := config.LoadCatalog("")
	require.NoError(t, err)
	engine := service.NewEngine(store.NewMemory(), events.NewBus(), catalog, service.SystemClock{}, random.New(), time.Hour, nil)
	return &Bot{engine: engine}
}

func TestCommandHandlersCoverDefinitions(t *testing.T) {
	b := testBot(t)
	handlers := b.commandHandlers()
	defs := b.commandDefinitions()

	require.Len(t, handlers, len(defs), "every definition needs a handler and vice versa")

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		assert.False(t, seen[def.Name], "duplicate command %q", def.Name)
		seen[def.Name] = true

		assert.Contains(t, handlers, def.Name, "command %q has no handler", def.Name)
		assert.NotEmpty(t, def.Description, "command %q has no description", def.Name)
	}
}

func TestBuyChoicesFollowCatalog(t *testing.T) {
	b := testBot(t)

	var buy *discordgo.ApplicationCommand
	for _, def := range b.commandDefinitions() {
		if def.Name == "buy" {
			buy = def
		}
	}
	require.NotNil(t, buy)
	require.Len(t, buy.Options, 1)

	choices := buy.Options[0].Choices
	require.Len(t, choices, len(b.engine.Catalog.Items))
	for _, choice := range choices {
		id, ok := choice.Value.(string)
		require.True(t, ok, "buy choice values are item IDs")
		_, found := b.engine.Catalog.Item(id)
		assert.True(t, found, "choice %q does not match a catalog item", id)
		assert.NotEmpty(t, choice.Name)
	}
}

func TestModeratorCommandsArePermissionGated(t *testing.T) {
	b := testBot(t)

	gated := map[string]bool{"giveaway": true, "counting": true, "admin": true}
	for _, def := range b.commandDefinitions() {
		if gated[def.Name] {
			require.NotNil(t, def.DefaultMemberPermissions, "command %q must be gated", def.Name)
			assert.Equal(t, adminPermission, *def.DefaultMemberPermissions)
		} else {
			assert.Nil(t, def.DefaultMemberPermissions, "command %q should be open to everyone", def.Name)
		}
	}
}
