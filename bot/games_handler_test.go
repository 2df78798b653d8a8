package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderBoard(t *testing.T) {
	var empty [9]string
	assert.Equal(t,
		"```\n · | · | · \n---+---+---\n · | · | · \n---+---+---\n · | · | · \n```",
		renderBoard(empty))

	board := [9]string{"X", "", "O", "", "X", "", "", "", "O"}
	assert.Equal(t,
		"```\n X | · | O \n---+---+---\n · | X | · \n---+---+---\n · | · | O \n```",
		renderBoard(board))
}
