package tablemsg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"ludo-table-bot/internal/model"
)

func TestEncodeOpen(t *testing.T) {
	creator := Label{Text: "@alice"}

	text, entities := EncodeOpen(creator, 600, "Full | 200+ game", []string{"Fresh Id", "No king pass"})
	assert.Equal(t, "Table by @alice:\n600 | Full | 200+ game\n\n=>Fresh Id=>No king pass", text)
	assert.Empty(t, entities)

	// No options: no trailing blank block
	text, _ = EncodeOpen(creator, 600, "Full", nil)
	assert.Equal(t, "Table by @alice:\n600 | Full", text)
}

func TestEncodeMatched(t *testing.T) {
	text, entities := EncodeMatched(Label{Text: "@alice"}, Label{Text: "@bob"}, 600, "Full | 200+ game", "=>Fresh Id", 4217)

	expected := "@alice Vs. @bob\n\n" +
		"Rs.600.00 | Full | 200+ game\n" +
		"=>Fresh Id\n" +
		strings.Repeat("─", 40) + "\n" +
		"Table #4217"
	assert.Equal(t, expected, text)
	assert.Empty(t, entities)
}

func TestEncodeMatchedTextMention(t *testing.T) {
	// A player without a username is rendered as a clickable text mention
	acceptor := Label{Text: "Bob", UserID: 42}
	text, entities := EncodeMatched(Label{Text: "@alice"}, acceptor, 600, "Full", "", 4217)

	assert.True(t, strings.HasPrefix(text, "@alice Vs. Bob\n\n"))
	require.Len(t, entities, 1)
	assert.Equal(t, tele.EntityTMention, entities[0].Type)
	assert.Equal(t, len("@alice Vs. "), entities[0].Offset)
	assert.Equal(t, 3, entities[0].Length)
	require.NotNil(t, entities[0].User)
	assert.Equal(t, int64(42), entities[0].User.ID)
}

func TestOpenRoundTrip(t *testing.T) {
	text, _ := EncodeOpen(Label{Text: "@alice"}, 600, "Full", []string{"Fresh Id"})

	parsed, err := ParseOpen(text)
	require.NoError(t, err)
	assert.Equal(t, int64(600), parsed.Amount)
	assert.Equal(t, "Full", parsed.GameType)
	assert.Equal(t, "=>Fresh Id", parsed.Options)
	assert.Equal(t, []string{"Fresh Id"}, SplitOptions(parsed.Options))
}

func TestParseOpenMatchedForm(t *testing.T) {
	// The matched message carries the amount in Rs.N.00 form; the parser
	// accepts both
	text, _ := EncodeMatched(Label{Text: "@alice"}, Label{Text: "@bob"}, 600, "Full | 200+ game", "=>Fresh Id=>Auto loss", 4217)

	parsed, err := ParseOpen(text)
	require.NoError(t, err)
	assert.Equal(t, int64(600), parsed.Amount)
	assert.Equal(t, "Full | 200+ game", parsed.GameType)
	assert.Equal(t, []string{"Fresh Id", "Auto loss"}, SplitOptions(parsed.Options))
}

func TestParseOpenNoInfoLine(t *testing.T) {
	_, err := ParseOpen("hello there")
	assert.ErrorIs(t, err, ErrNoTableInfo)

	// A pipe without a digit is not an info line
	_, err = ParseOpen("a | b")
	assert.ErrorIs(t, err, ErrNoTableInfo)
}

func TestJoinAndSplitOptions(t *testing.T) {
	assert.Equal(t, "", JoinOptions(nil))
	assert.Equal(t, "=>Fresh Id", JoinOptions([]string{"Fresh Id"}))
	assert.Equal(t, "=>A=>B=>C", JoinOptions([]string{"A", "B", "C"}))
	assert.Equal(t, "=>A", JoinOptions([]string{"", "A", ""}))

	assert.Nil(t, SplitOptions(""))
	assert.Equal(t, []string{"A", "B"}, SplitOptions("=>A=>B"))
}

func TestComposeGameType(t *testing.T) {
	assert.Equal(t, "Full", ComposeGameType("Full", 0))
	assert.Equal(t, "Full | 200+ game", ComposeGameType("Full", 200))
}

func TestUserLabel(t *testing.T) {
	withUsername := &model.User{TelegramID: 1, Username: "alice", FirstName: "Alice"}
	label := UserLabel(withUsername)
	assert.Equal(t, "@alice", label.Text)
	assert.False(t, label.IsMention())

	noUsername := &model.User{TelegramID: 2, FirstName: "Bob", LastName: "Kumar"}
	label = UserLabel(noUsername)
	assert.Equal(t, "Bob Kumar", label.Text)
	assert.True(t, label.IsMention())
	assert.Equal(t, int64(2), label.UserID)

	bare := &model.User{TelegramID: 3}
	label = UserLabel(bare)
	assert.Equal(t, "3", label.Text)
}

func TestBuilderUTF16Offsets(t *testing.T) {
	// Entity offsets count UTF-16 code units; an emoji ahead of the label
	// counts as two
	var b Builder
	b.WriteString("🏆 ")
	b.WriteLabel(Label{Text: "Bob", UserID: 42})
	_, entities := b.Message()

	require.Len(t, entities, 1)
	assert.Equal(t, 3, entities[0].Offset) // 2 for the emoji + 1 for the space
	assert.Equal(t, 3, entities[0].Length)
}
