package tablemsg

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"
)

const (
	// OptionMarker prefixes each selected modifier flag. Options are
	// concatenated with no separator between them.
	OptionMarker = "=>"

	dividerRune  = '─'
	dividerWidth = 40
)

// Divider is the horizontal rule between the matched-table body and the
// table number footer.
func Divider() string {
	return strings.Repeat(string(dividerRune), dividerWidth)
}

// EncodeOpen renders the open-table broadcast:
//
//	Table by @username:
//	600 | Full | 200+ game
//
//	=>Fresh ID=>No King Pass
func EncodeOpen(creator Label, amount int64, gameType string, options []string) (string, []tele.MessageEntity) {
	var b Builder
	b.WriteString("Table by ")
	b.WriteLabel(creator)
	b.WriteString(":\n")
	b.WriteString(fmt.Sprintf("%d | %s", amount, gameType))
	if opts := JoinOptions(options); opts != "" {
		b.WriteString("\n\n")
		b.WriteString(opts)
	}
	return b.Message()
}

// EncodeMatched renders the matched-table broadcast:
//
//	@creator Vs. @acceptor
//
//	Rs.600.00 | Full | 200+ game
//	=>Fresh ID
//	────────────────────────────────────────
//	Table #4217
func EncodeMatched(creator, acceptor Label, amount int64, gameType, options string, tableNumber int) (string, []tele.MessageEntity) {
	var b Builder
	b.WriteLabel(creator)
	b.WriteString(" Vs. ")
	b.WriteLabel(acceptor)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Rs.%d.00 | %s", amount, gameType))
	if options != "" {
		b.WriteString("\n")
		b.WriteString(options)
	}
	b.WriteString("\n" + Divider() + "\n")
	b.WriteString(fmt.Sprintf("Table #%d", tableNumber))
	return b.Message()
}

// EncodeWin renders the public win announcement. The winner label keeps
// whichever form it had in the matched-table message.
func EncodeWin(winner Label, amount int64, tableNumber int) (string, []tele.MessageEntity) {
	var b Builder
	b.WriteString("🏆 ")
	b.WriteLabel(winner)
	b.WriteString(fmt.Sprintf(" won Table #%d\n", tableNumber))
	b.WriteString(fmt.Sprintf("Rs.%d.00 credited", amount))
	return b.Message()
}

// EncodeCancelled renders the public cancellation announcement.
func EncodeCancelled(creator, acceptor Label, amount int64, tableNumber int) (string, []tele.MessageEntity) {
	var b Builder
	b.WriteString("❌ Table #")
	b.WriteString(fmt.Sprintf("%d", tableNumber))
	b.WriteString(" cancelled\n")
	b.WriteLabel(creator)
	b.WriteString(" Vs. ")
	b.WriteLabel(acceptor)
	b.WriteString(fmt.Sprintf("\nRs.%d.00 refunded to both players", amount))
	return b.Message()
}

// JoinOptions concatenates modifier flags in wire form, each prefixed by
// the option marker with no separator in between.
func JoinOptions(options []string) string {
	if len(options) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, opt := range options {
		if opt == "" {
			continue
		}
		sb.WriteString(OptionMarker)
		sb.WriteString(opt)
	}
	return sb.String()
}

// ComposeGameType builds the free-text variant label from the mini-app's
// game type and game-plus selection, e.g. ("Full", 200) -> "Full | 200+ game".
func ComposeGameType(gameType string, gamePlus int64) string {
	if gamePlus > 0 {
		return fmt.Sprintf("%s | %d+ game", gameType, gamePlus)
	}
	return gameType
}
