// Package tablemsg encodes and decodes the chat messages that represent a
// betting table. The group chat message is the shared, human-visible record
// other participants react to, so the format here is a compatibility
// contract and must not drift.
package tablemsg

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"ludo-table-bot/internal/model"
)

// Label is the human-facing name of a player inside a table message.
// It is "@username" when the player has a username, otherwise the bare
// first name rendered as a clickable text mention.
type Label struct {
	Text   string
	UserID int64
}

// UserLabel builds the label for a user record.
func UserLabel(u *model.User) Label {
	if u.Username != "" {
		return Label{Text: "@" + u.Username}
	}
	name := u.FullName()
	if name == "" {
		name = strconv.FormatInt(u.TelegramID, 10)
	}
	return Label{Text: name, UserID: u.TelegramID}
}

// IsMention reports whether the label must carry a text-mention entity.
// The form is distinguished purely by the "@" prefix, matching how result
// announcements recover the label from the matched-table message.
func (l Label) IsMention() bool {
	return !strings.HasPrefix(l.Text, "@")
}

// Builder accumulates message text together with the text-mention entities
// for labels that have no username. Entity offsets are in UTF-16 code
// units, as the Bot API requires.
type Builder struct {
	sb       strings.Builder
	entities []tele.MessageEntity
	offset   int
}

// WriteString appends plain text.
func (b *Builder) WriteString(s string) {
	b.sb.WriteString(s)
	b.offset += utf16Len(s)
}

// WriteLabel appends a label, recording a text-mention entity when needed.
func (b *Builder) WriteLabel(l Label) {
	if l.IsMention() {
		b.entities = append(b.entities, tele.MessageEntity{
			Type:   tele.EntityTMention,
			Offset: b.offset,
			Length: utf16Len(l.Text),
			User:   &tele.User{ID: l.UserID},
		})
	}
	b.WriteString(l.Text)
}

// Message returns the accumulated text and entities.
func (b *Builder) Message() (string, []tele.MessageEntity) {
	return b.sb.String(), b.entities
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}
