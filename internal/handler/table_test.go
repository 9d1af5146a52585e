package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v3"

	"ludo-table-bot/internal/model"
)

func TestClassifyReply(t *testing.T) {
	cases := []struct {
		text string
		want replyAction
	}{
		{"L", actionAccept},
		{"l", actionAccept},
		{"OK", actionAccept},
		{"ok", actionAccept},
		{" ok ", actionAccept},
		{"CANCEL", actionCancel},
		{"cancel", actionCancel},
		{"WIN @alice", actionWin},
		{"win @alice", actionWin},
		{"WIN", actionWin},
		{"", actionNone},
		{"hello", actionNone},
		{"LOL", actionNone},      // not a bare L
		{"OKAY", actionNone},     // not a bare OK
		{"CANCELED", actionNone}, // keyword is exact
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyReply(tc.text), "text=%q", tc.text)
	}
}

func TestWinnerMentionID(t *testing.T) {
	msg := &tele.Message{
		Text: "WIN Bob",
		Entities: []tele.MessageEntity{
			{Type: tele.EntityTMention, Offset: 4, Length: 3, User: &tele.User{ID: 42}},
		},
	}
	assert.Equal(t, int64(42), winnerMentionID(msg))

	// A plain @username mention entity carries no user and is resolved by
	// text instead
	msg = &tele.Message{
		Text: "WIN @alice",
		Entities: []tele.MessageEntity{
			{Type: tele.EntityMention, Offset: 4, Length: 6},
		},
	}
	assert.Equal(t, int64(0), winnerMentionID(msg))

	assert.Equal(t, int64(0), winnerMentionID(&tele.Message{Text: "WIN"}))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "@alice", displayName(&model.User{TelegramID: 1, Username: "alice", FirstName: "Alice"}))
	assert.Equal(t, "Bob Kumar", displayName(&model.User{TelegramID: 2, FirstName: "Bob", LastName: "Kumar"}))
	assert.Equal(t, "3", displayName(&model.User{TelegramID: 3}))
}
