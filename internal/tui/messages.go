package tui

import "github.com/ashureev/auditsseus-chat/internal/chat"

// replyMsg carries the relay's answer for a turn back into Update.
type replyMsg struct {
	turn *chat.Turn
	body string
	err  error
}
