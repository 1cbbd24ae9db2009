package engine

import (
	"sort"

	"github.com/nandovm/chatcore/internal/model/chat"
)

// touchRoster moves the entry for msg's conversation to the top of the
// roster, refreshing its preview. The unseen counter is incremented
// only when requested; own echoed sends and messages for the open
// conversation never count. An entry is created when the conversation
// is seen for the first time. Caller holds the lock.
func (e *Engine) touchRoster(msg chat.Message, incrementUnseen bool) {
	preview := chat.LatestMessage{Sender: msg.Sender, Text: msg.PreviewText()}

	idx := e.findRoster(msg.ConversationID)
	if idx < 0 {
		entry := chat.ConversationSummary{
			ConversationID: msg.ConversationID,
			LatestMessage:  preview,
			UpdatedAt:      e.now(),
		}
		if msg.Sender != e.self {
			entry.Counterpart = chat.User{ID: msg.Sender}
		}
		if incrementUnseen {
			entry.UnseenCount = 1
		}
		e.roster = append([]chat.ConversationSummary{entry}, e.roster...)
		return
	}

	entry := e.roster[idx]
	entry.LatestMessage = preview
	entry.UpdatedAt = e.now()
	if incrementUnseen {
		entry.UnseenCount++
	}
	e.roster = append(e.roster[:idx], e.roster[idx+1:]...)
	e.roster = append([]chat.ConversationSummary{entry}, e.roster...)
}

// resetUnseen zeroes the unseen counter for a conversation without
// reordering the roster. Caller holds the lock.
func (e *Engine) resetUnseen(conversationID string) {
	if idx := e.findRoster(conversationID); idx >= 0 {
		e.roster[idx].UnseenCount = 0
	}
}

// findRoster returns the roster index for a conversation, or -1.
// Caller holds the lock.
func (e *Engine) findRoster(conversationID string) int {
	for i := range e.roster {
		if e.roster[i].ConversationID == conversationID {
			return i
		}
	}
	return -1
}

func sortRoster(roster []chat.ConversationSummary) {
	sort.SliceStable(roster, func(i, j int) bool {
		return roster[i].UpdatedAt.After(roster[j].UpdatedAt)
	})
}
