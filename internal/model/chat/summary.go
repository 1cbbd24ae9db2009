package chat

import "time"

// LatestMessage is the roster preview of the newest message in a
// conversation.
type LatestMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ConversationSummary is one roster entry. The roster is ordered by
// UpdatedAt descending; the most recently touched conversation sits at
// index 0.
type ConversationSummary struct {
	ConversationID string        `json:"conversationId"`
	Counterpart    User          `json:"counterpart"`
	LatestMessage  LatestMessage `json:"latestMessage"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	UnseenCount    int           `json:"unseenCount"`
}

// Snapshot is the authoritative state fetched when a conversation is
// opened: full message history plus the counterpart's profile.
type Snapshot struct {
	Messages []Message `json:"messages"`
	User     User      `json:"user"`
}
