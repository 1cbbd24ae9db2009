package chat

// Push channel event names, shared by client and server.
const (
	// Inbound to the client.
	EventNewMessage        = "newMessage"
	EventMessagesSeen      = "messagesSeen"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventOnlineUsers       = "onlineUsers"

	// Outbound from the client.
	EventTyping     = "typing"
	EventStopTyping = "stopTyping"
	EventJoinChat   = "joinChat"
	EventLeaveChat  = "leaveChat"
)

// TypingEvent is the payload of typing signals in both directions.
type TypingEvent struct {
	ConversationID string `json:"chatId"`
	UserID         string `json:"userId"`
}

// SeenEvent reports that the counterpart read messages. A nil
// MessageIDs means every one of the recipient's messages in the
// conversation became seen.
type SeenEvent struct {
	ConversationID string   `json:"chatId"`
	MessageIDs     []string `json:"messageIds,omitempty"`
}

// RoomEvent is the payload of joinChat/leaveChat.
type RoomEvent struct {
	ConversationID string `json:"chatId"`
}

// OnlineUsersEvent carries the full set of currently online users.
type OnlineUsersEvent struct {
	UserIDs []string `json:"userIds"`
}
