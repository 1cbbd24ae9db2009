package transport

import "github.com/nandovm/chatcore/internal/model/chat"

// Named-signal helpers over Emit. These satisfy the engine's
// ChannelSignaler and TypingSignaler interfaces.

// JoinChat announces interest in a conversation's scoped events.
func (s *Socket) JoinChat(conversationID string) error {
	return s.Emit(chat.EventJoinChat, chat.RoomEvent{ConversationID: conversationID})
}

// LeaveChat withdraws interest in a conversation's scoped events.
func (s *Socket) LeaveChat(conversationID string) error {
	return s.Emit(chat.EventLeaveChat, chat.RoomEvent{ConversationID: conversationID})
}

// Typing signals that the local user started composing.
func (s *Socket) Typing(conversationID, userID string) error {
	return s.Emit(chat.EventTyping, chat.TypingEvent{ConversationID: conversationID, UserID: userID})
}

// StopTyping signals that the local user stopped composing.
func (s *Socket) StopTyping(conversationID, userID string) error {
	return s.Emit(chat.EventStopTyping, chat.TypingEvent{ConversationID: conversationID, UserID: userID})
}
