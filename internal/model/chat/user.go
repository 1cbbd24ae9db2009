package chat

// User is the profile of a chat participant.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
