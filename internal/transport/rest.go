// Package transport implements the remote collaborators of the chat
// client: the REST message service and the duplex websocket push
// channel.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/nandovm/chatcore/internal/model/chat"
)

// Client talks to the remote message service. All calls are bearer
// authenticated; credential lifecycle is the caller's concern.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient creates a REST client for the service at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx response from the message service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("message service returned status %d", e.Status)
	}
	return fmt.Sprintf("message service returned status %d: %s", e.Status, e.Message)
}

// FetchSnapshot retrieves the message history and counterpart profile
// for one conversation.
func (c *Client) FetchSnapshot(ctx context.Context, conversationID string) (chat.Snapshot, error) {
	var snap chat.Snapshot
	err := c.get(ctx, "/api/v1/message/"+conversationID, &snap)
	if err != nil {
		return chat.Snapshot{}, errors.Wrap(err, "fetch snapshot")
	}
	return snap, nil
}

// ListConversations retrieves the full ordered roster for the local
// user.
func (c *Client) ListConversations(ctx context.Context) ([]chat.ConversationSummary, error) {
	var payload struct {
		Chats []chat.ConversationSummary `json:"chats"`
	}
	if err := c.get(ctx, "/api/v1/chat/all", &payload); err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	return payload.Chats, nil
}

// CreateConversation asks the service for a conversation with another
// user, returning the existing handle when one is already established.
func (c *Client) CreateConversation(ctx context.Context, otherUserID string) (string, error) {
	body, err := json.Marshal(map[string]string{"otherUserId": otherUserID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/chat/new", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var payload struct {
		ChatID string `json:"chatId"`
	}
	if err := c.do(req, &payload); err != nil {
		return "", errors.Wrap(err, "create conversation")
	}
	return payload.ChatID, nil
}

// SendMessage posts one outbound message with text and/or a single
// image attachment as a multipart form.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string, image *chat.ImageUpload) (chat.Message, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("chatId", conversationID); err != nil {
		return chat.Message{}, err
	}
	if strings.TrimSpace(text) != "" {
		if err := form.WriteField("text", text); err != nil {
			return chat.Message{}, err
		}
	}
	if image != nil {
		part, err := form.CreateFormFile("image", image.Filename)
		if err != nil {
			return chat.Message{}, err
		}
		if _, err := io.Copy(part, image.Reader); err != nil {
			return chat.Message{}, errors.Wrap(err, "read image attachment")
		}
	}
	if err := form.Close(); err != nil {
		return chat.Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/message", &buf)
	if err != nil {
		return chat.Message{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var payload struct {
		Message chat.Message `json:"message"`
		Sender  string       `json:"sender"`
	}
	if err := c.do(req, &payload); err != nil {
		return chat.Message{}, errors.Wrap(err, "send message")
	}
	return payload.Message, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// readErrorMessage pulls the error string out of a JSON error body,
// tolerating any other shape.
func readErrorMessage(r io.Reader) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
