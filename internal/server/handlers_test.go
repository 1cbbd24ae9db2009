package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nandovm/chatcore/internal/model/chat"
)

func setupRouter() (http.Handler, *Store) {
	store := NewStore()
	hub := NewHub(store)
	return NewRouter(store, hub), store
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateConversationEndpoint(t *testing.T) {
	router, _ := setupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat/new", "alice",
		map[string]string{"otherUserId": "bob"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		ChatID string `json:"chatId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ChatID == "" {
		t.Fatal("expected a chat id")
	}

	// Repeating the request hands back the same conversation.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/chat/new", "bob",
		map[string]string{"otherUserId": "alice"})
	var again struct {
		ChatID string `json:"chatId"`
	}
	json.Unmarshal(rec.Body.Bytes(), &again)
	if again.ChatID != payload.ChatID {
		t.Fatalf("expected %s, got %s", payload.ChatID, again.ChatID)
	}
}

func TestCreateConversationRejectsBadRequests(t *testing.T) {
	router, _ := setupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat/new", "",
		map[string]string{"otherUserId": "bob"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/chat/new", "alice",
		map[string]string{"otherUserId": "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self-chat, got %d", rec.Code)
	}
}

func TestListConversationsEndpoint(t *testing.T) {
	router, store := setupRouter()
	id := store.CreateConversation("alice", "bob")
	store.AppendMessage(id, "bob", "hi alice", nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/chat/all", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Chats []chat.ConversationSummary `json:"chats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Chats) != 1 {
		t.Fatalf("expected one chat, got %d", len(payload.Chats))
	}
	if payload.Chats[0].UnseenCount != 1 {
		t.Fatalf("expected unseen=1, got %d", payload.Chats[0].UnseenCount)
	}

	// A user with no conversations gets an empty list, not null.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/chat/all", "carol", nil)
	if body := rec.Body.String(); bytes.Contains([]byte(body), []byte(`"chats":null`)) {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	router, store := setupRouter()
	store.UpsertUser(chat.User{ID: "bob", Name: "Bob"})
	id := store.CreateConversation("alice", "bob")
	store.AppendMessage(id, "bob", "hello", nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/message/"+id, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var snap chat.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Messages) != 1 || snap.User.Name != "Bob" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/message/"+id, "carol", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/message/missing", "alice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func sendMultipart(t *testing.T, router http.Handler, token, chatID, text, filename string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	form.WriteField("chatId", chatID)
	if text != "" {
		form.WriteField("text", text)
	}
	if filename != "" {
		part, err := form.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte("bytes"))
	}
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/message", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSendMessageEndpoint(t *testing.T) {
	router, store := setupRouter()
	id := store.CreateConversation("alice", "bob")

	rec := sendMultipart(t, router, "alice", id, "hello bob", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Message chat.Message `json:"message"`
		Sender  string       `json:"sender"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Sender != "alice" || payload.Message.Text != "hello bob" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSendImageMessageEndpoint(t *testing.T) {
	router, store := setupRouter()
	id := store.CreateConversation("alice", "bob")

	rec := sendMultipart(t, router, "alice", id, "", "cat.png")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Message chat.Message `json:"message"`
	}
	json.Unmarshal(rec.Body.Bytes(), &payload)
	if payload.Message.Type != chat.MessageImage {
		t.Fatalf("expected image message, got %s", payload.Message.Type)
	}
	if payload.Message.Image == nil || payload.Message.Image.URL == "" {
		t.Fatalf("expected image reference, got %+v", payload.Message.Image)
	}
}

func TestSendMessageValidation(t *testing.T) {
	router, store := setupRouter()
	id := store.CreateConversation("alice", "bob")

	rec := sendMultipart(t, router, "alice", id, "   ", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", rec.Code)
	}

	rec = sendMultipart(t, router, "carol", id, "let me in", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", rec.Code)
	}
}
