package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/nandovm/chatcore/internal/model/chat"
	"github.com/nandovm/chatcore/pkg/utils"
)

const maxUploadBytes = 10 << 20

// Handler exposes the message-service REST contract plus the websocket
// endpoint of the push hub.
type Handler struct {
	store    *Store
	hub      *Hub
	upgrader websocket.Upgrader
}

// New creates the devserver handler.
func New(store *Store, hub *Hub) *Handler {
	return &Handler{
		store: store,
		hub:   hub,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the REST contract.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/new", h.handleCreateConversation)
	r.Get("/chat/all", h.handleListConversations)
	r.Get("/message/{chatID}", h.handleSnapshot)
	r.Post("/message", h.handleSendMessage)
}

// requesterID resolves the caller. The devserver trusts the bearer
// token to be the user id; real deployments verify a credential here.
func requesterID(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer"))
	return token
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := requesterID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var payload struct {
		OtherUserID string `json:"otherUserId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.OtherUserID == "" || payload.OtherUserID == userID {
		utils.RespondError(w, http.StatusBadRequest, "otherUserId is required")
		return
	}

	h.store.UpsertUser(chat.User{ID: userID})
	h.store.UpsertUser(chat.User{ID: payload.OtherUserID})
	id := h.store.CreateConversation(userID, payload.OtherUserID)
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"chatId": id})
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := requesterID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	summaries := h.store.Summaries(userID)
	if summaries == nil {
		summaries = []chat.ConversationSummary{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": summaries})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := requesterID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	chatID := chi.URLParam(r, "chatID")

	snap, err := h.store.Snapshot(chatID, userID)
	switch {
	case errors.Is(err, ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	case errors.Is(err, ErrNotMember):
		utils.RespondError(w, http.StatusForbidden, "not a member of this conversation")
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID := requesterID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	chatID := r.FormValue("chatId")
	text := r.FormValue("text")

	var image *chat.Image
	if file, header, err := r.FormFile("image"); err == nil {
		// The devserver does not persist blobs; it hands back a
		// content-addressed reference the way the real service would.
		file.Close()
		id := uuid.NewString()
		image = &chat.Image{
			URL:      "/uploads/" + id + "/" + header.Filename,
			PublicID: id,
		}
	}

	if strings.TrimSpace(text) == "" && image == nil {
		utils.RespondError(w, http.StatusBadRequest, "message has no content")
		return
	}
	if !h.store.Member(chatID, userID) {
		utils.RespondError(w, http.StatusForbidden, "not a member of this conversation")
		return
	}

	msg, err := h.store.AppendMessage(chatID, userID, text, image)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.hub.DeliverMessage(msg)

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"message": msg,
		"sender":  userID,
	})
}

// HandleSocket upgrades the connection and attaches it to the hub.
func (h *Handler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	userID := requesterID(r)
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	h.store.UpsertUser(chat.User{ID: userID})

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	h.hub.Serve(userID, conn)
}
