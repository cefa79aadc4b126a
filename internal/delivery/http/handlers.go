package http

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mmuslimabdulj/goat-rooms/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/view/pages"
)

const defaultRoomName = "Game Room"

var (
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// isOriginAllowed checks if the origin is in the allowed list
func isOriginAllowed(origin string, allowed []string) bool {
	// Empty origin is allowed (same-origin requests)
	if origin == "" {
		return true
	}

	for _, a := range allowed {
		if a == "*" || origin == a {
			return true
		}
	}
	return false
}

// sanitizeRoomName cleans and validates room name input
func sanitizeRoomName(name string) string {
	name = strings.TrimSpace(name)

	if utf8.RuneCountInString(name) > domain.MaxRoomNameLength {
		runes := []rune(name)
		name = string(runes[:domain.MaxRoomNameLength])
	}

	// Remove HTML tags to prevent XSS
	name = htmlTagRegex.ReplaceAllString(name, "")
	name = controlCharRegex.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)

	if name == "" {
		name = defaultRoomName
	}

	return name
}

type Handler struct {
	roomManager *ws.RoomManager
	upgrader    websocket.Upgrader
}

func NewHandler(rm *ws.RoomManager, allowedOrigins []string) *Handler {
	return &Handler{
		roomManager: rm,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return isOriginAllowed(r.Header.Get("Origin"), allowedOrigins)
			},
		},
	}
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Str("module", "http").Msg("write response")
	}
}

// HandleLobby serves the lobby page (create/join room)
func (h *Handler) HandleLobby(w http.ResponseWriter, r *http.Request) {
	noCache(w)
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := pages.Lobby().Render(r.Context(), w); err != nil {
		log.Error().Err(err).Str("module", "http").Msg("render lobby")
	}
}

// HandleCreateRoom registers a new room and returns its code
func (h *Handler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	room := h.roomManager.CreateRoom(sanitizeRoomName(req.Name))
	log.Info().Str("module", "http").Str("room", room.Code).Msg("room created")

	writeJSON(w, http.StatusOK, map[string]string{
		"code": room.Code,
		"name": room.Name,
	})
}

// HandleJoinRoom validates a room code and returns room info
func (h *Handler) HandleJoinRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	code := strings.ToLower(strings.TrimSpace(req.Code))
	if code == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Room not found"})
		return
	}

	room, err := h.roomManager.FindRoom(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Str("module", "http").Str("room", code).Msg("find room")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Store unavailable"})
		return
	}
	if room == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Room not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"code": room.Code,
		"name": room.Name,
	})
}

// HandleRoom serves the room page
// Room code is stored in sessionStorage client-side (not exposed in URL)
func (h *Handler) HandleRoom(w http.ResponseWriter, r *http.Request) {
	noCache(w)
	if err := pages.Room("").Render(r.Context(), w); err != nil {
		log.Error().Err(err).Str("module", "http").Msg("render room")
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and attaches the connection
// to its room, resuming the identity behind a valid token
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("room")
	if code == "" {
		http.Error(w, "Room code required", http.StatusBadRequest)
		return
	}

	room, err := h.roomManager.FindRoom(r.Context(), code)
	if err != nil {
		http.Error(w, "Store unavailable", http.StatusServiceUnavailable)
		return
	}
	if room == nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.roomManager, room, conn)
	if err := client.Attach(r.Context(), r.URL.Query().Get("token")); err != nil {
		log.Warn().Err(err).Str("module", "http").Str("room", code).Msg("attach failed")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "room unavailable"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
