package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mmuslimabdulj/goat-rooms/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store/memory"
	"github.com/mmuslimabdulj/goat-rooms/internal/usecase/room"
)

var testOrigins = []string{"http://localhost:8080", "http://localhost:3000"}

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	backend := memory.New()
	engine := room.New(backend, room.Init[domain.Fields, domain.PlayerData, domain.Fields]{
		Game: domain.Fields{},
	}, room.Options{})
	rm := ws.NewRoomManager(engine, ws.ManagerConfig{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rm.Shutdown(ctx)
		_ = backend.Close()
	})
	return NewHandler(rm, testOrigins)
}

// === SECURITY TESTS ===

func TestSanitizeRoomName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal name", "Test Room", "Test Room"},
		{"Empty defaults", "", "Game Room"},
		{"Whitespace only", "   ", "Game Room"},
		{"HTML tags stripped", "<script>alert('xss')</script>Room", "alert('xss')Room"},
		{"Long name truncated", strings.Repeat("a", 100), strings.Repeat("a", 40)},
		{"Trim whitespace", "  Room Name  ", "Room Name"},
		{"Control chars removed", "Room\x00Name\x1F", "RoomName"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := sanitizeRoomName(tc.input)
			if result != tc.expected {
				t.Errorf("Expected '%s', got '%s'", tc.expected, result)
			}
		})
	}
}

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		origin   string
		allowed  []string
		expected bool
	}{
		{"http://localhost:8080", testOrigins, true},
		{"http://localhost:3000", testOrigins, true},
		{"", testOrigins, true}, // Empty origin allowed (same-origin)
		{"http://evil.com", testOrigins, false},
		{"https://attacker.com", nil, false},
		{"https://anything.com", []string{"*"}, true},
	}

	for _, tc := range tests {
		result := isOriginAllowed(tc.origin, tc.allowed)
		if result != tc.expected {
			t.Errorf("isOriginAllowed(%s) = %v, expected %v", tc.origin, result, tc.expected)
		}
	}
}

func TestHandleLobby(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	h.HandleLobby(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<!doctype html>") {
		t.Error("Expected a full HTML page")
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "no-store") {
		t.Error("Expected Cache-Control header to contain 'no-store'")
	}
	if w.Header().Get("Pragma") != "no-cache" {
		t.Error("Expected Pragma header to be 'no-cache'")
	}

	req = httptest.NewRequest("GET", "/random", nil)
	w = httptest.NewRecorder()
	h.HandleLobby(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for invalid path, got %d", w.Code)
	}
}

func TestHandleRoom(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/room", nil)
	w := httptest.NewRecorder()
	h.HandleRoom(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `id="players"`) {
		t.Error("Expected room page markup")
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "no-store") {
		t.Error("Expected Cache-Control header to contain 'no-store'")
	}
}

func TestHandleCreateRoom(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantName   string
	}{
		{"Valid", "POST", `{"name": "Test Room"}`, http.StatusOK, "Test Room"},
		{"Empty name defaults", "POST", `{"name": ""}`, http.StatusOK, "Game Room"},
		{"Sanitizes", "POST", `{"name": "<script>evil</script>My Room"}`, http.StatusOK, "evilMy Room"},
		{"Invalid JSON", "POST", `{invalid json}`, http.StatusBadRequest, ""},
		{"Wrong method", "GET", ``, http.StatusMethodNotAllowed, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := setupTestHandler(t)
			req := httptest.NewRequest(tc.method, "/api/room/create", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()
			h.HandleCreateRoom(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("Expected status %d, got %d", tc.wantStatus, w.Code)
			}
			if tc.wantStatus != http.StatusOK {
				return
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got %s", ct)
			}

			var res map[string]string
			json.NewDecoder(w.Body).Decode(&res)
			if res["name"] != tc.wantName {
				t.Errorf("Expected room name %q, got %q", tc.wantName, res["name"])
			}
			if !h.roomManager.RoomExists(res["code"]) {
				t.Errorf("Expected room %s to be registered", res["code"])
			}
		})
	}
}

func TestHandleJoinRoom(t *testing.T) {
	h := setupTestHandler(t)
	r := h.roomManager.CreateRoom("Joinable Room")

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"Valid", "POST", `{"code": "` + r.Code + `"}`, http.StatusOK},
		{"Upper case code", "POST", `{"code": " ` + strings.ToUpper(r.Code) + ` "}`, http.StatusOK},
		{"Unknown code", "POST", `{"code": "abcdefabcdef"}`, http.StatusNotFound},
		{"Malformed code", "POST", `{"code": "a/b"}`, http.StatusNotFound},
		{"Empty code", "POST", `{"code": ""}`, http.StatusNotFound},
		{"Invalid JSON", "POST", `{invalid}`, http.StatusBadRequest},
		{"Wrong method", "GET", ``, http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/room/join", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()
			h.HandleJoinRoom(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, w.Code)
			}
		})
	}
}

func TestHandleWebSocket_BadRequests(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()
	h.HandleWebSocket(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for missing room code, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/ws?room=invalid-code", nil)
	w = httptest.NewRecorder()
	h.HandleWebSocket(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for invalid room code, got %d", w.Code)
	}
}

func TestHandleWebSocket_Attaches(t *testing.T) {
	h := setupTestHandler(t)
	r := h.roomManager.CreateRoom("Live")

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=" + r.Code
	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://localhost:8080"}})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	gotToken := false
	deadline := time.Now().Add(2 * time.Second)
	for !gotToken && time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			var msg domain.Message
			if err := json.Unmarshal([]byte(line), &msg); err == nil && msg.Type == domain.MessageTypeSessionToken {
				gotToken = true
			}
		}
	}
	if !gotToken {
		t.Error("Expected a session token frame")
	}
}

func TestHandleWebSocket_RejectsForeignOrigin(t *testing.T) {
	h := setupTestHandler(t)
	r := h.roomManager.CreateRoom("Live")

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=" + r.Code
	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://evil.com"}})
	if err == nil {
		t.Fatal("Expected foreign origin to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}
