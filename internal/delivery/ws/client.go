package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/usecase"
	"github.com/mmuslimabdulj/goat-rooms/internal/usecase/room"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second // Relaxed to 60s for mobile stability

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// Client bridges one websocket connection to one room session
type Client struct {
	ID      string // store identity, set by Attach
	room    *Room
	manager *RoomManager
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	session *Session
	log     zerolog.Logger

	closeOnce sync.Once

	mu         sync.Mutex
	suggestion usecase.Suggestion
}

// NewClient creates a new Client
func NewClient(manager *RoomManager, r *Room, conn *websocket.Conn) *Client {
	return &Client{
		room:    r,
		manager: manager,
		conn:    conn,
		send:    make(chan []byte, 256),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(manager.cfg.MessageLimit, manager.cfg.MessageBurst),
		log:     log.With().Str("module", "ws").Str("room", r.Code).Logger(),
	}
}

// Attach attaches the client to its room, resuming the identity behind
// token when it is valid for this room, and sends a fresh reconnect token
func (c *Client) Attach(ctx context.Context, token string) error {
	opts := []room.AttachOption{room.WithErrorHandler(c.reportError)}
	if token != "" {
		if prior, ok := c.manager.tokens.ValidateToken(token, c.room.Code); ok {
			opts = append(opts, room.WithIdentity(prior.Identity))
		}
	}

	s, err := c.manager.engine.Attach(ctx, c.room.Code, c.onView, opts...)
	if err != nil {
		return err
	}
	c.session = s
	c.ID = s.Identity()
	c.manager.track(s)

	c.sendFrame(domain.MessageTypeSessionToken, domain.SessionTokenPayload{
		Token:    c.manager.tokens.GenerateToken(c.ID, c.room.Code),
		Identity: c.ID,
	})
	return nil
}

// ReadPump pumps frames from the websocket connection into the session
func (c *Client) ReadPump() {
	defer c.close()

	c.conn.SetReadLimit(c.manager.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("connection closed")
			}
			break
		}

		if !c.limiter.Allow() {
			c.log.Debug().Msg("frame dropped: rate limited")
			continue
		}

		var incoming domain.Message
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.reportError(domain.Wrap(domain.CodeInvalidInput, "decode frame", err))
			continue
		}
		c.handle(incoming)
	}
}

// WritePump pumps frames from the send queue to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send adds a frame to the client's send queue
func (c *Client) Send(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.log.Warn().Msg("send buffer full, frame dropped")
	}
}

// close leaves the room and stops the write pump
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.session != nil {
			if err := c.manager.release(c.session); err != nil {
				c.log.Warn().Err(err).Msg("teardown failed")
			}
		}
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) sendFrame(t domain.MessageType, payload any) {
	msg, err := domain.NewMessage(t, payload)
	if err != nil {
		c.log.Error().Err(err).Str("type", string(t)).Msg("encode frame")
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Str("type", string(t)).Msg("encode frame")
		return
	}
	c.Send(data)
}

// reportError forwards a failed operation to the browser
func (c *Client) reportError(err error) {
	if err == nil {
		return
	}
	payload := domain.ErrorPayload{Message: err.Error()}
	if code, ok := domain.CodeOf(err); ok {
		payload.Code = string(code)
	}
	c.log.Debug().Err(err).Msg("operation failed")
	c.sendFrame(domain.MessageTypeError, payload)
}

// onView pushes the projection to the browser
func (c *Client) onView(v View) {
	var suggested string
	if !v.Joined {
		suggested = c.suggest(v.PlayerList)
	}
	c.sendFrame(domain.MessageTypeView, BuildViewPayload(c.room, v, suggested))
}

// suggest keeps offering the same name until someone else takes it
func (c *Client) suggest(taken []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.suggestion.Name == "" || domain.NameTaken(taken, c.suggestion.Name) {
		c.suggestion = c.manager.suggester.Suggest(taken)
	}
	return c.suggestion.Name
}
