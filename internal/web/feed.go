package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rbright/polyglot/internal/ipc"
	"github.com/rbright/polyglot/internal/workspace"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	responseBuffer = 8
)

// Message types sent to feed clients.
const (
	MessageState    = "state"
	MessageResponse = "response"
)

// Envelope is one server-to-client feed message.
type Envelope struct {
	Type     string              `json:"type"`
	ClientID string              `json:"client_id,omitempty"`
	State    *workspace.Snapshot `json:"state,omitempty"`
	Response *ipc.Response       `json:"response,omitempty"`
}

// feedClient is one WebSocket connection. State pushes coalesce so a slow
// client only ever receives the newest snapshot.
type feedClient struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	latest *workspace.Snapshot

	wake      chan struct{}
	responses chan ipc.Response
	done      chan struct{}
	closeOnce sync.Once
}

func newFeedClient(conn *websocket.Conn) *feedClient {
	return &feedClient{
		id:        uuid.NewString(),
		conn:      conn,
		wake:      make(chan struct{}, 1),
		responses: make(chan ipc.Response, responseBuffer),
		done:      make(chan struct{}),
	}
}

func (c *feedClient) pushState(snap workspace.Snapshot) {
	c.mu.Lock()
	c.latest = &snap
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *feedClient) takeState() *workspace.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.latest
	c.latest = nil
	return snap
}

func (c *feedClient) pushResponse(resp ipc.Response) {
	select {
	case c.responses <- resp:
	case <-c.done:
	}
}

func (c *feedClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *feedClient) write(envelope Envelope) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(envelope)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logDebug("websocket upgrade failed", "error", err.Error())
		return
	}

	client := newFeedClient(conn)
	s.logInfo("feed client connected", "client_id", client.id, "remote", r.RemoteAddr)

	client.pushState(s.ws.Snapshot())
	unsubscribe := s.ws.Subscribe(client.pushState)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(client)
	}()

	s.readLoop(r, client)

	unsubscribe()
	client.close()
	<-writerDone
	s.logInfo("feed client disconnected", "client_id", client.id)
}

// readLoop runs commands received from the client until the connection drops.
func (s *Server) readLoop(r *http.Request, client *feedClient) {
	conn := client.conn
	conn.SetReadLimit(maxCommandBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logDebug("feed read failed", "client_id", client.id, "error", err.Error())
			}
			return
		}

		var req ipc.Request
		if err := json.Unmarshal(message, &req); err != nil {
			client.pushResponse(ipc.Response{OK: false, Error: "decode request: " + err.Error()})
			continue
		}
		s.logDebug("feed command", "client_id", client.id, "command", req.Command)
		client.pushResponse(s.ws.Handle(r.Context(), req))
	}
}

func (s *Server) writeLoop(client *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	first := true
	for {
		select {
		case <-client.done:
			return
		case <-client.wake:
			snap := client.takeState()
			if snap == nil {
				continue
			}
			envelope := Envelope{Type: MessageState, State: snap}
			if first {
				envelope.ClientID = client.id
				first = false
			}
			if err := client.write(envelope); err != nil {
				s.logDebug("feed write failed", "client_id", client.id, "error", err.Error())
				client.close()
				return
			}
		case resp := <-client.responses:
			if err := client.write(Envelope{Type: MessageResponse, Response: &resp}); err != nil {
				s.logDebug("feed write failed", "client_id", client.id, "error", err.Error())
				client.close()
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.close()
				return
			}
		}
	}
}
