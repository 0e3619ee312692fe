// Package stream is the observer surface: a persistent WebSocket that
// binds to one session and receives its broadcast events, and that
// accepts inbound verification values the way the UI submits them.
package stream

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/formpilot/formpilot/internal/broadcast"
	"github.com/formpilot/formpilot/internal/workflow"
	"github.com/formpilot/formpilot/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server bridges WebSocket connections and the broadcaster.
type Server struct {
	events *broadcast.Broadcaster
	orc    *workflow.Orchestrator
}

func NewServer(events *broadcast.Broadcaster, orc *workflow.Orchestrator) *Server {
	return &Server{events: events, orc: orc}
}

// inbound is a client frame: subscribe binds the connection to a
// session; input resolves a pending verification.
type inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	InputType string `json:"inputType,omitempty"`
	Value     string `json:"value,omitempty"`
}

// wsSink writes broadcast events to one connection. gorilla/websocket
// allows a single concurrent writer, so writes are serialized here.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(event)
}

func (s *wsSink) sendRaw(frame interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(frame)
}

// HandleConnection upgrades and serves one observer until it disconnects.
// The broadcaster holds no reference afterwards.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	subscriberID := s.events.Subscribe(sink)
	defer s.events.Unsubscribe(subscriberID)

	log.Printf("stream: observer %s connected", subscriberID)

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("stream: observer %s read error: %v", subscriberID, err)
			}
			break
		}
		s.handleMessage(sink, subscriberID, msg)
	}

	log.Printf("stream: observer %s disconnected", subscriberID)
}

func (s *Server) handleMessage(sink *wsSink, subscriberID string, msg inbound) {
	switch msg.Type {
	case "subscribe":
		if msg.SessionID == "" {
			s.sendError(sink, "subscribe requires sessionId")
			return
		}
		s.events.Bind(subscriberID, msg.SessionID)
		sink.sendRaw(map[string]interface{}{
			"type":      "subscribed",
			"sessionId": msg.SessionID,
		})

	case "input":
		req := models.InputRequest{
			SessionID: msg.SessionID,
			InputType: msg.InputType,
			Value:     msg.Value,
		}
		if err := req.Validate(); err != nil {
			s.sendError(sink, err.Error())
			return
		}
		// Resolution blocks until the workflow consumed the value;
		// run it off the read loop so the observer keeps receiving
		// events in the meantime.
		go func() {
			if _, err := s.orc.SubmitInput(context.Background(), req); err != nil {
				s.sendError(sink, err.Error())
			}
		}()

	default:
		s.sendError(sink, "unknown message type: "+msg.Type)
	}
}

func (s *Server) sendError(sink *wsSink, message string) {
	sink.sendRaw(map[string]interface{}{
		"type":  "error",
		"error": message,
	})
}
