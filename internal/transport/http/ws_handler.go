package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quizrally/internal/domain"
	"quizrally/internal/game"
)

// Local event kinds for connection-scoped messages; everything game-related
// flows through the hub as domain events.
const (
	kindSessionCreated domain.EventKind = "session_created"
	kindJoined         domain.EventKind = "joined"
	kindError          domain.EventKind = "error"
)

type WSHandler struct {
	service  *game.Service
	hub      *RoomHub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *game.Service, hub *RoomHub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int    `json:"questionIndex"`
	Answer        string `json:"answer"`
}

type sessionCreatedPayload struct {
	Pin       string `json:"pin"`
	SessionID string `json:"sessionId"`
	HostID    string `json:"hostId"`
}

type joinedPayload struct {
	Pin           string `json:"pin"`
	ParticipantID string `json:"participantId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the connection and wires it into a game room. A host
// connects with ?quizId=... to create a session; a participant connects with
// ?pin=...&name=... to join one. userId is minted when absent so guests and
// reconnects both work.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	pin := r.URL.Query().Get("pin")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")

	if quizID == "" && pin == "" {
		http.Error(w, "missing quizId or pin", http.StatusBadRequest)
		return
	}
	if pin != "" && displayName == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	if userID == "" {
		userID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var client *RoomClient

	if quizID != "" {
		createdPin, sessionID, err := h.service.CreateSession(ctx, quizID, userID)
		if err != nil {
			_ = conn.WriteJSON(domain.Event{Kind: kindError, Payload: errorPayload{Message: err.Error()}})
			return
		}
		pin = createdPin
		client = h.hub.Join(pin, userID)
		client.enqueue(domain.Event{Kind: kindSessionCreated, Payload: sessionCreatedPayload{
			Pin:       pin,
			SessionID: sessionID,
			HostID:    userID,
		}})
	} else {
		if err := h.service.Join(ctx, pin, userID, displayName); err != nil {
			_ = conn.WriteJSON(domain.Event{Kind: kindError, Payload: errorPayload{Message: err.Error()}})
			return
		}
		client = h.hub.Join(pin, userID)
		client.enqueue(domain.Event{Kind: kindJoined, Payload: joinedPayload{
			Pin:           pin,
			ParticipantID: userID,
		}})
		// Catch a late joiner or reconnect up on the live question.
		if opened, ok, err := h.service.OpenQuestion(ctx, pin); err == nil && ok {
			client.enqueue(domain.Event{Kind: domain.EventQuestionOpened, Payload: opened})
		}
		if lb, err := h.service.Leaderboard(ctx, pin); err == nil {
			client.enqueue(domain.Event{Kind: domain.EventLeaderboardUpdated, Payload: lb})
		}
	}
	defer h.hub.Leave(pin, client)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for event := range client.Events() {
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			if err := h.service.Start(ctx, pin, userID); err != nil {
				client.enqueue(domain.Event{Kind: kindError, Payload: errorPayload{Message: err.Error()}})
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				client.enqueue(domain.Event{Kind: kindError, Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			if _, err := h.service.SubmitAnswer(ctx, pin, userID, payload.QuestionIndex, payload.Answer, time.Now()); err != nil {
				client.enqueue(domain.Event{Kind: kindError, Payload: errorPayload{Message: err.Error()}})
			}
		case "advance":
			if _, _, err := h.service.Advance(ctx, pin, userID); err != nil {
				client.enqueue(domain.Event{Kind: kindError, Payload: errorPayload{Message: err.Error()}})
			}
		case "end":
			if err := h.service.End(ctx, pin, userID); err != nil {
				client.enqueue(domain.Event{Kind: kindError, Payload: errorPayload{Message: err.Error()}})
			}
		case "leaderboard":
			if lb, err := h.service.Leaderboard(ctx, pin); err == nil {
				client.enqueue(domain.Event{Kind: domain.EventLeaderboardUpdated, Payload: lb})
			}
		default:
			client.enqueue(domain.Event{Kind: kindError, Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	// Reader stopped; Leave (deferred) closes the send channel, which stops
	// the writer.
	h.hub.Leave(pin, client)
	<-writerDone
}
