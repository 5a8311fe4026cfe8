package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/registry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	msgJoinQuiz     = "joinQuiz"
	msgLeaveQuiz    = "leaveQuiz"
	msgAnswer       = "answer"
	msgJoined       = "joined"
	msgLeft         = "left"
	msgAnswerResult = "answerResult"
	msgError        = "error"
)

type WSHandler struct {
	quizzes  *app.QuizService
	attempts *app.AttemptService
	registry *registry.Registry
	hub      *Hub
	users    UserContext
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewWSHandler(quizzes *app.QuizService, attempts *app.AttemptService, reg *registry.Registry, hub *Hub, users UserContext) *WSHandler {
	return &WSHandler{
		quizzes:  quizzes,
		attempts: attempts,
		registry: reg,
		hub:      hub,
		users:    users,
		validate: validator.New(),
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

type roomPayload struct {
	QuizID string `json:"quizId" validate:"required"`
}

type answerPayload struct {
	QuizID     string `json:"quizId" validate:"required"`
	QuestionID string `json:"questionId" validate:"required"`
	Answer     string `json:"answer"`
}

type joinedPayload struct {
	ConnectionID string          `json:"connectionId"`
	Quiz         app.QuizSummary `json:"quiz"`
	Attempt      app.AttemptView `json:"attempt"`
}

type leftPayload struct {
	QuizID string `json:"quizId"`
}

// ServeWS upgrades HTTP requests to websockets. A connection joins quiz rooms
// with joinQuiz, answers with answer, and receives scoring pushes through the hub.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := h.users.UserID(r)
	if err != nil {
		writeError(w, errUnauthenticated)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	// Server read/write timeouts carry over to the hijacked connection.
	_ = conn.NetConn().SetDeadline(time.Time{})

	connectionID := uuid.NewString()
	send := h.hub.Register(connectionID)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error on %s: %v", connectionID, err)
				// Unblock the reader; the deferred cleanup closes the queue.
				_ = conn.Close()
				for range send {
				}
				return
			}
		}
	}()
	log.Printf("ws: user %s connected as %s", userID, connectionID)

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(ctx, connectionID, userID, inbound)
	}

	h.registry.Disconnect(connectionID)
	h.hub.Unregister(connectionID)
	<-writerDone
	log.Printf("ws: connection %s closed", connectionID)
}

func (h *WSHandler) dispatch(ctx context.Context, connectionID, userID string, inbound inboundMessage) {
	switch inbound.Type {
	case msgJoinQuiz:
		var payload roomPayload
		if err := h.decode(inbound.Payload, &payload); err != nil {
			h.reply(connectionID, msgError, err)
			return
		}
		joined, err := h.join(ctx, connectionID, userID, payload.QuizID)
		if err != nil {
			h.reply(connectionID, msgError, err)
			return
		}
		h.reply(connectionID, msgJoined, joined)

	case msgLeaveQuiz:
		var payload roomPayload
		if err := h.decode(inbound.Payload, &payload); err != nil {
			h.reply(connectionID, msgError, err)
			return
		}
		h.registry.Leave(connectionID, payload.QuizID)
		h.reply(connectionID, msgLeft, leftPayload{QuizID: payload.QuizID})

	case msgAnswer:
		var payload answerPayload
		if err := h.decode(inbound.Payload, &payload); err != nil {
			h.reply(connectionID, msgError, err)
			return
		}
		result, err := h.attempts.SubmitAnswer(ctx, userID, payload.QuizID, payload.QuestionID, payload.Answer)
		if err != nil {
			h.reply(connectionID, msgError, err)
			return
		}
		h.reply(connectionID, msgAnswerResult, result)

	default:
		h.reply(connectionID, msgError, domain.Invalid("unsupported message type %q", inbound.Type))
	}
}

// join checks the quiz, starts or resumes the user's attempt and only then
// puts the connection in the room.
func (h *WSHandler) join(ctx context.Context, connectionID, userID, quizID string) (joinedPayload, error) {
	summary, err := h.quizzes.Summary(ctx, quizID)
	if err != nil {
		return joinedPayload{}, err
	}
	attempt, err := h.attempts.StartAttempt(ctx, userID, quizID)
	if err != nil {
		return joinedPayload{}, err
	}
	h.registry.Join(connectionID, quizID, userID)
	return joinedPayload{
		ConnectionID: connectionID,
		Quiz:         summary,
		Attempt:      app.NewAttemptView(attempt),
	}, nil
}

func (h *WSHandler) decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.Invalid("invalid payload")
	}
	return h.validate.Struct(dst)
}

func (h *WSHandler) reply(connectionID, event string, payload any) {
	if err, ok := payload.(error); ok {
		_, body := classify(err)
		payload = body
	}
	if err := h.hub.SendToConnection(connectionID, event, payload); err != nil {
		log.Printf("ws: reply %s to %s dropped: %v", event, connectionID, err)
	}
}
