package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"g1-quiz-service/internal/app"
	"g1-quiz-service/internal/domain"
)

// DefaultAnswerDelay is how long the selected answer stays on screen before
// the session advances. The engine transition itself is immediate; the
// delay lives here, on the presentation side.
const DefaultAnswerDelay = 2 * time.Second

type WSHandler struct {
	quiz        *app.QuizService
	progress    *app.Progress
	answerDelay time.Duration
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

func NewWSHandler(quiz *app.QuizService, progress *app.Progress, answerDelay time.Duration, logger *zap.Logger) *WSHandler {
	if answerDelay <= 0 {
		answerDelay = DefaultAnswerDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		quiz:        quiz,
		progress:    progress,
		answerDelay: answerDelay,
		logger:      logger,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionView is the client-facing shape of a question. The answer never
// leaves the server before the client commits a selection.
type questionView struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type questionPayload struct {
	Index    int          `json:"index"`
	Total    int          `json:"total"`
	Question questionView `json:"question"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type answerResultPayload struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
	Score         int    `json:"score"`
	Last          bool   `json:"last"`
}

type finishedPayload struct {
	Score        int `json:"score"`
	Total        int `json:"total"`
	CorrectCount int `json:"correctCount"`
	WrongCount   int `json:"wrongCount"`
}

// ServeQuiz runs one quiz session over a websocket connection. The session
// is confined to this connection's read loop, so writes never race.
func (h *WSHandler) ServeQuiz(w http.ResponseWriter, r *http.Request) {
	mode := app.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = app.ModeFresh
	}
	switch mode {
	case app.ModeFresh, app.ModeRetry, app.ModeTryNew:
	default:
		http.Error(w, "unknown quiz mode", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session, err := h.quiz.StartSession(r.Context(), mode)
	if err != nil {
		h.logger.Error("start session", zap.String("mode", string(mode)), zap.Error(err))
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "could not start session"}})
		return
	}
	if session.Empty() {
		_ = conn.WriteJSON(outboundMessage[map[string]string]{Type: "empty", Payload: map[string]string{"mode": string(mode)}})
		return
	}

	if err := h.sendQuestion(conn, session); err != nil {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(conn, "invalid answer payload")
				continue
			}
			result, err := session.Select(payload.Answer)
			if err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			if err := conn.WriteJSON(outboundMessage[answerResultPayload]{Type: "answerResult", Payload: answerResultPayload{
				Correct:       result.Correct,
				CorrectAnswer: result.CorrectAnswer,
				Score:         result.Score,
				Last:          result.Last,
			}}); err != nil {
				return
			}

			// Hold the marked answer on screen, then move on. The session
			// itself does not own this pause.
			time.Sleep(h.answerDelay)

			if result.Last {
				summary := session.Finish()
				if err := conn.WriteJSON(outboundMessage[finishedPayload]{Type: "finished", Payload: finishedPayload{
					Score:        summary.Score,
					Total:        summary.Total,
					CorrectCount: len(summary.CorrectQuestions),
					WrongCount:   len(summary.WrongQuestions),
				}}); err != nil {
					return
				}
				continue
			}
			if _, err := session.Advance(); err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			if err := h.sendQuestion(conn, session); err != nil {
				return
			}
		case "restart":
			if !session.Finished() {
				h.sendError(conn, "session still in progress")
				continue
			}
			session.Restart()
			if err := h.sendQuestion(conn, session); err != nil {
				return
			}
		default:
			h.sendError(conn, "unsupported message type")
		}
	}
}

// ServeScoreboard streams live scoreboard snapshots. The watch is torn down
// when the client disconnects.
func (h *WSHandler) ServeScoreboard(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, stop, err := h.progress.WatchScoreboard(r.Context())
	if err != nil {
		h.logger.Error("watch scoreboard", zap.Error(err))
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "could not watch scoreboard"}})
		return
	}
	defer stop()

	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case sb, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.Scoreboard]{Type: "scoreboard", Payload: sb}); err != nil {
				return
			}
		case <-readerGone:
			return
		}
	}
}

func (h *WSHandler) sendQuestion(conn *websocket.Conn, session *app.Session) error {
	q := session.Current()
	return conn.WriteJSON(outboundMessage[questionPayload]{Type: "question", Payload: questionPayload{
		Index: session.Index(),
		Total: session.Len(),
		Question: questionView{
			ID:       q.ID,
			Question: q.Question,
			Options:  q.Options,
		},
	}})
}

func (h *WSHandler) sendError(conn *websocket.Conn, msg string) {
	if err := conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: msg}}); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		h.logger.Debug("ws write error", zap.Error(err))
	}
}
