package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"g1-quiz-service/internal/app"
	"g1-quiz-service/internal/domain"
	"g1-quiz-service/internal/infra/memory"
)

func TestWebSocketFreshQuizFlow(t *testing.T) {
	progress, server := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "/ws/quiz?mode=fresh")
	defer conn.Close()

	answers := map[string]string{
		"1": "Stop, then proceed when safe",
		"2": "50 km/h",
	}

	for i := 0; i < len(answers); i++ {
		typ, payload := readNext(conn, t, "question")
		q := payload["question"].(map[string]any)
		id := q["id"].(string)
		if typ != "question" {
			t.Fatalf("expected question, got %s", typ)
		}

		if err := conn.WriteJSON(map[string]any{
			"type":    "answer",
			"payload": map[string]any{"answer": answers[id]},
		}); err != nil {
			t.Fatalf("write answer: %v", err)
		}

		_, result := readNext(conn, t, "answerResult")
		if result["correct"] != true {
			t.Fatalf("expected correct answer for question %s, got %+v", id, result)
		}
	}

	_, finished := readNext(conn, t, "finished")
	if finished["score"].(float64) != 2 || finished["total"].(float64) != 2 {
		t.Fatalf("expected 2/2, got %+v", finished)
	}

	// Completion writes are detached; poll until the scoreboard lands.
	deadline := time.Now().Add(5 * time.Second)
	for {
		sb := progress.Scoreboard(context.Background())
		if sb == (domain.Scoreboard{Attempts: 1, Wins: 1, Losses: 0}) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scoreboard never updated, got %+v", sb)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketRetryWithNothingFailed(t *testing.T) {
	_, server := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "/ws/quiz?mode=retry")
	defer conn.Close()

	typ, _ := readNext(conn, t, "")
	if typ != "empty" {
		t.Fatalf("expected empty session frame, got %s", typ)
	}
}

func TestWebSocketScoreboardStream(t *testing.T) {
	progress, server := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "/ws/scoreboard")
	defer conn.Close()

	_, initial := readNext(conn, t, "scoreboard")
	if initial["attempts"].(float64) != 0 {
		t.Fatalf("expected zero initial scoreboard, got %+v", initial)
	}

	progress.UpdateScoreboard(context.Background(), true)

	_, update := readNext(conn, t, "scoreboard")
	if update["attempts"].(float64) != 1 || update["wins"].(float64) != 1 {
		t.Fatalf("expected updated scoreboard, got %+v", update)
	}
}

func newTestServer(t *testing.T) (*app.Progress, *httptest.Server) {
	t.Helper()
	store := memory.NewProgressStore()
	progress := app.NewProgress(store, nil)
	bankRepo := memory.NewBankCache(memory.NewStaticBankLoader(sampleBank()), time.Minute)
	quizService := app.NewQuizService(progress, bankRepo, 0, nil)
	wsHandler := NewWSHandler(quizService, progress, 10*time.Millisecond, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/quiz", wsHandler.ServeQuiz)
	mux.HandleFunc("/ws/scoreboard", wsHandler.ServeScoreboard)
	return progress, httptest.NewServer(mux)
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func sampleBank() []domain.Question {
	return []domain.Question{
		{
			ID:       "1",
			Question: "What does a flashing red light mean?",
			Options:  []string{"Stop, then proceed when safe", "Slow down"},
			Answer:   "Stop, then proceed when safe",
		},
		{
			ID:       "2",
			Question: "What is the urban speed limit unless posted?",
			Options:  []string{"50 km/h", "60 km/h"},
			Answer:   "50 km/h",
		},
	}
}
