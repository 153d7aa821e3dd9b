package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"g1-quiz-service/internal/domain"
)

// Document keys mirror the store paths the mobile app used:
// scoreboard/stats, {failed,completed,notCompleted}/latest, and the tests
// collection.
const (
	scoreboardKey     = "scoreboard:stats"
	scoreboardChannel = "scoreboard:updates"
	testsKey          = "tests"
)

// ProgressStore persists quiz progress in Redis. Each question-state set and
// the scoreboard live in a single JSON document under a fixed key; history
// entries are members of a sorted set scored by their timestamp. Writes are
// plain SETs, last-write-wins; scoreboard writes additionally publish the
// new document so watchers get snapshot-listener semantics.
type ProgressStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client, clock: time.Now}
}

type questionSetDoc struct {
	Questions []domain.Question `json:"questions"`
}

func (s *ProgressStore) Scoreboard(ctx context.Context) (domain.Scoreboard, error) {
	raw, err := s.client.Get(ctx, scoreboardKey).Bytes()
	if err == redis.Nil {
		return domain.Scoreboard{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domain.Scoreboard{}, fmt.Errorf("get scoreboard: %w", err)
	}
	var sb domain.Scoreboard
	if err := json.Unmarshal(raw, &sb); err != nil {
		return domain.Scoreboard{}, fmt.Errorf("decode scoreboard: %w", err)
	}
	return sb, nil
}

func (s *ProgressStore) PutScoreboard(ctx context.Context, sb domain.Scoreboard) error {
	data, err := json.Marshal(sb)
	if err != nil {
		return fmt.Errorf("encode scoreboard: %w", err)
	}
	if err := s.client.Set(ctx, scoreboardKey, data, 0).Err(); err != nil {
		return fmt.Errorf("put scoreboard: %w", err)
	}
	// Best-effort notify; a lost publish only delays watchers until the next write.
	_ = s.client.Publish(ctx, scoreboardChannel, data).Err()
	return nil
}

func (s *ProgressStore) Questions(ctx context.Context, set domain.SetName) ([]domain.Question, error) {
	raw, err := s.client.Get(ctx, questionSetKey(set)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s questions: %w", set, err)
	}
	var doc questionSetDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s questions: %w", set, err)
	}
	return doc.Questions, nil
}

func (s *ProgressStore) PutQuestions(ctx context.Context, set domain.SetName, qs []domain.Question) error {
	if qs == nil {
		qs = []domain.Question{}
	}
	data, err := json.Marshal(questionSetDoc{Questions: qs})
	if err != nil {
		return fmt.Errorf("encode %s questions: %w", set, err)
	}
	if err := s.client.Set(ctx, questionSetKey(set), data, 0).Err(); err != nil {
		return fmt.Errorf("put %s questions: %w", set, err)
	}
	return nil
}

// AppendTestRecord assigns the server timestamp and ID here, then adds the
// entry to the tests sorted set scored by that timestamp. Each append is
// independent; there is no merge.
func (s *ProgressStore) AppendTestRecord(ctx context.Context, rec domain.TestRecord) error {
	now := s.clock()
	rec.Timestamp = now
	rec.ID = fmt.Sprintf("test-%d", now.UnixNano())
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode test record: %w", err)
	}
	err = s.client.ZAdd(ctx, testsKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("append test record: %w", err)
	}
	return nil
}

func (s *ProgressStore) TestRecords(ctx context.Context) ([]domain.TestRecord, error) {
	members, err := s.client.ZRevRange(ctx, testsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list test records: %w", err)
	}
	records := make([]domain.TestRecord, 0, len(members))
	for _, member := range members {
		var rec domain.TestRecord
		if err := json.Unmarshal([]byte(member), &rec); err != nil {
			return nil, fmt.Errorf("decode test record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ClearTestRecords removes entries one by one, best-effort: a failure
// partway leaves the remainder in place, matching the non-transactional
// bulk delete of the original store.
func (s *ProgressStore) ClearTestRecords(ctx context.Context) error {
	members, err := s.client.ZRange(ctx, testsKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list test records for clear: %w", err)
	}
	var firstErr error
	for _, member := range members {
		if err := s.client.ZRem(ctx, testsKey, member).Err(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove test record: %w", err)
		}
	}
	return firstErr
}

// WatchScoreboard emits the current snapshot and then every published
// scoreboard write. stop unsubscribes and closes the channel; callers must
// invoke it when the watcher goes away.
func (s *ProgressStore) WatchScoreboard(ctx context.Context) (<-chan domain.Scoreboard, func(), error) {
	sub := s.client.Subscribe(ctx, scoreboardChannel)
	// Force the subscription onto the wire before reading the snapshot, so
	// no write can land between snapshot and subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe scoreboard: %w", err)
	}

	var initial domain.Scoreboard
	if sb, err := s.Scoreboard(ctx); err == nil {
		initial = sb
	}

	out := make(chan domain.Scoreboard, 8)
	out <- initial

	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var sb domain.Scoreboard
				if err := json.Unmarshal([]byte(msg.Payload), &sb); err != nil {
					continue
				}
				select {
				case out <- sb:
				case <-done:
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var stopped bool
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		_ = sub.Close()
	}
	return out, stop, nil
}

func questionSetKey(set domain.SetName) string {
	return "questions:" + string(set)
}
