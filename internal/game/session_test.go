package game_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"quizrally/internal/domain"
	"quizrally/internal/game"
	"quizrally/internal/infra/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeHub struct {
	mu     sync.Mutex
	events []domain.Event
	direct map[string][]domain.Event
}

func newFakeHub() *fakeHub {
	return &fakeHub{direct: make(map[string][]domain.Event)}
}

func (h *fakeHub) Publish(_ string, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *fakeHub) PublishTo(_ string, participantID string, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct[participantID] = append(h.direct[participantID], event)
}

func (h *fakeHub) has(kind domain.EventKind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ev := range h.events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func twoQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{Text: "First?", Options: []string{"A", "B", "C"}, CorrectAnswer: "A", TimeLimitSec: 10},
			{Text: "Second?", Options: []string{"A", "B", "C"}, CorrectAnswer: "B", TimeLimitSec: 10},
		},
	}
}

func newTestService(clock *fakeClock, quizzes map[string]domain.Quiz) (*game.Service, *fakeHub, *memory.SessionStore) {
	hub := newFakeHub()
	store := memory.NewSessionStore()
	registry := game.NewRegistry(game.NewPinAllocator(100), time.Minute)
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(quizzes), time.Minute)
	service := game.NewService(registry, repo, game.SessionDeps{
		Rooms: hub,
		Store: store,
		Now:   clock.Now,
	})
	return service, hub, store
}

func TestFullSessionScenario(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, hub, _ := newTestService(clock, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()})

	pin, sessionID, err := service.CreateSession(ctx, "quiz-1", "host")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(pin) != 6 || sessionID == "" {
		t.Fatalf("unexpected pin/session: %q %q", pin, sessionID)
	}

	if err := service.Join(ctx, pin, "u1", "Alice"); err != nil {
		t.Fatalf("join u1: %v", err)
	}
	if err := service.Join(ctx, pin, "u2", "Bob"); err != nil {
		t.Fatalf("join u2: %v", err)
	}

	if err := service.Start(ctx, pin, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	start := clock.Now()

	// Both answer question 0 correctly; Alice at t+2s, Bob at t+8s.
	recA, err := service.SubmitAnswer(ctx, pin, "u1", 0, "A", start.Add(2*time.Second))
	if err != nil {
		t.Fatalf("submit u1 q0: %v", err)
	}
	recB, err := service.SubmitAnswer(ctx, pin, "u2", 0, "A", start.Add(8*time.Second))
	if err != nil {
		t.Fatalf("submit u2 q0: %v", err)
	}
	if !recA.Correct || !recB.Correct {
		t.Fatalf("expected both correct, got %+v %+v", recA, recB)
	}
	if recA.Score <= recB.Score {
		t.Fatalf("expected faster answer to score higher: %d vs %d", recA.Score, recB.Score)
	}

	next, finished, err := service.Advance(ctx, pin, "host")
	if err != nil || finished {
		t.Fatalf("advance: finished=%v err=%v", finished, err)
	}
	if next.Index != 1 {
		t.Fatalf("expected question 1, got %d", next.Index)
	}

	// Alice answers wrong, then tries again.
	openedAt := clock.Now()
	recWrong, err := service.SubmitAnswer(ctx, pin, "u1", 1, "C", openedAt.Add(3*time.Second))
	if err != nil {
		t.Fatalf("submit wrong: %v", err)
	}
	if recWrong.Correct || recWrong.Score != 0 {
		t.Fatalf("expected wrong answer with 0 points, got %+v", recWrong)
	}
	if _, err := service.SubmitAnswer(ctx, pin, "u1", 1, "B", openedAt.Add(4*time.Second)); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected ErrDuplicateAnswer, got %v", err)
	}

	if _, finished, err = service.Advance(ctx, pin, "host"); err != nil || !finished {
		t.Fatalf("expected finished, got finished=%v err=%v", finished, err)
	}

	lb, err := service.Leaderboard(ctx, pin)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lb.Entries))
	}
	if lb.Entries[0].ParticipantID != "u1" {
		t.Fatalf("expected Alice leading via speed bonus, got %+v", lb.Entries)
	}
	total := recA.Score
	if lb.Entries[0].Score != total {
		t.Fatalf("leaderboard total %d != sum of accepted scores %d", lb.Entries[0].Score, total)
	}
	if !hub.has(domain.EventSessionFinished) {
		t.Fatalf("expected session_finished broadcast")
	}
}

func TestJoinStateGuards(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, _, _ := newTestService(clock, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()})

	pin, _, err := service.CreateSession(ctx, "quiz-1", "host")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Join while waiting succeeds; rejoin is a no-op.
	if err := service.Join(ctx, pin, "u1", "Alice"); err != nil {
		t.Fatalf("join while waiting: %v", err)
	}
	if err := service.Join(ctx, pin, "u1", "Alice"); err != nil {
		t.Fatalf("idempotent rejoin: %v", err)
	}

	if err := service.End(ctx, pin, "host"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := service.Join(ctx, pin, "u2", "Bob"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after finished, got %v", err)
	}
}

func TestSubmitGuards(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, _, _ := newTestService(clock, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()})

	pin, _, _ := service.CreateSession(ctx, "quiz-1", "host")
	_ = service.Join(ctx, pin, "u1", "Alice")

	// Submitting before start is invalid state.
	if _, err := service.SubmitAnswer(ctx, pin, "u1", 0, "A", clock.Now()); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before start, got %v", err)
	}

	if err := service.Start(ctx, pin, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	start := clock.Now()

	if _, err := service.SubmitAnswer(ctx, pin, "ghost", 0, "A", start); !errors.Is(err, domain.ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}

	// A timestamp strictly past the deadline is rejected even though the
	// timer has not fired and advance was never called.
	if _, err := service.SubmitAnswer(ctx, pin, "u1", 0, "A", start.Add(10*time.Second+time.Millisecond)); !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed past deadline, got %v", err)
	}
	// Exactly at the deadline is accepted.
	if _, err := service.SubmitAnswer(ctx, pin, "u1", 0, "A", start.Add(10*time.Second)); err != nil {
		t.Fatalf("expected acceptance at deadline, got %v", err)
	}

	// Wrong question index.
	if _, err := service.SubmitAnswer(ctx, pin, "u1", 1, "B", start); !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed for stale index, got %v", err)
	}
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, _, _ := newTestService(clock, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()})

	pin, _, _ := service.CreateSession(ctx, "quiz-1", "host")
	_ = service.Join(ctx, pin, "u1", "Alice")
	_ = service.Start(ctx, pin, "host")
	at := clock.Now().Add(time.Second)

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, duplicates := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.SubmitAnswer(ctx, pin, "u1", 0, "A", at)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domain.ErrDuplicateAnswer):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if accepted != 1 || duplicates != n-1 {
		t.Fatalf("expected exactly one acceptance, got accepted=%d duplicates=%d", accepted, duplicates)
	}
}

func TestHostOnlyOperations(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, _, _ := newTestService(clock, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()})

	pin, _, _ := service.CreateSession(ctx, "quiz-1", "host")
	_ = service.Join(ctx, pin, "u1", "Alice")

	if err := service.Start(ctx, pin, "u1"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized on start, got %v", err)
	}
	_ = service.Start(ctx, pin, "host")
	if _, _, err := service.Advance(ctx, pin, "u1"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized on advance, got %v", err)
	}
	if err := service.End(ctx, pin, "u1"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized on end, got %v", err)
	}
}

func TestStartRequiresWaiting(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, _, _ := newTestService(clock, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()})

	pin, _, _ := service.CreateSession(ctx, "quiz-1", "host")
	if _, _, err := service.Advance(ctx, pin, "host"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState advancing while waiting, got %v", err)
	}
	_ = service.Start(ctx, pin, "host")
	if err := service.Start(ctx, pin, "host"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double start, got %v", err)
	}
}

func TestUnknownPin(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, _, _ := newTestService(clock, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()})

	if err := service.Join(ctx, "000000", "u1", "Alice"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestExpiryTimerClosesWindow(t *testing.T) {
	ctx := context.Background()
	quiz := domain.Quiz{
		ID: "quiz-fast",
		Questions: []domain.Question{
			{Text: "Quick?", Options: []string{"A", "B"}, CorrectAnswer: "A", TimeLimitSec: 1},
		},
	}
	hub := newFakeHub()
	registry := game.NewRegistry(game.NewPinAllocator(100), time.Minute)
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-fast": quiz}), time.Minute)
	service := game.NewService(registry, repo, game.SessionDeps{
		Rooms: hub,
		Store: memory.NewSessionStore(),
	})

	pin, _, _ := service.CreateSession(ctx, "quiz-fast", "host")
	_ = service.Join(ctx, pin, "u1", "Alice")
	_ = service.Start(ctx, pin, "host")

	deadline := time.Now().Add(3 * time.Second)
	for !hub.has(domain.EventQuestionClosed) {
		if time.Now().After(deadline) {
			t.Fatalf("timer never closed the window")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := service.SubmitAnswer(ctx, pin, "u1", 0, "A", time.Now()); !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed after expiry, got %v", err)
	}
}

func TestTimelyAnswerAcceptedAfterTimerFires(t *testing.T) {
	ctx := context.Background()
	quiz := domain.Quiz{
		ID: "quiz-fast",
		Questions: []domain.Question{
			{Text: "Quick?", Options: []string{"A", "B"}, CorrectAnswer: "A", TimeLimitSec: 1},
		},
	}
	hub := newFakeHub()
	registry := game.NewRegistry(game.NewPinAllocator(100), time.Minute)
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-fast": quiz}), time.Minute)
	service := game.NewService(registry, repo, game.SessionDeps{
		Rooms: hub,
		Store: memory.NewSessionStore(),
	})

	pin, _, _ := service.CreateSession(ctx, "quiz-fast", "host")
	_ = service.Join(ctx, pin, "u1", "Alice")
	_ = service.Start(ctx, pin, "host")
	// A timestamp well inside the 1s window, held back until after expiry —
	// the answer arrived in time but lost the race to the lock.
	submittedAt := time.Now().Add(300 * time.Millisecond)

	deadline := time.Now().Add(3 * time.Second)
	for !hub.has(domain.EventQuestionClosed) {
		if time.Now().After(deadline) {
			t.Fatalf("timer never closed the window")
		}
		time.Sleep(20 * time.Millisecond)
	}

	rec, err := service.SubmitAnswer(ctx, pin, "u1", 0, "A", submittedAt)
	if err != nil {
		t.Fatalf("expected in-window timestamp to be accepted, got %v", err)
	}
	if !rec.Correct || rec.Score <= 0 {
		t.Fatalf("expected scored correct answer, got %+v", rec)
	}
	lb, err := service.Leaderboard(ctx, pin)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].Score != rec.Score {
		t.Fatalf("leaderboard missing the late-arriving score: %+v", lb.Entries)
	}
}

func TestQuestionViewShufflesOptions(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	options := []string{"red", "green", "blue", "yellow"}
	quiz := domain.Quiz{
		ID: "quiz-colors",
		Questions: []domain.Question{
			{Text: "Favorite?", Options: options, CorrectAnswer: "green", TimeLimitSec: 30},
		},
	}
	service, _, _ := newTestService(clock, map[string]domain.Quiz{"quiz-colors": quiz})

	pin, _, _ := service.CreateSession(ctx, "quiz-colors", "host")
	_ = service.Join(ctx, pin, "u1", "Alice")
	_ = service.Start(ctx, pin, "host")

	orders := make(map[string]struct{})
	for i := 0; i < 40; i++ {
		opened, ok, err := service.OpenQuestion(ctx, pin)
		if err != nil || !ok {
			t.Fatalf("open question: ok=%v err=%v", ok, err)
		}
		got := opened.Question.Options
		if len(got) != len(options) {
			t.Fatalf("expected %d options, got %v", len(options), got)
		}
		seen := make(map[string]bool, len(got))
		for _, o := range got {
			seen[o] = true
		}
		for _, o := range options {
			if !seen[o] {
				t.Fatalf("option %q missing from view %v", o, got)
			}
		}
		orders[strings.Join(got, "|")] = struct{}{}
	}
	if len(orders) < 2 {
		t.Fatalf("options never reshuffled across views: %v", orders)
	}

	// Grading matches by string, so shuffling never misattributes answers.
	rec, err := service.SubmitAnswer(ctx, pin, "u1", 0, "green", clock.Now().Add(time.Second))
	if err != nil || !rec.Correct {
		t.Fatalf("expected correct answer regardless of option order, got rec=%+v err=%v", rec, err)
	}
}

func TestEndCancelsExpiryTimer(t *testing.T) {
	ctx := context.Background()
	quiz := domain.Quiz{
		ID: "quiz-fast",
		Questions: []domain.Question{
			{Text: "Quick?", Options: []string{"A", "B"}, CorrectAnswer: "A", TimeLimitSec: 1},
		},
	}
	hub := newFakeHub()
	registry := game.NewRegistry(game.NewPinAllocator(100), time.Minute)
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-fast": quiz}), time.Minute)
	service := game.NewService(registry, repo, game.SessionDeps{
		Rooms: hub,
		Store: memory.NewSessionStore(),
	})

	pin, _, _ := service.CreateSession(ctx, "quiz-fast", "host")
	_ = service.Start(ctx, pin, "host")
	if err := service.End(ctx, pin, "host"); err != nil {
		t.Fatalf("end: %v", err)
	}

	time.Sleep(1200 * time.Millisecond)
	if hub.has(domain.EventQuestionClosed) {
		t.Fatalf("stale timer fired against a finished session")
	}
}
