package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizrally/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// quizEntry is one cached quiz with its expiry instant.
type quizEntry struct {
	quiz    domain.Quiz
	staleAt time.Time
}

func (e quizEntry) fresh(now time.Time) bool { return e.staleAt.After(now) }

// QuizRepository keeps loaded quizzes in-process so session creation and
// answer grading stay off the backing store on the hot path. Entries live
// for the configured TTL plus up to 10% jitter so a burst of sessions built
// from the same quiz does not expire in lockstep; concurrent misses for one
// quiz collapse into a single load.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	group  singleflight.Group

	mu      sync.RWMutex
	rnd     *rand.Rand
	entries map[string]quizEntry
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]quizEntry),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.lookup(quizID); ok {
		return quiz, nil
	}
	result, err, _ := r.group.Do(quizID, func() (interface{}, error) {
		// A concurrent caller may have filled the entry while this one
		// waited on the group.
		if quiz, ok := r.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(quizID, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) lookup(quizID string) (domain.Quiz, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[quizID]
	if !ok || !entry.fresh(now) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) store(quizID string, quiz domain.Quiz) {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	lifetime := r.ttl
	if lifetime > 0 {
		lifetime += time.Duration(r.rnd.Int63n(int64(r.ttl)/10 + 1))
	}
	r.entries[quizID] = quizEntry{quiz: quiz, staleAt: now.Add(lifetime)}
}

// StaticQuizLoader serves quizzes from a fixed map; the built-in question
// bank and tests use it in place of a database.
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
