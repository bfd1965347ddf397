package game

import (
	"context"
	"time"

	"quizrally/internal/domain"
)

// Service is the orchestration boundary: PIN lifecycle plus the host and
// participant operations. It routes by PIN via the registry; all game rules
// live in Session.
type Service struct {
	registry *Registry
	quizzes  QuizRepository
	deps     SessionDeps
}

func NewService(registry *Registry, quizzes QuizRepository, deps SessionDeps) *Service {
	return &Service{registry: registry, quizzes: quizzes, deps: deps.normalized()}
}

// CreateSession loads the quiz, allocates a PIN, and registers a waiting
// session owned by hostID.
func (s *Service) CreateSession(ctx context.Context, quizID, hostID string) (pin, sessionID string, err error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return "", "", err
	}
	session, err := s.registry.Create(quiz, hostID, s.deps)
	if err != nil {
		return "", "", err
	}
	session.persist()
	return session.Pin(), session.ID(), nil
}

// Join adds a participant to the session behind pin.
func (s *Service) Join(_ context.Context, pin, participantID, displayName string) error {
	session, err := s.registry.Get(pin)
	if err != nil {
		return err
	}
	return session.Join(participantID, displayName)
}

// Start begins the quiz; host only.
func (s *Service) Start(_ context.Context, pin, hostID string) error {
	session, err := s.registry.Get(pin)
	if err != nil {
		return err
	}
	if err := session.Start(hostID); err != nil {
		return err
	}
	// An empty quiz finishes immediately.
	if session.Status() == domain.StatusFinished {
		s.registry.Retire(pin)
	}
	return nil
}

// SubmitAnswer records one answer for the current question.
func (s *Service) SubmitAnswer(_ context.Context, pin, participantID string, questionIndex int, answer string, submittedAt time.Time) (domain.AnswerRecord, error) {
	session, err := s.registry.Get(pin)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	return session.SubmitAnswer(participantID, questionIndex, answer, submittedAt)
}

// Advance moves to the next question, or finishes the session after the last
// one; host only. finished reports the terminal transition.
func (s *Service) Advance(_ context.Context, pin, hostID string) (next domain.QuestionView, finished bool, err error) {
	session, err := s.registry.Get(pin)
	if err != nil {
		return domain.QuestionView{}, false, err
	}
	next, finished, err = session.Advance(hostID)
	if err != nil {
		return domain.QuestionView{}, false, err
	}
	if finished {
		s.registry.Retire(pin)
	}
	return next, finished, nil
}

// End terminates the session early; host only.
func (s *Service) End(_ context.Context, pin, hostID string) error {
	session, err := s.registry.Get(pin)
	if err != nil {
		return err
	}
	if err := session.End(hostID); err != nil {
		return err
	}
	s.registry.Retire(pin)
	return nil
}

// Leaderboard returns the current standings for pin.
func (s *Service) Leaderboard(_ context.Context, pin string) (domain.Leaderboard, error) {
	session, err := s.registry.Get(pin)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return session.Leaderboard(), nil
}

// OpenQuestion reports the live question for pin, if a window is open. Used
// to catch up reconnecting clients.
func (s *Service) OpenQuestion(_ context.Context, pin string) (domain.QuestionOpened, bool, error) {
	session, err := s.registry.Get(pin)
	if err != nil {
		return domain.QuestionOpened{}, false, err
	}
	opened, ok := session.OpenQuestion()
	return opened, ok, nil
}
