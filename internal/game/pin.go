package game

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"quizrally/internal/domain"
)

// PinAllocator draws 6-digit room codes. Collisions are rare at 9*10^5
// candidates but real, so generation retries up to a cap instead of looping
// forever.
type PinAllocator struct {
	maxAttempts int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPinAllocator(maxAttempts int) *PinAllocator {
	if maxAttempts <= 0 {
		maxAttempts = 1000
	}
	return &PinAllocator{
		maxAttempts: maxAttempts,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Allocate returns a pin for which inUse reports false, or ErrPinExhausted
// after maxAttempts collisions.
func (a *PinAllocator) Allocate(inUse func(pin string) bool) (string, error) {
	for i := 0; i < a.maxAttempts; i++ {
		a.mu.Lock()
		pin := strconv.Itoa(100000 + a.rnd.Intn(900000))
		a.mu.Unlock()
		if !inUse(pin) {
			return pin, nil
		}
	}
	return "", domain.ErrPinExhausted
}
