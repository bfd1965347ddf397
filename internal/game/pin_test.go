package game

import (
	"errors"
	"testing"

	"quizrally/internal/domain"
)

func TestAllocateProducesSixDigits(t *testing.T) {
	alloc := NewPinAllocator(10)
	for i := 0; i < 100; i++ {
		pin, err := alloc.Allocate(func(string) bool { return false })
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if len(pin) != 6 {
			t.Fatalf("expected 6-digit pin, got %q", pin)
		}
		if pin[0] == '0' {
			t.Fatalf("pin has leading zero: %q", pin)
		}
	}
}

func TestAllocateRetriesOnCollision(t *testing.T) {
	alloc := NewPinAllocator(10)
	attempts := 0
	pin, err := alloc.Allocate(func(string) bool {
		attempts++
		return attempts <= 3
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if pin == "" || attempts != 4 {
		t.Fatalf("expected success on 4th attempt, got pin=%q attempts=%d", pin, attempts)
	}
}

func TestAllocateGivesUpAfterCap(t *testing.T) {
	alloc := NewPinAllocator(5)
	_, err := alloc.Allocate(func(string) bool { return true })
	if !errors.Is(err, domain.ErrPinExhausted) {
		t.Fatalf("expected ErrPinExhausted, got %v", err)
	}
}
