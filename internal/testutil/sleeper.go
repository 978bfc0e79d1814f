package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingSleeper records requested pauses instead of sleeping.
//
// Pipeline tests inject it so pacing can be asserted without slowing the
// suite down.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

// NewRecordingSleeper creates an empty RecordingSleeper.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d and returns immediately. It honours an already-cancelled context.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses = append(s.pauses, d)
	return nil
}

// Pauses returns a copy of every recorded pause in call order.
func (s *RecordingSleeper) Pauses() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.pauses))
	copy(out, s.pauses)
	return out
}

// Reset clears recorded pauses.
func (s *RecordingSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses = nil
}
