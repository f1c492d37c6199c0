// Package mock provides a transcriber for testing and dev mode without
// provider credentials. Jobs are recorded, never processed; tests drive the
// completion callback themselves.
package mock

import (
	"context"
	"fmt"
	"sync"

	"call-translation-service/internal/evidence"
)

// Transcriber implements evidence.Transcriber with recorded submissions.
type Transcriber struct {
	mu       sync.Mutex
	jobs     []evidence.Job
	failures int
	nextID   int
}

// Compile-time interface check.
var _ evidence.Transcriber = (*Transcriber)(nil)

// New creates a new mock transcriber.
func New() *Transcriber {
	return &Transcriber{}
}

// FailNext makes the next n Submit calls return an error.
func (t *Transcriber) FailNext(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = n
}

// Jobs returns the successfully submitted jobs in call order.
func (t *Transcriber) Jobs() []evidence.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]evidence.Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}

// Submit implements evidence.Transcriber.
func (t *Transcriber) Submit(ctx context.Context, job evidence.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failures > 0 {
		t.failures--
		return "", fmt.Errorf("mock: transcription provider unavailable")
	}
	t.nextID++
	t.jobs = append(t.jobs, job)
	return fmt.Sprintf("job-%d", t.nextID), nil
}
