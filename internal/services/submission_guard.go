package services

import (
	"sync"

	"walletd/internal/apperrors"

	"github.com/google/uuid"
)

// SubmissionToken identifies one submission generation
type SubmissionToken string

// SubmissionGuard allows at most one submission in flight. A token that is no longer
// current is stale and its results must be discarded.
type SubmissionGuard struct {
	mu      sync.Mutex
	current SubmissionToken
}

func NewSubmissionGuard() *SubmissionGuard {
	return &SubmissionGuard{}
}

// Begin mints a fresh token, or fails with ErrAlreadySubmitting while one is current
func (g *SubmissionGuard) Begin() (SubmissionToken, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != "" {
		return "", apperrors.ErrAlreadySubmitting
	}
	g.current = SubmissionToken(uuid.NewString())
	return g.current, nil
}

// IsStale true when tok is not the current generation
func (g *SubmissionGuard) IsStale(tok SubmissionToken) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return tok == "" || tok != g.current
}

// End clears the current token only if it is still tok
func (g *SubmissionGuard) End(tok SubmissionToken) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == tok {
		g.current = ""
	}
}

// Invalidate makes every outstanding token stale
func (g *SubmissionGuard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = ""
}

// InFlight reports whether a submission currently holds the guard
func (g *SubmissionGuard) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != ""
}
