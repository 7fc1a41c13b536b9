// Package workertest provides in-memory collaborators for worker tests.
package workertest

import (
	"context"
	"sync"
	"time"

	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/google/uuid"
)

// Store is an in-memory conversion store with the same output semantics as
// the PostgreSQL storage
type Store struct {
	mu          sync.Mutex
	conversions map[string]*domain.Conversion

	// GetErr, when set, is returned by GetConversion
	GetErr error
	// SetErr, when set, is returned by SetConversionOutput
	SetErr error
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{conversions: make(map[string]*domain.Conversion)}
}

// Add stores a new conversion and returns its id
func (s *Store) Add(ownerID, videoFileID, webhookURL string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &domain.Conversion{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		VideoFileID: videoFileID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if webhookURL != "" {
		c.WebhookURL = &webhookURL
	}
	s.conversions[c.ID] = c
	return c.ID
}

// Get returns a copy of a conversion or nil
func (s *Store) Get(id string) *domain.Conversion {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversions[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// GetConversion implements the converter and notifier store
func (s *Store) GetConversion(_ context.Context, id string) (*domain.Conversion, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}

	if c := s.Get(id); c != nil {
		return c, nil
	}
	return nil, domain.ErrConversionNotFound
}

// SetConversionOutput records blobID once
func (s *Store) SetConversionOutput(_ context.Context, id, blobID string) error {
	if s.SetErr != nil {
		return s.SetErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversions[id]
	if !ok {
		return domain.ErrConversionNotFound
	}
	if c.Converted() {
		return domain.ErrOutputAlreadySet
	}
	c.GifFileID = &blobID
	c.UpdatedAt = time.Now()
	return nil
}

// Enqueued is one recorded Enqueue call
type Enqueued struct {
	Queue string
	JobID string
}

// Enqueuer records enqueued jobs
type Enqueuer struct {
	mu    sync.Mutex
	calls []Enqueued

	// Err, when set, is returned by Enqueue
	Err error
	// OnEnqueue, when set, is called after a successful Enqueue
	OnEnqueue func(queue, jobID string)
}

// Enqueue implements converter.Enqueuer
func (e *Enqueuer) Enqueue(_ context.Context, queue, jobID string) error {
	if e.Err != nil {
		return e.Err
	}

	e.mu.Lock()
	e.calls = append(e.calls, Enqueued{Queue: queue, JobID: jobID})
	hook := e.OnEnqueue
	e.mu.Unlock()

	if hook != nil {
		hook(queue, jobID)
	}
	return nil
}

// Calls returns the recorded calls
func (e *Enqueuer) Calls() []Enqueued {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Enqueued(nil), e.calls...)
}
