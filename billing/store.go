package billing

import (
	"context"
	"log"
	"sync"
	"time"
)

// Store holds the last known subscription for the admin surface.
//
// The subscription is only changed by Refresh, except that Cancel and
// Resume apply their expected effect immediately and roll it back if the
// backend call fails.
type Store struct {
	client *Client
	orgID  func() string

	mu        sync.Mutex
	sub       *Subscription
	lastErr   error
	refreshed time.Time
	listeners []func(*Subscription)
}

// NewStore creates a store for the organization returned by orgID.
func NewStore(client *Client, orgID func() string) *Store {
	return &Store{client: client, orgID: orgID}
}

// OnChange registers fn to be called after the subscription changes.
func (s *Store) OnChange(fn func(*Subscription)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Current returns a copy of the last known subscription, or nil.
func (s *Store) Current() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil
	}
	cp := *s.sub
	return &cp
}

// LastError returns the error of the last refresh.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// RefreshedAt returns when the subscription was last fetched.
func (s *Store) RefreshedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshed
}

// Refresh fetches the subscription from the backend.
func (s *Store) Refresh(ctx context.Context) (*Subscription, error) {
	sub, err := s.client.FetchStatus(ctx, s.orgID())

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.sub = sub
		s.refreshed = time.Now()
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("Billing: refresh: %v", err)
		return nil, err
	}
	s.notify()
	return s.Current(), nil
}

// Cancel cancels the subscription, showing it as canceled right away.
func (s *Store) Cancel(ctx context.Context) error {
	return s.optimistic(ctx, StatusCanceled, s.client.Cancel)
}

// Resume resumes the subscription, showing it as active right away.
func (s *Store) Resume(ctx context.Context) error {
	return s.optimistic(ctx, StatusActive, s.client.Resume)
}

func (s *Store) optimistic(ctx context.Context, status Status, call func(context.Context, string) error) error {
	s.mu.Lock()
	var prev *Subscription
	if s.sub != nil {
		cp := *s.sub
		prev = &cp
		s.sub.Status = status
	}
	s.mu.Unlock()
	if prev != nil {
		s.notify()
	}

	if err := call(ctx, s.orgID()); err != nil {
		s.mu.Lock()
		s.sub = prev
		s.mu.Unlock()
		if prev != nil {
			s.notify()
		}
		return err
	}
	return nil
}

func (s *Store) notify() {
	s.mu.Lock()
	listeners := s.listeners
	var cp *Subscription
	if s.sub != nil {
		c := *s.sub
		cp = &c
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cp)
	}
}
