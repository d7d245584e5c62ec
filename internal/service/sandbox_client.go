package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SandboxClient is an in-process PaymentClient for local runs and
// tests. Intents stay pending until Settle is called.
type SandboxClient struct {
	mu      sync.Mutex
	intents map[string]IntentStatus
	byKey   map[string]Intent
}

// NewSandboxClient returns an empty sandbox.
func NewSandboxClient() *SandboxClient {
	return &SandboxClient{
		intents: make(map[string]IntentStatus),
		byKey:   make(map[string]Intent),
	}
}

// CreateIntent mints a pending intent. Repeating an idempotency key
// returns the intent created the first time.
func (s *SandboxClient) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return in, nil
	}
	ref := "pi_sbx_" + uuid.NewString()
	in := Intent{Ref: ref, ClientSecret: ref + "_secret_" + uuid.NewString()}
	s.intents[ref] = IntentPending
	if req.IdempotencyKey != "" {
		s.byKey[req.IdempotencyKey] = in
	}
	return in, nil
}

// IntentStatus reports the settled status of ref.
func (s *SandboxClient) IntentStatus(_ context.Context, ref string) (IntentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.intents[ref]
	if !ok {
		return "", fmt.Errorf("sandbox: no such intent %q", ref)
	}
	return st, nil
}

// CancelIntent fails a pending intent. Settled intents keep their
// status.
func (s *SandboxClient) CancelIntent(_ context.Context, ref string) (IntentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.intents[ref]
	if !ok {
		return "", fmt.Errorf("sandbox: no such intent %q", ref)
	}
	if st == IntentPending {
		st = IntentFailed
		s.intents[ref] = st
	}
	return st, nil
}

// Settle moves an intent to status, as the payer's bank would.
func (s *SandboxClient) Settle(ref string, status IntentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[ref]; !ok {
		return fmt.Errorf("sandbox: no such intent %q", ref)
	}
	s.intents[ref] = status
	return nil
}

// Calls returns how many distinct intents were created.
func (s *SandboxClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.intents)
}
