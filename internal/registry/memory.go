package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"call-translation-service/internal/models"
)

// Memory is an in-process Store used in tests and in DB-less dev mode.
type Memory struct {
	mu         sync.RWMutex
	byID       map[string]*models.Call
	byProvider map[string]*models.Call
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory call store.
func NewMemory() *Memory {
	return &Memory{
		byID:       make(map[string]*models.Call),
		byProvider: make(map[string]*models.Call),
	}
}

// CreateCall inserts a new call record.
func (m *Memory) CreateCall(ctx context.Context, call *models.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[call.ID]; ok {
		return fmt.Errorf("registry: call %q already exists", call.ID)
	}
	if _, ok := m.byProvider[call.ProviderCallID]; ok {
		return fmt.Errorf("registry: provider call %q already registered", call.ProviderCallID)
	}

	now := time.Now().UTC()
	c := *call
	if c.Status == "" {
		c.Status = models.StatusInitiated
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	m.byID[c.ID] = &c
	m.byProvider[c.ProviderCallID] = &c
	*call = c
	return nil
}

// Resolve returns the route for a provider call ID.
func (m *Memory) Resolve(ctx context.Context, providerCallID string) (Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byProvider[providerCallID]
	if !ok {
		return Route{}, ErrNotFound
	}
	return Route{
		CallID:      c.ID,
		TenantID:    c.TenantID,
		Modulations: c.Modulations,
	}, nil
}

// GetCall returns the call record by internal ID.
func (m *Memory) GetCall(ctx context.Context, callID string) (models.Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byID[callID]
	if !ok {
		return models.Call{}, ErrNotFound
	}
	return *c, nil
}

// UpdateStatus applies a lifecycle transition.
func (m *Memory) UpdateStatus(ctx context.Context, providerCallID string, status models.CallStatus, recordingURL string) (models.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byProvider[providerCallID]
	if !ok {
		return models.Call{}, ErrNotFound
	}
	if c.Status.IsTerminal() {
		return models.Call{}, ErrTerminal
	}
	if statusRank(status) <= statusRank(c.Status) {
		// Late or duplicated lifecycle webhook; keep the current state.
		return *c, nil
	}

	c.Status = status
	if recordingURL != "" {
		c.RecordingURL = recordingURL
	}
	c.UpdatedAt = time.Now().UTC()
	return *c, nil
}
