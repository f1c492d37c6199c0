package registry

import (
	"context"
	"errors"
	"testing"

	"call-translation-service/internal/models"
)

func newCall(id, provider string) *models.Call {
	return &models.Call{
		ID:             id,
		TenantID:       "tenant-1",
		ProviderCallID: provider,
		Status:         models.StatusInitiated,
		Modulations: models.Modulations{
			LiveTranslationEnabled: true,
			TranscriptionEnabled:   true,
			SourceLanguage:         "en",
			TargetLanguage:         "es",
		},
	}
}

func TestMemory_Resolve(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.CreateCall(ctx, newCall("call-1", "pcc-1")); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}

	route, err := m.Resolve(ctx, "pcc-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if route.CallID != "call-1" {
		t.Errorf("expected call ID 'call-1', got %s", route.CallID)
	}
	if route.TenantID != "tenant-1" {
		t.Errorf("expected tenant 'tenant-1', got %s", route.TenantID)
	}
	if !route.Modulations.LiveTranslationEnabled {
		t.Error("expected live translation enabled")
	}
	if route.Modulations.TargetLanguage != "es" {
		t.Errorf("expected target language 'es', got %s", route.Modulations.TargetLanguage)
	}
}

func TestMemory_Resolve_NotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.Resolve(context.Background(), "pcc-unknown")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_CreateCall_Duplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.CreateCall(ctx, newCall("call-1", "pcc-1")); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}
	if err := m.CreateCall(ctx, newCall("call-1", "pcc-2")); err == nil {
		t.Error("expected error for duplicate call ID")
	}
	if err := m.CreateCall(ctx, newCall("call-2", "pcc-1")); err == nil {
		t.Error("expected error for duplicate provider call ID")
	}
}

func TestMemory_UpdateStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.CreateCall(ctx, newCall("call-1", "pcc-1")); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}

	c, err := m.UpdateStatus(ctx, "pcc-1", models.StatusAnswered, "")
	if err != nil {
		t.Fatalf("UpdateStatus to answered failed: %v", err)
	}
	if c.Status != models.StatusAnswered {
		t.Errorf("expected status answered, got %s", c.Status)
	}

	c, err = m.UpdateStatus(ctx, "pcc-1", models.StatusInProgress, "")
	if err != nil {
		t.Fatalf("UpdateStatus to in_progress failed: %v", err)
	}
	if c.Status != models.StatusInProgress {
		t.Errorf("expected status in_progress, got %s", c.Status)
	}

	c, err = m.UpdateStatus(ctx, "pcc-1", models.StatusCompleted, "https://recordings/rec-1.wav")
	if err != nil {
		t.Fatalf("UpdateStatus to completed failed: %v", err)
	}
	if c.Status != models.StatusCompleted {
		t.Errorf("expected status completed, got %s", c.Status)
	}
	if c.RecordingURL != "https://recordings/rec-1.wav" {
		t.Errorf("expected recording URL to be stored, got %q", c.RecordingURL)
	}
}

func TestMemory_UpdateStatus_IgnoresRegression(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.CreateCall(ctx, newCall("call-1", "pcc-1")); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}

	if _, err := m.UpdateStatus(ctx, "pcc-1", models.StatusInProgress, ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	// A late "answered" webhook must not move the call backwards.
	c, err := m.UpdateStatus(ctx, "pcc-1", models.StatusAnswered, "")
	if err != nil {
		t.Fatalf("UpdateStatus with late event failed: %v", err)
	}
	if c.Status != models.StatusInProgress {
		t.Errorf("expected status to stay in_progress, got %s", c.Status)
	}
}

func TestMemory_UpdateStatus_TerminalImmutable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.CreateCall(ctx, newCall("call-1", "pcc-1")); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}
	if _, err := m.UpdateStatus(ctx, "pcc-1", models.StatusCompleted, ""); err != nil {
		t.Fatalf("UpdateStatus to completed failed: %v", err)
	}

	_, err := m.UpdateStatus(ctx, "pcc-1", models.StatusFailed, "")
	if !errors.Is(err, ErrTerminal) {
		t.Errorf("expected ErrTerminal, got %v", err)
	}
}

func TestMemory_UpdateStatus_NotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.UpdateStatus(context.Background(), "pcc-unknown", models.StatusAnswered, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
