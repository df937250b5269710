package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/caremesh-ai/triage/pkg/common/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	original := &models.Session{
		ID:    "s-1",
		State: models.StateChiefComplaint,
		Record: models.StructuredRecord{
			"chief_complaint": {Value: "cough", TurnID: "t-1", UpdatedAt: now},
		},
		Assessment: models.RedFlagAssessment{Urgency: models.UrgencyLow},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := store.Save(ctx, original); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.State != models.StateChiefComplaint {
		t.Fatalf("state lost: %s", loaded.State)
	}
	if !loaded.Record.Has("chief_complaint") {
		t.Fatal("record field lost")
	}
	if loaded.Assessment.Urgency != models.UrgencyLow {
		t.Fatalf("assessment lost: %s", loaded.Assessment.Urgency)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Load(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSnapshotsAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := &models.Session{ID: "s-2", State: models.StateHistory, Record: models.StructuredRecord{}}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Mutating the caller's copy after Save must not change the stored snapshot.
	session.State = models.StateClosed

	loaded, err := store.Load(ctx, "s-2")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.State != models.StateHistory {
		t.Fatalf("store shared mutable state with caller: %s", loaded.State)
	}
}

func TestRawTextNeverPersisted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := &models.Session{
		ID: "s-3",
		Turns: []models.ConversationTurn{
			{ID: "t-1", Speaker: models.SpeakerPatient, RawText: "my name is John Smith", RedactedText: "[REDACTED_NAME]"},
		},
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "s-3")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Turns[0].RawText != "" {
		t.Fatalf("raw text leaked into storage: %q", loaded.Turns[0].RawText)
	}
	if loaded.Turns[0].RedactedText != "[REDACTED_NAME]" {
		t.Fatal("redacted text lost")
	}
}

func TestLockRegistrySerializesPerSession(t *testing.T) {
	locks := NewLockRegistry()

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire("same-session")
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected at most one concurrent holder per session, saw %d", maxActive)
	}
}

func TestLockRegistryAllowsParallelSessions(t *testing.T) {
	locks := NewLockRegistry()

	releaseA := locks.Acquire("session-a")
	done := make(chan struct{})
	go func() {
		releaseB := locks.Acquire("session-b")
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("distinct sessions must not block each other")
	}
	releaseA()
}
