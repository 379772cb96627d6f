package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skaldhq/skald/internal/core/domain"
)

// DefaultProgressTTL bounds how long progress and step-state entries stay
// pollable after their last write.
const DefaultProgressTTL = time.Hour

// ProgressStore is an in-memory TTL store for job progress and per-step
// intermediate state. It is a side channel, not a system of record: every
// caller treats writes as best-effort, and entries expire on their own —
// terminal progress stays pollable until the TTL runs out.
type ProgressStore struct {
	logger *slog.Logger
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]progressEntry

	now func() time.Time // injectable for tests
}

type progressEntry struct {
	value     []byte
	updatedAt time.Time
	expiresAt time.Time
}

func NewProgressStore(logger *slog.Logger, ttl time.Duration) *ProgressStore {
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	return &ProgressStore{
		logger:  logger,
		ttl:     ttl,
		entries: make(map[string]progressEntry),
		now:     time.Now,
	}
}

func progressKey(jobID domain.JobID) string {
	return "progress:" + string(jobID)
}

func stepKey(jobID domain.JobID, step string) string {
	return "step:" + string(jobID) + ":" + step
}

// SetProgress unconditionally overwrites the job's progress snapshot.
func (s *ProgressStore) SetProgress(jobID domain.JobID, percent int, message string) error {
	snap := domain.Progress{
		Percent:   percent,
		Message:   message,
		UpdatedAt: s.now().UTC(),
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	s.set(progressKey(jobID), payload)
	return nil
}

// GetProgress returns the job's latest progress snapshot, or false when the
// job is unknown or its entry expired.
func (s *ProgressStore) GetProgress(jobID domain.JobID) (domain.Progress, bool) {
	raw, ok := s.get(progressKey(jobID))
	if !ok {
		return domain.Progress{}, false
	}
	var snap domain.Progress
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Progress{}, false
	}
	return snap, true
}

// SaveStepState stores a step's intermediate output, namespaced by step name.
func (s *ProgressStore) SaveStepState(jobID domain.JobID, step string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode step state: %w", err)
	}
	s.set(stepKey(jobID, step), raw)
	return nil
}

// GetStepState returns a step's stored state as raw JSON.
func (s *ProgressStore) GetStepState(jobID domain.JobID, step string) (json.RawMessage, bool) {
	raw, ok := s.get(stepKey(jobID, step))
	if !ok {
		return nil, false
	}
	return json.RawMessage(raw), true
}

// Cleanup deletes every key belonging to a job.
func (s *ProgressStore) Cleanup(jobID domain.JobID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, progressKey(jobID))
	prefix := "step:" + string(jobID) + ":"
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

// StartJanitor sweeps expired entries until ctx is done. Reads already
// ignore expired entries; the sweep only reclaims memory.
func (s *ProgressStore) StartJanitor(done <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *ProgressStore) set(key string, value []byte) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = progressEntry{
		value:     value,
		updatedAt: now,
		expiresAt: now.Add(s.ttl),
	}
}

func (s *ProgressStore) get(key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || s.now().After(entry.expiresAt) {
		return nil, false
	}
	cp := make([]byte, len(entry.value))
	copy(cp, entry.value)
	return cp, true
}

func (s *ProgressStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}
