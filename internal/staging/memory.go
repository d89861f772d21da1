package staging

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fintrack/internal/models"

	"github.com/google/uuid"
)

type memoryEntry struct {
	mu  sync.Mutex
	job *models.ImportJob
}

// MemoryStore keeps jobs for the lifetime of the process.
// Jobs are copied on the way in and out so no caller ever holds store state.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*memoryEntry),
	}
}

func (s *MemoryStore) Create(ctx context.Context, job *models.ImportJob) error {
	if job.ID == uuid.Nil {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	s.jobs[job.ID] = &memoryEntry{job: job.Clone()}

	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return entry.job.Clone(), nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ImportJob, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var result []*models.ImportJob
	for _, e := range entries {
		e.mu.Lock()
		if e.job.UserID == userID {
			result = append(result, e.job.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(result) {
			return []*models.ImportJob{}, nil
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}

	return result, nil
}

func (s *MemoryStore) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next models.ImportStatus) (bool, error) {
	entry, err := s.entry(id)
	if err != nil {
		return false, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.job.Status != expected {
		return false, nil
	}
	entry.job.Status = next
	return true, nil
}

func (s *MemoryStore) ReplaceDraft(ctx context.Context, id uuid.UUID, index int, draft models.Draft) error {
	_, err := s.UpdateDraft(ctx, id, index, func(d *models.Draft) error {
		*d = draft.Clone()
		return nil
	})
	return err
}

func (s *MemoryStore) UpdateDraft(ctx context.Context, id uuid.UUID, index int, fn DraftMutator) (models.Draft, error) {
	entry, err := s.entry(id)
	if err != nil {
		return models.Draft{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.job.Status != models.ImportStatusParsed {
		return models.Draft{}, models.ErrJobNotEditable
	}
	if index < 0 || index >= len(entry.job.Drafts) {
		return models.Draft{}, models.ErrDraftNotFound
	}

	// fn works on a copy; a failed mutation must not leave half-written fields behind.
	working := entry.job.Drafts[index].Clone()
	if err := fn(&working); err != nil {
		return models.Draft{}, err
	}
	entry.job.Drafts[index] = working

	return working.Clone(), nil
}

func (s *MemoryStore) SaveCommitResult(ctx context.Context, id uuid.UUID, result *models.CommitResult) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.job.Status != models.ImportStatusCommitted {
		return fmt.Errorf("job %s is %s, not committed", id, entry.job.Status)
	}
	if entry.job.Result != nil {
		return nil
	}

	committedAt := result.CommittedAt
	entry.job.CommittedAt = &committedAt
	entry.job.Result = result.Clone()

	return nil
}

func (s *MemoryStore) entry(id uuid.UUID) (*memoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.jobs[id]
	if !exists {
		return nil, models.ErrJobNotFound
	}
	return entry, nil
}

var _ Store = (*MemoryStore)(nil)
