package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"muebles/internal/models"
)

// MemoryDraftRepository keeps drafts in process memory. Drafts are not
// shared across instances and are never evicted.
type MemoryDraftRepository struct {
	mu       sync.Mutex
	drafts   map[int64]*models.Draft
	locks    map[int64]*ownerLock
	maxLines int
	now      func() time.Time
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryDraftRepository creates an empty store. maxLines <= 0 disables the cap.
func NewMemoryDraftRepository(maxLines int) *MemoryDraftRepository {
	return &MemoryDraftRepository{
		drafts:   make(map[int64]*models.Draft),
		locks:    make(map[int64]*ownerLock),
		maxLines: maxLines,
		now:      time.Now,
	}
}

// lock enters the owner's critical section and returns its release func.
func (r *MemoryDraftRepository) lock(ownerID int64) func() {
	r.mu.Lock()
	l, ok := r.locks[ownerID]
	if !ok {
		l = &ownerLock{}
		r.locks[ownerID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, ownerID)
		}
		r.mu.Unlock()
	}
}

func (r *MemoryDraftRepository) load(ownerID int64) *models.Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drafts[ownerID]
}

func (r *MemoryDraftRepository) store(d *models.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[d.OwnerID] = d
}

func (r *MemoryDraftRepository) ensureLocked(ownerID int64) *models.Draft {
	if d := r.load(ownerID); d != nil {
		return d
	}
	d := &models.Draft{
		ID:        models.DraftID(ownerID),
		OwnerID:   ownerID,
		Status:    models.StatusDraft,
		CreatedAt: r.now().UTC(),
		Lines:     []models.LineItem{},
	}
	r.store(d)
	return d
}

// Ensure returns the owner's draft, creating it on first use.
func (r *MemoryDraftRepository) Ensure(_ context.Context, ownerID int64) (*models.Draft, error) {
	unlock := r.lock(ownerID)
	defer unlock()
	return r.ensureLocked(ownerID).Clone(), nil
}

// Get returns a copy of the owner's draft, or nil.
func (r *MemoryDraftRepository) Get(_ context.Context, ownerID int64) (*models.Draft, error) {
	return r.load(ownerID).Clone(), nil
}

// AddLine assigns the next sequence id and appends the line.
func (r *MemoryDraftRepository) AddLine(_ context.Context, ownerID int64, line models.LineItem) (*models.Draft, *models.LineItem, error) {
	unlock := r.lock(ownerID)
	defer unlock()

	d := r.ensureLocked(ownerID)
	if r.maxLines > 0 && len(d.Lines) >= r.maxLines {
		return nil, nil, models.NewValidationError("lines", fmt.Sprintf("a draft holds at most %d lines", r.maxLines))
	}
	line.ID = int64(len(d.Lines) + 1)
	line.OrderID = 0
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	next := d.Clone()
	next.Lines = append(next.Lines, line)
	r.store(next)

	created := line
	return next.Clone(), &created, nil
}

// Clear drops the owner's draft.
func (r *MemoryDraftRepository) Clear(_ context.Context, ownerID int64) error {
	unlock := r.lock(ownerID)
	defer unlock()

	r.mu.Lock()
	delete(r.drafts, ownerID)
	r.mu.Unlock()
	return nil
}

// Take removes the owner's draft and hands it to the caller.
func (r *MemoryDraftRepository) Take(_ context.Context, ownerID int64) (*models.Draft, error) {
	unlock := r.lock(ownerID)
	defer unlock()

	r.mu.Lock()
	d := r.drafts[ownerID]
	delete(r.drafts, ownerID)
	r.mu.Unlock()
	return d.Clone(), nil
}

// Restore reinstates a taken draft ahead of any lines added since.
func (r *MemoryDraftRepository) Restore(_ context.Context, draft *models.Draft) error {
	if draft == nil {
		return nil
	}
	unlock := r.lock(draft.OwnerID)
	defer unlock()

	restored := draft.Clone()
	if current := r.load(draft.OwnerID); current != nil {
		for _, l := range current.Lines {
			l.ID = int64(len(restored.Lines) + 1)
			restored.Lines = append(restored.Lines, l)
		}
	}
	r.store(restored)
	return nil
}
