// Package memory keeps listings in process memory. It backs the "memory"
// storage driver and the usecase tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/urbanestate/listing-service/internal/listing/domain"
)

type entry struct {
	listing *domain.Listing
	seq     uint64
}

// ListingRepository is a mutex-guarded map of listings. Stored values are
// copied in and out so callers never share memory with the store.
type ListingRepository struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64
}

var _ domain.ListingRepository = (*ListingRepository)(nil)

func NewListingRepository() *ListingRepository {
	return &ListingRepository{entries: make(map[string]*entry)}
}

func clone(l *domain.Listing) *domain.Listing {
	c := *l
	c.Files = append([]string{}, l.Files...)
	if l.Facilities != nil {
		c.Facilities = append([]string{}, l.Facilities...)
	}
	return &c
}

func (r *ListingRepository) Find(ctx context.Context, p domain.Predicate) ([]*domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*entry, 0)
	if !p.Unsatisfiable() {
		for _, e := range r.entries {
			if p.Matches(e.listing) {
				matched = append(matched, e)
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.listing.CreatedAt.Equal(b.listing.CreatedAt) {
			return a.listing.CreatedAt.After(b.listing.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*domain.Listing, len(matched))
	for i, e := range matched {
		out[i] = clone(e.listing)
	}
	return out, nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrListingNotFound, id)
	}
	return clone(e.listing), nil
}

func (r *ListingRepository) FindByOwnerAndID(ctx context.Context, ownerID, id string) (*domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.listing.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", domain.ErrListingNotFound, id)
	}
	return clone(e.listing), nil
}

func (r *ListingRepository) Insert(ctx context.Context, listing *domain.Listing) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	r.seq++
	r.entries[listing.ID] = &entry{listing: clone(listing), seq: r.seq}
	return nil
}

func (r *ListingRepository) ReplaceFields(ctx context.Context, id string, update domain.ListingUpdate) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrListingNotFound, id)
	}
	next := clone(e.listing)
	next.ListingFields = update.Fields
	next.Files = append([]string{}, update.Files...)
	next.UpdatedAt = update.UpdatedAt
	e.listing = clone(next)
	return nil
}

func (r *ListingRepository) BulkSetStatus(ctx context.Context, p domain.Predicate, status domain.ListingStatus) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	if p.Unsatisfiable() {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, e := range r.entries {
		if p.Matches(e.listing) && e.listing.Status != status {
			e.listing.Status = status
			n++
		}
	}
	return n, nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrListingNotFound, id)
	}
	delete(r.entries, id)
	return nil
}

// Len returns the number of stored listings.
func (r *ListingRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
