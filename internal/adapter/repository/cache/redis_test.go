package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanestate/listing-service/internal/adapter/repository/memory"
	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/platform/logger"
)

func setup(t *testing.T) (*ListingRepository, *memory.ListingRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := memory.NewListingRepository()
	return NewListingRepository(backing, client, time.Minute, logger.NewNop()), backing, mr
}

func seed(t *testing.T, repo domain.ListingRepository, owner string) *domain.Listing {
	t.Helper()
	l := domain.NewListing(owner, domain.ListingFields{
		Title:     "Villa",
		Furnished: domain.FurnishedText("semi"),
	}, []string{"a.jpg"}, time.Now().UTC())
	require.NoError(t, repo.Insert(context.Background(), l))
	return l
}

func TestFindByID_PopulatesCache(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := setup(t)
	l := seed(t, repo, "u1")

	got, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Villa", got.Title)
	assert.True(t, mr.Exists(key(l.ID)))
	assert.InDelta(t, time.Minute.Seconds(), mr.TTL(key(l.ID)).Seconds(), 1)

	// Served from Redis even once the backing store no longer has it.
	require.NoError(t, backing.Delete(ctx, l.ID))
	got, err = repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.Furnished.Equal(domain.FurnishedText("semi")))
	assert.Equal(t, []string{"a.jpg"}, got.Files)
}

func TestFindByOwnerAndID_ChecksOwnerOnHit(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setup(t)
	l := seed(t, repo, "owner")
	_, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)

	_, err = repo.FindByOwnerAndID(ctx, "owner", l.ID)
	assert.NoError(t, err)
	_, err = repo.FindByOwnerAndID(ctx, "intruder", l.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestWritesInvalidate(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := setup(t)
	l := seed(t, repo, "u1")

	_, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceFields(ctx, l.ID, domain.ListingUpdate{
		Fields:    domain.ListingFields{Title: "Renovated"},
		UpdatedAt: time.Now(),
	}))
	assert.False(t, mr.Exists(key(l.ID)))

	got, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renovated", got.Title)

	require.NoError(t, repo.Delete(ctx, l.ID))
	assert.False(t, mr.Exists(key(l.ID)))
	_, err = repo.FindByID(ctx, l.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestBulkSetStatus_FlushesOnChange(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := setup(t)
	a := seed(t, repo, "u1")
	b := seed(t, repo, "u2")
	for _, id := range []string{a.ID, b.ID} {
		_, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	n, err := repo.BulkSetStatus(ctx, domain.Predicate{OwnerID: "u1"}, domain.StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, mr.Exists(key(a.ID)))
	assert.False(t, mr.Exists(key(b.ID)))
	assert.True(t, mr.Exists("unrelated"))

	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
}

func TestRedisDown_FallsThrough(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := setup(t)
	l := seed(t, repo, "u1")
	mr.Close()

	got, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
}

// pausingRepo holds one FindByID after it has read the backing store, so a
// write can land between the read and the cache fill.
type pausingRepo struct {
	domain.ListingRepository
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (r *pausingRepo) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := r.ListingRepository.FindByID(ctx, id)
	if r.armed.CompareAndSwap(true, false) {
		close(r.read)
		<-r.release
	}
	return l, err
}

func TestFindByID_DoesNotRefillAfterConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := &pausingRepo{
		ListingRepository: memory.NewListingRepository(),
		read:              make(chan struct{}),
		release:           make(chan struct{}),
	}
	repo := NewListingRepository(backing, client, time.Minute, logger.NewNop())

	l := domain.NewListing("u1", domain.ListingFields{Title: "Villa"}, []string{"a.jpg", "b.jpg"}, time.Now().UTC())
	require.NoError(t, repo.Insert(ctx, l))

	backing.armed.Store(true)
	done := make(chan *domain.Listing)
	go func() {
		got, _ := repo.FindByID(ctx, l.ID)
		done <- got
	}()
	<-backing.read

	require.NoError(t, repo.ReplaceFields(ctx, l.ID, domain.ListingUpdate{
		Fields:    domain.ListingFields{Title: "Villa"},
		Files:     []string{"b.jpg"},
		UpdatedAt: time.Now(),
	}))
	close(backing.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, stale.Files)
	assert.False(t, mr.Exists(key(l.ID)), "read started before the write must not be cached")

	got, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.jpg"}, got.Files)
	assert.True(t, mr.Exists(key(l.ID)))
}

func TestFindByID_DoesNotRefillAfterConcurrentFlush(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := &pausingRepo{
		ListingRepository: memory.NewListingRepository(),
		read:              make(chan struct{}),
		release:           make(chan struct{}),
	}
	repo := NewListingRepository(backing, client, time.Minute, logger.NewNop())
	l := seed(t, repo, "u1")

	backing.armed.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = repo.FindByID(ctx, l.ID)
	}()
	<-backing.read
	require.NoError(t, repo.Flush(ctx))
	close(backing.release)
	<-done

	assert.False(t, mr.Exists(key(l.ID)))
}

func TestFindByIDFresh_BypassesCache(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := setup(t)
	l := seed(t, repo, "u1")
	_, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)

	// A cached copy that disagrees with the backing store.
	require.NoError(t, backing.ReplaceFields(ctx, l.ID, domain.ListingUpdate{
		Fields:    domain.ListingFields{Title: "Villa"},
		Files:     []string{},
		UpdatedAt: time.Now(),
	}))
	require.True(t, mr.Exists(key(l.ID)))

	cached, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, cached.Files)

	fresh, err := repo.FindByIDFresh(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Files)
}
