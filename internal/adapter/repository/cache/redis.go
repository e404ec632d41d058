package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/platform/logger"
)

const (
	keyPrefix = "listing:"
	// Generation keys live outside keyPrefix so Flush never scans them.
	genPrefix = "listing-gen:"
	flushKey  = genPrefix + "flush"
)

var errStaleFill = errors.New("listing changed during cache fill")

// NewRedisClient connects to Redis and pings it once.
func NewRedisClient(addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	log.Info("connected to Redis", zap.String("address", addr))
	return rdb, nil
}

// ListingRepository decorates another repository with a read-through cache of
// single listings. Redis failures never fail a request: reads fall through to
// the wrapped repository and failed invalidations are logged.
type ListingRepository struct {
	next   domain.ListingRepository
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

var (
	_ domain.ListingRepository = (*ListingRepository)(nil)
	_ domain.FreshReader       = (*ListingRepository)(nil)
)

func NewListingRepository(next domain.ListingRepository, client *redis.Client, ttl time.Duration, log *logger.Logger) *ListingRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ListingRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: log.Named("ListingCache"),
	}
}

func key(id string) string    { return keyPrefix + id }
func genKey(id string) string { return genPrefix + id }

func (c *ListingRepository) Find(ctx context.Context, p domain.Predicate) ([]*domain.Listing, error) {
	return c.next.Find(ctx, p)
}

func (c *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	if l, ok := c.get(ctx, id); ok {
		return l, nil
	}
	gen, genOK := c.generation(ctx, id)
	l, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genOK {
		c.fill(ctx, l, gen)
	}
	return l, nil
}

// FindByIDFresh reads the wrapped repository and leaves the cache untouched.
func (c *ListingRepository) FindByIDFresh(ctx context.Context, id string) (*domain.Listing, error) {
	return c.next.FindByID(ctx, id)
}

func (c *ListingRepository) FindByOwnerAndID(ctx context.Context, ownerID, id string) (*domain.Listing, error) {
	if l, ok := c.get(ctx, id); ok {
		if l.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: %s", domain.ErrListingNotFound, id)
		}
		return l, nil
	}
	return c.next.FindByOwnerAndID(ctx, ownerID, id)
}

func (c *ListingRepository) Insert(ctx context.Context, listing *domain.Listing) error {
	return c.next.Insert(ctx, listing)
}

func (c *ListingRepository) ReplaceFields(ctx context.Context, id string, update domain.ListingUpdate) error {
	err := c.next.ReplaceFields(ctx, id, update)
	c.invalidate(ctx, id)
	return err
}

func (c *ListingRepository) BulkSetStatus(ctx context.Context, p domain.Predicate, status domain.ListingStatus) (int64, error) {
	n, err := c.next.BulkSetStatus(ctx, p, status)
	if err == nil && n > 0 {
		if ferr := c.Flush(ctx); ferr != nil {
			c.logger.Warn("failed to flush listing cache after bulk status change", zap.Error(ferr))
		}
	}
	return n, err
}

func (c *ListingRepository) Delete(ctx context.Context, id string) error {
	err := c.next.Delete(ctx, id)
	c.invalidate(ctx, id)
	return err
}

// Flush removes every cached listing. Fills that started before the flush are
// discarded.
func (c *ListingRepository) Flush(ctx context.Context) error {
	if err := c.client.Incr(ctx, flushKey).Err(); err != nil {
		return fmt.Errorf("bump flush generation: %w", err)
	}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan listing keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete listing keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *ListingRepository) get(ctx context.Context, id string) (*domain.Listing, bool) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", zap.String("listing_id", id), zap.Error(err))
		}
		return nil, false
	}
	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		c.logger.Warn("dropping undecodable cache entry", zap.String("listing_id", id), zap.Error(err))
		c.invalidate(ctx, id)
		return nil, false
	}
	return &l, true
}

// generation snapshots the invalidation counters a fill must still see when it
// writes. Without a snapshot the read is not cached.
func (c *ListingRepository) generation(ctx context.Context, id string) (string, bool) {
	vals, err := c.client.MGet(ctx, genKey(id), flushKey).Result()
	if err != nil {
		c.logger.Warn("redis mget failed", zap.String("listing_id", id), zap.Error(err))
		return "", false
	}
	return genString(vals), true
}

func genString(vals []interface{}) string {
	return fmt.Sprintf("%v/%v", vals[0], vals[1])
}

// fill caches l unless the listing was invalidated or the cache flushed since
// gen was taken. WATCH makes the check and the SET atomic against invalidate.
func (c *ListingRepository) fill(ctx context.Context, l *domain.Listing, gen string) {
	data, err := json.Marshal(l)
	if err != nil {
		c.logger.Warn("failed to encode listing for cache", zap.String("listing_id", l.ID), zap.Error(err))
		return
	}
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx, genKey(l.ID), flushKey).Result()
		if err != nil {
			return err
		}
		if genString(vals) != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(l.ID), data, c.ttl)
			return nil
		})
		return err
	}, genKey(l.ID), flushKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("skipped stale cache fill", zap.String("listing_id", l.ID))
	default:
		c.logger.Warn("redis set failed", zap.String("listing_id", l.ID), zap.Error(err))
	}
}

// invalidate bumps the listing's generation and drops its entry in one
// transaction. The generation key outlives any fill that could have read it.
func (c *ListingRepository) invalidate(ctx context.Context, id string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(id))
		pipe.Expire(ctx, genKey(id), 2*c.ttl)
		pipe.Del(ctx, key(id))
		return nil
	})
	if err != nil {
		c.logger.Warn("redis invalidate failed", zap.String("listing_id", id), zap.Error(err))
	}
}
