package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"txbridge/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	txCacheVersionKey = "txbridge:tx:version"
	txCacheKeyPrefix  = "txbridge:tx:v"
	defaultCacheTTL   = time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedRepository fronts the mysql repository with a redis read-through
// cache for transaction lookups and sender counts. Every write bumps a
// version key, invalidating all cached reads at once.
type CachedRepository struct {
	*Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(base *Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: client, ttl: cfg.TTL}, nil
}

func (r *CachedRepository) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	if err := r.Repository.CreateTransaction(ctx, tx); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedRepository) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	if err := r.Repository.UpdateTransaction(ctx, tx); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedRepository) GetTransaction(ctx context.Context, chainID uint64, txHash string) (domain.Transaction, bool, error) {
	if r.cache == nil {
		return r.Repository.GetTransaction(ctx, chainID, txHash)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Repository.GetTransaction(ctx, chainID, txHash)
	}
	key := txCacheKeyPrefix + version + ":get:" + strconv.FormatUint(chainID, 10) + ":" + strings.ToLower(txHash)
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		var tx domain.Transaction
		if err := json.Unmarshal([]byte(cached), &tx); err == nil {
			return tx, true, nil
		}
	}

	tx, found, err := r.Repository.GetTransaction(ctx, chainID, txHash)
	if err != nil || !found {
		return tx, found, err
	}
	if payload, err := json.Marshal(tx); err == nil {
		_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
	}
	return tx, true, nil
}

func (r *CachedRepository) CountBySender(ctx context.Context, chainID uint64, sender string) (uint64, error) {
	if r.cache == nil {
		return r.Repository.CountBySender(ctx, chainID, sender)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Repository.CountBySender(ctx, chainID, sender)
	}
	key := txCacheKeyPrefix + version + ":count:" + strconv.FormatUint(chainID, 10) + ":" + strings.ToLower(sender)
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		if count, err := strconv.ParseUint(cached, 10, 64); err == nil {
			return count, nil
		}
	}

	count, err := r.Repository.CountBySender(ctx, chainID, sender)
	if err != nil {
		return 0, err
	}
	_ = r.cache.Set(ctx, key, strconv.FormatUint(count, 10), r.ttl).Err()
	return count, nil
}

func (r *CachedRepository) cacheVersion(ctx context.Context) (string, bool) {
	version, err := r.cache.Get(ctx, txCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func (r *CachedRepository) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Incr(ctx, txCacheVersionKey).Err()
}
