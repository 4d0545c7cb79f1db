package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/salestock/internal/port"
)

const (
	itemKeyPrefix  = "inventory:item:"
	listKeyPrefix  = "inventory:list:"
	listVersionKey = "inventory:list-version"

	// Item entries stay short-lived so reads favor freshness over hit rate.
	itemTTL = 30 * time.Second
	listTTL = 5 * time.Minute

	// The version key must outlive every listing entry derived from it,
	// otherwise numbering silently resets and stale keys come back to life.
	versionTTL = 30 * 24 * time.Hour
)

type Resolver func(ctx context.Context) ([]byte, error)

// Versioned is a read-through cache whose listing keys embed a monotonic
// version counter. Bumping the counter orphans every derived listing key in
// O(1); the orphans expire via their own TTLs.
type Versioned struct {
	store   port.CacheStore
	incr    port.AtomicIncrementer // nil when the store cannot increment atomically
	metrics port.MetricsSink
	logger  *zap.Logger
}

// NewVersioned picks the version-bump strategy once, here: stores exposing
// an atomic increment use it, the rest fall back to read-then-write.
func NewVersioned(store port.CacheStore, metrics port.MetricsSink, logger *zap.Logger) *Versioned {
	v := &Versioned{store: store, metrics: metrics, logger: logger}
	if incr, ok := store.(port.AtomicIncrementer); ok {
		v.incr = incr
	}
	return v
}

// RememberItem returns the cached item entry for a product, invoking the
// resolver and caching its result on a miss.
func (v *Versioned) RememberItem(ctx context.Context, productID int64, resolve Resolver) ([]byte, error) {
	return v.remember(ctx, itemKey(productID), itemTTL, resolve)
}

// RememberList returns the cached listing for the given filter and page
// under the current list version.
func (v *Versioned) RememberList(ctx context.Context, filter map[string]string, page int, resolve Resolver) ([]byte, error) {
	version, err := v.listVersion(ctx)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%sv%d:%s", listKeyPrefix, version, hashListParams(filter, page))
	return v.remember(ctx, key, listTTL, resolve)
}

// InvalidateByProducts evicts each product's item entry, then bumps the list
// version so every cached listing is orphaned at once.
func (v *Versioned) InvalidateByProducts(ctx context.Context, productIDs []int64) error {
	for _, id := range productIDs {
		if err := v.store.Forget(ctx, itemKey(id)); err != nil {
			return fmt.Errorf("forget %s: %w", itemKey(id), err)
		}
	}
	if _, err := v.BumpListVersion(ctx); err != nil {
		return err
	}
	return nil
}

// BumpListVersion advances the list version and returns the new value.
func (v *Versioned) BumpListVersion(ctx context.Context) (int64, error) {
	if v.incr != nil {
		version, err := v.incr.Increment(ctx, listVersionKey)
		if err != nil {
			return 0, fmt.Errorf("bump list version: %w", err)
		}
		return version, nil
	}

	// Fallback for plain stores: a racy read-then-write. A lost bump only
	// delays invalidation by one cycle, it never corrupts data.
	version, err := v.listVersion(ctx)
	if err != nil {
		return 0, err
	}
	version++
	if err := v.store.Put(ctx, listVersionKey, []byte(strconv.FormatInt(version, 10)), versionTTL); err != nil {
		return 0, fmt.Errorf("bump list version: %w", err)
	}
	return version, nil
}

func (v *Versioned) remember(ctx context.Context, key string, ttl time.Duration, resolve Resolver) ([]byte, error) {
	cached, ok, err := v.store.Get(ctx, key)
	if err != nil {
		// A broken cache read degrades to a resolver call, never an outage.
		v.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		v.metrics.Increment(ctx, "inventory_cache.hit", 1)
		return cached, nil
	}

	v.metrics.Increment(ctx, "inventory_cache.miss", 1)
	value, err := resolve(ctx)
	if err != nil {
		return nil, err
	}

	if err := v.store.Put(ctx, key, value, ttl); err != nil {
		v.logger.Warn("cache put failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

func (v *Versioned) listVersion(ctx context.Context) (int64, error) {
	raw, ok, err := v.store.Get(ctx, listVersionKey)
	if err != nil {
		return 0, fmt.Errorf("read list version: %w", err)
	}
	if !ok {
		if err := v.store.Put(ctx, listVersionKey, []byte("1"), versionTTL); err != nil {
			return 0, fmt.Errorf("init list version: %w", err)
		}
		return 1, nil
	}

	version, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse list version %q: %w", raw, err)
	}
	return version, nil
}

func itemKey(productID int64) string {
	return itemKeyPrefix + strconv.FormatInt(productID, 10)
}

// hashListParams produces a stable digest of normalized filter parameters so
// equivalent queries share one cache entry.
func hashListParams(filter map[string]string, page int) string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filter[k])
		b.WriteByte(';')
	}
	b.WriteString("page=")
	b.WriteString(strconv.Itoa(page))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}
