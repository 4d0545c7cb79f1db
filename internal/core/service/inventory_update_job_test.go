package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/salestock/internal/core/domain"
)

// fakeInventoryRepo keeps counters in memory and mimics the transactional
// contract: mutations made inside WithTx are discarded when fn errors.
type fakeInventoryRepo struct {
	mu    sync.Mutex
	stock map[int64]int

	commits   int
	rollbacks int

	decrementErr error
}

func newFakeInventoryRepo(stock map[int64]int) *fakeInventoryRepo {
	return &fakeInventoryRepo{stock: stock}
}

type fakeTxKey struct{}

// fakeTx records applied decrements so a rollback can compensate them, the
// way the storage engine's rollback undoes row changes.
type fakeTx struct {
	mu      sync.Mutex
	applied map[int64]int
}

func (f *fakeInventoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := &fakeTx{applied: make(map[int64]int)}

	if err := fn(context.WithValue(ctx, fakeTxKey{}, tx)); err != nil {
		f.mu.Lock()
		for id, qty := range tx.applied {
			f.stock[id] += qty
		}
		f.rollbacks++
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.commits++
	f.mu.Unlock()
	return nil
}

func (f *fakeInventoryRepo) DecrementIfEnough(ctx context.Context, productID int64, quantity int) (bool, error) {
	if f.decrementErr != nil {
		return false, f.decrementErr
	}

	tx, _ := ctx.Value(fakeTxKey{}).(*fakeTx)
	if tx == nil {
		return false, errors.New("decrement outside transaction")
	}

	// Predicate and subtraction are applied under one mutex, mirroring the
	// store's atomic conditional update.
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stock[productID] < quantity {
		return false, nil
	}
	f.stock[productID] -= quantity

	tx.mu.Lock()
	tx.applied[productID] += quantity
	tx.mu.Unlock()
	return true, nil
}

func (f *fakeInventoryRepo) GetItem(ctx context.Context, productID int64) (domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	qty, ok := f.stock[productID]
	if !ok {
		return domain.InventoryItem{}, domain.ErrItemNotFound
	}
	return domain.InventoryItem{ProductID: productID, Quantity: qty}, nil
}

func (f *fakeInventoryRepo) ListItems(ctx context.Context, offset, limit int) ([]domain.InventoryItem, error) {
	return nil, nil
}

func (f *fakeInventoryRepo) SeedItem(ctx context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[productID] = quantity
	return nil
}

func (f *fakeInventoryRepo) quantity(productID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID]
}

// fakeLocker serializes per key with real mutexes and records that every
// acquire is paired with a release.
type fakeLocker struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	acquired []string
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *fakeLocker) Run(ctx context.Context, key string, ttl, waitTimeout, pollInterval time.Duration, body func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.acquired = append(l.acquired, key)
	l.mu.Unlock()

	m.Lock()
	defer func() {
		m.Unlock()
		l.mu.Lock()
		l.released = append(l.released, key)
		l.mu.Unlock()
	}()

	return body(ctx)
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls [][]int64
	err   error
}

func (f *fakeInvalidator) InvalidateByProducts(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, ids)
	return nil
}

type recordingSink struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{counters: make(map[string]int64)}
}

func (s *recordingSink) Increment(ctx context.Context, name string, by int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += by
}

func (s *recordingSink) Gauge(ctx context.Context, name string, value float64) {}

func (s *recordingSink) count(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

func newTestJob(repo *fakeInventoryRepo) (*InventoryUpdateJob, *fakeLocker, *fakeInvalidator, *recordingSink) {
	locker := newFakeLocker()
	inv := &fakeInvalidator{}
	sink := newRecordingSink()
	job := NewInventoryUpdateJob(repo, locker, inv, sink, zap.NewNop(),
		WithLockTimings(time.Second, 100*time.Millisecond, time.Millisecond))
	return job, locker, inv, sink
}

func TestExecute_Success(t *testing.T) {
	repo := newFakeInventoryRepo(map[int64]int{1: 10})
	job, locker, inv, sink := newTestJob(repo)

	err := job.Execute(context.Background(), 42, []domain.SaleItem{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)

	assert.Equal(t, 7, repo.quantity(1))
	assert.Equal(t, 1, repo.commits)
	assert.Equal(t, [][]int64{{1}}, inv.calls)
	assert.Equal(t, locker.acquired, locker.released)
	assert.EqualValues(t, 1, sink.count("inventory_update.started"))
	assert.EqualValues(t, 1, sink.count("inventory_update.completed"))
	assert.EqualValues(t, 1, sink.count("inventory_cache.invalidated"))
	assert.EqualValues(t, 0, sink.count("inventory_update.failed"))
}

func TestExecute_InsufficientStock(t *testing.T) {
	repo := newFakeInventoryRepo(map[int64]int{1: 10})
	job, locker, inv, sink := newTestJob(repo)

	err := job.Execute(context.Background(), 42, []domain.SaleItem{{ProductID: 1, Quantity: 1000}})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 10, repo.quantity(1), "failed decrement must not mutate stock")
	assert.Equal(t, 1, repo.rollbacks)
	assert.Empty(t, inv.calls, "cache must not be invalidated on failure")
	assert.Equal(t, locker.acquired, locker.released, "locks must be released on failure")
	assert.EqualValues(t, 1, sink.count("inventory_update.failed"))
	assert.EqualValues(t, 0, sink.count("inventory_update.completed"))
}

func TestExecute_PartialBatchRollsBack(t *testing.T) {
	repo := newFakeInventoryRepo(map[int64]int{1: 10, 2: 1})
	job, _, _, _ := newTestJob(repo)

	// Product 1 has stock, product 2 does not; neither decrement may stick.
	err := job.Execute(context.Background(), 42, []domain.SaleItem{
		{ProductID: 1, Quantity: 5},
		{ProductID: 2, Quantity: 5},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 10, repo.quantity(1), "earlier item leaked out of the aborted transaction")
	assert.Equal(t, 1, repo.quantity(2))
}

func TestExecute_ConcurrentJobsSameProduct(t *testing.T) {
	repo := newFakeInventoryRepo(map[int64]int{1: 10})
	job, _, _, _ := newTestJob(repo)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = job.Execute(context.Background(), int64(i), []domain.SaleItem{{ProductID: 1, Quantity: 6}})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of two 6-of-10 decrements may win")
	assert.Equal(t, 4, repo.quantity(1))
}

func TestExecute_StoreError(t *testing.T) {
	repo := newFakeInventoryRepo(map[int64]int{1: 10})
	repo.decrementErr = fmt.Errorf("connection reset")
	job, locker, _, sink := newTestJob(repo)

	err := job.Execute(context.Background(), 42, []domain.SaleItem{{ProductID: 1, Quantity: 1}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, locker.acquired, locker.released)
	assert.EqualValues(t, 1, sink.count("inventory_update.failed"))
}

func TestExecute_CacheFailureDoesNotFailJob(t *testing.T) {
	repo := newFakeInventoryRepo(map[int64]int{1: 10})
	job, _, inv, sink := newTestJob(repo)
	inv.err = errors.New("redis down")

	err := job.Execute(context.Background(), 42, []domain.SaleItem{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err, "cache failure must not abort a committed update")

	assert.Equal(t, 7, repo.quantity(1))
	assert.EqualValues(t, 1, sink.count("inventory_update.completed"))
	assert.EqualValues(t, 0, sink.count("inventory_cache.invalidated"))
}

func TestFailedHook_NeverPanics(t *testing.T) {
	repo := newFakeInventoryRepo(map[int64]int{})
	job, _, _, sink := newTestJob(repo)

	require.NotPanics(t, func() {
		job.Failed(42, errors.New("boom"))
	})
	assert.EqualValues(t, 1, sink.count("inventory_update.exhausted"))
}

func TestInventoryUpdateTask(t *testing.T) {
	repo := newFakeInventoryRepo(map[int64]int{1: 10})
	job, _, _, _ := newTestJob(repo)

	task := NewInventoryUpdateTask(job, 42, []domain.SaleItem{{ProductID: 1, Quantity: 2}})
	assert.Equal(t, "inventory_update", task.Name())
	require.NoError(t, task.Handle(context.Background()))
	assert.Equal(t, 8, repo.quantity(1))
}
