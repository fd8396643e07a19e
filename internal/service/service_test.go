package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cdi-tracker/internal/infrastructure/database"
	"cdi-tracker/internal/infrastructure/repository"
	infrastructure "cdi-tracker/internal/interfaces/infrastructure"
)

// fixedNow is the clock used by every manager under test.
var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store         *database.Store
	students      infrastructure.StudentRepository
	frequentation infrastructure.FrequentationRepository
	cal           *Calendar
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := database.NewConnection(database.Config{Path: filepath.Join(t.TempDir(), "cdi.db")})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return &testEnv{
		store:         store,
		students:      repository.NewStudentRepository(store.DB),
		frequentation: repository.NewFrequentationRepository(store.DB),
		cal:           NewCalendar(time.UTC),
	}
}

func (e *testEnv) studentManager(cache infrastructure.CacheService) *studentManager {
	return NewStudentManager(e.students, cache, e.cal, StudentManagerConfig{MaxBatchSize: 10}).(*studentManager)
}

func (e *testEnv) frequentationManager() *frequentationManager {
	m := NewFrequentationManager(e.frequentation, e.students, e.cal).(*frequentationManager)
	m.now = func() time.Time { return fixedNow }
	return m
}

// memoryCache is an in-process CacheService that records deletions.
type memoryCache struct {
	mu      sync.Mutex
	values  map[string]string
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	c.deletes++
	return nil
}

func (c *memoryCache) Health(ctx context.Context) error { return nil }

func (c *memoryCache) Close() error { return nil }

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }
