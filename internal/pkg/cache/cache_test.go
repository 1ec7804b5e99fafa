package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testStorageImpl struct {
	values chan string
	calls  atomic.Int64
	actual bool
}

func (s *testStorageImpl) Get(ctx context.Context, key int) (string, error) {
	s.calls.Add(1)
	value := <-s.values
	if value == "" {
		return "", fmt.Errorf("empty value for %d", key)
	}
	return value, nil
}

func (s *testStorageImpl) Actual(key int, value string) bool {
	return s.actual
}

func TestCache(t *testing.T) {
	storage := &testStorageImpl{
		values: make(chan string),
		actual: true,
	}
	manager := NewManager[int, string](storage)
	go func() {
		select {
		case <-time.After(time.Second):
		case storage.values <- "test":
		}
	}()
	value, err := manager.Load(context.Background(), 42)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, value, "test")
	testExpect(t, manager.Len(), 1)
	value, err = manager.Load(context.Background(), 42)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, value, "test")
	testExpect(t, storage.calls.Load(), int64(1))
	if ok := manager.Delete(42); !ok {
		t.Fatalf("Cannot delete key %d", 42)
	}
	testExpect(t, manager.Len(), 0)
	if ok := manager.Delete(42); ok {
		t.Fatalf("Key %d should be already deleted", 42)
	}
}

func TestCacheConcurrentLoad(t *testing.T) {
	storage := &testStorageImpl{
		values: make(chan string, 1),
		actual: true,
	}
	manager := NewManager[int, string](storage)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := manager.Load(context.Background(), 1)
			if err != nil {
				t.Error("Error:", err)
				return
			}
			if value != "shared" {
				t.Errorf("Expected %q, got %q", "shared", value)
			}
		}()
	}
	storage.values <- "shared"
	wg.Wait()
	testExpect(t, storage.calls.Load(), int64(1))
}

func TestCacheReload(t *testing.T) {
	storage := &testStorageImpl{
		values: make(chan string, 2),
	}
	manager := NewManager[int, string](storage)
	storage.values <- "first"
	storage.values <- "second"
	value, err := manager.Load(context.Background(), 1)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, value, "first")
	value, err = manager.Load(context.Background(), 1)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, value, "second")
	testExpect(t, storage.calls.Load(), int64(2))
}

func TestCacheError(t *testing.T) {
	storage := &testStorageImpl{
		values: make(chan string, 2),
		actual: true,
	}
	manager := NewManager[int, string](storage)
	storage.values <- ""
	if _, err := manager.Load(context.Background(), 1); err == nil {
		t.Fatal("Expected error")
	}
	storage.values <- "fixed"
	value, err := manager.Load(context.Background(), 1)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, value, "fixed")
}

func testExpect[T comparable](tb testing.TB, output, answer T) {
	tb.Helper()
	if output != answer {
		tb.Fatalf(
			"Expected %q, got %q",
			fmt.Sprint(answer), fmt.Sprint(output),
		)
	}
}
