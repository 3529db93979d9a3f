package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDefaultKeyGenerator(t *testing.T) {
	payload1 := []byte(`EscrowFinish:{"Sequence":12}`)
	payload2 := []byte(`EscrowFinish:{"Sequence":13}`)

	key1 := DefaultKeyGenerator(payload1)
	key2 := DefaultKeyGenerator(payload2)
	key3 := DefaultKeyGenerator(payload1)

	if key1 != key3 {
		t.Errorf("Expected same payload to produce same key, got %s and %s", key1, key3)
	}
	if key1 == key2 {
		t.Errorf("Expected different payloads to produce different keys")
	}
	if len(key1) != 64 {
		t.Errorf("Expected key to be 64 hex chars, got %d", len(key1))
	}
}

func TestInMemoryStore_CheckAndMark_Cached(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(5 * time.Minute)
	key := "test-key"

	status, result, err := store.CheckAndMark(ctx, key)
	if err != nil || status != StatusNotFound {
		t.Fatalf("Expected StatusNotFound, got %v (%v)", status, err)
	}
	if result != nil {
		t.Error("Expected nil result for NotFound")
	}

	if err := store.Complete(ctx, key, []byte(`{"txHash":"ABC"}`)); err != nil {
		t.Fatal(err)
	}

	status, result, _ = store.CheckAndMark(ctx, key)
	if status != StatusCached {
		t.Errorf("Expected StatusCached, got %v", status)
	}
	if string(result) != `{"txHash":"ABC"}` {
		t.Errorf("Expected cached result, got %s", result)
	}
}

func TestInMemoryStore_CheckAndMark_InFlight(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(5 * time.Minute)
	key := "inflight-test"

	status1, _, _ := store.CheckAndMark(ctx, key)
	if status1 != StatusNotFound {
		t.Errorf("Expected StatusNotFound, got %v", status1)
	}

	status2, _, _ := store.CheckAndMark(ctx, key)
	if status2 != StatusInFlight {
		t.Errorf("Expected StatusInFlight, got %v", status2)
	}
}

func TestInMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(50 * time.Millisecond)
	key := "expiry-test"

	status, _, _ := store.CheckAndMark(ctx, key)
	if status != StatusNotFound {
		t.Fatalf("Expected StatusNotFound, got %v", status)
	}
	_ = store.Complete(ctx, key, []byte(`{}`))

	status, result, _ := store.CheckAndMark(ctx, key)
	if status != StatusCached || result == nil {
		t.Error("Expected StatusCached immediately after complete")
	}

	time.Sleep(60 * time.Millisecond)

	status, _, _ = store.CheckAndMark(ctx, key)
	if status != StatusNotFound {
		t.Errorf("Expected StatusNotFound after expiry, got %v", status)
	}
	_ = store.Fail(ctx, key)
}

func TestInMemoryStore_Fail(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(5 * time.Minute)
	key := "fail-test"

	_, _, _ = store.CheckAndMark(ctx, key)
	_ = store.Fail(ctx, key)

	status, _, _ := store.CheckAndMark(ctx, key)
	if status != StatusNotFound {
		t.Errorf("Expected StatusNotFound after fail, got %v", status)
	}
}

func TestInMemoryStore_WaitForResult_Success(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(5 * time.Minute)
	key := "wait-test"

	_, _, _ = store.CheckAndMark(ctx, key)

	var wg sync.WaitGroup
	var got []byte
	var waitErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, waitErr = store.WaitForResult(ctx, key)
	}()

	time.Sleep(10 * time.Millisecond)
	_ = store.Complete(ctx, key, []byte(`{"txHash":"W"}`))
	wg.Wait()

	if waitErr != nil {
		t.Fatalf("Unexpected error: %v", waitErr)
	}
	if string(got) != `{"txHash":"W"}` {
		t.Errorf("Expected waiter to see cached result, got %s", got)
	}
}

func TestInMemoryStore_WaitForResult_Failed(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(5 * time.Minute)
	key := "wait-fail"

	_, _, _ = store.CheckAndMark(ctx, key)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = store.Fail(ctx, key)
	}()

	got, err := store.WaitForResult(ctx, key)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil result after failure, got %s", got)
	}
}

func TestInMemoryStore_WaitForResult_ContextCancelled(t *testing.T) {
	store := NewInMemoryStore(5 * time.Minute)
	key := "cancel-test"

	_, _, _ = store.CheckAndMark(context.Background(), key)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := store.WaitForResult(ctx, key)
	if err != context.DeadlineExceeded {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	_ = store.Fail(context.Background(), key)
}

func TestInMemoryStore_AtomicCheckAndMark(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(5 * time.Minute)
	key := "atomic-test"

	var mu sync.Mutex
	owners := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, _ := store.CheckAndMark(ctx, key)
			if status == StatusNotFound {
				mu.Lock()
				owners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if owners != 1 {
		t.Errorf("Expected exactly one owner, got %d", owners)
	}
}
