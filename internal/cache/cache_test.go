package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestKey(t *testing.T) {
	k1 := Key("enrich", "openai", "some text")
	k2 := Key("enrich", "openai", "some text")
	k3 := Key("enrich", "openai", "other text")

	if k1 != k2 {
		t.Error("same parts should produce same key")
	}
	if k1 == k3 {
		t.Error("different parts should produce different keys")
	}
	if len(k1) != keyLen {
		t.Errorf("key length = %d, want %d", len(k1), keyLen)
	}

	// Joining must not conflate part boundaries.
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("part boundaries should affect the key")
	}
}

func TestDoMissThenHit(t *testing.T) {
	store := New(Config{Dir: t.TempDir()})
	calls := 0
	fn := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`{"v":1}`), nil
	}

	data, cached, err := store.Do(context.Background(), Key("a"), fn)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if cached {
		t.Error("first call should miss")
	}
	if string(data) != `{"v":1}` {
		t.Errorf("data = %q", data)
	}

	data, cached, err = store.Do(context.Background(), Key("a"), fn)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !cached {
		t.Error("second call should hit")
	}
	if string(data) != `{"v":1}` {
		t.Errorf("data = %q", data)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestDoFailureNotCached(t *testing.T) {
	store := New(Config{Dir: t.TempDir()})
	calls := 0
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, _, err := store.Do(context.Background(), Key("fail"), func(ctx context.Context) ([]byte, error) {
			calls++
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Do() error = %v, want boom", err)
		}
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2 (failures must not be cached)", calls)
	}

	st, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Entries != 0 {
		t.Errorf("Entries = %d, want 0", st.Entries)
	}
}

func TestDoDisabled(t *testing.T) {
	store := New(Config{Dir: t.TempDir(), Disabled: true})
	calls := 0
	for i := 0; i < 2; i++ {
		_, cached, err := store.Do(context.Background(), Key("x"), func(ctx context.Context) ([]byte, error) {
			calls++
			return []byte("v"), nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if cached {
			t.Error("disabled cache should never report a hit")
		}
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}

	st, _ := store.Stats()
	if st.Entries != 0 {
		t.Errorf("disabled cache wrote %d entries", st.Entries)
	}
}

func TestDoSingleflight(t *testing.T) {
	store := New(Config{Dir: t.TempDir()})
	var calls atomic.Int64
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Do(context.Background(), Key("shared"), func(ctx context.Context) ([]byte, error) {
				calls.Add(1)
				<-release
				return []byte("v"), nil
			})
			if err != nil {
				t.Errorf("Do() error = %v", err)
			}
		}()
	}

	close(release)
	wg.Wait()

	// Goroutines that arrive before the first fn finishes share it; late
	// arrivals hit the file. Either way the count stays far below 8.
	if got := calls.Load(); got > 2 {
		t.Errorf("fn called %d times, want at most 2", got)
	}
}

func TestStatsAndClear(t *testing.T) {
	store := New(Config{Dir: t.TempDir()})
	for _, k := range []string{"a", "b", "c"} {
		_, _, err := store.Do(context.Background(), Key(k), func(ctx context.Context) ([]byte, error) {
			return []byte(`{"k":"` + k + `"}`), nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}

	st, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Entries != 3 {
		t.Errorf("Entries = %d, want 3", st.Entries)
	}
	if st.Bytes == 0 {
		t.Error("Bytes = 0, want non-zero")
	}

	removed, err := store.Clear()
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("Clear() removed %d, want 3", removed)
	}

	st, _ = store.Stats()
	if st.Entries != 0 {
		t.Errorf("Entries after clear = %d, want 0", st.Entries)
	}
}

func TestStatsMissingDir(t *testing.T) {
	store := New(Config{Dir: t.TempDir() + "/never-created"})
	st, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Entries != 0 {
		t.Errorf("Entries = %d, want 0", st.Entries)
	}
	if _, err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
}
