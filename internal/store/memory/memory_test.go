package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

func connect(t *testing.T, b *Backend, opts ...store.ConnectOption) store.Store {
	t.Helper()
	s, err := b.Connect(context.Background(), opts...)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return s
}

// waitFor polls ch until a value satisfying match arrives.
func waitFor(t *testing.T, ch <-chan json.RawMessage, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if match(v) {
				return v
			}
		case <-timeout:
			t.Fatal("Timed out waiting for subscription value")
			return nil
		}
	}
}

func TestAuthenticate_AssignsStableIdentity(t *testing.T) {
	b := New()
	defer b.Close()
	s := connect(t, b)

	ctx := context.Background()
	first, err := s.Authenticate(ctx)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if first == "" {
		t.Fatal("Expected non-empty identity")
	}
	second, _ := s.Authenticate(ctx)
	if first != second {
		t.Errorf("Expected stable identity %s, got %s", first, second)
	}

	other := connect(t, b)
	otherID, _ := other.Authenticate(ctx)
	if otherID == first {
		t.Error("Expected distinct identities for distinct connections")
	}
}

func TestAuthenticate_ResumesIdentity(t *testing.T) {
	b := New()
	defer b.Close()
	s := connect(t, b, store.WithIdentity("player-1"))

	id, err := s.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if id != "player-1" {
		t.Errorf("Expected resumed identity player-1, got %s", id)
	}
}

func TestWriteRead(t *testing.T) {
	b := New()
	defer b.Close()
	s := connect(t, b)
	ctx := context.Background()

	if err := s.Write(ctx, "room/game", json.RawMessage(`{"round":1}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := s.Read(ctx, "room/game/round")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "1" {
		t.Errorf("Expected 1, got %s", got)
	}

	// Visible through another connection.
	other := connect(t, b)
	got, _ = other.Read(ctx, "room/game")
	if string(got) != `{"round":1}` {
		t.Errorf("Expected shared value, got %s", got)
	}

	if err := s.Write(ctx, "room/game", nil); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ = s.Read(ctx, "room/game")
	if got != nil {
		t.Errorf("Expected nil after delete, got %s", got)
	}
}

func TestWrite_InvalidPath(t *testing.T) {
	b := New()
	defer b.Close()
	s := connect(t, b)

	err := s.Write(context.Background(), "room/a.b", json.RawMessage(`1`))
	if !errors.Is(err, store.ErrInvalidPath) {
		t.Errorf("Expected ErrInvalidPath, got %v", err)
	}
}

func TestSubscribe_InitialThenChanges(t *testing.T) {
	b := New()
	defer b.Close()
	s := connect(t, b)
	ctx := context.Background()

	_ = s.Write(ctx, "room/status/isOpen", json.RawMessage(`true`))

	ch := make(chan json.RawMessage, 16)
	sub, err := s.Subscribe("room/status", func(v json.RawMessage) { ch <- v })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Cancel()

	waitFor(t, ch, func(v json.RawMessage) bool { return string(v) == `{"isOpen":true}` })

	_ = s.Write(ctx, "room/status/isOpen", json.RawMessage(`false`))
	waitFor(t, ch, func(v json.RawMessage) bool { return string(v) == `{"isOpen":false}` })
}

func TestSubscribe_IgnoresUnrelatedSubtrees(t *testing.T) {
	b := New()
	defer b.Close()
	s := connect(t, b)
	ctx := context.Background()

	ch := make(chan json.RawMessage, 16)
	sub, _ := s.Subscribe("room/game", func(v json.RawMessage) { ch <- v })
	defer sub.Cancel()
	waitFor(t, ch, func(v json.RawMessage) bool { return v == nil })

	_ = s.Write(ctx, "room/status/isOpen", json.RawMessage(`true`))
	_ = s.Write(ctx, "other/game", json.RawMessage(`1`))

	select {
	case v := <-ch:
		t.Errorf("Expected no delivery for unrelated writes, got %s", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()
	s := connect(t, b)
	ctx := context.Background()

	ch := make(chan json.RawMessage, 16)
	sub, _ := s.Subscribe("room", func(v json.RawMessage) { ch <- v })
	waitFor(t, ch, func(v json.RawMessage) bool { return v == nil })

	sub.Cancel()
	sub.Cancel()

	_ = s.Write(ctx, "room/game", json.RawMessage(`1`))
	select {
	case v := <-ch:
		t.Errorf("Expected no delivery after cancel, got %s", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSignOut_CancelsSubscriptions(t *testing.T) {
	b := New()
	defer b.Close()
	s := connect(t, b)
	ctx := context.Background()

	ch := make(chan json.RawMessage, 16)
	_, _ = s.Subscribe("room", func(v json.RawMessage) { ch <- v })
	waitFor(t, ch, func(v json.RawMessage) bool { return v == nil })

	s.SignOut()

	writer := connect(t, b)
	_ = writer.Write(ctx, "room/game", json.RawMessage(`1`))
	select {
	case v := <-ch:
		t.Errorf("Expected no delivery after sign out, got %s", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTransact_ConcurrentIncrements(t *testing.T) {
	b := New(WithMaxRetries(1000))
	defer b.Close()
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _ := b.Connect(ctx)
			err := s.Transact(ctx, "room/game/counter", func(cur json.RawMessage) (json.RawMessage, error) {
				var n int
				if cur != nil {
					_ = json.Unmarshal(cur, &n)
				}
				return json.Marshal(n + 1)
			})
			if err != nil {
				t.Errorf("Transact failed: %v", err)
			}
		}()
	}
	wg.Wait()

	s := connect(t, b)
	got, _ := s.Read(ctx, "room/game/counter")
	if string(got) != "20" {
		t.Errorf("Expected counter 20, got %s", got)
	}
}

func TestTransact_Abort(t *testing.T) {
	b := New()
	defer b.Close()
	s := connect(t, b)
	ctx := context.Background()

	_ = s.Write(ctx, "room/status/owner", json.RawMessage(`"a"`))
	err := s.Transact(ctx, "room/status/owner", func(cur json.RawMessage) (json.RawMessage, error) {
		return nil, store.ErrAbort
	})
	if err != nil {
		t.Errorf("Expected nil on abort, got %v", err)
	}
	got, _ := s.Read(ctx, "room/status/owner")
	if string(got) != `"a"` {
		t.Errorf("Expected value untouched, got %s", got)
	}
}

func TestTransact_CreateOnlyIfAbsent(t *testing.T) {
	b := New()
	defer b.Close()
	ctx := context.Background()

	create := func(s store.Store, owner string) bool {
		created := false
		err := s.Transact(ctx, "room", func(cur json.RawMessage) (json.RawMessage, error) {
			created = false
			if cur != nil {
				return nil, store.ErrAbort
			}
			created = true
			return json.RawMessage(`{"status":{"owner":"` + owner + `"}}`), nil
		})
		if err != nil {
			t.Errorf("Transact failed: %v", err)
		}
		return created
	}

	if !create(connect(t, b), "a") {
		t.Error("Expected first create to succeed")
	}
	if create(connect(t, b), "b") {
		t.Error("Expected second create to abort")
	}
	got, _ := connect(t, b).Read(ctx, "room/status/owner")
	if string(got) != `"a"` {
		t.Errorf("Expected owner a, got %s", got)
	}
}

func TestTransact_RetriesExhausted(t *testing.T) {
	b := New(WithMaxRetries(3))
	defer b.Close()
	s := connect(t, b)
	ctx := context.Background()

	n := 0
	err := s.Transact(ctx, "room/game", func(cur json.RawMessage) (json.RawMessage, error) {
		// A competing write lands between every read and swap.
		n++
		_ = b.Put(ctx, mustPath(t, "room/game"), json.RawMessage(`{"v":`+string(rune('0'+n))+`}`))
		return json.RawMessage(`{"mine":true}`), nil
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 attempts, got %d", n)
	}
}

func TestClose_RejectsConnections(t *testing.T) {
	b := New()
	_ = b.Close()
	_ = b.Close()

	_, err := b.Connect(context.Background())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable after close, got %v", err)
	}
}

func mustPath(t *testing.T, p string) store.Path {
	t.Helper()
	parsed, err := store.ParsePath(p)
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", p, err)
	}
	return parsed
}
